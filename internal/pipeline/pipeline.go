package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/voxsub/internal/correction"
	"github.com/fmueller/voxsub/internal/quality"
	"github.com/fmueller/voxsub/internal/reprocess"
	"github.com/fmueller/voxsub/internal/transcript"
	"github.com/fmueller/voxsub/internal/whisper"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTargetQuality = reprocess.DefaultTargetQuality

type Options struct {
	DefaultConfig string
	MaxAttempts   int
	EngineTimeout time.Duration
	// DisableCorrection skips the correction stage for every run.
	DisableCorrection bool
	Correction        correction.Options
	Logger            *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		DefaultConfig: whisper.DefaultConfig,
		MaxAttempts:   reprocess.DefaultMaxAttempts,
		EngineTimeout: reprocess.DefaultTimeout,
		Correction:    correction.DefaultOptions(),
	}
}

type Request struct {
	Audio    whisper.Audio
	Config   string
	Language string
	// TargetQuality defaults to 0.8 when zero.
	TargetQuality  float64
	SkipCorrection bool
	Sink           Sink
}

// Result is always returned by Run. Error is only set when the request was
// invalid or the initial transcription failed.
type Result struct {
	RunID   string `json:"run_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	FinalText     string               `json:"final_text"`
	FinalSegments []transcript.Segment `json:"final_segments"`
	Quality       quality.Metrics      `json:"quality_metrics"`
	AttemptsMade  int                  `json:"attempts_made"`
	StopReason    reprocess.StopReason `json:"stop_reason,omitempty"`
	History       []reprocess.Attempt  `json:"attempts,omitempty"`

	Strategy           string   `json:"correction_strategy_used,omitempty"`
	TotalCorrections   int      `json:"total_corrections"`
	CorrectionApplied  bool     `json:"correction_applied"`
	FailedBatches      int      `json:"failed_batches"`
	FinalQualityScore  float64  `json:"final_quality_score,omitempty"`
	ImprovementDetails []string `json:"improvement_details,omitempty"`

	EngineUsed        string  `json:"engine_used,omitempty"`
	Language          string  `json:"language,omitempty"`
	ProcessingSeconds float64 `json:"processing_seconds"`
}

// SRT renders the final segments as SubRip cues.
func (r Result) SRT() string {
	return transcript.FormatSRT(r.FinalSegments)
}

// Pipeline runs transcription, quality driven reprocessing and correction.
// It holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	engine    whisper.Engine
	analyzer  *quality.Analyzer
	corrector *correction.Corrector
	opts      Options
	logger    *zap.Logger
}

// New wires a pipeline. service may be nil, in which case every correction
// batch reports the service as unavailable.
func New(engine whisper.Engine, service correction.Service, analyzer *quality.Analyzer, opts Options) *Pipeline {
	defaults := DefaultOptions()
	if opts.DefaultConfig == "" {
		opts.DefaultConfig = defaults.DefaultConfig
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.EngineTimeout <= 0 {
		opts.EngineTimeout = defaults.EngineTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Correction.Logger == nil {
		opts.Correction.Logger = logger
	}
	if analyzer == nil {
		analyzer = quality.NewAnalyzer(quality.DefaultOptions())
	}
	return &Pipeline{
		engine:    engine,
		analyzer:  analyzer,
		corrector: correction.NewCorrector(service, opts.Correction),
		opts:      opts,
		logger:    logger,
	}
}

func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	started := time.Now()
	res := Result{RunID: uuid.NewString()}
	logger := p.logger.With(zap.String("run_id", res.RunID))
	emit := p.emitter(ctx, req.Sink, res.RunID, logger)

	target := req.TargetQuality
	if target == 0 {
		target = DefaultTargetQuality
	}
	if err := validate(req, target); err != nil {
		res.Error = err.Error()
		logger.Error("invalid run request", zap.Error(err))
		return res
	}
	config := req.Config
	if config == "" {
		config = p.opts.DefaultConfig
	}

	emit(StageTranscription, 0, fmt.Sprintf("Transcribing with %s", config))
	logger.Info("transcribing", zap.String("config", config), zap.String("audio", req.Audio.FileName()))
	initial, err := p.transcribe(ctx, req, config)
	if err != nil {
		res.Error = err.Error()
		res.ProcessingSeconds = time.Since(started).Seconds()
		logger.Error("initial transcription failed", zap.Error(err))
		return res
	}
	emit(StageTranscription, transcriptionDone, fmt.Sprintf("Transcribed %d segments", len(initial.Segments)))

	emit(StageQuality, qualityStart, "Analyzing transcript quality")
	controller := reprocess.NewController(p.engine, p.analyzer, reprocess.Options{
		MaxAttempts:   p.opts.MaxAttempts,
		TargetQuality: target,
		Language:      req.Language,
		Timeout:       p.opts.EngineTimeout,
		Logger:        logger,
		OnAttempt: func(attempt int, next string) {
			span := reprocessDone - reprocessStart
			percent := reprocessStart + span*(attempt-1)/max(p.opts.MaxAttempts, 1)
			emit(StageReprocessing, percent, fmt.Sprintf("Reprocessing with %s (attempt %d/%d)", next, attempt, p.opts.MaxAttempts))
		},
	})
	outcome := controller.Run(ctx, req.Audio, initial)
	final := outcome.Transcript
	emit(StageReprocessing, reprocessDone, fmt.Sprintf("Quality %.2f after %d reprocessing attempt(s)", outcome.Metrics.Overall, outcome.Attempts))

	res.Success = true
	res.Quality = outcome.Metrics
	res.AttemptsMade = outcome.Attempts
	res.StopReason = outcome.Reason
	res.History = outcome.History
	res.EngineUsed = final.EngineUsed
	res.Language = final.Language
	res.FinalText = final.Text
	res.FinalSegments = transcript.Clone(final.Segments)

	if p.opts.DisableCorrection || req.SkipCorrection || len(final.Segments) == 0 {
		logger.Info("correction skipped")
	} else {
		strategy := correction.Select(outcome.Metrics)
		res.Strategy = strategy.Name
		emit(StageCorrection, correctionPercent(0, 1), fmt.Sprintf("Correcting with %s strategy", strategy.Name))
		logger.Info("correcting transcript",
			zap.String("strategy", strategy.Name),
			zap.Float64("aggressiveness", strategy.Aggressiveness),
		)

		corrected := p.corrector.Correct(ctx, final.Segments, strategy, func(done, total int) {
			emit(StageCorrection, correctionPercent(done, total), fmt.Sprintf("Corrected batch %d/%d", done, total))
		})
		if corrected.Err != nil {
			logger.Warn("some correction batches failed", zap.Int("failed_batches", corrected.FailedBatches), zap.Error(corrected.Err))
		}
		res.FinalSegments = corrected.Segments
		res.TotalCorrections = corrected.TotalCorrections
		res.CorrectionApplied = corrected.Applied
		res.FailedBatches = corrected.FailedBatches
		res.FinalQualityScore = corrected.FinalQualityScore
		res.ImprovementDetails = corrected.ImprovementDetails
		if corrected.Applied {
			res.FinalText = transcript.JoinText(corrected.Segments)
		}
	}

	res.ProcessingSeconds = time.Since(started).Seconds()
	emit(StageComplete, complete, "Done")
	logger.Info("run finished",
		zap.Float64("overall", res.Quality.Overall),
		zap.Int("attempts", res.AttemptsMade),
		zap.Int("corrections", res.TotalCorrections),
	)
	return res
}

func (p *Pipeline) transcribe(ctx context.Context, req Request, config string) (transcript.Transcript, error) {
	if p.engine == nil {
		return transcript.Transcript{}, errors.New("no transcription engine configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, p.opts.EngineTimeout)
	defer cancel()
	return p.engine.Transcribe(callCtx, whisper.Request{Audio: req.Audio, Config: config, Language: req.Language})
}

func (p *Pipeline) emitter(ctx context.Context, sink Sink, runID string, logger *zap.Logger) func(Stage, int, string) {
	return func(stage Stage, percent int, message string) {
		if sink == nil {
			return
		}
		event := Event{RunID: runID, Stage: stage, Percent: percent, Message: message}
		if err := sink.Publish(ctx, event); err != nil {
			logger.Warn("progress sink failed", zap.String("stage", string(stage)), zap.Error(err))
		}
	}
}

func validate(req Request, target float64) error {
	if req.Audio.IsZero() {
		return errors.New("audio path or data is required")
	}
	if target <= 0 || target > 1 {
		return fmt.Errorf("target quality must be in (0, 1], got %g", target)
	}
	return nil
}
