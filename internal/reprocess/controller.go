package reprocess

import (
	"context"
	"time"

	"github.com/fmueller/voxsub/internal/quality"
	"github.com/fmueller/voxsub/internal/transcript"
	"github.com/fmueller/voxsub/internal/whisper"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts   = 2
	DefaultTargetQuality = 0.8
	DefaultTimeout       = 5 * time.Minute
)

// StopReason tells why the loop ended.
type StopReason string

const (
	TargetReached   StopReason = "target_reached"
	NotNeeded       StopReason = "not_needed"
	NoAlternative   StopReason = "no_alternative"
	BudgetExhausted StopReason = "budget_exhausted"
	EngineFailed    StopReason = "engine_failed"
)

type Options struct {
	MaxAttempts   int
	TargetQuality float64
	Language      string
	// Timeout bounds each engine invocation.
	Timeout time.Duration
	// OnAttempt is called before each additional engine invocation.
	OnAttempt func(attempt int, config string)
	Logger    *zap.Logger
}

// Attempt records one transcription that the loop evaluated.
type Attempt struct {
	Config  string  `json:"config"`
	Overall float64 `json:"overall_score"`
}

// Outcome is the last successful transcript with its metrics. Err holds the
// engine failure that stopped the loop, if any.
type Outcome struct {
	Transcript transcript.Transcript
	Metrics    quality.Metrics
	Attempts   int
	History    []Attempt
	Reason     StopReason
	Err        error
}

// Controller retries transcription with recommended configurations until the
// quality target is met or the attempt budget runs out.
type Controller struct {
	engine   whisper.Engine
	analyzer *quality.Analyzer
	opts     Options
}

func NewController(engine whisper.Engine, analyzer *quality.Analyzer, opts Options) *Controller {
	if analyzer == nil {
		analyzer = quality.NewAnalyzer(quality.DefaultOptions())
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.TargetQuality <= 0 {
		opts.TargetQuality = DefaultTargetQuality
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{engine: engine, analyzer: analyzer, opts: opts}
}

// Run evaluates initial and, while allowed, re-transcribes audio with the
// recommended configuration. At most MaxAttempts extra engine calls are made.
func (c *Controller) Run(ctx context.Context, audio whisper.Audio, initial transcript.Transcript) Outcome {
	out := Outcome{Transcript: initial}
	out.Metrics = c.analyzer.AnalyzeTranscript(initial)
	out.History = append(out.History, Attempt{Config: initial.EngineUsed, Overall: out.Metrics.Overall})

	for {
		reason, stop := c.decide(out.Metrics, out.Attempts)
		if stop {
			out.Reason = reason
			c.opts.Logger.Info("reprocessing finished",
				zap.String("reason", string(reason)),
				zap.Int("attempts", out.Attempts),
				zap.Float64("overall", out.Metrics.Overall),
			)
			return out
		}

		next := out.Metrics.RecommendedConfig
		if c.opts.OnAttempt != nil {
			c.opts.OnAttempt(out.Attempts+1, next)
		}
		c.opts.Logger.Info("reprocessing transcript",
			zap.Int("attempt", out.Attempts+1),
			zap.String("from", out.Transcript.EngineUsed),
			zap.String("config", next),
			zap.Float64("overall", out.Metrics.Overall),
		)

		result, err := c.transcribe(ctx, audio, next)
		if err != nil {
			c.opts.Logger.Warn("reprocessing attempt failed; keeping previous transcript",
				zap.String("config", next),
				zap.Error(err),
			)
			out.Reason = EngineFailed
			out.Err = err
			return out
		}

		out.Attempts++
		out.Transcript = result
		out.Metrics = c.analyzer.AnalyzeTranscript(result)
		out.History = append(out.History, Attempt{Config: result.EngineUsed, Overall: out.Metrics.Overall})
	}
}

func (c *Controller) decide(m quality.Metrics, attempts int) (StopReason, bool) {
	switch {
	case m.Overall >= c.opts.TargetQuality:
		return TargetReached, true
	case !m.NeedsReprocessing:
		return NotNeeded, true
	case !m.HasRecommendation():
		return NoAlternative, true
	case attempts >= c.opts.MaxAttempts:
		return BudgetExhausted, true
	default:
		return "", false
	}
}

func (c *Controller) transcribe(ctx context.Context, audio whisper.Audio, config string) (transcript.Transcript, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return c.engine.Transcribe(callCtx, whisper.Request{Audio: audio, Config: config, Language: c.opts.Language})
}
