package whisper

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"time"

	"github.com/fmueller/voxsub/internal/transcript"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// minLogprob bounds average log probabilities before they are mapped to a
// confidence with exp.
const minLogprob = -10.0

// OpenAIEngine transcribes through the hosted audio transcription endpoint.
type OpenAIEngine struct {
	client  *openai.Client
	catalog Catalog
	logger  *zap.Logger
}

type OpenAIOption func(*OpenAIEngine)

func WithOpenAICatalog(catalog Catalog) OpenAIOption {
	return func(e *OpenAIEngine) {
		e.catalog = catalog
	}
}

func WithOpenAILogger(logger *zap.Logger) OpenAIOption {
	return func(e *OpenAIEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewOpenAIEngine builds an engine for apiKey. An empty baseURL uses the
// public endpoint.
func NewOpenAIEngine(apiKey, baseURL string, opts ...OpenAIOption) (*OpenAIEngine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai engine: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		cfg.BaseURL = strings.TrimRight(trimmed, "/")
	}
	engine := &OpenAIEngine{
		client:  openai.NewClientWithConfig(cfg),
		catalog: DefaultCatalog(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, req Request) (transcript.Transcript, error) {
	cfg, err := e.catalog.Resolve(req.Config)
	if err != nil {
		return transcript.Transcript{}, engineError(req.Config, err)
	}
	if req.Audio.IsZero() {
		return transcript.Transcript{}, engineError(cfg.Name, errors.New("audio path or data is required"))
	}

	audioReq := openai.AudioRequest{
		Model:       cfg.Model,
		Prompt:      cfg.Prompt,
		Temperature: float32(cfg.Temperature),
		Language:    normalizeLanguage(req.Language),
		Format:      openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	}
	if len(req.Audio.Data) > 0 {
		audioReq.FilePath = req.Audio.FileName()
		audioReq.Reader = bytes.NewReader(req.Audio.Data)
	} else {
		if _, err := os.Stat(req.Audio.Path); err != nil {
			return transcript.Transcript{}, engineError(cfg.Name, err)
		}
		audioReq.FilePath = req.Audio.Path
	}

	e.logger.Debug("requesting transcription",
		zap.String("config", cfg.Name),
		zap.String("model", cfg.Model),
		zap.String("file", req.Audio.FileName()),
	)
	started := time.Now()
	resp, err := e.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		return transcript.Transcript{}, engineError(cfg.Name, err)
	}
	elapsed := time.Since(started)

	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, transcript.Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       strings.TrimSpace(s.Text),
			Confidence: transcript.Confidence(logprobConfidence(s.AvgLogprob)),
		})
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = transcript.JoinText(segments)
	}
	language := resp.Language
	if language == "" {
		language = audioReq.Language
	}

	e.logger.Debug("transcription finished",
		zap.String("config", cfg.Name),
		zap.Int("segments", len(segments)),
		zap.Duration("elapsed", elapsed),
	)
	return transcript.Transcript{
		Text:           text,
		Segments:       segments,
		Language:       language,
		EngineUsed:     cfg.Name,
		ProcessingTime: elapsed,
	}, nil
}

func logprobConfidence(avg float64) float64 {
	return math.Exp(math.Max(avg, minLogprob))
}
