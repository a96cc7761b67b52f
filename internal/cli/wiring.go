package cli

import (
	"fmt"

	"github.com/fmueller/voxsub/internal/config"
	"github.com/fmueller/voxsub/internal/correction"
	"github.com/fmueller/voxsub/internal/llm"
	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/fmueller/voxsub/internal/quality"
	"github.com/fmueller/voxsub/internal/whisper"
	"go.uber.org/zap"
)

func newPipelineRunner(cfg *config.Config, logger *zap.Logger) (runner, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	service, err := buildService(cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(engine, service, buildAnalyzer(cfg), pipelineOptions(cfg, logger)), nil
}

func buildEngine(cfg *config.Config, logger *zap.Logger) (whisper.Engine, error) {
	catalog := cfg.Catalog()
	switch cfg.Engine.Backend {
	case config.BackendOpenAI:
		return whisper.NewOpenAIEngine(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
			whisper.WithOpenAICatalog(catalog),
			whisper.WithOpenAILogger(logger),
		)
	case config.BackendLocal:
		return whisper.NewLocalEngine(cfg.Engine.WhisperPath, cfg.Engine.ModelPath, catalog, logger)
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Engine.Backend)
	}
}

// buildService returns nil when correction is disabled or no API key is set;
// the pipeline then keeps the uncorrected segments.
func buildService(cfg *config.Config, logger *zap.Logger) (correction.Service, error) {
	if !cfg.Correction.Enabled {
		return nil, nil
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("no OpenAI API key configured; transcripts will not be corrected")
		return nil, nil
	}
	client, err := llm.NewClient(llm.Config{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.CorrectionModel,
		MaxTokens: cfg.OpenAI.MaxTokens,
	}, llm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildAnalyzer(cfg *config.Config) *quality.Analyzer {
	opts := quality.DefaultOptions()
	if table := cfg.ScriptTable(); table != nil {
		opts.Script = table
	}
	if len(cfg.Quality.Particles) > 0 {
		opts.Particles = cfg.Quality.Particles
	}
	opts.ProcessingBudget = cfg.ProcessingBudget()
	opts.Recommender = cfg.Catalog()
	return quality.NewAnalyzer(opts)
}

func pipelineOptions(cfg *config.Config, logger *zap.Logger) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.DefaultConfig = cfg.Engine.DefaultConfig
	opts.MaxAttempts = cfg.Quality.MaxAttempts
	opts.EngineTimeout = cfg.EngineTimeout()
	opts.DisableCorrection = !cfg.Correction.Enabled
	opts.Correction.BatchSize = cfg.Correction.BatchSize
	opts.Correction.Timeout = cfg.CorrectionTimeout()
	opts.Correction.Delay = cfg.CorrectionDelay()
	if table := cfg.ScriptTable(); table != nil {
		opts.Correction.Script = table
	}
	opts.Correction.Logger = logger
	opts.Logger = logger
	return opts
}
