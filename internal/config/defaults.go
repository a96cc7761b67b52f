package config

import (
	"github.com/fmueller/voxsub/internal/correction"
	"github.com/fmueller/voxsub/internal/reprocess"
	"github.com/fmueller/voxsub/internal/whisper"
)

const (
	BackendOpenAI = "openai"
	BackendLocal  = "local"

	defaultBackend                 = BackendOpenAI
	defaultLanguage                = "ko"
	defaultEngineTimeoutSeconds    = 300
	defaultLocalModelFile          = "ggml-large-v3-turbo.bin"
	defaultTranscriptionModel      = "whisper-1"
	defaultCorrectionModel         = "gpt-4o-mini"
	defaultMaxTokens               = 2000
	defaultProcessingBudgetSeconds = 60
	defaultScript                  = "Hangul"
	defaultServerBind              = "127.0.0.1:8765"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Engine: Engine{
			Backend:        defaultBackend,
			DefaultConfig:  whisper.DefaultConfig,
			Language:       defaultLanguage,
			TimeoutSeconds: defaultEngineTimeoutSeconds,
		},
		OpenAI: OpenAI{
			TranscriptionModel: defaultTranscriptionModel,
			CorrectionModel:    defaultCorrectionModel,
			MaxTokens:          defaultMaxTokens,
		},
		Quality: Quality{
			Target:                  reprocess.DefaultTargetQuality,
			MaxAttempts:             reprocess.DefaultMaxAttempts,
			ProcessingBudgetSeconds: defaultProcessingBudgetSeconds,
			Script:                  defaultScript,
		},
		Correction: Correction{
			Enabled:        true,
			BatchSize:      correction.DefaultBatchSize,
			TimeoutSeconds: int(correction.DefaultTimeout.Seconds()),
			DelayMS:        int(correction.DefaultDelay.Milliseconds()),
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
