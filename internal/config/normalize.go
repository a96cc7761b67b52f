package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxsub/internal/platform"
)

const (
	envAPIKey      = "OPENAI_API_KEY"
	envBaseURL     = "VOXSUB_OPENAI_BASE_URL"
	envBackend     = "VOXSUB_ENGINE"
	envWhisperPath = "VOXSUB_WHISPER_PATH"
	envModelPath   = "VOXSUB_MODEL_PATH"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeOpenAI()
	c.normalizeQuality()
	c.normalizeLogging()
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	return nil
}

func (c *Config) applyEnv() {
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv(envAPIKey); ok {
			c.OpenAI.APIKey = value
		}
	}
	overrides := []struct {
		env    string
		target *string
	}{
		{envBaseURL, &c.OpenAI.BaseURL},
		{envBackend, &c.Engine.Backend},
		{envWhisperPath, &c.Engine.WhisperPath},
		{envModelPath, &c.Engine.ModelPath},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(value) != "" {
			*o.target = value
		}
	}
}

func (c *Config) normalizeEngine() error {
	c.Engine.Backend = strings.ToLower(strings.TrimSpace(c.Engine.Backend))
	if c.Engine.Backend == "" {
		c.Engine.Backend = defaultBackend
	}
	c.Engine.DefaultConfig = strings.TrimSpace(c.Engine.DefaultConfig)
	c.Engine.Language = strings.ToLower(strings.TrimSpace(c.Engine.Language))

	var err error
	if c.Engine.WhisperPath, err = expandPath(strings.TrimSpace(c.Engine.WhisperPath)); err != nil {
		return fmt.Errorf("engine.whisper_path: %w", err)
	}
	if c.Engine.ModelPath, err = expandPath(strings.TrimSpace(c.Engine.ModelPath)); err != nil {
		return fmt.Errorf("engine.model_path: %w", err)
	}
	if c.Engine.ModelPath == "" && c.Engine.Backend == BackendLocal {
		dir, err := platform.ResolveModelDir("")
		if err != nil {
			return fmt.Errorf("engine.model_path: %w", err)
		}
		c.Engine.ModelPath = filepath.Join(dir, defaultLocalModelFile)
	}
	return nil
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	c.OpenAI.TranscriptionModel = strings.TrimSpace(c.OpenAI.TranscriptionModel)
	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = defaultTranscriptionModel
	}
	c.OpenAI.CorrectionModel = strings.TrimSpace(c.OpenAI.CorrectionModel)
	if c.OpenAI.CorrectionModel == "" {
		c.OpenAI.CorrectionModel = defaultCorrectionModel
	}
}

func (c *Config) normalizeQuality() {
	c.Quality.Script = strings.TrimSpace(c.Quality.Script)
	if c.Quality.Script == "" {
		c.Quality.Script = defaultScript
	}
	particles := c.Quality.Particles[:0]
	for _, p := range c.Quality.Particles {
		if p = strings.TrimSpace(p); p != "" {
			particles = append(particles, p)
		}
	}
	c.Quality.Particles = particles
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
