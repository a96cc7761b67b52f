package config

import (
	"errors"
	"fmt"

	"github.com/fmueller/voxsub/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateCorrection(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// ValidateForRun checks the settings only needed to actually transcribe.
func (c *Config) ValidateForRun() error {
	switch c.Engine.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/voxsub/config.toml"
			}
			return fmt.Errorf("openai.api_key is required for the openai backend. Set %s or edit %s (create with 'voxsub config init')", envAPIKey, defaultPath)
		}
	case BackendLocal:
		if c.Engine.ModelPath == "" {
			return errors.New("engine.model_path is required for the local backend")
		}
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.Backend {
	case BackendOpenAI, BackendLocal:
	default:
		return fmt.Errorf("engine.backend must be %q or %q, got %q", BackendOpenAI, BackendLocal, c.Engine.Backend)
	}
	if c.Engine.DefaultConfig != "" {
		if _, err := c.Catalog().Resolve(c.Engine.DefaultConfig); err != nil {
			return fmt.Errorf("engine.default_config: %w", err)
		}
	}
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.New("engine.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.Target <= 0 || c.Quality.Target > 1 {
		return errors.New("quality.target must be greater than 0 and at most 1")
	}
	if c.Quality.MaxAttempts < 0 || c.Quality.MaxAttempts > 10 {
		return errors.New("quality.max_attempts must be between 0 and 10")
	}
	if c.Quality.ProcessingBudgetSeconds <= 0 {
		return errors.New("quality.processing_budget_seconds must be positive")
	}
	if c.ScriptTable() == nil {
		return fmt.Errorf("quality.script %q is not a known Unicode script", c.Quality.Script)
	}
	return nil
}

func (c *Config) validateCorrection() error {
	if c.Correction.BatchSize < 1 {
		return errors.New("correction.batch_size must be at least 1")
	}
	if c.Correction.TimeoutSeconds <= 0 {
		return errors.New("correction.timeout_seconds must be positive")
	}
	if c.Correction.DelayMS < 0 {
		return errors.New("correction.delay_ms must not be negative")
	}
	if c.OpenAI.MaxTokens < 0 {
		return errors.New("openai.max_tokens must not be negative")
	}
	return nil
}
