package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/fmueller/voxsub/internal/platform"
	"github.com/fmueller/voxsub/internal/whisper"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Engine selects and tunes the transcription backend.
type Engine struct {
	Backend        string `toml:"backend"`
	DefaultConfig  string `toml:"default_config"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	WhisperPath    string `toml:"whisper_path"`
	ModelPath      string `toml:"model_path"`
}

// OpenAI holds API connection settings shared by transcription and correction.
type OpenAI struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	TranscriptionModel string `toml:"transcription_model"`
	CorrectionModel    string `toml:"correction_model"`
	MaxTokens          int    `toml:"max_tokens"`
}

// Quality controls analysis and the reprocessing loop.
type Quality struct {
	Target                  float64  `toml:"target"`
	MaxAttempts             int      `toml:"max_attempts"`
	ProcessingBudgetSeconds int      `toml:"processing_budget_seconds"`
	Script                  string   `toml:"script"`
	Particles               []string `toml:"particles"`
}

type Correction struct {
	Enabled        bool `toml:"enabled"`
	BatchSize      int  `toml:"batch_size"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
	DelayMS        int  `toml:"delay_ms"`
}

type Server struct {
	Bind string `toml:"bind"`
}

type Logging struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Config encapsulates all configuration values for voxsub.
type Config struct {
	Engine     Engine     `toml:"engine"`
	OpenAI     OpenAI     `toml:"openai"`
	Quality    Quality    `toml:"quality"`
	Correction Correction `toml:"correction"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the platform location of config.toml.
func DefaultConfigPath() (string, error) {
	return platform.ResolveConfigFile()
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: defaults and environment overrides are used instead.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("voxsub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Catalog returns the engine configurations with the configured
// transcription model applied.
func (c *Config) Catalog() whisper.Catalog {
	return whisper.DefaultCatalog().WithModel(c.OpenAI.TranscriptionModel)
}

// ScriptTable resolves quality.script to a Unicode range table.
func (c *Config) ScriptTable() *unicode.RangeTable {
	return unicode.Scripts[c.Quality.Script]
}

func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

func (c *Config) ProcessingBudget() time.Duration {
	return time.Duration(c.Quality.ProcessingBudgetSeconds) * time.Second
}

func (c *Config) CorrectionTimeout() time.Duration {
	return time.Duration(c.Correction.TimeoutSeconds) * time.Second
}

// CorrectionDelay returns the pause between batches. Zero disables it.
func (c *Config) CorrectionDelay() time.Duration {
	if c.Correction.DelayMS == 0 {
		return -1
	}
	return time.Duration(c.Correction.DelayMS) * time.Millisecond
}
