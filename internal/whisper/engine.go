package whisper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxsub/internal/transcript"
)

// ErrUnknownConfig is returned when a request names a configuration that is
// not in the catalog.
var ErrUnknownConfig = errors.New("unknown engine configuration")

// Audio is either a file on disk or an in-memory payload. Name is the file
// name reported to remote engines when Data is set.
type Audio struct {
	Path string
	Data []byte
	Name string
}

func (a Audio) IsZero() bool {
	return strings.TrimSpace(a.Path) == "" && len(a.Data) == 0
}

func (a Audio) FileName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return filepath.Base(name)
	}
	if path := strings.TrimSpace(a.Path); path != "" {
		return filepath.Base(path)
	}
	return "audio.wav"
}

type Request struct {
	Audio    Audio
	Config   string
	Language string
}

// Engine turns audio into a time-aligned transcript using a named configuration.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (transcript.Transcript, error)
}

// EngineError wraps any failure of a single engine invocation.
type EngineError struct {
	Config string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("transcribe with %s: %v", e.Config, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func engineError(config string, err error) error {
	var existing *EngineError
	if errors.As(err, &existing) {
		return err
	}
	return &EngineError{Config: config, Err: err}
}

func normalizeLanguage(language string) string {
	value := strings.TrimSpace(strings.ToLower(language))
	if value == "auto" {
		return ""
	}
	return value
}
