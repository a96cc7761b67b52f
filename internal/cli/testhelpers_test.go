package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fmueller/voxsub/internal/config"
	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []pipeline.Request
	result   pipeline.Result
}

func (f *fakeRunner) Run(ctx context.Context, req pipeline.Request) pipeline.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if req.Sink != nil {
		_ = req.Sink.Publish(ctx, pipeline.Event{Stage: pipeline.StageComplete, Percent: 100, Message: "Done"})
	}
	return f.result
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	return &cfg
}

// newTestApp returns an app whose config and runner are fakes.
func newTestApp(cfg *config.Config, r *fakeRunner) *appState {
	return &appState{
		loadConfigFn: func(string) (*config.Config, error) {
			return cfg, nil
		},
		newRunnerFn: func(*config.Config, *zap.Logger) (runner, error) {
			return r, nil
		},
		serveFn: func(context.Context, *config.Config, string) error {
			return nil
		},
		isTerminalFn: func() bool { return false },
	}
}

func runApp(t *testing.T, app *appState, args ...string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(t, newTestApp(testConfig(), &fakeRunner{}), args...)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interview.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}
