package cli

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

// barSink renders pipeline progress events as a 0-100 progress bar.
type barSink struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (s *barSink) Publish(_ context.Context, event pipeline.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bar.Describe(event.Message)
	return s.bar.Set(event.Percent)
}

// startProgress returns a sink drawing to w, or nil when progress is disabled.
func startProgress(enabled bool, w io.Writer) (pipeline.Sink, stopFunc) {
	if !enabled {
		return nil, func() {}
	}
	if w == nil {
		w = os.Stderr
	}

	sink := &barSink{bar: progressbar.NewOptions(
		100,
		progressbar.OptionSetDescription("Starting"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}

	var once sync.Once
	return sink, func() {
		once.Do(func() {
			sink.mu.Lock()
			defer sink.mu.Unlock()
			_ = sink.bar.Finish()
		})
	}
}
