package pipeline

import "context"

type Stage string

const (
	StageTranscription Stage = "transcription"
	StageQuality       Stage = "quality"
	StageReprocessing  Stage = "reprocessing"
	StageCorrection    Stage = "correction"
	StageComplete      Stage = "complete"
)

// Event is a progress notification. Percent runs from 0 to 100.
type Event struct {
	RunID   string `json:"run_id"`
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Sink receives progress events. A failing sink never affects the run.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Percent ranges of each stage.
const (
	transcriptionDone = 30
	qualityStart      = 30
	reprocessStart    = 40
	reprocessDone     = 50
	correctionStart   = 50
	correctionSpan    = 50
	complete          = 100
)

// correctionPercent places a batch inside the correction stage: the strategy
// takes the first tenth, batches spread over the next eight tenths.
func correctionPercent(done, total int) int {
	if total <= 0 {
		return correctionStart + correctionSpan*9/10
	}
	fraction := 0.1 + 0.8*float64(done)/float64(total)
	return correctionStart + int(fraction*correctionSpan)
}
