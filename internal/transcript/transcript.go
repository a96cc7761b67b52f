// Package transcript holds the time-aligned text produced by a transcription
// attempt and the helpers shared by the analysis and correction stages.
package transcript

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Segment is a single time-bounded span of transcript text.
type Segment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Transcript is the result of one engine invocation. A reprocessing attempt
// produces a new value instead of mutating the previous one.
type Transcript struct {
	Text           string        `json:"text"`
	Segments       []Segment     `json:"segments"`
	Language       string        `json:"language"`
	EngineUsed     string        `json:"engine_used"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Confidence returns a pointer suitable for Segment.Confidence.
func Confidence(v float64) *float64 {
	return &v
}

// ConfidenceOr returns the segment confidence or fallback when the engine
// reported none.
func (s Segment) ConfidenceOr(fallback float64) float64 {
	if s.Confidence == nil {
		return fallback
	}
	return *s.Confidence
}

// Duration returns the span length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Clone returns a copy of segments that shares no confidence pointers with
// the input.
func Clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		if seg.Confidence != nil {
			out[i].Confidence = Confidence(*seg.Confidence)
		}
	}
	return out
}

// JoinText concatenates the trimmed, non-empty segment texts with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Validate reports segments with inverted or negative time bounds and
// confidences outside [0,1].
func (t Transcript) Validate() error {
	var errs []error
	for i, seg := range t.Segments {
		if seg.Start < 0 {
			errs = append(errs, fmt.Errorf("segment %d: negative start %.3f", i, seg.Start))
		}
		if seg.End <= seg.Start {
			errs = append(errs, fmt.Errorf("segment %d: end %.3f must be after start %.3f", i, seg.End, seg.Start))
		}
		if seg.Confidence != nil && (*seg.Confidence < 0 || *seg.Confidence > 1) {
			errs = append(errs, fmt.Errorf("segment %d: confidence %.3f out of range", i, *seg.Confidence))
		}
	}
	return errors.Join(errs...)
}
