package correction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/fmueller/voxsub/internal/transcript"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultBatchSize = 5
	DefaultTimeout   = 45 * time.Second
	DefaultDelay     = 150 * time.Millisecond

	// minLengthRatio rejects corrections that shrink a segment below half its
	// original rune count.
	minLengthRatio = 0.5
)

// ErrServiceUnavailable marks batches that could not be sent because no
// correction service is configured.
var ErrServiceUnavailable = errors.New("correction service unavailable")

// Service rewrites one tagged payload according to instruction.
type Service interface {
	Correct(ctx context.Context, instruction, payload string, aggressiveness float64) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, instruction, payload string, aggressiveness float64) (string, error)

func (f ServiceFunc) Correct(ctx context.Context, instruction, payload string, aggressiveness float64) (string, error) {
	return f(ctx, instruction, payload, aggressiveness)
}

// ServiceError records a failed batch. The batch keeps its original text.
type ServiceError struct {
	Batch int
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("correction batch %d: %v", e.Batch, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ProgressFunc is told how many batches are done out of total.
type ProgressFunc func(done, total int)

// Sleeper waits between batches. It returns early when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

type Options struct {
	BatchSize int
	Timeout   time.Duration
	// Delay is the pause between consecutive batch calls. Negative disables it.
	Delay   time.Duration
	Sleeper Sleeper
	// Script is the writing system counted by the validation summary.
	Script *unicode.RangeTable
	Logger *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
		Delay:     DefaultDelay,
		Sleeper:   sleepContext,
		Script:    unicode.Hangul,
		Logger:    zap.NewNop(),
	}
}

// Result is the outcome of one correction run. Segments always has the same
// length and timestamps as the input.
type Result struct {
	Segments          []transcript.Segment `json:"segments"`
	TotalCorrections  int                  `json:"total_corrections"`
	Applied           bool                 `json:"correction_applied"`
	Batches           int                  `json:"batches"`
	FailedBatches     int                  `json:"failed_batches"`
	RejectedIdentical int                  `json:"rejected_identical"`
	RejectedTooShort  int                  `json:"rejected_too_short"`
	// FinalQualityScore and ImprovementDetails summarize how the corrected
	// text compares to the original.
	FinalQualityScore  float64  `json:"final_quality_score"`
	ImprovementDetails []string `json:"improvement_details,omitempty"`
	Err                error    `json:"-"`
}

type Corrector struct {
	service Service
	opts    Options
}

func NewCorrector(service Service, opts Options) *Corrector {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Delay == 0 {
		opts.Delay = defaults.Delay
	}
	if opts.Sleeper == nil {
		opts.Sleeper = defaults.Sleeper
	}
	if opts.Script == nil {
		opts.Script = defaults.Script
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	return &Corrector{service: service, opts: opts}
}

// Correct rewrites segment texts batch by batch. Failures of the correction
// service never abort the run: the affected batch keeps its original text.
func (c *Corrector) Correct(ctx context.Context, segments []transcript.Segment, strategy Strategy, progress ProgressFunc) Result {
	logger := c.opts.Logger.With(zap.String("strategy", strategy.Name))
	out := transcript.Clone(segments)
	result := Result{Segments: out}

	batches := partition(len(segments), c.opts.BatchSize)
	result.Batches = len(batches)
	instruction := strategy.Instruction()

	var failures []error
	for i, b := range batches {
		if i > 0 && c.opts.Delay > 0 {
			c.opts.Sleeper(ctx, c.opts.Delay)
		}

		originals := segments[b.start:b.end]
		payload := buildPayload(originals)
		if payload == "" {
			notify(progress, i+1, len(batches))
			continue
		}

		response, err := c.call(ctx, instruction, payload, strategy.Aggressiveness)
		if err != nil {
			serviceErr := &ServiceError{Batch: i + 1, Err: err}
			failures = append(failures, serviceErr)
			result.FailedBatches++
			logger.Warn("correction batch failed; keeping original text",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Error(err),
			)
			notify(progress, i+1, len(batches))
			continue
		}

		candidates := realign(originals, response)
		for j, original := range originals {
			candidate, ok := candidates[j]
			if !ok || strings.TrimSpace(original.Text) == "" {
				continue
			}
			switch verdict := review(original.Text, candidate); verdict {
			case accepted:
				out[b.start+j].Text = strings.TrimSpace(candidate)
				result.TotalCorrections++
				logger.Debug("segment corrected",
					zap.Int("segment", b.start+j),
					zap.String("from", original.Text),
					zap.String("to", out[b.start+j].Text),
				)
			case rejectedIdentical:
				result.RejectedIdentical++
			case rejectedTooShort:
				result.RejectedTooShort++
			}
		}
		notify(progress, i+1, len(batches))
	}

	result.Applied = result.TotalCorrections > 0
	result.Err = errors.Join(failures...)
	result.FinalQualityScore, result.ImprovementDetails = summarize(segments, out, c.opts.Script)

	logger.Info("correction finished",
		zap.Int("batches", result.Batches),
		zap.Int("failed_batches", result.FailedBatches),
		zap.Int("corrections", result.TotalCorrections),
	)
	return result
}

func (c *Corrector) call(ctx context.Context, instruction, payload string, aggressiveness float64) (string, error) {
	if c.service == nil {
		return "", ErrServiceUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	return c.service.Correct(callCtx, instruction, payload, aggressiveness)
}

type batch struct {
	start, end int
}

func partition(n, size int) []batch {
	var out []batch
	for start := 0; start < n; start += size {
		out = append(out, batch{start: start, end: min(start+size, n)})
	}
	return out
}

// buildPayload tags each non-empty segment with its 1-based position in the batch.
func buildPayload(segments []transcript.Segment) string {
	lines := make([]string, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, text))
	}
	return strings.Join(lines, "\n")
}

// realign maps a service response back onto batch positions. Tagged lines are
// used when present; otherwise the response is split into sentences.
func realign(originals []transcript.Segment, response string) map[int]string {
	tagged := parseTagged(response)
	if len(tagged) > 0 {
		out := make(map[int]string, len(tagged))
		for ordinal, text := range tagged {
			if ordinal >= 1 && ordinal <= len(originals) {
				out[ordinal-1] = text
			}
		}
		return out
	}
	return alignSentences(originals, splitSentences(response))
}

// parseTagged extracts "[n] text" lines. Untagged lines following a tag are
// treated as a continuation of it.
func parseTagged(response string) map[int]string {
	out := map[int]string{}
	current := 0
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ordinal, text, ok := cutOrdinal(line); ok {
			current = ordinal
			out[ordinal] = text
			continue
		}
		if current > 0 {
			out[current] = strings.TrimSpace(out[current] + " " + line)
		}
	}
	return out
}

func cutOrdinal(line string) (int, string, bool) {
	if !strings.HasPrefix(line, "[") {
		return 0, "", false
	}
	closing := strings.IndexByte(line, ']')
	if closing < 2 {
		return 0, "", false
	}
	ordinal := 0
	for _, r := range line[1:closing] {
		if r < '0' || r > '9' {
			return 0, "", false
		}
		ordinal = ordinal*10 + int(r-'0')
		if ordinal > 1<<20 {
			return 0, "", false
		}
	}
	return ordinal, strings.TrimSpace(line[closing+1:]), true
}

// alignSentences assigns sentences to non-empty segments in order. Extra
// sentences are appended to the last assigned segment; segments left without
// a sentence are not included.
func alignSentences(originals []transcript.Segment, sentences []string) map[int]string {
	targets := make([]int, 0, len(originals))
	for i, seg := range originals {
		if strings.TrimSpace(seg.Text) != "" {
			targets = append(targets, i)
		}
	}
	out := map[int]string{}
	if len(targets) == 0 || len(sentences) == 0 {
		return out
	}
	for k, idx := range targets {
		if k >= len(sentences) {
			break
		}
		out[idx] = sentences[k]
	}
	if len(sentences) > len(targets) {
		last := targets[len(targets)-1]
		out[last] = strings.Join(append([]string{out[last]}, sentences[len(targets):]...), " ")
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if !isSentenceEnd(r) {
			if r == '\n' {
				flush()
			}
			continue
		}
		if i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			continue
		}
		flush()
	}
	flush()
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '…':
		return true
	}
	return false
}

type verdict int

const (
	accepted verdict = iota
	rejectedIdentical
	rejectedTooShort
)

func review(original, candidate string) verdict {
	o := norm.NFC.String(strings.TrimSpace(original))
	c := norm.NFC.String(strings.TrimSpace(candidate))
	if c == o {
		return rejectedIdentical
	}
	if float64(utf8.RuneCountInString(c)) < float64(utf8.RuneCountInString(o))*minLengthRatio {
		return rejectedTooShort
	}
	return accepted
}

func notify(progress ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
