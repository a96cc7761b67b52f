package quality

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/fmueller/voxsub/internal/transcript"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultConfidence       = 0.5
	defaultGapLimit         = 2.0
	defaultRecommendBelow   = 0.70
	defaultProcessingBudget = 60 * time.Second
	defaultParticleMin      = 0.10
	defaultParticleMax      = 0.30

	scoreFloor = 0.5
)

// DefaultParticles are Korean particles whose frequency relative to the word
// count indicates well-formed sentences.
var DefaultParticles = []string{"은", "는", "이", "가", "을", "를", "에", "에서", "로", "으로", "와", "과"}

const punctuationChars = `.,!?;:()[]{}""''「」『』…·`

// Recommender names alternate engine configurations. The analyzer never
// recommends the configuration that produced the transcript.
type Recommender interface {
	HighestQuality(exclude string) (string, bool)
	Fastest(exclude string) (string, bool)
}

// Options tunes the analyzer. Zero values fall back to the defaults.
type Options struct {
	Thresholds Thresholds

	// Script is the writing system the transcript is expected to use.
	Script *unicode.RangeTable

	Particles   []string
	ParticleMin float64
	ParticleMax float64

	// GapLimit is the average inter-segment silence in seconds tolerated
	// before consistency is penalized.
	GapLimit float64

	// RecommendBelow is the overall score below which the highest-quality
	// alternate configuration is suggested.
	RecommendBelow float64

	// ProcessingBudget is the engine time above which the fastest alternate
	// configuration is suggested.
	ProcessingBudget time.Duration

	Recommender Recommender
}

// DefaultOptions returns options for Korean transcripts.
func DefaultOptions() Options {
	return Options{
		Thresholds:       DefaultThresholds(),
		Script:           unicode.Hangul,
		Particles:        DefaultParticles,
		ParticleMin:      defaultParticleMin,
		ParticleMax:      defaultParticleMax,
		GapLimit:         defaultGapLimit,
		RecommendBelow:   defaultRecommendBelow,
		ProcessingBudget: defaultProcessingBudget,
	}
}

// Analyzer computes Metrics for transcripts.
type Analyzer struct {
	opts Options
}

// NewAnalyzer returns an analyzer with opts merged over the defaults.
func NewAnalyzer(opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = def.Thresholds
	}
	if opts.Script == nil {
		opts.Script = def.Script
	}
	if len(opts.Particles) == 0 {
		opts.Particles = def.Particles
	}
	if opts.ParticleMin <= 0 && opts.ParticleMax <= 0 {
		opts.ParticleMin, opts.ParticleMax = def.ParticleMin, def.ParticleMax
	}
	if opts.GapLimit <= 0 {
		opts.GapLimit = def.GapLimit
	}
	if opts.RecommendBelow <= 0 {
		opts.RecommendBelow = def.RecommendBelow
	}
	if opts.ProcessingBudget <= 0 {
		opts.ProcessingBudget = def.ProcessingBudget
	}
	return &Analyzer{opts: opts}
}

// Thresholds returns the reprocessing thresholds in effect.
func (a *Analyzer) Thresholds() Thresholds {
	return a.opts.Thresholds
}

// AnalyzeTranscript is Analyze applied to the fields of t.
func (a *Analyzer) AnalyzeTranscript(t transcript.Transcript) Metrics {
	return a.Analyze(t.Text, t.Segments, t.ProcessingTime, t.EngineUsed)
}

// Analyze scores a transcript. It never fails: empty input yields zero scores
// and is only flagged for reprocessing when the engine returned segments
// without any text.
func (a *Analyzer) Analyze(text string, segments []transcript.Segment, processingTime time.Duration, engineUsed string) Metrics {
	normalized := norm.NFC.String(text)
	if strings.TrimSpace(normalized) == "" {
		return a.analyzeEmpty(segments, processingTime, engineUsed)
	}

	confidence, lowConfidence := a.confidenceScore(segments)
	scores := Scores{
		Confidence:   confidence,
		Script:       a.scriptRatio(normalized),
		Grammar:      a.grammarScore(normalized),
		Completeness: completenessScore(normalized, segments),
		Consistency:  a.consistencyScore(segments),
	}
	overall := DefaultWeights.Combine(scores)

	m := Metrics{
		Overall:               overall,
		Confidence:            scores.Confidence,
		ScriptQuality:         scores.Script,
		Grammar:               scores.Grammar,
		Consistency:           scores.Consistency,
		Completeness:          scores.Completeness,
		WordCount:             transcript.WordCount(normalized),
		LowConfidenceSegments: lowConfidence,
		PunctuationScore:      punctuationScore(normalized),
	}
	m.NeedsReprocessing = a.opts.Thresholds.NeedsReprocessing(overall, scores.Confidence, scores.Script, scores.Grammar)
	m.RecommendedConfig = a.recommend(overall, processingTime, engineUsed)
	m.Suggestions = a.suggestions(m)
	return m
}

func (a *Analyzer) analyzeEmpty(segments []transcript.Segment, processingTime time.Duration, engineUsed string) Metrics {
	m := Metrics{Suggestions: []string{}}
	if len(segments) == 0 {
		return m
	}
	m.NeedsReprocessing = true
	m.RecommendedConfig = a.recommend(0, processingTime, engineUsed)
	m.Suggestions = append(m.Suggestions, fmt.Sprintf("The engine returned %d segment(s) but no transcript text; the transcript was likely dropped.", len(segments)))
	return m
}

// confidenceScore averages segment confidences, counting a missing value as
// 0.5. It also returns how many reported confidences fall below threshold.
func (a *Analyzer) confidenceScore(segments []transcript.Segment) (float64, int) {
	if len(segments) == 0 {
		return defaultConfidence, 0
	}
	var sum float64
	low := 0
	for _, seg := range segments {
		sum += seg.ConfidenceOr(defaultConfidence)
		if seg.Confidence != nil && *seg.Confidence < a.opts.Thresholds.Confidence {
			low++
		}
	}
	return sum / float64(len(segments)), low
}

func (a *Analyzer) scriptRatio(text string) float64 {
	total, matched := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(a.opts.Script, r) {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// grammarScore rates how often particles occur per word. Ratios inside the
// expected band score 1.0; outside it the score decays linearly from the
// band centre and never drops below 0.5.
func (a *Analyzer) grammarScore(text string) float64 {
	words := transcript.WordCount(text)
	if words == 0 {
		return 0
	}
	count := 0
	for _, particle := range a.opts.Particles {
		count += strings.Count(text, particle)
	}
	ratio := float64(count) / float64(words)
	if ratio >= a.opts.ParticleMin && ratio <= a.opts.ParticleMax {
		return 1.0
	}
	centre := (a.opts.ParticleMin + a.opts.ParticleMax) / 2
	return math.Max(scoreFloor, 1.0-math.Abs(ratio-centre))
}

func completenessScore(text string, segments []transcript.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	total := transcript.WordCount(text)
	if total == 0 {
		return 0
	}
	covered := transcript.WordCount(transcript.JoinText(segments))
	return math.Min(1.0, float64(covered)/float64(total))
}

// consistencyScore penalizes long average silences between segments and
// segments that overlap their predecessor.
func (a *Analyzer) consistencyScore(segments []transcript.Segment) float64 {
	if len(segments) < 2 {
		return 1.0
	}
	var gapSum float64
	gaps, overlaps := 0, 0
	for i := 0; i+1 < len(segments); i++ {
		end, next := segments[i].End, segments[i+1].Start
		switch {
		case next > end:
			gapSum += next - end
			gaps++
		case next < end:
			overlaps++
		}
	}

	score := 1.0
	if gaps > 0 {
		avgGap := gapSum / float64(gaps)
		if avgGap > a.opts.GapLimit {
			score *= math.Max(scoreFloor, 1.0-(avgGap-a.opts.GapLimit)/10.0)
		}
	}
	if overlaps > 0 {
		ratio := float64(overlaps) / float64(len(segments))
		score *= math.Max(scoreFloor, 1.0-ratio)
	}
	return score
}

func punctuationScore(text string) float64 {
	total, punct := 0, 0
	for _, r := range text {
		total++
		if strings.ContainsRune(punctuationChars, r) {
			punct++
		}
	}
	if total == 0 {
		return 0
	}
	ratio := float64(punct) / float64(total)
	if ratio >= 0.02 && ratio <= 0.08 {
		return 1.0
	}
	return math.Max(scoreFloor, 1.0-math.Abs(ratio-0.05)*10)
}

func (a *Analyzer) recommend(overall float64, processingTime time.Duration, current string) string {
	if a.opts.Recommender == nil {
		return ""
	}
	if overall < a.opts.RecommendBelow {
		name, _ := a.opts.Recommender.HighestQuality(current)
		return name
	}
	if processingTime > a.opts.ProcessingBudget {
		name, _ := a.opts.Recommender.Fastest(current)
		return name
	}
	return ""
}

func (a *Analyzer) suggestions(m Metrics) []string {
	t := a.opts.Thresholds
	out := []string{}
	if m.Confidence < t.Confidence {
		out = append(out, fmt.Sprintf("Average confidence %.2f is below %.2f; try a higher quality engine configuration.", m.Confidence, t.Confidence))
	}
	if m.ScriptQuality < t.Script {
		out = append(out, fmt.Sprintf("Only %.0f%% of characters are in the expected script; check the language setting and transcription prompt.", m.ScriptQuality*100))
	}
	if m.Grammar < t.Grammar {
		out = append(out, fmt.Sprintf("Grammar score %.2f is below %.2f; text correction is recommended.", m.Grammar, t.Grammar))
	}
	if m.Overall < t.Overall {
		out = append(out, fmt.Sprintf("Overall quality %.2f is below %.2f; check the audio quality or try another engine configuration.", m.Overall, t.Overall))
	}
	if m.LowConfidenceSegments > 0 {
		out = append(out, fmt.Sprintf("%d segment(s) have confidence below %.2f; consider reprocessing those spans.", m.LowConfidenceSegments, t.Confidence))
	}
	return out
}
