package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/fmueller/voxsub/internal/transcript"
	"github.com/stretchr/testify/require"
)

type fakeRecommender struct {
	highest string
	fastest string
}

func (f fakeRecommender) HighestQuality(exclude string) (string, bool) {
	if f.highest == "" || f.highest == exclude {
		return "", false
	}
	return f.highest, true
}

func (f fakeRecommender) Fastest(exclude string) (string, bool) {
	if f.fastest == "" || f.fastest == exclude {
		return "", false
	}
	return f.fastest, true
}

func seg(start, end float64, text string, confidence ...float64) transcript.Segment {
	s := transcript.Segment{Start: start, End: end, Text: text}
	if len(confidence) > 0 {
		s.Confidence = transcript.Confidence(confidence[0])
	}
	return s
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	t.Parallel()
	require.InDelta(t, 1.0, DefaultWeights.Sum(), 1e-12)
}

func TestCombineHighQualityScenario(t *testing.T) {
	t.Parallel()

	scores := Scores{Confidence: 0.95, Script: 0.95, Grammar: 0.9, Completeness: 1, Consistency: 1}
	overall := DefaultWeights.Combine(scores)

	require.InDelta(t, 0.9575, overall, 1e-9)
	require.False(t, DefaultThresholds().NeedsReprocessing(overall, scores.Confidence, scores.Script, scores.Grammar))
}

func TestNeedsReprocessingIsMonotonic(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	steps := []float64{0, 0.2, 0.5, 0.59, 0.6, 0.69, 0.7, 0.75, 0.79, 0.8, 0.9, 1}
	for _, o := range steps {
		for _, c := range steps {
			for _, s := range steps {
				for _, g := range steps {
					if !th.NeedsReprocessing(o, c, s, g) {
						continue
					}
					for _, lower := range steps {
						if lower <= o {
							require.True(t, th.NeedsReprocessing(lower, c, s, g))
						}
						if lower <= c {
							require.True(t, th.NeedsReprocessing(o, lower, s, g))
						}
						if lower <= s {
							require.True(t, th.NeedsReprocessing(o, c, lower, g))
						}
						if lower <= g {
							require.True(t, th.NeedsReprocessing(o, c, s, lower))
						}
					}
				}
			}
		}
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Options{Recommender: fakeRecommender{highest: "hq"}})

	m := a.Analyze("", nil, 0, "std")
	require.Zero(t, m.Overall)
	require.Zero(t, m.Confidence)
	require.False(t, m.NeedsReprocessing)
	require.Empty(t, m.RecommendedConfig)

	dropped := a.Analyze("  ", []transcript.Segment{seg(0, 1, "안녕")}, 0, "std")
	require.Zero(t, dropped.Overall)
	require.Zero(t, dropped.Completeness)
	require.True(t, dropped.NeedsReprocessing)
	require.Equal(t, "hq", dropped.RecommendedConfig)
	require.Len(t, dropped.Suggestions, 1)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultOptions())
	segments := []transcript.Segment{
		seg(0, 2, "안녕하세요.", 0.95),
		seg(2, 5, "이것은 한국어 음성 인식 테스트입니다.", 0.89),
	}
	text := "안녕하세요. 이것은 한국어 음성 인식 테스트입니다."

	first := a.Analyze(text, segments, 2*time.Second, "whisper-1-optimized")
	second := a.Analyze(text, transcript.Clone(segments), 2*time.Second, "whisper-1-optimized")

	require.Equal(t, first, second)
	require.InDelta(t, DefaultWeights.Combine(first.Scores()), first.Overall, 1e-12)
}

func TestConfidenceDefaultsMissingValues(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultOptions())
	m := a.Analyze("가 나", []transcript.Segment{seg(0, 1, "가", 0.9), seg(1, 2, "나")}, 0, "")

	require.InDelta(t, 0.7, m.Confidence, 1e-9)
	require.Zero(t, m.LowConfidenceSegments)
}

func TestScriptRatioIgnoresWhitespace(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultOptions())
	m := a.Analyze("안녕 hi", []transcript.Segment{seg(0, 1, "안녕 hi")}, 0, "")
	require.InDelta(t, 0.5, m.ScriptQuality, 1e-9)
}

func TestScriptRatioNormalizesDecomposedHangul(t *testing.T) {
	t.Parallel()

	// U+1100 U+1161 composes to U+AC00.
	a := NewAnalyzer(DefaultOptions())
	decomposed := "\u1100\u1161 a"
	m := a.Analyze(decomposed, []transcript.Segment{seg(0, 1, decomposed)}, 0, "")
	require.InDelta(t, 0.5, m.ScriptQuality, 1e-9)
}

func TestGrammarScoreBand(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Options{Particles: []string{"the"}})
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "inside band", text: "the cat sat on the mat and the dog ran off", want: 1.0},
		{name: "below band decays", text: strings.Repeat("x ", 19) + "the", want: 0.85},
		{name: "far above band floors", text: "the the the the", want: 0.5},
		{name: "no particles", text: "a b c d e", want: 0.8},
	}

	for _, tt := range tests {
		m := a.Analyze(tt.text, []transcript.Segment{seg(0, 1, tt.text)}, 0, "")
		require.InDelta(t, tt.want, m.Grammar, 1e-9, tt.name)
	}
}

func TestCompletenessPenalizesUncoveredText(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultOptions())
	segments := []transcript.Segment{seg(0, 2, "hello"), seg(2, 5, "the cat the cat the cat")}

	full := a.Analyze("hello the cat the cat the cat", segments, 0, "")
	require.InDelta(t, 1.0, full.Completeness, 1e-9)

	longer := "hello the cat the cat the cat and then the cat walked off into the night"
	reduced := a.Analyze(longer, segments, 0, "")
	require.Less(t, reduced.Completeness, 0.5)
	require.Less(t, reduced.Overall, full.Overall)

	noSegments := a.Analyze("hello", nil, 0, "")
	require.Zero(t, noSegments.Completeness)
}

func TestConsistencyPenalties(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultOptions())
	tests := []struct {
		name     string
		segments []transcript.Segment
		want     float64
	}{
		{name: "single segment", segments: []transcript.Segment{seg(0, 1, "a")}, want: 1.0},
		{name: "contiguous", segments: []transcript.Segment{seg(0, 1, "a"), seg(1, 2, "b"), seg(2.5, 3, "c")}, want: 1.0},
		{name: "long gaps", segments: []transcript.Segment{seg(0, 1, "a"), seg(4, 5, "b"), seg(8, 9, "c")}, want: 0.9},
		{name: "overlaps floor", segments: []transcript.Segment{seg(0, 2, "a"), seg(1, 3, "b"), seg(2.5, 4, "c")}, want: 0.5},
		{name: "one overlap of four", segments: []transcript.Segment{seg(0, 2, "a"), seg(1.5, 3, "b"), seg(3, 4, "c"), seg(4, 5, "d")}, want: 0.75},
	}

	for _, tt := range tests {
		m := a.Analyze(transcript.JoinText(tt.segments), tt.segments, 0, "")
		require.InDelta(t, tt.want, m.Consistency, 1e-9, tt.name)
	}
}

func TestRecommendationDecisionTable(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Options{
		Particles:   []string{"마"},
		Recommender: fakeRecommender{highest: "hq", fastest: "fast"},
	})

	good := []transcript.Segment{seg(0, 2, "가나다라 마바사", 0.95)}
	fastEnough := a.Analyze("가나다라 마바사", good, 10*time.Second, "std")
	require.GreaterOrEqual(t, fastEnough.Overall, 0.7)
	require.Empty(t, fastEnough.RecommendedConfig)

	slow := a.Analyze("가나다라 마바사", good, 90*time.Second, "std")
	require.Equal(t, "fast", slow.RecommendedConfig)

	poor := a.Analyze("hello world", []transcript.Segment{seg(0, 2, "hello world", 0.3)}, 90*time.Second, "std")
	require.Less(t, poor.Overall, 0.7)
	require.Equal(t, "hq", poor.RecommendedConfig)
	require.True(t, poor.NeedsReprocessing)

	alreadyBest := a.Analyze("hello world", []transcript.Segment{seg(0, 2, "hello world", 0.3)}, 0, "hq")
	require.Empty(t, alreadyBest.RecommendedConfig)
}

func TestSuggestionsListFailingThresholds(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(DefaultOptions())
	m := a.Analyze("hello world", []transcript.Segment{seg(0, 2, "hello world", 0.3)}, 0, "")

	joined := strings.Join(m.Suggestions, "\n")
	require.Contains(t, joined, "Average confidence")
	require.Contains(t, joined, "expected script")
	require.Contains(t, joined, "Overall quality")
	require.Contains(t, joined, "1 segment(s) have confidence below")
}

func TestHighQualityKoreanTranscriptPasses(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Options{Particles: []string{"는"}})
	text := "저는 오늘 집에서 쉽니다"
	m := a.Analyze(text, []transcript.Segment{seg(0, 2, "저는 오늘", 0.95), seg(2, 4, "집에서 쉽니다", 0.95)}, time.Second, "")

	require.InDelta(t, 1.0, m.ScriptQuality, 1e-9)
	require.InDelta(t, 1.0, m.Grammar, 1e-9)
	require.InDelta(t, 0.985, m.Overall, 1e-9)
	require.False(t, m.NeedsReprocessing)
	require.Empty(t, m.Suggestions)
}
