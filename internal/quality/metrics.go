package quality

// Scores groups the five sub-scores that feed the overall score.
type Scores struct {
	Confidence   float64
	Script       float64
	Grammar      float64
	Completeness float64
	Consistency  float64
}

// Weights sets the contribution of each sub-score. The weights sum to 1.0.
type Weights struct {
	Confidence   float64
	Script       float64
	Grammar      float64
	Completeness float64
	Consistency  float64
}

// DefaultWeights is the fixed weighting used by the analyzer.
var DefaultWeights = Weights{
	Confidence:   0.30,
	Script:       0.25,
	Grammar:      0.20,
	Completeness: 0.15,
	Consistency:  0.10,
}

// Combine returns the weighted overall score for s.
func (w Weights) Combine(s Scores) float64 {
	return s.Confidence*w.Confidence +
		s.Script*w.Script +
		s.Grammar*w.Grammar +
		s.Completeness*w.Completeness +
		s.Consistency*w.Consistency
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Confidence + w.Script + w.Grammar + w.Completeness + w.Consistency
}

// Thresholds are the minimum acceptable values below which a transcript is
// flagged for reprocessing.
type Thresholds struct {
	Overall    float64
	Confidence float64
	Script     float64
	Grammar    float64
}

// DefaultThresholds returns the standard reprocessing thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Overall:    0.75,
		Confidence: 0.70,
		Script:     0.80,
		Grammar:    0.60,
	}
}

// NeedsReprocessing reports whether any score falls below its threshold.
// Lowering a score can only turn the result from false to true.
func (t Thresholds) NeedsReprocessing(overall, confidence, script, grammar float64) bool {
	return overall < t.Overall ||
		confidence < t.Confidence ||
		script < t.Script ||
		grammar < t.Grammar
}

// Metrics is the immutable quality assessment of exactly one transcript.
type Metrics struct {
	Overall           float64  `json:"overall_score"`
	Confidence        float64  `json:"confidence_score"`
	ScriptQuality     float64  `json:"script_quality_score"`
	Grammar           float64  `json:"grammar_score"`
	Consistency       float64  `json:"consistency_score"`
	Completeness      float64  `json:"completeness_score"`
	NeedsReprocessing bool     `json:"needs_reprocessing"`
	RecommendedConfig string   `json:"recommended_engine_config,omitempty"`
	Suggestions       []string `json:"improvement_suggestions"`

	WordCount             int     `json:"word_count"`
	LowConfidenceSegments int     `json:"low_confidence_segments"`
	PunctuationScore      float64 `json:"punctuation_score"`
}

// Scores returns the sub-scores of m.
func (m Metrics) Scores() Scores {
	return Scores{
		Confidence:   m.Confidence,
		Script:       m.ScriptQuality,
		Grammar:      m.Grammar,
		Completeness: m.Completeness,
		Consistency:  m.Consistency,
	}
}

// HasRecommendation reports whether the analyzer named an alternate engine
// configuration.
func (m Metrics) HasRecommendation() bool {
	return m.RecommendedConfig != ""
}
