package correction

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fmueller/voxsub/internal/transcript"
)

const summaryPunctuation = ".!?,"

const (
	ImprovementLengthKept      = "text length kept"
	ImprovementScriptKept      = "script characters kept"
	ImprovementSpacingKept     = "word spacing kept"
	ImprovementPunctuationKept = "punctuation kept"
)

// summarize compares the joined original and corrected texts on four checks
// and scores the run as min(1, passed/4 + 0.5).
func summarize(original, corrected []transcript.Segment, script *unicode.RangeTable) (float64, []string) {
	before := joinAll(original)
	after := joinAll(corrected)

	var details []string
	if float64(utf8.RuneCountInString(after)) >= float64(utf8.RuneCountInString(before))*0.8 {
		details = append(details, ImprovementLengthKept)
	}
	if countScript(after, script) >= countScript(before, script) {
		details = append(details, ImprovementScriptKept)
	}
	if float64(strings.Count(after, " ")) > float64(strings.Count(before, " "))*0.8 {
		details = append(details, ImprovementSpacingKept)
	}
	if countAny(after, summaryPunctuation) >= countAny(before, summaryPunctuation) {
		details = append(details, ImprovementPunctuationKept)
	}
	return math.Min(1, float64(len(details))/4+0.5), details
}

func joinAll(segments []transcript.Segment) string {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return strings.Join(texts, " ")
}

func countScript(text string, script *unicode.RangeTable) int {
	n := 0
	for _, r := range text {
		if unicode.Is(script, r) {
			n++
		}
	}
	return n
}

func countAny(text, chars string) int {
	n := 0
	for _, r := range text {
		if strings.ContainsRune(chars, r) {
			n++
		}
	}
	return n
}
