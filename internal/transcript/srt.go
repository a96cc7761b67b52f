package transcript

import (
	"fmt"
	"math"
	"strings"
)

// FormatSRT renders segments as a SubRip track. Segments with blank text are
// skipped and cue numbers stay contiguous.
func FormatSRT(segments []Segment) string {
	var b strings.Builder
	cue := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cue++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", cue, FormatTimestamp(seg.Start), FormatTimestamp(seg.End), text)
	}
	return b.String()
}

// FormatTimestamp converts seconds to the HH:MM:SS,mmm SRT form.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	secs := (totalMillis % 60_000) / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
