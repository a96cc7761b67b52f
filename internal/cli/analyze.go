package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fmueller/voxsub/internal/correction"
	"github.com/fmueller/voxsub/internal/quality"
	"github.com/fmueller/voxsub/internal/transcript"
	"github.com/spf13/cobra"
)

type analysis struct {
	Metrics  quality.Metrics     `json:"quality_metrics"`
	Strategy correction.Strategy `json:"correction_strategy"`
}

func newAnalyzeCmd(app *appState) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <transcript.json>",
		Short: "Score a transcript and show the correction strategy it would get",
		Long: "Score a transcript saved as JSON with \"text\" and \"segments\" fields, " +
			"for example the output of \"voxsub run --format json\".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTranscript(args[0])
			if err != nil {
				return err
			}
			cfg, err := app.config()
			if err != nil {
				return err
			}

			metrics := buildAnalyzer(cfg).AnalyzeTranscript(t)
			result := analysis{Metrics: metrics, Strategy: correction.Select(metrics)}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAnalysis(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")
	return cmd
}

// readTranscript accepts a transcript or a saved run result, whose text and
// segments live under final_text and final_segments.
func readTranscript(path string) (transcript.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("read transcript: %w", err)
	}

	var doc struct {
		transcript.Transcript
		FinalText     string               `json:"final_text"`
		FinalSegments []transcript.Segment `json:"final_segments"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return transcript.Transcript{}, fmt.Errorf("parse transcript %s: %w", path, err)
	}

	t := doc.Transcript
	if t.Text == "" && len(t.Segments) == 0 {
		t.Text = doc.FinalText
		t.Segments = doc.FinalSegments
	}
	if t.Text == "" {
		t.Text = transcript.JoinText(t.Segments)
	}
	return t, nil
}

func renderAnalysis(a analysis) string {
	m := a.Metrics
	rows := [][]string{
		{"Overall", formatScore(m.Overall)},
		{"Confidence", formatScore(m.Confidence)},
		{"Script", formatScore(m.ScriptQuality)},
		{"Grammar", formatScore(m.Grammar)},
		{"Completeness", formatScore(m.Completeness)},
		{"Consistency", formatScore(m.Consistency)},
		{"Punctuation", formatScore(m.PunctuationScore)},
		{"Words", strconv.Itoa(m.WordCount)},
		{"Low confidence segments", strconv.Itoa(m.LowConfidenceSegments)},
		{"Needs reprocessing", strconv.FormatBool(m.NeedsReprocessing)},
	}
	if m.RecommendedConfig != "" {
		rows = append(rows, []string{"Recommended config", m.RecommendedConfig})
	}
	rows = append(rows, []string{"Correction strategy", fmt.Sprintf("%s (aggressiveness %.2f)", a.Strategy.Name, a.Strategy.Aggressiveness)})

	var b strings.Builder
	b.WriteString(renderTable([]string{"Metric", "Value"}, rows, 1))
	for _, suggestion := range m.Suggestions {
		b.WriteString("\n- ")
		b.WriteString(suggestion)
	}
	return b.String()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
