package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fmueller/voxsub/internal/whisper"
	"github.com/spf13/cobra"
)

func newConfigsCmd(app *appState) *cobra.Command {
	var (
		duration time.Duration
		priority string
	)

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List engine configurations and recommend one for an audio duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := whisper.ParsePriority(priority)
			if err != nil {
				return err
			}
			cfg, err := app.config()
			if err != nil {
				return err
			}

			catalog := cfg.Catalog()
			rows := make([][]string, 0, len(catalog.Configs()))
			for _, c := range catalog.Configs() {
				name := c.Name
				if name == cfg.Engine.DefaultConfig {
					name += " *"
				}
				rows = append(rows, []string{
					name,
					c.Model,
					strconv.FormatFloat(c.Temperature, 'f', 1, 64),
					strconv.Itoa(c.BeamSize),
					strconv.Itoa(c.LatencyRank),
					strconv.Itoa(c.QualityRank),
					c.Description,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Model", "Temperature", "Beam", "Latency", "Quality", "Description"},
				rows, 2, 3, 4, 5,
			))
			fmt.Fprintln(out, "* default; rank 1 is fastest / best")
			if cmd.Flags().Changed("duration") {
				fmt.Fprintf(out, "Recommended for %s (%s): %s\n", duration, p, catalog.Recommend(duration, p))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Audio duration to recommend a configuration for, e.g. 3m30s")
	cmd.Flags().StringVar(&priority, "priority", string(whisper.PriorityBalanced), "Recommendation priority: speed|quality|balanced")
	return cmd
}
