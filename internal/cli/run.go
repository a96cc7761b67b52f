package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/fmueller/voxsub/internal/platform"
	"github.com/fmueller/voxsub/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	formatText = "text"
	formatSRT  = "srt"
	formatJSON = "json"
)

type runOptions struct {
	config       string
	language     string
	target       float64
	noCorrection bool
	format       string
	output       string
	save         bool
}

func newRunCmd(app *appState) *cobra.Command {
	opts := runOptions{format: formatText}

	cmd := &cobra.Command{
		Use:   "run <audio-file>",
		Short: "Transcribe an audio file, reprocess it until it is good enough and correct the text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runFile(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.config, "engine-config", opts.config, "Initial engine configuration (run \"voxsub configs\" to list)")
	flags.StringVar(&opts.language, "language", opts.language, "Language code passed to the engine (default from config; auto detects)")
	flags.Float64Var(&opts.target, "target", opts.target, "Target overall quality in (0, 1] (default from config)")
	flags.BoolVar(&opts.noCorrection, "no-correction", opts.noCorrection, "Skip the correction stage")
	flags.StringVar(&opts.format, "format", opts.format, "Output format: text|srt|json")
	flags.StringVarP(&opts.output, "output", "o", opts.output, "Write the output to this file instead of stdout")
	flags.BoolVar(&opts.save, "save", opts.save, "Also save the subtitles as <name>.srt in the subtitle directory")
	return cmd
}

func (a *appState) runFile(cmd *cobra.Command, audioPath string, opts runOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	switch format {
	case formatText, formatSRT, formatJSON:
	default:
		return fmt.Errorf("unsupported format %q; use text, srt or json", opts.format)
	}

	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("audio file not found: %w", err)
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}
	newRunner := a.newRunnerFn
	if newRunner == nil {
		newRunner = newPipelineRunner
	}
	r, err := newRunner(cfg, a.log())
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Audio:          whisper.Audio{Path: audioPath},
		Config:         strings.TrimSpace(opts.config),
		Language:       strings.TrimSpace(opts.language),
		TargetQuality:  opts.target,
		SkipCorrection: opts.noCorrection,
	}
	if req.Language == "" {
		req.Language = cfg.Engine.Language
	}
	if req.TargetQuality == 0 {
		req.TargetQuality = cfg.Quality.Target
	}

	sink, stopProgress := startProgress(a.progressEnabled(), cmd.ErrOrStderr())
	req.Sink = sink
	result := r.Run(cmd.Context(), req)
	stopProgress()

	if !result.Success {
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
	}
	a.log().Info("run complete",
		zap.String("run_id", result.RunID),
		zap.Float64("quality", result.Quality.Overall),
		zap.Int("attempts", result.AttemptsMade),
		zap.String("engine", result.EngineUsed),
		zap.String("strategy", result.Strategy),
		zap.Int("corrections", result.TotalCorrections),
	)
	if result.FailedBatches > 0 {
		a.log().Warn("some correction batches failed; their segments are uncorrected", zap.Int("failed_batches", result.FailedBatches))
	}

	if opts.save {
		path, err := saveSubtitles(audioPath, result)
		if err != nil {
			return err
		}
		a.log().Info("subtitles saved", zap.String("path", path))
	}

	if opts.output == "" {
		return writeResult(cmd.OutOrStdout(), format, result)
	}
	file, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := writeResult(file, format, result); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeResult(w io.Writer, format string, result pipeline.Result) error {
	switch format {
	case formatSRT:
		_, err := io.WriteString(w, result.SRT())
		return err
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	default:
		_, err := fmt.Fprintln(w, result.FinalText)
		return err
	}
}

func saveSubtitles(audioPath string, result pipeline.Result) (string, error) {
	if len(result.FinalSegments) == 0 {
		return "", errors.New("no segments to save as subtitles")
	}
	dir, err := platform.ResolveOutputDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create subtitle directory %s: %w", dir, err)
	}
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	path := filepath.Join(dir, base+".srt")
	if err := os.WriteFile(path, []byte(result.SRT()), 0o644); err != nil {
		return "", fmt.Errorf("write subtitles: %w", err)
	}
	return path, nil
}
