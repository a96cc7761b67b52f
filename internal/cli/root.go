package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fmueller/voxsub/internal/config"
	"github.com/fmueller/voxsub/internal/logging"
	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/fmueller/voxsub/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type appState struct {
	configPath string
	envFile    string
	verbose    bool
	jsonLogs   bool
	noProgress bool

	cfg    *config.Config
	logger *zap.Logger

	loadConfigFn func(path string) (*config.Config, error)
	newRunnerFn  func(cfg *config.Config, logger *zap.Logger) (runner, error)
	serveFn      func(ctx context.Context, cfg *config.Config, bind string) error
	isTerminalFn func() bool
}

// runner is the part of the pipeline the commands depend on.
type runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

func NewRootCmd() *cobra.Command {
	app := &appState{}
	app.loadConfigFn = loadConfig
	app.newRunnerFn = newPipelineRunner
	app.serveFn = app.serve
	app.isTerminalFn = stderrIsTerminal
	return newRootCmd(app)
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voxsub",
		Short:         "Transcribe audio into subtitles with quality driven reprocessing and correction",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(app.envFile); err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)

	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newAnalyzeCmd(app))
	cmd.AddCommand(newConfigsCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", app.configPath, "Path to config.toml (default: platform config dir, then ./voxsub.toml)")
	flags.StringVar(&app.envFile, "env-file", app.envFile, "Optional .env file loaded before the config (default: ./.env)")
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "log-json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	return cfg, err
}

// config loads the configuration once and applies its logging section unless
// logging was already chosen on the command line.
func (a *appState) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	loadFn := a.loadConfigFn
	if loadFn == nil {
		loadFn = loadConfig
	}
	cfg, err := loadFn(a.configPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	if !a.verbose && (cfg.Logging.Level != "" || cfg.Logging.JSON) {
		logger, err := logging.New(logging.Options{
			JSON:  a.jsonLogs || cfg.Logging.JSON,
			Level: cfg.Logging.Level,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize logger: %w", err)
		}
		a.logger = logger
	}
	return cfg, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	isTerminal := a.isTerminalFn
	if isTerminal == nil {
		isTerminal = stderrIsTerminal
	}
	return isTerminal()
}

func stderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
