package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/voxsub/internal/config"
	"github.com/fmueller/voxsub/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *appState) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription pipeline over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			if bind == "" {
				bind = cfg.Server.Bind
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.serve
			}
			return serveFn(ctx, cfg, bind)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from config)")
	return cmd
}

func (a *appState) serve(ctx context.Context, cfg *config.Config, bind string) error {
	newRunner := a.newRunnerFn
	if newRunner == nil {
		newRunner = newPipelineRunner
	}
	r, err := newRunner(cfg, a.log())
	if err != nil {
		return err
	}

	srv := server.New(r, buildAnalyzer(cfg), cfg.Catalog(), server.Options{
		Language: cfg.Engine.Language,
		Logger:   a.log(),
	})
	a.log().Info("starting server", zap.String("bind", bind), zap.String("backend", cfg.Engine.Backend))
	return srv.ListenAndServe(ctx, bind)
}
