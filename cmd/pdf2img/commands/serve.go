package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/stefando/pdf2img/internal/bootstrap"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("serve", "Serve the conversion API over HTTP.")

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	cfg := *c.rootCmd.Config

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("could not bootstrap: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("HTTP server listening on %s", cfg.HTTP.ListenAddress)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
				defer cancel()

				logger.Infof("shutting down HTTP server")
				if err := server.Shutdown(ctx); err != nil {
					logger.Errorf("could not shut down HTTP server gracefully: %s", err)
				}
			},
		)
	}

	// Parent cancellation.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}
