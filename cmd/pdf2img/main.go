package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/stefando/pdf2img/cmd/pdf2img/commands"
	"github.com/stefando/pdf2img/internal/config"
	"github.com/stefando/pdf2img/internal/log"
	loglogrus "github.com/stefando/pdf2img/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	// The .env values must be in the environment before the flags are parsed.
	if err := config.LoadDotEnv(config.DefaultDotEnvFile); err != nil {
		return err
	}

	app := kingpin.New("pdf2img", "PDF to image conversion service.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	serveCmd := commands.NewServeCommand(rootCmd, app)
	convertCmd := commands.NewConvertCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		serveCmd.Name():   serveCmd,
		convertCmd.Name(): convertCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Set logger.
	rootCmd.Logger = getLogger(*rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(rootCmd commands.RootCommand) log.Logger {
	if rootCmd.NoLog {
		return log.Noop
	}

	logger := loglogrus.New(loglogrus.Config{
		Out:     rootCmd.Stderr,
		Debug:   rootCmd.Debug,
		Format:  rootCmd.LoggerType,
		NoColor: rootCmd.NoColor,
		Version: Version,
	})
	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
