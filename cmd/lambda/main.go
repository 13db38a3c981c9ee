package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/stefando/pdf2img/internal/bootstrap"
	"github.com/stefando/pdf2img/internal/config"
	"github.com/stefando/pdf2img/internal/log"
	loglogrus "github.com/stefando/pdf2img/internal/log/logrus"
)

// Version is the application version (set via ldflags).
var Version = "dev"

// loadConfig reads the configuration from the PDF2IMG_* environment, the
// same variables the CLI reads.
func loadConfig() (*config.Config, error) {
	app := kingpin.New("pdf2img", "PDF to image conversion lambda.")
	app.DefaultEnvars()
	cfg := config.Register(app)

	if _, err := app.Parse(nil); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func run(ctx context.Context) error {
	logger := loglogrus.New(loglogrus.Config{
		Out:     os.Stderr,
		Debug:   os.Getenv("PDF2IMG_DEBUG") == "true",
		Format:  loglogrus.FormatJSON,
		Version: Version,
	}).WithValues(log.Kv{"runtime": "lambda"})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Created once per execution environment and reused by the invocations.
	app, err := bootstrap.New(ctx, *cfg, logger)
	if err != nil {
		return fmt.Errorf("could not bootstrap: %w", err)
	}

	lambda.Start(newHandler(app.Handler))

	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
