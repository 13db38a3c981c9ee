// Package logrus implements the service logger on top of logrus.
package logrus

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/stefando/pdf2img/internal/log"
)

const (
	// FormatText is the human friendly log format.
	FormatText = "default"
	// FormatJSON is the JSON log format.
	FormatJSON = "json"
)

type logger struct {
	*logrus.Entry
}

// NewLogrus returns a new log.Logger backed by the logrus entry.
func NewLogrus(l *logrus.Entry) log.Logger {
	return logger{Entry: l}
}

// Config is the configuration used by New.
type Config struct {
	Out     io.Writer
	Debug   bool
	Format  string
	NoColor bool
	Version string
}

// New returns a ready to use logger for the service.
func New(cfg Config) log.Logger {
	l := logrus.New()
	if cfg.Out != nil {
		l.Out = cfg.Out
	}
	if cfg.Debug {
		l.SetLevel(logrus.DebugLevel)
	}

	switch cfg.Format {
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !cfg.NoColor,
			DisableColors: cfg.NoColor,
		})
	}

	lg := NewLogrus(logrus.NewEntry(l))
	if cfg.Version != "" {
		lg = lg.WithValues(log.Kv{"version": cfg.Version})
	}

	return lg
}

func (l logger) WithValues(kv log.Kv) log.Logger {
	newLogger := l.Entry.WithFields(kv)
	return NewLogrus(newLogger)
}

func (l logger) WithCtxValues(ctx context.Context) log.Logger {
	return l.WithValues(log.ValuesFromCtx(ctx))
}

func (l logger) SetValuesOnCtx(parent context.Context, values log.Kv) context.Context {
	return log.CtxWithValues(parent, values)
}
