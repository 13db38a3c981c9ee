// Package api exposes the conversions over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stefando/pdf2img/internal/app/convert"
	"github.com/stefando/pdf2img/internal/auth"
	"github.com/stefando/pdf2img/internal/log"
)

const defaultMaxMemory = 32 << 20

// Converter runs a conversion.
type Converter interface {
	Run(ctx context.Context, req convert.Request) (*convert.Result, error)
}

// RouterConfig is the configuration of the HTTP router.
type RouterConfig struct {
	Converter Converter
	// Verifier enables the bearer authentication of the conversion routes.
	Verifier auth.TokenVerifier
	Tools    []Tool
	// MaxMemory is the part of a multipart body kept in memory, the rest
	// goes to temporary files.
	MaxMemory int64
	Logger    log.Logger
}

func (c *RouterConfig) defaults() error {
	if c.Converter == nil {
		return fmt.Errorf("converter is required")
	}

	if len(c.Tools) == 0 {
		c.Tools = DefaultTools
	}

	if c.MaxMemory <= 0 {
		c.MaxMemory = defaultMaxMemory
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "api.Router"})

	return nil
}

type handler struct {
	converter Converter
	maxMemory int64
	logger    log.Logger
}

// NewRouter returns the HTTP handler of the service.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := &handler{
		converter: cfg.Converter,
		maxMemory: cfg.MaxMemory,
		logger:    cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(auth.Middleware(cfg.Verifier, cfg.Logger))
		}
		for _, tool := range cfg.Tools {
			r.Post(tool.Route, h.convertTool(tool))
		}
	})

	return r, nil
}

// requestLogger logs every request with the project logger and adds the
// request ID to the context log values.
func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.SetValuesOnCtx(r.Context(), log.Kv{"request_id": middleware.GetReqID(r.Context())})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.WithCtxValues(ctx).Infof("%s %s %d %dB in %s", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
