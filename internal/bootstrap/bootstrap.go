// Package bootstrap builds the process wide dependencies from the
// configuration. Everything is created once and shared by all the requests.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stefando/pdf2img/internal/api"
	"github.com/stefando/pdf2img/internal/app/convert"
	"github.com/stefando/pdf2img/internal/auth"
	"github.com/stefando/pdf2img/internal/config"
	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/pdf"
	"github.com/stefando/pdf2img/internal/remote/ilovepdf"
	"github.com/stefando/pdf2img/internal/storage"
	storages3 "github.com/stefando/pdf2img/internal/storage/s3"
)

// App has the wired dependencies.
type App struct {
	ObjectStore storage.ObjectStore
	Converter   *convert.Service
	Handler     http.Handler
}

// New validates the configuration and wires the app.
func New(ctx context.Context, cfg config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Noop
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s3Client, err := storages3.NewClient(ctx, storages3.ClientConfig{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		RoleARN:         cfg.Storage.RoleARN,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create s3 client: %w", err)
	}

	store, err := storages3.NewStore(storages3.StoreConfig{
		Client:        s3Client,
		Bucket:        cfg.Storage.Bucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create object store: %w", err)
	}

	remoteClient, err := ilovepdf.NewClient(ilovepdf.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.Remote.Timeout},
		EntryURL:   cfg.Remote.EntryURL,
		PublicKey:  cfg.Remote.PublicKey,
		SecretKey:  cfg.Remote.SecretKey,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create remote client: %w", err)
	}

	validator, err := pdf.NewValidator(pdf.ValidatorConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create validator: %w", err)
	}

	svc, err := convert.NewService(convert.ServiceConfig{
		ObjectStore:     store,
		Remote:          remoteClient,
		Validator:       validator,
		Logger:          logger,
		MaxParallel:     cfg.Convert.MaxParallel,
		TeardownTimeout: cfg.Convert.TeardownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create convert service: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.Issuer != "" {
		verifier, err = auth.NewOIDCVerifier(ctx, cfg.Auth.Issuer, cfg.Auth.ClientID)
		if err != nil {
			return nil, fmt.Errorf("could not create token verifier: %w", err)
		}
		logger.Infof("caller authentication enabled with issuer %s", cfg.Auth.Issuer)
	}

	handler, err := api.NewRouter(api.RouterConfig{
		Converter: svc,
		Verifier:  verifier,
		MaxMemory: cfg.HTTP.MaxFormMemory,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	return &App{
		ObjectStore: store,
		Converter:   svc,
		Handler:     handler,
	}, nil
}
