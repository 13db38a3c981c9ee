// Package convert orchestrates one conversion: the input documents are
// staged in the object storage, a remote task processes them and its output
// is stored back in the object storage.
package convert

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/model"
	"github.com/stefando/pdf2img/internal/remote"
	"github.com/stefando/pdf2img/internal/storage"
)

const (
	defaultMaxParallel     = 8
	defaultTeardownTimeout = 30 * time.Second
)

// Validator checks an input file can be converted.
type Validator interface {
	Validate(ctx context.Context, f model.InputFile) error
}

// ServiceConfig is the configuration for the convert service.
type ServiceConfig struct {
	ObjectStore storage.ObjectStore
	Remote      remote.TaskAPI
	Validator   Validator
	Logger      log.Logger
	// MaxParallel bounds the concurrent operations of every fan-out.
	MaxParallel int
	// TeardownTimeout bounds the remote task deletion, which runs even when
	// the request context has been cancelled.
	TeardownTimeout time.Duration
}

func (c *ServiceConfig) defaults() error {
	if c.ObjectStore == nil {
		return fmt.Errorf("object store is required")
	}

	if c.Remote == nil {
		return fmt.Errorf("remote task API is required")
	}

	if c.Validator == nil {
		return fmt.Errorf("validator is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "convert.Service"})

	if c.MaxParallel <= 0 {
		c.MaxParallel = defaultMaxParallel
	}

	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = defaultTeardownTimeout
	}

	return nil
}

// Service converts documents with the remote service.
type Service struct {
	store           storage.ObjectStore
	remote          remote.TaskAPI
	validator       Validator
	logger          log.Logger
	maxParallel     int
	teardownTimeout time.Duration
}

// NewService creates a new convert service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		store:           cfg.ObjectStore,
		remote:          cfg.Remote,
		validator:       cfg.Validator,
		logger:          cfg.Logger,
		maxParallel:     cfg.MaxParallel,
		teardownTimeout: cfg.TeardownTimeout,
	}, nil
}

// Request represents the convert request parameters.
type Request struct {
	Files []model.InputFile
	// Tool is the remote operation to run.
	Tool string
	// ExtraParameters are the tool specific options, sent as they are.
	ExtraParameters map[string]any
}

// Result is the outcome of a successful conversion.
type Result struct {
	// Output is the stored conversion output.
	Output storage.Object
}

// Run converts the files of the request.
//
// Either the whole conversion succeeds or it fails, partial results are never
// returned. Once the remote task has been started it's always deleted before
// returning.
func (s *Service) Run(ctx context.Context, req Request) (res *Result, err error) {
	if req.Tool == "" {
		return nil, model.ValidationError("tool is required", nil)
	}
	ctx = s.logger.SetValuesOnCtx(ctx, log.Kv{"tool": req.Tool})
	logger := s.logger.WithCtxValues(ctx)

	start := time.Now()
	defer func() {
		if err != nil {
			logger.Errorf("conversion of %d files failed after %s: %s", len(req.Files), time.Since(start), err)
			return
		}
		logger.Infof("converted %d files in %s: %s", len(req.Files), time.Since(start), res.Output.Name)
	}()

	if err := s.validate(ctx, req.Files); err != nil {
		return nil, err
	}

	staged, err := s.stage(ctx, req.Files)
	if err != nil {
		return nil, err
	}

	token, err := s.remote.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not authenticate: %w", err)
	}

	session, err := s.remote.Start(ctx, token, req.Tool)
	if err != nil {
		return nil, fmt.Errorf("could not start task: %w", err)
	}
	session = session.WithExtraParameters(req.ExtraParameters)
	ctx = s.logger.SetValuesOnCtx(ctx, log.Kv{"task": session.TaskID})
	logger = s.logger.WithCtxValues(ctx)
	logger.Debugf("task started on %s", session.ServerBaseURL)

	defer s.teardown(ctx, session)

	staged, err = s.register(ctx, session, staged)
	if err != nil {
		return nil, err
	}
	logger.Debugf("%d files registered on the task", len(staged))

	session, err = s.remote.Execute(ctx, session, staged)
	if err != nil {
		return nil, fmt.Errorf("could not execute task: %w", err)
	}

	if !session.Succeeded() {
		return nil, model.TaskFailure(fmt.Sprintf("task finished with status %q", session.RemoteStatus), nil)
	}

	output, err := s.collect(ctx, session)
	if err != nil {
		return nil, err
	}

	return &Result{Output: *output}, nil
}

// validate checks all the files in parallel.
func (s *Service) validate(ctx context.Context, files []model.InputFile) error {
	if len(files) == 0 {
		return model.ValidationError("at least one file is required", nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, f := range files {
		g.Go(func() error {
			return s.validator.Validate(gctx, f)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	return nil
}

// stage uploads all the files to the object storage.
func (s *Service) stage(ctx context.Context, files []model.InputFile) ([]model.StagedFile, error) {
	uploads := make([]storage.Upload, 0, len(files))
	for _, f := range files {
		uploads = append(uploads, storage.Upload{
			OriginalName: f.Name,
			Open: func() (io.ReadCloser, error) {
				return f.Open()
			},
		})
	}

	objects, err := storage.UploadMany(ctx, s.store, uploads, s.maxParallel)
	if err != nil {
		return nil, fmt.Errorf("could not stage files: %w", err)
	}

	staged := make([]model.StagedFile, 0, len(objects))
	for i, obj := range objects {
		staged = append(staged, model.StagedFile{
			OriginalName: files[i].Name,
			StorageName:  obj.Name,
			StorageURL:   obj.URL,
		})
	}

	return staged, nil
}

// register registers all the staged files on the task. Each goroutine owns
// one slot of the result.
func (s *Service) register(ctx context.Context, session model.TaskSession, staged []model.StagedFile) ([]model.StagedFile, error) {
	registered := make([]model.StagedFile, len(staged))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, f := range staged {
		g.Go(func() error {
			rf, err := s.remote.RegisterFile(gctx, session, f)
			if err != nil {
				return err
			}
			registered[i] = rf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not register files: %w", err)
	}

	return registered, nil
}

// collect downloads the task output and stores it under a new name.
func (s *Service) collect(ctx context.Context, session model.TaskSession) (*storage.Object, error) {
	body, err := s.remote.Download(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("could not download output: %w", err)
	}
	defer body.Close()

	obj, err := s.store.Upload(ctx, body, session.OutputFileName)
	if err != nil {
		return nil, fmt.Errorf("could not store output: %w", err)
	}

	return obj, nil
}

// teardown deletes the remote task, failures are only logged.
func (s *Service) teardown(ctx context.Context, session model.TaskSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.teardownTimeout)
	defer cancel()

	if err := s.remote.DeleteTask(ctx, session); err != nil {
		s.logger.WithCtxValues(ctx).Warningf("could not delete remote task: %s", err)
		return
	}

	s.logger.WithCtxValues(ctx).Debugf("remote task deleted")
}
