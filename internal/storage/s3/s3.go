// Package s3 implements the object store on S3 compatible storages.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/model"
	"github.com/stefando/pdf2img/internal/storage"
)

// API is the part of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// StoreConfig is the configuration of the S3 store.
type StoreConfig struct {
	Client API
	Bucket string
	// PublicBaseURL is the URL the bucket objects are publicly served from,
	// object URLs are {PublicBaseURL}/{Bucket}/{name}.
	PublicBaseURL string
	// KeyPrefix is prepended to every generated object name.
	KeyPrefix string
	Logger    log.Logger
	// TimeNow is used for the date based part of the object names.
	TimeNow func() time.Time
}

func (c *StoreConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("s3 client is required")
	}

	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	if c.PublicBaseURL == "" {
		return fmt.Errorf("public base URL is required")
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.S3"})

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}

	return nil
}

// Store stores objects in a single S3 bucket.
type Store struct {
	client        API
	bucket        string
	publicBaseURL string
	keyPrefix     string
	logger        log.Logger
	timeNow       func() time.Time
}

// NewStore creates a new S3 object store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		client:        cfg.Client,
		bucket:        cfg.Bucket,
		publicBaseURL: cfg.PublicBaseURL,
		keyPrefix:     cfg.KeyPrefix,
		logger:        cfg.Logger,
		timeNow:       cfg.TimeNow,
	}, nil
}

var _ storage.ObjectStore = &Store{}

// Upload uploads the content under a new random name.
func (s *Store) Upload(ctx context.Context, body io.Reader, originalName string) (*storage.Object, error) {
	// Generate a unique object key.
	key := s.generateKey(originalName)

	// The SDK needs to rewind the body to sign the request.
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, model.UpstreamError("object storage error", fmt.Errorf("could not read content of %q: %w", originalName, err))
		}
		rs = bytes.NewReader(data)
	}

	// Upload to S3.
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        rs,
		ContentType: aws.String(contentType(key)),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, model.UpstreamError("object storage error", fmt.Errorf("could not put object %s: %w", key, err))
	}

	s.logger.WithCtxValues(ctx).Debugf("object %s stored (original name: %s)", key, originalName)

	return &storage.Object{
		Name: key,
		URL:  s.objectURL(key),
	}, nil
}

// Download returns the content of the object, the caller closes it.
func (s *Store) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, model.UpstreamError("object storage error", fmt.Errorf("could not get object %s: %w", name, err))
	}

	return out.Body, nil
}

// generateKey creates a unique key with a date based organization that keeps
// the original extension: <prefix>YYYY/MM/DD/<uuid><ext>.
func (s *Store) generateKey(originalName string) string {
	now := s.timeNow().UTC()
	// Prefix the key with the upload date.
	datePath := fmt.Sprintf("%d/%02d/%02d", now.Year(), now.Month(), now.Day())

	return fmt.Sprintf("%s%s/%s%s", s.keyPrefix, datePath, uuid.New().String(), extension(originalName))
}

func (s *Store) objectURL(key string) string {
	return s.publicBaseURL + "/" + s.bucket + "/" + key
}

// extension returns the lowercased extension of the name, names coming from
// callers can have anything so only alphanumeric extensions are kept.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 {
		return ""
	}

	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}

	return ext
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
