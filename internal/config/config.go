// Package config holds the service configuration shared by the CLI and the
// lambda entrypoints.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

// DefaultDotEnvFile is loaded on startup when it exists.
const DefaultDotEnvFile = ".env"

// Storage is the object storage configuration.
type Storage struct {
	Bucket   string
	Region   string
	Endpoint string
	// PublicBaseURL defaults to the endpoint, or to the regional AWS
	// endpoint when no endpoint is set.
	PublicBaseURL   string
	KeyPrefix       string
	AccessKeyID     string
	SecretAccessKey string
	RoleARN         string
	UsePathStyle    bool
}

// Remote is the remote conversion service configuration.
type Remote struct {
	EntryURL  string
	PublicKey string
	SecretKey string
	Timeout   time.Duration
}

// Auth is the caller authentication configuration, disabled without issuer.
type Auth struct {
	Issuer   string
	ClientID string
}

// Convert is the conversion pipeline configuration.
type Convert struct {
	MaxParallel     int
	TeardownTimeout time.Duration
}

// HTTP is the HTTP server configuration.
type HTTP struct {
	ListenAddress   string
	ShutdownTimeout time.Duration
	MaxFormMemory   int64
}

// Config is the service configuration.
type Config struct {
	Storage Storage
	Remote  Remote
	Auth    Auth
	Convert Convert
	HTTP    HTTP
}

// Register registers the configuration flags on the app. With the app
// default envars every flag can also be set with an environment variable,
// like PDF2IMG_S3_BUCKET.
func Register(app *kingpin.Application) *Config {
	c := &Config{}

	app.Flag("s3-bucket", "Bucket of the staged documents and the results.").StringVar(&c.Storage.Bucket)
	app.Flag("s3-region", "Object storage region.").Default("us-east-1").StringVar(&c.Storage.Region)
	app.Flag("s3-endpoint", "Object storage endpoint for S3 compatible storages.").StringVar(&c.Storage.Endpoint)
	app.Flag("s3-public-url", "Base URL the objects are publicly served from.").StringVar(&c.Storage.PublicBaseURL)
	app.Flag("s3-key-prefix", "Prefix of every object name.").StringVar(&c.Storage.KeyPrefix)
	app.Flag("s3-access-key-id", "Object storage access key ID.").StringVar(&c.Storage.AccessKeyID)
	app.Flag("s3-secret-access-key", "Object storage secret access key.").StringVar(&c.Storage.SecretAccessKey)
	app.Flag("s3-role-arn", "Role assumed to access the object storage.").StringVar(&c.Storage.RoleARN)
	app.Flag("s3-path-style", "Use path style object storage URLs.").BoolVar(&c.Storage.UsePathStyle)

	app.Flag("ilovepdf-url", "Entry URL of the remote service.").Default("https://api.ilovepdf.com/v1").StringVar(&c.Remote.EntryURL)
	app.Flag("ilovepdf-public-key", "Project public key of the remote service.").StringVar(&c.Remote.PublicKey)
	app.Flag("ilovepdf-secret-key", "Project secret key, tokens are signed locally when set.").StringVar(&c.Remote.SecretKey)
	app.Flag("remote-timeout", "Timeout of every remote call.").Default("5m").DurationVar(&c.Remote.Timeout)

	app.Flag("oidc-issuer", "OIDC issuer of the caller tokens, authentication is disabled when empty.").StringVar(&c.Auth.Issuer)
	app.Flag("oidc-client-id", "Expected audience of the caller tokens.").StringVar(&c.Auth.ClientID)

	app.Flag("max-parallel", "Max concurrent operations of a conversion step.").Default("8").IntVar(&c.Convert.MaxParallel)
	app.Flag("teardown-timeout", "Timeout of the remote task deletion.").Default("30s").DurationVar(&c.Convert.TeardownTimeout)

	app.Flag("listen-address", "HTTP server listen address.").Default(":8000").StringVar(&c.HTTP.ListenAddress)
	app.Flag("shutdown-timeout", "Graceful shutdown timeout of the HTTP server.").Default("30s").DurationVar(&c.HTTP.ShutdownTimeout)
	app.Flag("max-form-memory", "Bytes of a multipart form kept in memory.").Default("33554432").Int64Var(&c.HTTP.MaxFormMemory)

	return c
}

// Validate checks the required values and sets the derived ones.
func (c *Config) Validate() error {
	if c.Storage.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}

	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = c.Storage.Endpoint
	}
	if c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = fmt.Sprintf("https://s3.%s.amazonaws.com", c.Storage.Region)
	}

	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		return fmt.Errorf("s3 access key ID and secret access key must be set together")
	}

	if c.Remote.PublicKey == "" {
		return fmt.Errorf("ilovepdf public key is required")
	}

	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote timeout must be positive")
	}

	if c.Auth.ClientID != "" && c.Auth.Issuer == "" {
		return fmt.Errorf("oidc client ID requires an issuer")
	}

	if c.Convert.MaxParallel <= 0 {
		return fmt.Errorf("max parallel must be positive")
	}

	return nil
}

// LoadDotEnv loads the environment variables of the file, a missing file is
// ignored. Variables already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not stat %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load %s: %w", path, err)
	}

	return nil
}
