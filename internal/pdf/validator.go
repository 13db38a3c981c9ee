// Package pdf validates the documents before they are sent for conversion.
package pdf

import (
	"context"
	"fmt"
	"io"

	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/model"
)

// ContentType is the only accepted content type.
const ContentType = "application/pdf"

// EncryptionChecker tells if a document is encrypted.
type EncryptionChecker interface {
	IsEncrypted(data []byte) (bool, error)
}

// ValidatorConfig is the configuration of the validator.
type ValidatorConfig struct {
	Checker EncryptionChecker
	Logger  log.Logger
}

func (c *ValidatorConfig) defaults() error {
	if c.Checker == nil {
		c.Checker = FitzChecker{}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pdf.Validator"})

	return nil
}

// Validator checks the input files are PDF documents that can be processed.
type Validator struct {
	checker EncryptionChecker
	logger  log.Logger
}

// NewValidator creates a new validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Validator{
		checker: cfg.Checker,
		logger:  cfg.Logger,
	}, nil
}

// Validate returns a validation error naming the file when it's not an
// unencrypted PDF document.
func (v *Validator) Validate(ctx context.Context, f model.InputFile) error {
	if f.ContentType != ContentType {
		return model.ValidationError(fmt.Sprintf("Invalid document type of %s", f.Name), nil)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := readAll(f)
	if err != nil {
		return fmt.Errorf("could not read %q: %w", f.Name, err)
	}

	encrypted, err := v.checker.IsEncrypted(data)
	if err != nil {
		v.logger.WithCtxValues(ctx).Debugf("could not open %q as PDF: %s", f.Name, err)
		return model.ValidationError(fmt.Sprintf("%s: could not read PDF document", f.Name), err)
	}

	if encrypted {
		return model.ValidationError(fmt.Sprintf("%s: remove password and try again", f.Name), nil)
	}

	return nil
}

func readAll(f model.InputFile) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
