package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures a conversion can end with.
type ErrorKind string

const (
	// ErrorKindValidation is a bad input file (not a PDF, encrypted...).
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindUpstream is a failure reported by the remote API or the object storage.
	ErrorKindUpstream ErrorKind = "upstream"
	// ErrorKindTask is a remote task that finished with a non-success status.
	ErrorKindTask ErrorKind = "task"
)

// Error is a conversion error with its kind and a detail message.
//
// For validation errors the detail is safe to show to callers, for the
// other kinds it is only meant for logs.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new conversion error.
func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{
		Kind:   kind,
		Detail: detail,
		Err:    err,
	}
}

// ValidationError returns an error for an input file that can't be converted.
func ValidationError(detail string, err error) *Error {
	return NewError(ErrorKindValidation, detail, err)
}

// UpstreamError returns an error for a failed call to an external service.
func UpstreamError(detail string, err error) *Error {
	return NewError(ErrorKindUpstream, detail, err)
}

// TaskFailure returns an error for a remote task that didn't succeed.
func TaskFailure(detail string, err error) *Error {
	return NewError(ErrorKindTask, detail, err)
}

// KindOf returns the kind of the first conversion error in the chain, and
// false if the chain has none.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// DetailOf returns the detail of the first conversion error in the chain.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
