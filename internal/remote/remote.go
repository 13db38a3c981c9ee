// Package remote defines the client of the remote document processing API.
package remote

import (
	"context"
	"io"

	"github.com/stefando/pdf2img/internal/model"
)

// TaskAPI drives one remote task through its lifecycle.
//
// Every call except DeleteTask fails with a model upstream error when the
// remote service answers with a non-success response.
type TaskAPI interface {
	// Authenticate returns a new bearer token, tokens are never shared between tasks.
	Authenticate(ctx context.Context) (token string, err error)
	// Start asks for a worker for the tool and returns the started session.
	Start(ctx context.Context, token, tool string) (model.TaskSession, error)
	// RegisterFile makes the remote service fetch the staged file from its
	// storage URL, the returned file has its remote server name set.
	RegisterFile(ctx context.Context, session model.TaskSession, file model.StagedFile) (model.StagedFile, error)
	// Execute processes the registered files and returns the session with
	// its status and output file name.
	Execute(ctx context.Context, session model.TaskSession, files []model.StagedFile) (model.TaskSession, error)
	// Download returns the output of a successful task, the caller closes it.
	Download(ctx context.Context, session model.TaskSession) (io.ReadCloser, error)
	// DeleteTask removes the task from the remote service. It's best effort,
	// callers are expected to log the error and carry on.
	DeleteTask(ctx context.Context, session model.TaskSession) error
}
