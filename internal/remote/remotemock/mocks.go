// Package remotemock has testify mocks for the remote package.
package remotemock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/stefando/pdf2img/internal/model"
	"github.com/stefando/pdf2img/internal/remote"
)

// MockTaskAPI is a mock of remote.TaskAPI.
type MockTaskAPI struct {
	mock.Mock
}

// Authenticate provides a mock function.
func (m *MockTaskAPI) Authenticate(ctx context.Context) (string, error) {
	ret := m.Called(ctx)
	return ret.String(0), ret.Error(1)
}

// Start provides a mock function.
func (m *MockTaskAPI) Start(ctx context.Context, token, tool string) (model.TaskSession, error) {
	ret := m.Called(ctx, token, tool)
	return ret.Get(0).(model.TaskSession), ret.Error(1)
}

// RegisterFile provides a mock function.
func (m *MockTaskAPI) RegisterFile(ctx context.Context, session model.TaskSession, file model.StagedFile) (model.StagedFile, error) {
	ret := m.Called(ctx, session, file)

	if rf, ok := ret.Get(0).(func(context.Context, model.TaskSession, model.StagedFile) model.StagedFile); ok {
		return rf(ctx, session, file), ret.Error(1)
	}
	return ret.Get(0).(model.StagedFile), ret.Error(1)
}

// Execute provides a mock function.
func (m *MockTaskAPI) Execute(ctx context.Context, session model.TaskSession, files []model.StagedFile) (model.TaskSession, error) {
	ret := m.Called(ctx, session, files)
	return ret.Get(0).(model.TaskSession), ret.Error(1)
}

// Download provides a mock function.
func (m *MockTaskAPI) Download(ctx context.Context, session model.TaskSession) (io.ReadCloser, error) {
	ret := m.Called(ctx, session)

	var r0 io.ReadCloser
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(io.ReadCloser)
	}
	return r0, ret.Error(1)
}

// DeleteTask provides a mock function.
func (m *MockTaskAPI) DeleteTask(ctx context.Context, session model.TaskSession) error {
	ret := m.Called(ctx, session)
	return ret.Error(0)
}

var _ remote.TaskAPI = &MockTaskAPI{}
