// Package storagemock has testify mocks for the storage package.
package storagemock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/stefando/pdf2img/internal/storage"
)

// MockObjectStore is a mock of storage.ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

// Upload provides a mock function.
func (m *MockObjectStore) Upload(ctx context.Context, body io.Reader, originalName string) (*storage.Object, error) {
	ret := m.Called(ctx, body, originalName)

	var r0 *storage.Object
	if rf, ok := ret.Get(0).(func(context.Context, io.Reader, string) *storage.Object); ok {
		r0 = rf(ctx, body, originalName)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*storage.Object)
	}

	return r0, ret.Error(1)
}

// Download provides a mock function.
func (m *MockObjectStore) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	ret := m.Called(ctx, name)

	var r0 io.ReadCloser
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(io.ReadCloser)
	}

	return r0, ret.Error(1)
}

var _ storage.ObjectStore = &MockObjectStore{}
