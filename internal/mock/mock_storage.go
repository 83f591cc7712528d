// Package mock provides testify mocks of the storage and repository
// interfaces.
package mock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/heapql/internal/storage"
)

// MockStorage is a mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

// Open mocks the Open method.
func (m *MockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Put mocks the Put method.
func (m *MockStorage) Put(ctx context.Context, key string, r io.Reader) error {
	args := m.Called(ctx, key, r)
	return args.Error(0)
}

// Stat mocks the Stat method.
func (m *MockStorage) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ObjectInfo), args.Error(1)
}

// List mocks the List method.
func (m *MockStorage) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ObjectInfo), args.Error(1)
}

// Fetch mocks the Fetch method.
func (m *MockStorage) Fetch(ctx context.Context, key, cacheDir string) (string, error) {
	args := m.Called(ctx, key, cacheDir)
	return args.String(0), args.Error(1)
}

// Delete mocks the Delete method.
func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// URL mocks the URL method.
func (m *MockStorage) URL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// ExpectStat sets up an expectation for Stat of key.
func (m *MockStorage) ExpectStat(key string, size int64, err error) *mock.Call {
	if err != nil {
		return m.On("Stat", mock.Anything, key).Return(nil, err)
	}
	return m.On("Stat", mock.Anything, key).Return(&storage.ObjectInfo{Key: key, Size: size}, nil)
}

// ExpectFetch sets up an expectation for Fetch of key returning path.
func (m *MockStorage) ExpectFetch(key, path string, err error) *mock.Call {
	return m.On("Fetch", mock.Anything, key, mock.Anything).Return(path, err)
}

// ExpectList sets up an expectation for a List of the whole store.
func (m *MockStorage) ExpectList(objects []storage.ObjectInfo, err error) *mock.Call {
	return m.On("List", mock.Anything, "").Return(objects, err)
}

// ExpectPut sets up an expectation for Put of key.
func (m *MockStorage) ExpectPut(key string, err error) *mock.Call {
	return m.On("Put", mock.Anything, key, mock.Anything).Return(err)
}

// ExpectAnyPut sets up an expectation for any Put call.
func (m *MockStorage) ExpectAnyPut(err error) *mock.Call {
	return m.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(err)
}
