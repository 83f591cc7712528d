package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/heapql/internal/repository"
	"github.com/heapql/pkg/model"
)

// MockSavedQueryRepository is a mock implementation of repository.SavedQueryRepository.
type MockSavedQueryRepository struct {
	mock.Mock
}

var _ repository.SavedQueryRepository = (*MockSavedQueryRepository)(nil)

// Create mocks the Create method.
func (m *MockSavedQueryRepository) Create(ctx context.Context, q *model.SavedQuery) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

// Get mocks the Get method.
func (m *MockSavedQueryRepository) Get(ctx context.Context, id int64) (*model.SavedQuery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SavedQuery), args.Error(1)
}

// GetByName mocks the GetByName method.
func (m *MockSavedQueryRepository) GetByName(ctx context.Context, name string) (*model.SavedQuery, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SavedQuery), args.Error(1)
}

// List mocks the List method.
func (m *MockSavedQueryRepository) List(ctx context.Context) ([]*model.SavedQuery, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SavedQuery), args.Error(1)
}

// Update mocks the Update method.
func (m *MockSavedQueryRepository) Update(ctx context.Context, q *model.SavedQuery) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

// Delete mocks the Delete method.
func (m *MockSavedQueryRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockRunRepository is a mock implementation of repository.RunRepository.
type MockRunRepository struct {
	mock.Mock
}

var _ repository.RunRepository = (*MockRunRepository)(nil)

// SaveRun mocks the SaveRun method.
func (m *MockRunRepository) SaveRun(ctx context.Context, run *model.QueryRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// GetRun mocks the GetRun method.
func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*model.QueryRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueryRun), args.Error(1)
}

// ListRuns mocks the ListRuns method.
func (m *MockRunRepository) ListRuns(ctx context.Context, snapshot string, limit int) ([]*model.QueryRun, error) {
	args := m.Called(ctx, snapshot, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.QueryRun), args.Error(1)
}

// ExpectAnySaveRun sets up an expectation for any SaveRun call.
func (m *MockRunRepository) ExpectAnySaveRun(err error) *mock.Call {
	return m.On("SaveRun", mock.Anything, mock.Anything).Return(err)
}

// NewRepositories bundles the mocks as repository.Repositories.
func NewRepositories(queries *MockSavedQueryRepository, runs *MockRunRepository) *repository.Repositories {
	return &repository.Repositories{Queries: queries, Runs: runs}
}
