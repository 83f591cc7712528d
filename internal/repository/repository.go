// Package repository persists saved queries and query run history.
package repository

import (
	"context"
	"fmt"

	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
)

// SavedQueryRepository defines the operations on the saved query library.
type SavedQueryRepository interface {
	// Create stores a new query and fills in its ID and timestamps.
	Create(ctx context.Context, q *model.SavedQuery) error

	// Get retrieves a query by its ID.
	Get(ctx context.Context, id int64) (*model.SavedQuery, error)

	// GetByName retrieves a query by its unique name.
	GetByName(ctx context.Context, name string) (*model.SavedQuery, error)

	// List returns all queries ordered by name.
	List(ctx context.Context) ([]*model.SavedQuery, error)

	// Update replaces the name, description, text and tags of a query.
	Update(ctx context.Context, q *model.SavedQuery) error

	// Delete removes a query.
	Delete(ctx context.Context, id int64) error
}

// RunRepository defines the operations on query run history.
type RunRepository interface {
	// SaveRun inserts a run or updates it when the ID already exists.
	SaveRun(ctx context.Context, run *model.QueryRun) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (*model.QueryRun, error)

	// ListRuns returns the most recent runs, optionally restricted to a snapshot.
	ListRuns(ctx context.Context, snapshot string, limit int) ([]*model.QueryRun, error)
}

func notFound(format string, args ...interface{}) error {
	return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf(format, args...))
}

func dbError(msg string, err error) error {
	return apperrors.Wrap(apperrors.CodeDatabaseError, msg, err)
}
