package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heapql/pkg/model"
)

// runStatements holds the dialect specific SQL of a SQLRunRepository.
type runStatements struct {
	upsert       string
	get          string
	list         string
	listSnapshot string
}

// SQLRunRepository implements RunRepository over database/sql.
type SQLRunRepository struct {
	db    *sql.DB
	stmts runStatements
}

// SaveRun inserts or updates a query run.
func (r *SQLRunRepository) SaveRun(ctx context.Context, run *model.QueryRun) error {
	_, err := r.db.ExecContext(ctx, r.stmts.upsert,
		run.ID, run.Snapshot, run.Query, int(run.Status), run.Rows, run.Truncated,
		run.ErrorCode, run.Error, run.StartedAt, run.Duration.Milliseconds(),
	)
	if err != nil {
		return dbError("failed to save run", err)
	}
	return nil
}

// GetRun retrieves a query run by ID.
func (r *SQLRunRepository) GetRun(ctx context.Context, id string) (*model.QueryRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, r.stmts.get, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("run not found: %s", id)
		}
		return nil, dbError("failed to get run", err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (r *SQLRunRepository) ListRuns(ctx context.Context, snapshot string, limit int) ([]*model.QueryRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if snapshot == "" {
		rows, err = r.db.QueryContext(ctx, r.stmts.list, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, r.stmts.listSnapshot, snapshot, limit)
	}
	if err != nil {
		return nil, dbError("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*model.QueryRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, dbError("failed to scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("failed to list runs", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*model.QueryRun, error) {
	run := &model.QueryRun{}
	var (
		status     int
		errorCode  sql.NullString
		errorText  sql.NullString
		durationMs int64
	)
	err := s.Scan(
		&run.ID, &run.Snapshot, &run.Query, &status, &run.Rows, &run.Truncated,
		&errorCode, &errorText, &run.StartedAt, &durationMs,
	)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	run.ErrorCode = errorCode.String
	run.Error = errorText.String
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}

const runColumns = `id, snapshot, query, status, row_count, truncated, error_code, error, started_at, duration_ms`
