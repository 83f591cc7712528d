package repository

import "database/sql"

// NewPostgresRunRepository creates a RunRepository for PostgreSQL.
func NewPostgresRunRepository(db *sql.DB) *SQLRunRepository {
	return &SQLRunRepository{
		db: db,
		stmts: runStatements{
			upsert: `
		INSERT INTO query_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			row_count = EXCLUDED.row_count,
			truncated = EXCLUDED.truncated,
			error_code = EXCLUDED.error_code,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms
	`,
			get: `SELECT ` + runColumns + ` FROM query_runs WHERE id = $1`,
			list: `SELECT ` + runColumns + ` FROM query_runs
		ORDER BY started_at DESC LIMIT $1`,
			listSnapshot: `SELECT ` + runColumns + ` FROM query_runs
		WHERE snapshot = $1 ORDER BY started_at DESC LIMIT $2`,
		},
	}
}
