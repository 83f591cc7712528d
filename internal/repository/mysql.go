package repository

import "database/sql"

// NewMySQLRunRepository creates a RunRepository for MySQL.
func NewMySQLRunRepository(db *sql.DB) *SQLRunRepository {
	return &SQLRunRepository{
		db: db,
		stmts: runStatements{
			upsert: `
		INSERT INTO query_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			row_count = VALUES(row_count),
			truncated = VALUES(truncated),
			error_code = VALUES(error_code),
			error = VALUES(error),
			duration_ms = VALUES(duration_ms)
	`,
			get: `SELECT ` + runColumns + ` FROM query_runs WHERE id = ?`,
			list: `SELECT ` + runColumns + ` FROM query_runs
		ORDER BY started_at DESC LIMIT ?`,
			listSnapshot: `SELECT ` + runColumns + ` FROM query_runs
		WHERE snapshot = ? ORDER BY started_at DESC LIMIT ?`,
		},
	}
}
