// Package model defines the data structures shared by the query service,
// the repositories and the outer surfaces.
package model

import (
	"strings"
	"time"
)

// SavedQuery is a named OQL query kept in the query library.
type SavedQuery struct {
	ID          int64     `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Query       string    `json:"query" yaml:"query"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// HasTag reports whether the query carries tag (case-insensitive).
func (q *SavedQuery) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// RunStatus is the outcome of a query run.
type RunStatus int

const (
	RunStatusRunning   RunStatus = 0
	RunStatusSucceeded RunStatus = 1
	RunStatusFailed    RunStatus = 2
	RunStatusCancelled RunStatus = 3
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	switch s {
	case RunStatusRunning:
		return "running"
	case RunStatusSucceeded:
		return "succeeded"
	case RunStatusFailed:
		return "failed"
	case RunStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsFinal reports whether the run has finished.
func (s RunStatus) IsFinal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCancelled
}

// QueryRun records one execution of a query against a snapshot.
type QueryRun struct {
	ID        string        `json:"id"`
	Snapshot  string        `json:"snapshot"`
	Query     string        `json:"query"`
	Status    RunStatus     `json:"status"`
	Rows      int           `json:"rows"`
	Truncated bool          `json:"truncated"`
	ErrorCode string        `json:"error_code,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// NewQueryRun creates a running QueryRun.
func NewQueryRun(id, snapshot, query string) *QueryRun {
	return &QueryRun{
		ID:        id,
		Snapshot:  snapshot,
		Query:     query,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Finish records the outcome of the run.
func (r *QueryRun) Finish(status RunStatus, rows int, truncated bool) {
	r.Status = status
	r.Rows = rows
	r.Truncated = truncated
	r.Duration = time.Since(r.StartedAt)
}
