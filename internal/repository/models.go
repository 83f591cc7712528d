package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heapql/pkg/model"
)

// SavedQueryRecord represents the saved_queries table.
type SavedQueryRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;type:varchar(128);uniqueIndex"`
	Description string    `gorm:"column:description;type:text"`
	Query       string    `gorm:"column:query;type:text"`
	Tags        JSONField `gorm:"column:tags;type:json"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for SavedQueryRecord.
func (SavedQueryRecord) TableName() string {
	return "saved_queries"
}

// ToModel converts SavedQueryRecord to model.SavedQuery. A tags column that
// is not a JSON string array is an error.
func (r *SavedQueryRecord) ToModel() (*model.SavedQuery, error) {
	q := &model.SavedQuery{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Query:       r.Query,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Tags != nil {
		if err := json.Unmarshal(r.Tags, &q.Tags); err != nil {
			return nil, fmt.Errorf("invalid tags for query %q: %w", r.Name, err)
		}
	}
	return q, nil
}

func newSavedQueryRecord(q *model.SavedQuery) (*SavedQueryRecord, error) {
	rec := &SavedQueryRecord{
		ID:          q.ID,
		Name:        q.Name,
		Description: q.Description,
		Query:       q.Query,
	}
	if len(q.Tags) > 0 {
		tags, err := json.Marshal(q.Tags)
		if err != nil {
			return nil, err
		}
		rec.Tags = tags
	}
	return rec, nil
}

// QueryRunRecord represents the query_runs table.
type QueryRunRecord struct {
	ID         string          `gorm:"column:id;type:varchar(36);primaryKey"`
	Snapshot   string          `gorm:"column:snapshot;type:varchar(512);index"`
	Query      string          `gorm:"column:query;type:text"`
	Status     model.RunStatus `gorm:"column:status"`
	Rows       int             `gorm:"column:row_count"`
	Truncated  bool            `gorm:"column:truncated"`
	ErrorCode  string          `gorm:"column:error_code;type:varchar(32)"`
	Error      string          `gorm:"column:error;type:text"`
	StartedAt  time.Time       `gorm:"column:started_at;index"`
	DurationMs int64           `gorm:"column:duration_ms"`
}

// TableName returns the table name for QueryRunRecord.
func (QueryRunRecord) TableName() string {
	return "query_runs"
}

// ToModel converts QueryRunRecord to model.QueryRun.
func (r *QueryRunRecord) ToModel() *model.QueryRun {
	return &model.QueryRun{
		ID:        r.ID,
		Snapshot:  r.Snapshot,
		Query:     r.Query,
		Status:    r.Status,
		Rows:      r.Rows,
		Truncated: r.Truncated,
		ErrorCode: r.ErrorCode,
		Error:     r.Error,
		StartedAt: r.StartedAt,
		Duration:  time.Duration(r.DurationMs) * time.Millisecond,
	}
}

func newQueryRunRecord(run *model.QueryRun) *QueryRunRecord {
	return &QueryRunRecord{
		ID:         run.ID,
		Snapshot:   run.Snapshot,
		Query:      run.Query,
		Status:     run.Status,
		Rows:       run.Rows,
		Truncated:  run.Truncated,
		ErrorCode:  run.ErrorCode,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		DurationMs: run.Duration.Milliseconds(),
	}
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = JSONField(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}
