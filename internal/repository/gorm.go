package repository

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSavedQueryRepository implements SavedQueryRepository using GORM.
type GormSavedQueryRepository struct {
	db *gorm.DB
}

// NewGormSavedQueryRepository creates a new GormSavedQueryRepository.
func NewGormSavedQueryRepository(db *gorm.DB) *GormSavedQueryRepository {
	return &GormSavedQueryRepository{db: db}
}

// Create stores a new saved query.
func (r *GormSavedQueryRepository) Create(ctx context.Context, q *model.SavedQuery) error {
	if strings.TrimSpace(q.Name) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "query name is required")
	}
	rec, err := newSavedQueryRecord(q)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid tags", err)
	}
	rec.ID = 0

	var count int64
	if err := r.db.WithContext(ctx).Model(&SavedQueryRecord{}).Where("name = ?", q.Name).Count(&count).Error; err != nil {
		return dbError("failed to check query name", err)
	}
	if count > 0 {
		return apperrors.New(apperrors.CodeAlreadyExists, "query already exists: "+q.Name)
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return dbError("failed to create query", err)
	}
	q.ID = rec.ID
	q.CreatedAt = rec.CreatedAt
	q.UpdatedAt = rec.UpdatedAt
	return nil
}

// Get retrieves a saved query by ID.
func (r *GormSavedQueryRepository) Get(ctx context.Context, id int64) (*model.SavedQuery, error) {
	var rec SavedQueryRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("query not found: %d", id)
		}
		return nil, dbError("failed to get query", err)
	}
	q, err := rec.ToModel()
	if err != nil {
		return nil, dbError("failed to decode query", err)
	}
	return q, nil
}

// GetByName retrieves a saved query by name.
func (r *GormSavedQueryRepository) GetByName(ctx context.Context, name string) (*model.SavedQuery, error) {
	var rec SavedQueryRecord
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("query not found: %s", name)
		}
		return nil, dbError("failed to get query", err)
	}
	q, err := rec.ToModel()
	if err != nil {
		return nil, dbError("failed to decode query", err)
	}
	return q, nil
}

// List returns all saved queries ordered by name.
func (r *GormSavedQueryRepository) List(ctx context.Context) ([]*model.SavedQuery, error) {
	var recs []SavedQueryRecord
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, dbError("failed to list queries", err)
	}
	out := make([]*model.SavedQuery, len(recs))
	for i := range recs {
		q, err := recs[i].ToModel()
		if err != nil {
			return nil, dbError("failed to decode query", err)
		}
		out[i] = q
	}
	return out, nil
}

// Update modifies an existing saved query.
func (r *GormSavedQueryRepository) Update(ctx context.Context, q *model.SavedQuery) error {
	rec, err := newSavedQueryRecord(q)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid tags", err)
	}
	result := r.db.WithContext(ctx).
		Model(&SavedQueryRecord{}).
		Where("id = ?", q.ID).
		Updates(map[string]interface{}{
			"name":        rec.Name,
			"description": rec.Description,
			"query":       rec.Query,
			"tags":        rec.Tags,
		})
	if result.Error != nil {
		return dbError("failed to update query", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("query not found: %d", q.ID)
	}
	return nil
}

// Delete removes a saved query.
func (r *GormSavedQueryRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&SavedQueryRecord{})
	if result.Error != nil {
		return dbError("failed to delete query", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("query not found: %d", id)
	}
	return nil
}

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// SaveRun upserts a query run.
func (r *GormRunRepository) SaveRun(ctx context.Context, run *model.QueryRun) error {
	rec := newQueryRunRecord(run)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "row_count", "truncated", "error_code", "error", "duration_ms"}),
	}).Create(rec).Error
	if err != nil {
		return dbError("failed to save run", err)
	}
	return nil
}

// GetRun retrieves a query run by ID.
func (r *GormRunRepository) GetRun(ctx context.Context, id string) (*model.QueryRun, error) {
	var rec QueryRunRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("run not found: %s", id)
		}
		return nil, dbError("failed to get run", err)
	}
	return rec.ToModel(), nil
}

// ListRuns returns recent runs, newest first.
func (r *GormRunRepository) ListRuns(ctx context.Context, snapshot string, limit int) ([]*model.QueryRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if snapshot != "" {
		q = q.Where("snapshot = ?", snapshot)
	}
	var recs []QueryRunRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, dbError("failed to list runs", err)
	}
	out := make([]*model.QueryRun, len(recs))
	for i := range recs {
		out[i] = recs[i].ToModel()
	}
	return out, nil
}
