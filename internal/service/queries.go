package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heapql/internal/oql"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
)

// queryFile is the YAML layout of an exported query library.
type queryFile struct {
	Queries []*model.SavedQuery `yaml:"queries"`
}

// ImportReport counts the outcome of ImportQueries.
type ImportReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func validateQuery(q *model.SavedQuery) error {
	if q == nil || strings.TrimSpace(q.Name) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "query name is required")
	}
	if _, err := oql.Parse(q.Query); err != nil {
		return apperrors.Wrap(apperrors.CodeParseError, fmt.Sprintf("query %q does not parse", q.Name), err)
	}
	return nil
}

// SaveQuery adds a query to the library after checking that it parses.
func (s *Service) SaveQuery(ctx context.Context, q *model.SavedQuery) error {
	if err := s.requireDatabase(); err != nil {
		return err
	}
	if err := validateQuery(q); err != nil {
		return err
	}
	return s.repos.Queries.Create(ctx, q)
}

// UpdateQuery replaces the text, description and tags of a saved query
// identified by name.
func (s *Service) UpdateQuery(ctx context.Context, q *model.SavedQuery) error {
	if err := s.requireDatabase(); err != nil {
		return err
	}
	if err := validateQuery(q); err != nil {
		return err
	}
	existing, err := s.repos.Queries.GetByName(ctx, q.Name)
	if err != nil {
		return err
	}
	q.ID = existing.ID
	q.CreatedAt = existing.CreatedAt
	return s.repos.Queries.Update(ctx, q)
}

// GetQuery returns a saved query by name.
func (s *Service) GetQuery(ctx context.Context, name string) (*model.SavedQuery, error) {
	if err := s.requireDatabase(); err != nil {
		return nil, err
	}
	return s.repos.Queries.GetByName(ctx, name)
}

// ListQueries lists saved queries, optionally only those carrying tag.
func (s *Service) ListQueries(ctx context.Context, tag string) ([]*model.SavedQuery, error) {
	if err := s.requireDatabase(); err != nil {
		return nil, err
	}
	all, err := s.repos.Queries.List(ctx)
	if err != nil || tag == "" {
		return all, err
	}
	out := make([]*model.SavedQuery, 0, len(all))
	for _, q := range all {
		if q.HasTag(tag) {
			out = append(out, q)
		}
	}
	return out, nil
}

// DeleteQuery removes a saved query by name.
func (s *Service) DeleteQuery(ctx context.Context, name string) error {
	q, err := s.GetQuery(ctx, name)
	if err != nil {
		return err
	}
	return s.repos.Queries.Delete(ctx, q.ID)
}

// RunSavedQuery executes the saved query name against snapshot.
func (s *Service) RunSavedQuery(ctx context.Context, name, snapshot string, limit int) (*model.QueryResult, error) {
	q, err := s.GetQuery(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, &model.QueryRequest{Snapshot: snapshot, Query: q.Query, Limit: limit})
}

// ImportQueries reads a YAML query library. Existing names are updated when
// overwrite is set and skipped otherwise. Every query is validated before
// any is stored.
func (s *Service) ImportQueries(ctx context.Context, r io.Reader, overwrite bool) (*ImportReport, error) {
	if err := s.requireDatabase(); err != nil {
		return nil, err
	}
	var file queryFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid query file", err)
	}
	for _, q := range file.Queries {
		if err := validateQuery(q); err != nil {
			return nil, err
		}
	}

	report := &ImportReport{}
	for _, q := range file.Queries {
		existing, err := s.repos.Queries.GetByName(ctx, q.Name)
		switch {
		case apperrors.IsNotFound(err):
			if err := s.repos.Queries.Create(ctx, q); err != nil {
				return report, err
			}
			report.Created++
		case err != nil:
			return report, err
		case overwrite:
			q.ID = existing.ID
			q.CreatedAt = existing.CreatedAt
			if err := s.repos.Queries.Update(ctx, q); err != nil {
				return report, err
			}
			report.Updated++
		default:
			report.Skipped++
		}
	}
	s.logger.Info("Imported queries: %d created, %d updated, %d skipped", report.Created, report.Updated, report.Skipped)
	return report, nil
}

// ExportQueries writes the query library as YAML.
func (s *Service) ExportQueries(ctx context.Context, w io.Writer) error {
	queries, err := s.ListQueries(ctx, "")
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(queryFile{Queries: queries}); err != nil {
		return fmt.Errorf("failed to encode queries: %w", err)
	}
	return enc.Close()
}
