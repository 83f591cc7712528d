package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/heapql/internal/heap"
	"github.com/heapql/internal/oql"
	"github.com/heapql/pkg/compression"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
	"github.com/heapql/pkg/parallel"
	"github.com/heapql/pkg/telemetry"
	"github.com/heapql/pkg/writer"
)

// Execute runs a query against a snapshot and renders up to the request's
// limit of rows. A query producing more rows than the limit is stopped and
// the result is marked truncated. Every run is recorded in the run history
// when a database is configured.
func (s *Service) Execute(ctx context.Context, req *model.QueryRequest) (result *model.QueryResult, err error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "query is required")
	}
	if req.Snapshot == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "snapshot is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.Engine.ResultLimit
	}
	runID := req.RunID
	if runID == "" {
		runID = s.newID()
	}
	run := model.NewQueryRun(runID, req.Snapshot, req.Query)

	// Duplicate run IDs fail before the run record is deferred.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.track(runID, cancel); err != nil {
		return nil, err
	}
	defer s.untrack(runID)

	ctx, span := telemetry.StartSpan(ctx, "service.Execute",
		telemetry.AttrSnapshot.String(req.Snapshot),
		telemetry.AttrQuery.String(req.Query))
	defer func() {
		s.finishRun(ctx, run, result, err)
		if result != nil {
			span.SetAttributes(telemetry.AttrRows.Int(len(result.Rows)), telemetry.AttrTruncated.Bool(result.Truncated))
		}
		if err != nil {
			span.SetAttributes(telemetry.AttrErrorCode.String(apperrors.GetErrorCode(err)))
		}
		telemetry.EndSpan(span, err)
	}()

	if timeout := s.config.Engine.QueryTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	snap, err := s.snapshots.Get(ctx, req.Snapshot)
	if err != nil {
		return nil, contextError(ctx, err)
	}

	var output bytes.Buffer
	engine := s.newEngine(snap.Heap, oql.WithOutput(&output))

	result = &model.QueryResult{RunID: runID, Snapshot: req.Snapshot, Query: req.Query, Rows: []model.ResultRow{}}
	err = engine.ExecuteQuery(ctx, req.Query, oql.VisitorFunc(func(v interface{}) bool {
		if len(result.Rows) >= limit {
			result.Truncated = true
			return true
		}
		result.Rows = append(result.Rows, renderRow(v))
		return false
	}))
	result.Output = output.String()
	result.ElapsedMs = time.Since(run.StartedAt).Milliseconds()
	if err != nil {
		return nil, contextError(ctx, err)
	}
	return result, nil
}

// contextError reports failures caused by the run's context as timeouts or
// cancellations.
func contextError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.CodeTimeout, "query timed out", err)
	case ctx.Err() != nil && !apperrors.IsCancelled(err):
		return apperrors.Wrap(apperrors.CodeQueryCancelled, "query cancelled", err)
	}
	return err
}

func (s *Service) newEngine(h *heap.Heap, opts ...oql.Option) *oql.Engine {
	base := []oql.Option{
		oql.WithLogger(s.logger),
		oql.WithReachableExcludes(s.config.Engine.ReachableExcludes...),
	}
	if s.config.Engine.MaxLivePaths > 0 {
		base = append(base, oql.WithMaxPaths(s.config.Engine.MaxLivePaths))
	}
	return oql.NewEngine(h, append(base, opts...)...)
}

func renderRow(v interface{}) model.ResultRow {
	row := model.ResultRow{
		Text:     oql.FormatText(v),
		HTML:     oql.FormatHTML(v),
		ObjectID: oql.ObjectIDOf(v),
	}
	switch v.(type) {
	case string, bool, float64, float32, int64, int32, int16, int8, int, uint64:
		row.Value = v
	}
	return row
}

func (s *Service) track(runID string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[runID]; ok {
		return apperrors.New(apperrors.CodeAlreadyExists, "run is already executing: "+runID)
	}
	s.running[runID] = cancel
	return nil
}

func (s *Service) untrack(runID string) {
	s.mu.Lock()
	delete(s.running, runID)
	s.mu.Unlock()
}

// Cancel stops an executing run.
func (s *Service) Cancel(runID string) error {
	s.mu.Lock()
	cancel, ok := s.running[runID]
	s.mu.Unlock()
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "run is not executing: "+runID)
	}
	cancel()
	s.logger.Info("Cancelled run %s", runID)
	return nil
}

func (s *Service) finishRun(ctx context.Context, run *model.QueryRun, result *model.QueryResult, err error) {
	switch {
	case err == nil:
		run.Finish(model.RunStatusSucceeded, result.Len(), result.Truncated)
	case apperrors.IsCancelled(err):
		run.Finish(model.RunStatusCancelled, 0, false)
	default:
		run.Finish(model.RunStatusFailed, 0, false)
	}
	if err != nil {
		run.ErrorCode = apperrors.GetErrorCode(err)
		run.Error = err.Error()
		s.logger.Warn("Run %s failed: %v", run.ID, err)
	} else {
		s.logger.Debug("Run %s returned %d rows in %v", run.ID, run.Rows, run.Duration)
	}

	if s.repos == nil {
		return
	}
	if serr := s.repos.Runs.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
		s.logger.Error("Failed to record run %s: %v", run.ID, serr)
	}
}

// RunBatch runs several queries concurrently against one snapshot. Query
// failures are reported per query; the returned error covers only the
// snapshot itself.
func (s *Service) RunBatch(ctx context.Context, snapshot string, queries []string, limit int) ([]model.BatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.RunBatch",
		telemetry.AttrSnapshot.String(snapshot),
		attribute.Int("heapql.batch_size", len(queries)))
	defer span.End()

	if _, err := s.snapshots.Get(ctx, snapshot); err != nil {
		return nil, err
	}

	pool := parallel.DefaultPoolConfig().WithWorkers(s.config.Engine.Parallelism)
	return parallel.Map(ctx, pool, queries, func(ctx context.Context, _ int, q string) (model.BatchResult, error) {
		res, err := s.Execute(ctx, &model.QueryRequest{Snapshot: snapshot, Query: q, Limit: limit})
		br := model.BatchResult{Query: q, Result: res}
		if err != nil {
			br.ErrorCode = apperrors.GetErrorCode(err)
			br.Error = err.Error()
		}
		return br, nil
	})
}

// GetRun returns a recorded run.
func (s *Service) GetRun(ctx context.Context, id string) (*model.QueryRun, error) {
	if err := s.requireDatabase(); err != nil {
		return nil, err
	}
	return s.repos.Runs.GetRun(ctx, id)
}

// ListRuns returns the most recent runs, optionally for one snapshot.
func (s *Service) ListRuns(ctx context.Context, snapshot string, limit int) ([]*model.QueryRun, error) {
	if err := s.requireDatabase(); err != nil {
		return nil, err
	}
	return s.repos.Runs.ListRuns(ctx, snapshot, limit)
}

// ExportResult writes result as JSON into storage under exports/ and
// returns the object key. The configured export compression applies.
func (s *Service) ExportResult(ctx context.Context, result *model.QueryResult) (string, error) {
	if result == nil {
		return "", apperrors.New(apperrors.CodeInvalidInput, "result is required")
	}
	w := writer.NewCompressedJSONWriter[*model.QueryResult](compression.ParseType(s.config.Engine.ExportCompression))
	data, stats, err := w.EncodeWithStats(result)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUnknown, "failed to encode result", err)
	}
	key := "exports/" + result.RunID + w.Extension()
	if err := s.storage.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", err
	}
	s.logger.Info("Exported run %s to %s (%d bytes, %.1f%% of JSON)", result.RunID, key, stats.CompressedSize, stats.CompressionPct)
	return key, nil
}

func (s *Service) requireDatabase() error {
	if s.repos == nil {
		return apperrors.New(apperrors.CodeConfigError, "no database configured")
	}
	return nil
}
