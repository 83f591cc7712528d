package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/heapql/internal/mock"
	"github.com/heapql/internal/storage"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
	"github.com/heapql/pkg/utils"
)

type mocks struct {
	storage *mock.MockStorage
	queries *mock.MockSavedQueryRepository
	runs    *mock.MockRunRepository
}

func newMockedService(t *testing.T) (*Service, *mocks) {
	t.Helper()
	m := &mocks{
		storage: &mock.MockStorage{},
		queries: &mock.MockSavedQueryRepository{},
		runs:    &mock.MockRunRepository{},
	}
	svc, err := New(testConfig(t), &utils.NullLogger{},
		WithStorage(m.storage),
		WithRepositories(mock.NewRepositories(m.queries, m.runs)))
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() {
		svc.Close()
		m.storage.AssertExpectations(t)
		m.queries.AssertExpectations(t)
		m.runs.AssertExpectations(t)
	})
	return svc, m
}

func writeSampleDump(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), testSnapshot)
	require.NoError(t, os.WriteFile(path, sampleDump(), 0644))
	return path
}

func TestMocked_ExecuteRecordsRun(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectStat(testSnapshot, 100, nil).Once()
	m.storage.ExpectFetch(testSnapshot, writeSampleDump(t), nil).Once()
	m.runs.On("SaveRun", tmock.Anything, tmock.MatchedBy(func(r *model.QueryRun) bool {
		return r.Status == model.RunStatusSucceeded && r.Rows == 2 && r.Snapshot == testSnapshot
	})).Return(nil).Once()

	res, err := svc.Execute(context.Background(), queryReq("select s from java.lang.String s"))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestMocked_DuplicateRunIsNotRecorded(t *testing.T) {
	svc, m := newMockedService(t)

	// Stands in for a run that is still executing.
	require.NoError(t, svc.track("run-1", func() {}))
	defer svc.untrack("run-1")

	req := queryReq("select 1")
	req.RunID = "run-1"
	_, err := svc.Execute(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsAlreadyExists(err))
	m.runs.AssertNotCalled(t, "SaveRun", tmock.Anything, tmock.Anything)
	m.storage.AssertNotCalled(t, "Stat", tmock.Anything, tmock.Anything)
}

func TestMocked_SaveRunFailureIsNotFatal(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectStat(testSnapshot, 100, nil).Once()
	m.storage.ExpectFetch(testSnapshot, writeSampleDump(t), nil).Once()
	m.runs.ExpectAnySaveRun(errors.New("database is locked")).Twice()

	_, err := svc.Execute(context.Background(), queryReq("select 1"))
	require.NoError(t, err)

	// The second run reuses the loaded snapshot.
	_, err = svc.Execute(context.Background(), queryReq("select 2"))
	require.NoError(t, err)
}

func TestMocked_FailedRunIsRecorded(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectStat(testSnapshot, 100, nil).Once()
	m.storage.ExpectFetch(testSnapshot, writeSampleDump(t), nil).Once()
	m.runs.On("SaveRun", tmock.Anything, tmock.MatchedBy(func(r *model.QueryRun) bool {
		return r.Status == model.RunStatusFailed && r.ErrorCode == apperrors.CodeParseError
	})).Return(nil).Once()

	_, err := svc.Execute(context.Background(), queryReq("select from where"))
	assert.True(t, apperrors.IsParseError(err))
}

func TestMocked_EmptyDumpIsNotFetched(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectStat("empty.hprof", 0, nil).Once()

	_, err := svc.LoadSnapshot(context.Background(), "empty.hprof")
	assert.Equal(t, apperrors.CodeEmptyFile, apperrors.GetErrorCode(err))
	m.storage.AssertNotCalled(t, "Fetch", tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestMocked_FetchError(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectStat(testSnapshot, 100, nil).Once()
	m.storage.ExpectFetch(testSnapshot, "", apperrors.New(apperrors.CodeStorageError, "connection reset")).Once()

	_, err := svc.LoadSnapshot(context.Background(), testSnapshot)
	assert.True(t, apperrors.IsStorageError(err))
}

func TestMocked_ListSnapshots(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectList([]storage.ObjectInfo{
		{Key: "a.hprof", Size: 10},
		{Key: "exports/run.json.gz", Size: 3},
		{Key: "b.hprof.gz", Size: 20},
		{Key: "readme.md", Size: 1},
	}, nil).Once()

	infos, err := svc.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a.hprof", infos[0].Key)
	assert.Equal(t, int64(20), infos[1].Size)

	m.storage.ExpectList(nil, apperrors.New(apperrors.CodeStorageError, "access denied")).Once()
	_, err = svc.ListSnapshots(context.Background())
	assert.True(t, apperrors.IsStorageError(err))
}

func TestMocked_ExportResult(t *testing.T) {
	svc, m := newMockedService(t)
	m.storage.ExpectPut("exports/run-9.json.gz", nil).Once()

	key, err := svc.ExportResult(context.Background(), &model.QueryResult{RunID: "run-9"})
	require.NoError(t, err)
	assert.Equal(t, "exports/run-9.json.gz", key)

	m.storage.ExpectAnyPut(apperrors.New(apperrors.CodeStorageError, "bucket full")).Once()
	_, err = svc.ExportResult(context.Background(), &model.QueryResult{RunID: "run-10"})
	assert.True(t, apperrors.IsStorageError(err))
}

func TestMocked_SavedQueries(t *testing.T) {
	svc, m := newMockedService(t)
	ctx := context.Background()

	m.queries.On("GetByName", tmock.Anything, "gone").
		Return(nil, apperrors.New(apperrors.CodeNotFound, "saved query not found: gone")).Once()
	assert.True(t, apperrors.IsNotFound(svc.DeleteQuery(ctx, "gone")))

	existing := &model.SavedQuery{ID: 7, Name: "strings", Query: "select 1"}
	m.queries.On("GetByName", tmock.Anything, "strings").Return(existing, nil).Once()
	m.queries.On("Delete", tmock.Anything, int64(7)).Return(nil).Once()
	require.NoError(t, svc.DeleteQuery(ctx, "strings"))

	m.queries.On("List", tmock.Anything).Return([]*model.SavedQuery{
		{Name: "a", Tags: []string{"Leaks"}},
		{Name: "b"},
	}, nil).Once()
	list, err := svc.ListQueries(ctx, "leaks")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Name)

	// Invalid queries never reach the repository.
	err = svc.SaveQuery(ctx, &model.SavedQuery{Name: "bad", Query: "select from where"})
	assert.True(t, apperrors.IsParseError(err))
	m.queries.AssertNotCalled(t, "Create", tmock.Anything, tmock.Anything)
}

func TestMocked_HealthCheckWithoutDatabaseHandle(t *testing.T) {
	svc, _ := newMockedService(t)
	assert.NoError(t, svc.HealthCheck(context.Background()))
}
