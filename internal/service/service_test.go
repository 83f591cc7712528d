package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapql/internal/storage"
	"github.com/heapql/pkg/config"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/utils"
)

func TestService_New(t *testing.T) {
	t.Run("WithLogger", func(t *testing.T) {
		logger := utils.NewDefaultLogger(utils.LevelInfo, nil)
		svc, err := New(config.Default(), logger)
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Empty(t, svc.Stats().LoadedSnapshots)
	})

	t.Run("WithoutConfigOrLogger", func(t *testing.T) {
		svc, err := New(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1000, svc.Config().Engine.ResultLimit)
	})
}

func TestService_Initialize(t *testing.T) {
	svc := newTestService(t)

	assert.IsType(t, &storage.LocalStorage{}, svc.Storage())
	assert.NoError(t, svc.HealthCheck(context.Background()))

	stats := svc.Stats()
	assert.Equal(t, "sqlite", stats.Database)
	assert.Zero(t, stats.RunningQueries)
}

func TestService_InitializeWithoutDatabase(t *testing.T) {
	svc := newTestService(t, func(c *config.Config) { c.Database.Type = "none" })
	ctx := context.Background()

	assert.Equal(t, "none", svc.Stats().Database)
	assert.NoError(t, svc.HealthCheck(ctx))

	_, err := svc.ListQueries(ctx, "")
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
	_, err = svc.ListRuns(ctx, "", 10)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))

	// Queries still run; the run history is skipped.
	res, err := svc.Execute(ctx, queryReq("select h from com.example.Holder h"))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestService_InitializeBadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "cos"
	svc, err := New(cfg, &utils.NullLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	err = svc.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize storage")
}
