package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/utils"
)

func countingLoader(loads *atomic.Int32) loadFunc {
	return func(_ context.Context, key string) (*Snapshot, error) {
		loads.Add(1)
		if key == "broken" {
			return nil, errors.New("boom")
		}
		return &Snapshot{Key: key}, nil
	}
}

func TestSnapshotCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var loads atomic.Int32
	c := newSnapshotCache(2, countingLoader(&loads), &utils.NullLogger{})
	ctx := context.Background()

	for _, k := range []string{"a", "b", "a", "c"} {
		_, err := c.Get(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"c", "a"}, c.Keys())
	assert.Equal(t, int32(3), loads.Load())

	_, ok := c.Peek("b")
	assert.False(t, ok)

	_, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int32(4), loads.Load())
	assert.Equal(t, []string{"b", "c"}, c.Keys())

	assert.True(t, c.Remove("c"))
	assert.False(t, c.Remove("c"))
	assert.Equal(t, 1, c.Len())
}

func TestSnapshotCache_ErrorsAreNotCached(t *testing.T) {
	var loads atomic.Int32
	c := newSnapshotCache(0, countingLoader(&loads), &utils.NullLogger{})

	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "broken")
		assert.EqualError(t, err, "boom")
	}
	assert.Equal(t, int32(2), loads.Load())
	assert.Zero(t, c.Len())
}

func TestSnapshotCache_SharesConcurrentLoads(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	var loads atomic.Int32
	c := newSnapshotCache(1, func(_ context.Context, key string) (*Snapshot, error) {
		loads.Add(1)
		<-release
		return &Snapshot{Key: key}, nil
	}, &utils.NullLogger{})

	var wg sync.WaitGroup
	results := make([]*Snapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Get(context.Background(), "dump")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	require.Eventually(t, func() bool { return loads.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

func TestService_Snapshots(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	list, err := svc.ListSnapshots(ctx)
	require.NoError(t, err)
	keys := make([]string, len(list))
	for i, s := range list {
		keys[i] = s.Key
		assert.False(t, s.Loaded)
	}
	assert.Equal(t, []string{"app.hprof", "bad.hprof", "empty.hprof"}, keys)

	info, err := svc.LoadSnapshot(ctx, testSnapshot)
	require.NoError(t, err)
	assert.True(t, info.Loaded)
	assert.Equal(t, 6, info.Instances)
	assert.Equal(t, 3, info.Roots)
	assert.Positive(t, info.Classes)
	assert.Equal(t, []string{testSnapshot}, svc.Stats().LoadedSnapshots)

	list, err = svc.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.True(t, list[0].Loaded)
	assert.Positive(t, list[0].Size)

	assert.True(t, svc.UnloadSnapshot(testSnapshot))
	assert.False(t, svc.UnloadSnapshot(testSnapshot))

	_, err = svc.LoadSnapshot(ctx, "../etc/passwd")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}
