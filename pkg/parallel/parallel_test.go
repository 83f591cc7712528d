package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	assert.GreaterOrEqual(t, cfg.MaxWorkers, 2)
	assert.LessOrEqual(t, cfg.MaxWorkers, 8)
	assert.Equal(t, 3, cfg.WithWorkers(3).MaxWorkers)
	assert.Equal(t, time.Second, cfg.WithTimeout(time.Second).Timeout)
	assert.Equal(t, cfg.MaxWorkers, PoolConfig{}.workers())
}

func TestChunkProcessor_ProcessChunks(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i + 1
	}

	proc := NewChunkProcessor[int, []int](DefaultPoolConfig().WithWorkers(4))
	got := proc.ProcessChunks(context.Background(), items,
		func(_ context.Context, chunk []int, _ int) []int {
			sum := 0
			for _, v := range chunk {
				sum += v
			}
			return []int{sum}
		},
		func(results [][]int) []int {
			var all []int
			for _, r := range results {
				all = append(all, r...)
			}
			return all
		},
	)
	require.Len(t, got, 4)
	total := 0
	for _, s := range got {
		total += s
	}
	assert.Equal(t, 500500, total)
	assert.Less(t, got[0], got[3], "chunks keep input order")
}

func TestChunkProcessor_Empty(t *testing.T) {
	proc := NewChunkProcessor[int, int](PoolConfig{})
	got := proc.ProcessChunks(context.Background(), nil,
		func(context.Context, []int, int) int { return 1 },
		func([]int) int { return 99 },
	)
	assert.Zero(t, got)
}

func TestChunkProcessor_MoreWorkersThanItems(t *testing.T) {
	proc := NewChunkProcessor[string, int](PoolConfig{MaxWorkers: 16})
	got := proc.ProcessChunks(context.Background(), []string{"a", "b"},
		func(_ context.Context, chunk []string, _ int) int { return len(chunk) },
		func(rs []int) int {
			n := 0
			for _, r := range rs {
				n += r
			}
			return n
		},
	)
	assert.Equal(t, 2, got)
}

func TestMap_PreservesOrder(t *testing.T) {
	items := []string{"a", "bb", "ccc", "dddd"}
	got, err := Map(context.Background(), PoolConfig{MaxWorkers: 2}, items,
		func(_ context.Context, i int, s string) (int, error) {
			time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
			return len(s), nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestMap_RespectsLimit(t *testing.T) {
	var running, peak atomic.Int32
	items := make([]int, 20)
	_, err := Map(context.Background(), PoolConfig{MaxWorkers: 3}, items,
		func(context.Context, int, int) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	_, err := Map(context.Background(), PoolConfig{MaxWorkers: 1}, []int{1, 2, 3},
		func(ctx context.Context, _ int, v int) (int, error) {
			if v == 2 {
				return 0, boom
			}
			return v, ctx.Err()
		})
	assert.ErrorIs(t, err, boom)
}

func TestMap_Timeout(t *testing.T) {
	_, err := Map(context.Background(), PoolConfig{MaxWorkers: 2, Timeout: 10 * time.Millisecond}, []int{1},
		func(ctx context.Context, _ int, _ int) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestForEach(t *testing.T) {
	var sum atomic.Int64
	err := ForEach(context.Background(), DefaultPoolConfig(), []int64{1, 2, 3, 4},
		func(_ context.Context, v int64) error {
			sum.Add(v)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.Load())
}
