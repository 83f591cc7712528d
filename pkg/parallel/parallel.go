// Package parallel runs CPU bound heap work and batches of queries across a
// bounded number of goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolConfig bounds a parallel operation.
type PoolConfig struct {
	// MaxWorkers caps concurrent goroutines. Defaults to NumCPU clamped to [2, 8].
	MaxWorkers int

	// Timeout bounds the whole operation; zero means none.
	Timeout time.Duration
}

// DefaultPoolConfig returns a configuration sized for the current machine.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{MaxWorkers: workers}
}

// WithWorkers returns a copy with n workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a copy with the given timeout.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

func (c PoolConfig) workers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return DefaultPoolConfig().MaxWorkers
}

// ChunkProcessor splits a slice into one contiguous chunk per worker.
type ChunkProcessor[T any, R any] struct {
	config PoolConfig
}

// NewChunkProcessor creates a chunk processor.
func NewChunkProcessor[T any, R any](config PoolConfig) *ChunkProcessor[T, R] {
	return &ChunkProcessor[T, R]{config: config}
}

// ProcessChunks runs processor on each chunk concurrently and hands the
// per-chunk results, in chunk order, to reducer. Chunks not started before
// ctx is done leave a zero result.
func (p *ChunkProcessor[T, R]) ProcessChunks(
	ctx context.Context,
	items []T,
	processor func(ctx context.Context, chunk []T, workerID int) R,
	reducer func(results []R) R,
) R {
	if len(items) == 0 {
		var zero R
		return zero
	}
	n := p.config.workers()
	if n > len(items) {
		n = len(items)
	}
	size := (len(items) + n - 1) / n
	results := make([]R, n)

	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		start, end := w*size, (w+1)*size
		if end > len(items) {
			end = len(items)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(id int, chunk []T) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[id] = processor(ctx, chunk, id)
		}(w, items[start:end])
	}
	wg.Wait()
	return reducer(results)
}

// Map applies fn to every item with at most config.MaxWorkers calls in
// flight and returns the results in input order. The first error cancels
// the context passed to the remaining calls and is returned.
func Map[T any, R any](ctx context.Context, config PoolConfig, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.workers())
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// ForEach is Map without results.
func ForEach[T any](ctx context.Context, config PoolConfig, items []T, fn func(ctx context.Context, item T) error) error {
	_, err := Map(ctx, config, items, func(ctx context.Context, _ int, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}
