package service

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/heapql/internal/heap"
	"github.com/heapql/internal/parser/hprof"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
	"github.com/heapql/pkg/utils"
)

// Snapshot is a loaded heap dump.
type Snapshot struct {
	Key      string
	Heap     *heap.Heap
	Stats    *hprof.Stats
	LoadedAt time.Time
}

type loadFunc func(ctx context.Context, key string) (*Snapshot, error)

// snapshotCache keeps the most recently used snapshots in memory. Concurrent
// requests for a snapshot that is not loaded share one load.
type snapshotCache struct {
	mu      sync.Mutex
	max     int
	lru     *list.List // front is most recently used
	entries map[string]*list.Element
	group   singleflight.Group
	load    loadFunc
	logger  utils.Logger
}

func newSnapshotCache(max int, load loadFunc, logger utils.Logger) *snapshotCache {
	if max < 1 {
		max = 1
	}
	return &snapshotCache{
		max:     max,
		lru:     list.New(),
		entries: make(map[string]*list.Element),
		load:    load,
		logger:  logger,
	}
}

// Get returns the snapshot for key, loading it on a miss. The context of
// the first caller governs a shared load.
func (c *snapshotCache) Get(ctx context.Context, key string) (*Snapshot, error) {
	if s, ok := c.lookup(key); ok {
		return s, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if s, ok := c.lookup(key); ok {
			return s, nil
		}
		s, err := c.load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.add(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *snapshotCache) lookup(key string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*Snapshot), true
}

// Peek returns a loaded snapshot without touching its recency.
func (c *snapshotCache) Peek(key string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*Snapshot), true
}

func (c *snapshotCache) add(s *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[s.Key]; ok {
		el.Value = s
		c.lru.MoveToFront(el)
		return
	}
	c.entries[s.Key] = c.lru.PushFront(s)
	for c.lru.Len() > c.max {
		oldest := c.lru.Back()
		evicted := c.lru.Remove(oldest).(*Snapshot)
		delete(c.entries, evicted.Key)
		c.logger.Info("Evicted snapshot %s", evicted.Key)
	}
}

// Remove drops key from the cache and reports whether it was loaded.
func (c *snapshotCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(el)
	delete(c.entries, key)
	return true
}

// Keys lists loaded snapshots, most recently used first.
func (c *snapshotCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Snapshot).Key)
	}
	return keys
}

func (c *snapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

var dumpSuffixes = []string{".hprof", ".hprof.gz", ".hprof.zst", ".bin"}

func isDumpKey(key string) bool {
	for _, suffix := range dumpSuffixes {
		if strings.HasSuffix(strings.ToLower(key), suffix) {
			return true
		}
	}
	return false
}

// ListSnapshots lists the heap dumps in storage together with the ones
// currently loaded.
func (s *Service) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	if s.storage == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "storage is not initialized")
	}
	objs, err := s.storage.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []model.SnapshotInfo
	for _, o := range objs {
		if !isDumpKey(o.Key) {
			continue
		}
		out = append(out, s.snapshotInfo(o.Key, o.Size))
	}
	return out, nil
}

// LoadSnapshot loads key into the cache ahead of the first query.
func (s *Service) LoadSnapshot(ctx context.Context, key string) (*model.SnapshotInfo, error) {
	snap, err := s.snapshots.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	info := s.snapshotInfo(snap.Key, 0)
	return &info, nil
}

// UnloadSnapshot drops a loaded snapshot and reports whether it was loaded.
func (s *Service) UnloadSnapshot(key string) bool {
	ok := s.snapshots.Remove(key)
	if ok {
		s.logger.Info("Unloaded snapshot %s", key)
	}
	return ok
}

func (s *Service) snapshotInfo(key string, size int64) model.SnapshotInfo {
	info := model.SnapshotInfo{Key: key, Size: size}
	if snap, ok := s.snapshots.Peek(key); ok {
		info.Loaded = true
		info.Classes = len(snap.Heap.Classes())
		info.Instances = snap.Heap.InstanceCount()
		info.Roots = len(snap.Heap.Roots())
	}
	return info
}
