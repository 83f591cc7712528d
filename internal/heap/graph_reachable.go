package heap

import (
	"strings"

	"github.com/heapql/pkg/collections"
)

// FieldExcludes is a set of qualified field names ("java.lang.ref.Reference.referent")
// whose edges are not followed during reachability walks.
type FieldExcludes map[string]struct{}

// ParseFieldExcludes builds a FieldExcludes from a list or comma separated entries.
func ParseFieldExcludes(entries ...string) FieldExcludes {
	ex := make(FieldExcludes)
	for _, e := range entries {
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ex[part] = struct{}{}
			}
		}
	}
	return ex
}

// Excludes reports whether the reference travels through an excluded field.
func (ex FieldExcludes) Excludes(f *Field) bool {
	if len(ex) == 0 || f == nil {
		return false
	}
	_, ok := ex[f.QualifiedName()]
	return ok
}

// ExcludeFunc prunes a node (and everything only reachable through it).
type ExcludeFunc func(Thing) (bool, error)

type reachableConfig struct {
	exclude ExcludeFunc
	fields  FieldExcludes
}

// ReachableOption configures a reachability walk.
type ReachableOption func(*reachableConfig)

// WithExclude prunes nodes for which fn returns true.
func WithExclude(fn ExcludeFunc) ReachableOption {
	return func(c *reachableConfig) { c.exclude = fn }
}

// WithFieldExcludes skips edges through the given fields.
func WithFieldExcludes(ex FieldExcludes) ReachableOption {
	return func(c *reachableConfig) { c.fields = ex }
}

// ReachableWalker lazily enumerates everything transitively reachable from
// a start thing in breadth-first order. The start itself is produced only
// when a cycle leads back to it.
type ReachableWalker struct {
	h       *Heap
	cfg     reachableConfig
	visited *collections.Bitset
	queue   *collections.Queue[Thing]
	err     error
}

// Reachables starts a reachability walk from t.
func (h *Heap) Reachables(t Thing, opts ...ReachableOption) *ReachableWalker {
	w := &ReachableWalker{
		h:       h,
		visited: collections.NewBitset(h.Things()),
		queue:   collections.NewQueue[Thing](64),
	}
	for _, opt := range opts {
		opt(&w.cfg)
	}
	if t != nil {
		w.expand(t)
	}
	return w
}

// Next returns the next reachable thing.
func (w *ReachableWalker) Next() (Thing, bool) {
	if w.err != nil {
		return nil, false
	}
	t, ok := w.queue.Dequeue()
	if !ok {
		return nil, false
	}
	w.expand(t)
	if w.err != nil {
		return nil, false
	}
	return t, true
}

// Err returns the first error raised by the exclusion callback.
func (w *ReachableWalker) Err() error { return w.err }

// All drains the walker.
func (w *ReachableWalker) All() ([]Thing, error) {
	var out []Thing
	for t, ok := w.Next(); ok; t, ok = w.Next() {
		out = append(out, t)
	}
	return out, w.err
}

func (w *ReachableWalker) expand(t Thing) {
	w.h.eachReference(t, func(f *Field, _ int, id ID) {
		if w.err != nil || w.cfg.fields.Excludes(f) {
			return
		}
		to := w.h.FindThing(id)
		if to == nil {
			return
		}
		pos, ok := w.h.indexOf(to)
		if !ok || w.visited.TestAndSet(pos) {
			return
		}
		if w.cfg.exclude != nil {
			skip, err := w.cfg.exclude(to)
			if err != nil {
				w.err = err
				return
			}
			if skip {
				return
			}
		}
		w.queue.Enqueue(to)
	})
}
