package heap

import (
	"context"
	"fmt"

	"github.com/heapql/pkg/parallel"
	"github.com/heapql/pkg/utils"
)

// Reference is a single outgoing edge of the object graph.
type Reference struct {
	From Thing
	To   Thing
	// Field is the referencing field; nil for array elements.
	Field *Field
	// Index is the array slot, or -1 for field references.
	Index int
}

// Describe returns "field name", "static field name" or "[i]".
func (r Reference) Describe() string {
	switch {
	case r.Field == nil:
		return fmt.Sprintf("[%d]", r.Index)
	case r.Field.Static:
		return "static field " + r.Field.Name
	default:
		return "field " + r.Field.Name
	}
}

// References returns the outgoing references of t in layout order. Classes
// reference the objects held in their static fields. Null and dangling
// references are skipped.
func (h *Heap) References(t Thing) []Reference {
	var out []Reference
	h.eachReference(t, func(f *Field, idx int, id ID) {
		if to := h.FindThing(id); to != nil {
			out = append(out, Reference{From: t, To: to, Field: f, Index: idx})
		}
	})
	return out
}

func (h *Heap) eachReference(t Thing, yield func(f *Field, idx int, id ID)) {
	switch v := t.(type) {
	case *Object:
		v.refs(func(f *Field, id ID) { yield(f, -1, id) })
	case *ObjectArray:
		for i, id := range v.elems {
			if id != 0 {
				yield(nil, i, id)
			}
		}
	case *JavaClass:
		for _, s := range v.statics {
			if r, ok := s.value.(ref); ok && r != 0 {
				yield(s.field, -1, ID(r))
			}
		}
	}
}

// Referees returns the distinct things t references directly, in first-seen order.
func (h *Heap) Referees(t Thing) []Thing {
	var out []Thing
	seen := make(map[ID]struct{})
	h.eachReference(t, func(_ *Field, _ int, id ID) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		if to := h.FindThing(id); to != nil {
			out = append(out, to)
		}
	})
	return out
}

// Refers reports whether from references to directly.
func (h *Heap) Refers(from, to Thing) bool {
	if from == nil || to == nil {
		return false
	}
	target := to.ID()
	found := false
	h.eachReference(from, func(_ *Field, _ int, id ID) {
		if id == target {
			found = true
		}
	})
	return found
}

// Referrers returns the distinct things that reference t directly, classes
// first and then instances in heap order.
func (h *Heap) Referrers(t Thing) []Thing {
	if t == nil {
		return nil
	}
	h.refOnce.Do(h.buildReferrers)
	return h.referrers[t.ID()]
}

// DescribeReference explains how from refers to to, or "??" when it does not.
func (h *Heap) DescribeReference(from, to Thing) string {
	for _, r := range h.References(from) {
		if r.To.ID() == to.ID() {
			return r.Describe()
		}
	}
	return "??"
}

type referrerChunk map[ID][]Thing

// buildReferrers inverts the reference graph in parallel chunks over the
// dense thing index; chunk results are merged in order so referrer lists
// keep heap order.
func (h *Heap) buildReferrers() {
	timer := utils.NewTimer("referrer index", utils.WithLogger(h.logger))
	defer timer.Start("build").Stop()

	positions := make([]int, h.Things())
	for i := range positions {
		positions[i] = i
	}

	cfg := parallel.DefaultPoolConfig()
	if h.workers > 0 {
		cfg = cfg.WithWorkers(h.workers)
	}
	proc := parallel.NewChunkProcessor[int, []referrerChunk](cfg)
	chunks := proc.ProcessChunks(context.Background(), positions,
		func(_ context.Context, chunk []int, _ int) []referrerChunk {
			local := make(referrerChunk)
			for _, pos := range chunk {
				from := h.thingAt(pos)
				for _, to := range h.Referees(from) {
					local[to.ID()] = append(local[to.ID()], from)
				}
			}
			return []referrerChunk{local}
		},
		func(results [][]referrerChunk) []referrerChunk {
			var all []referrerChunk
			for _, r := range results {
				all = append(all, r...)
			}
			return all
		},
	)

	h.referrers = make(map[ID][]Thing)
	for _, c := range chunks {
		for id, froms := range c {
			h.referrers[id] = append(h.referrers[id], froms...)
		}
	}
	h.logger.Debug("Referrer index built for %d targets", len(h.referrers))
}
