package heap

import (
	"github.com/heapql/pkg/collections"
	"github.com/heapql/pkg/utils"
)

// dominatorTree holds immediate dominators over the dense thing index,
// shifted by one: node 0 is the virtual super root that references every
// GC root and every class.
type dominatorTree struct {
	idom     []int32
	retained []int64
}

const undefinedDom = int32(-1)

// RetainedSize returns the number of bytes that would be freed if t were
// collected. Objects unreachable from any root retain only themselves.
func (h *Heap) RetainedSize(t Thing) int64 {
	if t == nil {
		return 0
	}
	h.domOnce.Do(h.buildDominators)
	pos, ok := h.indexOf(t)
	if !ok {
		return t.Size()
	}
	return h.dom.retained[pos+1]
}

// Dominator returns the immediate dominator of t, or nil when t is held
// directly by the super root or is unreachable.
func (h *Heap) Dominator(t Thing) Thing {
	if t == nil {
		return nil
	}
	h.domOnce.Do(h.buildDominators)
	pos, ok := h.indexOf(t)
	if !ok {
		return nil
	}
	d := h.dom.idom[pos+1]
	if d <= 0 {
		return nil
	}
	return h.thingAt(int(d) - 1)
}

// buildDominators runs the iterative Cooper-Harvey-Kennedy algorithm on
// reverse postorder, then accumulates retained sizes bottom-up.
func (h *Heap) buildDominators() {
	timer := utils.NewTimer("dominator tree", utils.WithLogger(h.logger))
	defer timer.PrintSummary()

	n := h.Things() + 1
	succ := make([][]int32, n)

	t := timer.Start("graph")
	seen := collections.NewBitset(n)
	addRoot := func(pos int) {
		if !seen.TestAndSet(pos + 1) {
			succ[0] = append(succ[0], int32(pos+1))
		}
	}
	for _, r := range h.roots {
		if th := h.FindThing(r.ObjectID); th != nil {
			if pos, ok := h.indexOf(th); ok {
				addRoot(pos)
			}
		}
	}
	for i := range h.classes {
		addRoot(i)
	}
	for pos := 0; pos < n-1; pos++ {
		for _, to := range h.Referees(h.thingAt(pos)) {
			if tp, ok := h.indexOf(to); ok {
				succ[pos+1] = append(succ[pos+1], int32(tp+1))
			}
		}
	}
	t.Stop()

	t = timer.Start("order")
	order := make([]int32, 0, n) // postorder
	rpoNum := make([]int32, n)
	for i := range rpoNum {
		rpoNum[i] = -1
	}
	type frame struct {
		v int32
		i int
	}
	visited := collections.NewBitset(n)
	stack := []frame{{v: 0}}
	visited.Set(0)
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.i < len(succ[f.v]) {
			w := succ[f.v][f.i]
			f.i++
			if !visited.TestAndSet(int(w)) {
				stack = append(stack, frame{v: w})
			}
			continue
		}
		order = append(order, f.v)
		stack = stack[:len(stack)-1]
	}
	for i, v := range order {
		rpoNum[v] = int32(len(order) - 1 - i)
	}

	preds := make([][]int32, n)
	for v := range succ {
		if !visited.Test(v) {
			continue
		}
		for _, w := range succ[v] {
			preds[w] = append(preds[w], int32(v))
		}
	}
	t.Stop()

	t = timer.Start("idom")
	idom := make([]int32, n)
	for i := range idom {
		idom[i] = undefinedDom
	}
	idom[0] = 0
	intersect := func(a, b int32) int32 {
		for a != b {
			for rpoNum[a] > rpoNum[b] {
				a = idom[a]
			}
			for rpoNum[b] > rpoNum[a] {
				b = idom[b]
			}
		}
		return a
	}
	for changed := true; changed; {
		changed = false
		for i := len(order) - 1; i >= 0; i-- {
			v := order[i]
			if v == 0 {
				continue
			}
			newIdom := undefinedDom
			for _, p := range preds[v] {
				if idom[p] == undefinedDom {
					continue
				}
				if newIdom == undefinedDom {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom != undefinedDom && idom[v] != newIdom {
				idom[v] = newIdom
				changed = true
			}
		}
	}
	t.Stop()

	retained := make([]int64, n)
	for v := 1; v < n; v++ {
		retained[v] = h.thingAt(v - 1).Size()
	}
	for _, v := range order {
		if v != 0 && idom[v] > 0 {
			retained[idom[v]] += retained[v]
		}
	}
	h.dom = &dominatorTree{idom: idom, retained: retained}
}
