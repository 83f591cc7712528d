package heap

import (
	"strings"

	"github.com/heapql/pkg/collections"
)

// DefaultMaxPaths bounds LivePaths when the caller passes a non-positive limit.
const DefaultMaxPaths = 10

// ReferenceChain is a path from a GC-rooted object down to a target.
// Objects[0] is held by Root; the last element is the target.
type ReferenceChain struct {
	Root    *GCRoot
	Objects []Thing
}

// Target returns the last object of the chain.
func (c *ReferenceChain) Target() Thing {
	return c.Objects[len(c.Objects)-1]
}

func (c *ReferenceChain) String() string {
	var sb strings.Builder
	if c.Root != nil {
		sb.WriteString(c.Root.Description())
		sb.WriteString(" -> ")
	}
	for i, t := range c.Objects {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}

type pathNode struct {
	thing  Thing
	parent *pathNode // towards the target
}

// LivePaths finds up to maxPaths shortest reference chains from GC roots to
// target, at most one per rooted object. Unless includeWeak is set, edges
// through java.lang.ref.Reference.referent are ignored.
func (h *Heap) LivePaths(target Thing, includeWeak bool, maxPaths int) []*ReferenceChain {
	if target == nil {
		return nil
	}
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	var out []*ReferenceChain
	if roots := h.RootsOf(target.ID()); len(roots) > 0 {
		out = append(out, &ReferenceChain{Root: roots[0], Objects: []Thing{target}})
		if len(out) >= maxPaths {
			return out
		}
	}

	visited := map[ID]bool{target.ID(): true}
	queue := collections.NewQueue[*pathNode](16)
	queue.Enqueue(&pathNode{thing: target})
	for !queue.IsEmpty() && len(out) < maxPaths {
		node, _ := queue.Dequeue()
		for _, from := range h.Referrers(node.thing) {
			if visited[from.ID()] {
				continue
			}
			if !includeWeak && h.onlyWeakly(from, node.thing) {
				continue
			}
			visited[from.ID()] = true
			next := &pathNode{thing: from, parent: node}
			if roots := h.RootsOf(from.ID()); len(roots) > 0 {
				out = append(out, next.chain(roots[0]))
				if len(out) >= maxPaths {
					break
				}
				continue
			}
			queue.Enqueue(next)
		}
	}
	return out
}

func (n *pathNode) chain(root *GCRoot) *ReferenceChain {
	c := &ReferenceChain{Root: root}
	for p := n; p != nil; p = p.parent {
		c.Objects = append(c.Objects, p.thing)
	}
	return c
}

// onlyWeakly reports whether every edge from -> to goes through Reference.referent.
func (h *Heap) onlyWeakly(from, to Thing) bool {
	weak := false
	for _, r := range h.References(from) {
		if r.To.ID() != to.ID() {
			continue
		}
		if r.Field == nil || r.Field.Name != "referent" || r.Field.Owner == nil ||
			r.Field.Owner.name != "java.lang.ref.Reference" {
			return false
		}
		weak = true
	}
	return weak
}

// FindRoot returns the GC root retaining t: its own root record if it is
// rooted, otherwise the root of the nearest live path. Nil when unreachable.
func (h *Heap) FindRoot(t Thing) *GCRoot {
	if t == nil {
		return nil
	}
	if roots := h.RootsOf(t.ID()); len(roots) > 0 {
		return roots[0]
	}
	if paths := h.LivePaths(t, true, 1); len(paths) > 0 {
		return paths[0].Root
	}
	return nil
}
