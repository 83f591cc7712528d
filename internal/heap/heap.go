package heap

import (
	"sync"

	"github.com/heapql/pkg/utils"
)

// Heap is an immutable snapshot. All lookups are safe for concurrent use;
// derived indexes (referrers, dominators) are built lazily on first use.
type Heap struct {
	idSize   int
	sizeMode SizeMode
	logger   utils.Logger
	workers  int

	classes      []*JavaClass
	classByID    map[ID]*JavaClass
	classByName  map[string]*JavaClass
	instances    []Instance
	instanceByID map[ID]Instance
	roots        []*GCRoot
	rootsByID    map[ID][]*GCRoot

	javaLangClass *JavaClass

	// index assigns every thing a dense position: classes first, then instances.
	index map[ID]int

	refOnce   sync.Once
	referrers map[ID][]Thing

	domOnce sync.Once
	dom     *dominatorTree
}

// IDSize returns the identifier size of the dump (4 or 8).
func (h *Heap) IDSize() int { return h.idSize }

// SizeMode returns the shallow size calculation mode.
func (h *Heap) SizeMode() SizeMode { return h.sizeMode }

// Classes returns all classes in load order.
func (h *Heap) Classes() []*JavaClass { return h.classes }

// AllInstances returns every instance in heap order.
func (h *Heap) AllInstances() []Instance { return h.instances }

// InstanceCount returns the total number of instances.
func (h *Heap) InstanceCount() int { return len(h.instances) }

// Roots returns all GC roots in dump order.
func (h *Heap) Roots() []*GCRoot { return h.roots }

// RootsOf returns the GC root records for the given object.
func (h *Heap) RootsOf(id ID) []*GCRoot { return h.rootsByID[id] }

// IsRoot reports whether the object is directly referenced by a GC root.
func (h *Heap) IsRoot(id ID) bool { return len(h.rootsByID[id]) > 0 }

// FindClass looks up a class by name. Internal names ("java/lang/String") and
// array descriptors ("[I", "[Ljava.lang.String;", "[java.lang.String") are accepted.
func (h *Heap) FindClass(name string) *JavaClass {
	if c, ok := h.classByName[name]; ok {
		return c
	}
	if c, ok := h.classByName[NormalizeClassName(name)]; ok {
		return c
	}
	return nil
}

// FindClassByID returns the class with the given class object ID.
func (h *Heap) FindClassByID(id ID) *JavaClass {
	return h.classByID[id]
}

// FindInstance returns the instance with the given ID.
func (h *Heap) FindInstance(id ID) Instance {
	if i, ok := h.instanceByID[id]; ok {
		return i
	}
	return nil
}

// FindThing returns the class or instance with the given ID, or nil.
func (h *Heap) FindThing(id ID) Thing {
	if id == 0 {
		return nil
	}
	if i, ok := h.instanceByID[id]; ok {
		return i
	}
	if c, ok := h.classByID[id]; ok {
		return c
	}
	return nil
}

// Instances returns the instances of cls in heap order. With
// includeSubclasses the instances of every transitive subclass follow,
// subclass by subclass in pre-order.
func (h *Heap) Instances(cls *JavaClass, includeSubclasses bool) []Instance {
	if cls == nil {
		return nil
	}
	if !includeSubclasses {
		return cls.instances
	}
	out := make([]Instance, 0, cls.InstancesCount(true))
	out = append(out, cls.instances...)
	for _, s := range cls.Subclasses() {
		out = append(out, s.instances...)
	}
	return out
}

// Finalizables returns objects pending finalization: the referents of
// java.lang.ref.Finalizer instances.
func (h *Heap) Finalizables() []Thing {
	cls := h.FindClass("java.lang.ref.Finalizer")
	if cls == nil {
		return nil
	}
	var out []Thing
	for _, inst := range h.Instances(cls, true) {
		obj, ok := inst.(*Object)
		if !ok {
			continue
		}
		if v, ok := obj.FieldValue("referent"); ok {
			if t, ok := v.(Thing); ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// Things returns the total number of classes and instances.
func (h *Heap) Things() int { return len(h.index) }

func (h *Heap) thingAt(i int) Thing {
	if i < len(h.classes) {
		return h.classes[i]
	}
	return h.instances[i-len(h.classes)]
}

func (h *Heap) indexOf(t Thing) (int, bool) {
	i, ok := h.index[t.ID()]
	return i, ok
}
