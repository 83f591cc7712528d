package heap

import (
	"fmt"

	"github.com/heapql/pkg/utils"
)

// ClassDef describes a class as recorded by a CLASS_DUMP.
type ClassDef struct {
	ID           ID
	Name         string
	SuperID      ID
	LoaderID     ID
	InstanceSize int
	Fields       []FieldDef
	Statics      []StaticDef
}

// FieldDef declares an instance field.
type FieldDef struct {
	Name string
	Type BasicType
}

// StaticDef declares a static field with its value. Object values are IDs.
type StaticDef struct {
	Name  string
	Type  BasicType
	Value interface{}
}

type pendingInstance struct {
	id      ID
	classID ID
	data    []byte
}

type pendingObjectArray struct {
	id      ID
	classID ID
	elems   []ID
}

type pendingPrimitiveArray struct {
	id       ID
	elemType BasicType
	length   int
	data     []byte
}

// pending records preserve dump order across kinds.
type pending struct {
	kind int
	idx  int
}

const (
	pendingKindObject = iota
	pendingKindObjectArray
	pendingKindPrimitiveArray
)

// Builder accumulates dump records and produces an immutable Heap.
// It is not safe for concurrent use.
type Builder struct {
	idSize   int
	sizeMode SizeMode
	logger   utils.Logger
	workers  int

	classes    []*ClassDef
	classSeen  map[ID]bool
	objects    []pendingInstance
	objArrays  []pendingObjectArray
	primArrays []pendingPrimitiveArray
	order      []pending
	roots      []*GCRoot
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSizeMode sets the shallow size calculation mode.
func WithSizeMode(mode SizeMode) BuilderOption {
	return func(b *Builder) { b.sizeMode = mode }
}

// WithLogger sets the logger used during build and lazy index construction.
func WithLogger(logger utils.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithWorkers sets the parallelism used for index construction.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) { b.workers = n }
}

// NewBuilder creates a builder for a dump with the given identifier size.
func NewBuilder(idSize int, opts ...BuilderOption) *Builder {
	b := &Builder{
		idSize:    idSize,
		logger:    &utils.NullLogger{},
		classSeen: make(map[ID]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IDSize returns the identifier size.
func (b *Builder) IDSize() int { return b.idSize }

// AddClass records a class. Duplicate class IDs are rejected.
func (b *Builder) AddClass(def ClassDef) error {
	if b.classSeen[def.ID] {
		return fmt.Errorf("duplicate class id %#x (%s)", def.ID, def.Name)
	}
	b.classSeen[def.ID] = true
	d := def
	d.Name = NormalizeClassName(d.Name)
	b.classes = append(b.classes, &d)
	return nil
}

// AddInstance records an instance with its raw field payload.
func (b *Builder) AddInstance(id, classID ID, data []byte) {
	b.order = append(b.order, pending{kind: pendingKindObject, idx: len(b.objects)})
	b.objects = append(b.objects, pendingInstance{id: id, classID: classID, data: data})
}

// AddObjectArray records a reference array of the given array class.
func (b *Builder) AddObjectArray(id, arrayClassID ID, elems []ID) {
	b.order = append(b.order, pending{kind: pendingKindObjectArray, idx: len(b.objArrays)})
	b.objArrays = append(b.objArrays, pendingObjectArray{id: id, classID: arrayClassID, elems: elems})
}

// AddPrimitiveArray records a primitive array with its big-endian payload.
func (b *Builder) AddPrimitiveArray(id ID, elemType BasicType, length int, data []byte) {
	b.order = append(b.order, pending{kind: pendingKindPrimitiveArray, idx: len(b.primArrays)})
	b.primArrays = append(b.primArrays, pendingPrimitiveArray{id: id, elemType: elemType, length: length, data: data})
}

// AddRoot records a GC root.
func (b *Builder) AddRoot(root GCRoot) {
	r := root
	b.roots = append(b.roots, &r)
}

// syntheticClassID derives an ID for primitive array classes missing from the dump.
func syntheticClassID(t BasicType) ID {
	return ^ID(0) - ID(t)
}

// Build resolves class hierarchies, instances and roots into a Heap.
func (b *Builder) Build() (*Heap, error) {
	timer := utils.NewTimer("heap build", utils.WithLogger(b.logger))
	h := &Heap{
		idSize:       b.idSize,
		sizeMode:     b.sizeMode,
		logger:       b.logger,
		workers:      b.workers,
		classByID:    make(map[ID]*JavaClass, len(b.classes)+len(PrimitiveTypes)),
		classByName:  make(map[string]*JavaClass, len(b.classes)+len(PrimitiveTypes)),
		instanceByID: make(map[ID]Instance, len(b.objects)+len(b.objArrays)+len(b.primArrays)),
		rootsByID:    make(map[ID][]*GCRoot),
	}

	t := timer.Start("classes")
	for _, def := range b.classes {
		c := &JavaClass{
			h:            h,
			id:           def.ID,
			name:         def.Name,
			superID:      def.SuperID,
			loaderID:     def.LoaderID,
			instanceSize: def.InstanceSize,
		}
		for _, f := range def.Fields {
			c.fields = append(c.fields, &Field{Name: f.Name, Type: f.Type, Owner: c})
		}
		for _, s := range def.Statics {
			f := &Field{Name: s.Name, Type: s.Type, Static: true, Owner: c}
			v := canonicalValue(s.Type, s.Value)
			c.statics = append(c.statics, staticValue{field: f, value: v})
		}
		h.addClass(c)
	}

	object := h.classByName["java.lang.Object"]
	for _, pt := range PrimitiveTypes {
		name := PrimitiveArrayClassName(pt)
		c, ok := h.classByName[name]
		if !ok {
			c = &JavaClass{h: h, id: syntheticClassID(pt), name: name}
			if object != nil {
				c.superID = object.id
			}
			h.addClass(c)
		}
		c.arrayOf = pt
	}

	for _, c := range h.classes {
		if c.superID != 0 {
			if s, ok := h.classByID[c.superID]; ok && s != c {
				c.super = s
				s.subclasses = append(s.subclasses, c)
			}
		}
	}
	for _, c := range h.classes {
		c.allFields = collectFields(c, 0)
		c.size = classObjectSize(h.sizeMode, len(c.statics))
	}
	h.javaLangClass = h.classByName["java.lang.Class"]
	t.Stop()

	t = timer.Start("instances")
	var orphans int
	for _, p := range b.order {
		var inst Instance
		switch p.kind {
		case pendingKindObject:
			pi := b.objects[p.idx]
			c, ok := h.classByID[pi.classID]
			if !ok {
				orphans++
				continue
			}
			size := objectHeaderSize(h.sizeMode)
			for _, f := range c.allFields {
				size += f.Type.heapSize(h.sizeMode)
			}
			inst = &Object{instanceBase: instanceBase{id: pi.id, class: c, size: alignTo8(size)}, data: pi.data}
		case pendingKindObjectArray:
			pa := b.objArrays[p.idx]
			c, ok := h.classByID[pa.classID]
			if !ok {
				if c = h.classByName["java.lang.Object[]"]; c == nil {
					orphans++
					continue
				}
			}
			size := arrayHeaderSize(h.sizeMode) + int64(len(pa.elems))*referenceSize(h.sizeMode)
			inst = &ObjectArray{instanceBase: instanceBase{id: pa.id, class: c, size: alignTo8(size)}, elems: pa.elems}
		case pendingKindPrimitiveArray:
			pp := b.primArrays[p.idx]
			c := h.classByName[PrimitiveArrayClassName(pp.elemType)]
			if c == nil {
				orphans++
				continue
			}
			size := arrayHeaderSize(h.sizeMode) + int64(pp.length)*int64(pp.elemType.Size(0))
			inst = &PrimitiveArray{
				instanceBase: instanceBase{id: pp.id, class: c, size: alignTo8(size)},
				elemType:     pp.elemType,
				length:       pp.length,
				data:         pp.data,
			}
		}
		h.addInstance(inst)
	}
	if orphans > 0 {
		h.logger.Warn("Skipped %d instances with unknown classes", orphans)
	}
	t.Stop()

	for _, r := range b.roots {
		h.roots = append(h.roots, r)
		h.rootsByID[r.ObjectID] = append(h.rootsByID[r.ObjectID], r)
	}

	h.index = make(map[ID]int, len(h.classes)+len(h.instances))
	for i, c := range h.classes {
		h.index[c.id] = i
	}
	for i, inst := range h.instances {
		h.index[inst.ID()] = len(h.classes) + i
	}

	h.logger.Info("Heap built: %d classes, %d instances, %d roots", len(h.classes), len(h.instances), len(h.roots))
	return h, nil
}

func (h *Heap) addClass(c *JavaClass) {
	h.classes = append(h.classes, c)
	h.classByID[c.id] = c
	if _, exists := h.classByName[c.name]; !exists {
		h.classByName[c.name] = c
	}
}

func (h *Heap) addInstance(inst Instance) {
	switch v := inst.(type) {
	case *Object:
		v.class.instances = append(v.class.instances, v)
		v.number = len(v.class.instances)
	case *ObjectArray:
		v.class.instances = append(v.class.instances, v)
		v.number = len(v.class.instances)
	case *PrimitiveArray:
		v.class.instances = append(v.class.instances, v)
		v.number = len(v.class.instances)
	}
	h.instances = append(h.instances, inst)
	h.instanceByID[inst.ID()] = inst
}

// collectFields walks the superclass chain; depth guards against cycles in corrupt dumps.
func collectFields(c *JavaClass, depth int) []*Field {
	if c == nil || depth > 256 {
		return nil
	}
	out := append([]*Field(nil), c.fields...)
	return append(out, collectFields(c.super, depth+1)...)
}

// canonicalValue converts a static value to the Go type used for decoded
// field values of type t.
func canonicalValue(t BasicType, v interface{}) interface{} {
	switch t {
	case TypeObject:
		return ref(toID(v))
	case TypeBoolean:
		b, _ := v.(bool)
		return b
	case TypeChar:
		switch c := v.(type) {
		case string:
			return c
		case uint16:
			return string(rune(c))
		case int32:
			return string(c)
		}
		return "\x00"
	case TypeFloat:
		return float32(toFloat(v))
	case TypeDouble:
		return toFloat(v)
	case TypeByte:
		return int8(toInt(v))
	case TypeShort:
		return int16(toInt(v))
	case TypeInt:
		return int32(toInt(v))
	case TypeLong:
		return toInt(v)
	}
	return v
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return float64(toInt(v))
}

func toID(v interface{}) ID {
	switch n := v.(type) {
	case ID:
		return n
	case nil:
		return 0
	}
	return ID(toInt(v))
}
