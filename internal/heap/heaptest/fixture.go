// Package heaptest builds small in-memory heaps for tests.
package heaptest

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"

	"github.com/heapql/internal/heap"
)

// F declares an instance field.
func F(name string, t heap.BasicType) heap.FieldDef {
	return heap.FieldDef{Name: name, Type: t}
}

type classInfo struct {
	def   heap.ClassDef
	super string
}

// Fixture assembles classes and instances with readable names and
// encodes field payloads the way an HPROF dump lays them out.
type Fixture struct {
	idSize  int
	nextID  heap.ID
	order   []string
	classes map[string]*classInfo
	b       *heap.Builder
}

// New creates a fixture with 8-byte identifiers.
func New(opts ...heap.BuilderOption) *Fixture {
	return &Fixture{
		idSize:  8,
		nextID:  0x1000,
		classes: make(map[string]*classInfo),
		b:       heap.NewBuilder(8, opts...),
	}
}

func (f *Fixture) allocID() heap.ID {
	id := f.nextID
	f.nextID += 0x10
	return id
}

// Class declares a class; super must already be declared (or be empty).
func (f *Fixture) Class(name, super string, fields ...heap.FieldDef) heap.ID {
	if _, ok := f.classes[name]; ok {
		panic(fmt.Sprintf("heaptest: class %s declared twice", name))
	}
	var superID heap.ID
	if super != "" {
		s, ok := f.classes[super]
		if !ok {
			panic(fmt.Sprintf("heaptest: unknown superclass %s", super))
		}
		superID = s.def.ID
	}
	ci := &classInfo{
		def:   heap.ClassDef{ID: f.allocID(), Name: name, SuperID: superID, Fields: fields},
		super: super,
	}
	for _, fd := range fields {
		ci.def.InstanceSize += fd.Type.Size(f.idSize)
	}
	f.classes[name] = ci
	f.order = append(f.order, name)
	return ci.def.ID
}

// ClassID returns the ID of a declared class.
func (f *Fixture) ClassID(name string) heap.ID {
	return f.mustClass(name).def.ID
}

// SetLoader records the defining loader of a class.
func (f *Fixture) SetLoader(class string, loader heap.ID) {
	f.mustClass(class).def.LoaderID = loader
}

// Static adds a static field value; object values are IDs.
func (f *Fixture) Static(class, name string, t heap.BasicType, v interface{}) {
	ci := f.mustClass(class)
	ci.def.Statics = append(ci.def.Statics, heap.StaticDef{Name: name, Type: t, Value: v})
}

func (f *Fixture) mustClass(name string) *classInfo {
	ci, ok := f.classes[name]
	if !ok {
		panic(fmt.Sprintf("heaptest: unknown class %s", name))
	}
	return ci
}

// Reserve allocates an ID for an object created later with ObjectWithID,
// so that reference cycles can be expressed.
func (f *Fixture) Reserve() heap.ID {
	return f.allocID()
}

// Object creates an instance; unspecified fields are zero.
func (f *Fixture) Object(class string, values map[string]interface{}) heap.ID {
	return f.ObjectWithID(f.allocID(), class, values)
}

// ObjectWithID creates an instance with a previously reserved ID.
func (f *Fixture) ObjectWithID(id heap.ID, class string, values map[string]interface{}) heap.ID {
	var data []byte
	for name := class; name != ""; name = f.classes[name].super {
		ci := f.mustClass(name)
		for _, fd := range ci.def.Fields {
			data = append(data, f.encode(fd.Type, values[fd.Name])...)
		}
	}
	f.b.AddInstance(id, f.mustClass(class).def.ID, data)
	return id
}

// ObjectArray creates a reference array; its array class is declared on demand.
func (f *Fixture) ObjectArray(elemClass string, elems ...heap.ID) heap.ID {
	name := elemClass + "[]"
	if _, ok := f.classes[name]; !ok {
		f.Class(name, "java.lang.Object")
	}
	id := f.allocID()
	f.b.AddObjectArray(id, f.classes[name].def.ID, elems)
	return id
}

// PrimitiveArray creates a primitive array from Go values.
func (f *Fixture) PrimitiveArray(t heap.BasicType, values ...interface{}) heap.ID {
	var data []byte
	for _, v := range values {
		data = append(data, f.encode(t, v)...)
	}
	id := f.allocID()
	f.b.AddPrimitiveArray(id, t, len(values), data)
	return id
}

// CharArray creates a char[] holding s.
func (f *Fixture) CharArray(s string) heap.ID {
	data, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	id := f.allocID()
	f.b.AddPrimitiveArray(id, heap.TypeChar, len(data)/2, data)
	return id
}

// String creates a java.lang.String (char[] layout with offset/count).
func (f *Fixture) String(s string) heap.ID {
	value := f.CharArray(s)
	return f.Object("java.lang.String", map[string]interface{}{
		"value":  value,
		"offset": 0,
		"count":  len([]rune(s)),
	})
}

// Root records a GC root.
func (f *Fixture) Root(kind heap.RootKind, id heap.ID) {
	f.b.AddRoot(heap.GCRoot{ObjectID: id, Kind: kind})
}

// Build declares all classes and builds the heap.
func (f *Fixture) Build() (*heap.Heap, error) {
	for _, name := range f.order {
		if err := f.b.AddClass(f.classes[name].def); err != nil {
			return nil, err
		}
	}
	return f.b.Build()
}

func (f *Fixture) encode(t heap.BasicType, v interface{}) []byte {
	buf := make([]byte, t.Size(f.idSize))
	switch t {
	case heap.TypeObject:
		binary.BigEndian.PutUint64(buf, uint64(toInt64(v)))
	case heap.TypeBoolean:
		if b, _ := v.(bool); b {
			buf[0] = 1
		}
	case heap.TypeByte:
		buf[0] = byte(toInt64(v))
	case heap.TypeChar:
		var r rune
		switch c := v.(type) {
		case string:
			if len(c) > 0 {
				r = []rune(c)[0]
			}
		case rune:
			r = c
		}
		binary.BigEndian.PutUint16(buf, uint16(r))
	case heap.TypeShort:
		binary.BigEndian.PutUint16(buf, uint16(toInt64(v)))
	case heap.TypeInt:
		binary.BigEndian.PutUint32(buf, uint32(toInt64(v)))
	case heap.TypeLong:
		binary.BigEndian.PutUint64(buf, uint64(toInt64(v)))
	case heap.TypeFloat:
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(toFloat64(v))))
	case heap.TypeDouble:
		binary.BigEndian.PutUint64(buf, math.Float64bits(toFloat64(v)))
	}
	return buf
}

func toInt64(v interface{}) int64 {
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
	case heap.ID:
		return int64(n)
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return float64(toInt64(v))
}
