package heap

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Instance is an object or array allocated in the heap.
type Instance interface {
	Thing
	// Number is the 1-based ordinal of the instance among its class's instances.
	Number() int
}

type instanceBase struct {
	id     ID
	class  *JavaClass
	number int
	size   int64
}

func (b *instanceBase) ID() ID            { return b.id }
func (b *instanceBase) Class() *JavaClass { return b.class }
func (b *instanceBase) Size() int64       { return b.size }
func (b *instanceBase) Number() int       { return b.number }

func (b *instanceBase) String() string {
	return fmt.Sprintf("%s#%d", b.class.name, b.number)
}

// Object is a plain (non-array) instance. Field values are decoded on access.
type Object struct {
	instanceBase
	data []byte
}

// Fields returns all field values in dump layout order (declaring class
// first, then superclasses).
func (o *Object) Fields() []FieldValue {
	h := o.class.h
	fields := o.class.allFields
	out := make([]FieldValue, 0, len(fields))
	off := 0
	for _, f := range fields {
		n := f.Type.Size(h.idSize)
		if off+n > len(o.data) {
			break
		}
		out = append(out, FieldValue{Field: f, Value: h.resolve(h.decode(f.Type, o.data[off:off+n]))})
		off += n
	}
	return out
}

// FieldValue returns the value of the first field with the given name,
// searching the declaring class before its superclasses.
func (o *Object) FieldValue(name string) (interface{}, bool) {
	h := o.class.h
	off := 0
	for _, f := range o.class.allFields {
		n := f.Type.Size(h.idSize)
		if off+n > len(o.data) {
			return nil, false
		}
		if f.Name == name {
			return h.resolve(h.decode(f.Type, o.data[off:off+n])), true
		}
		off += n
	}
	return nil, false
}

// refs returns the non-null outgoing object fields.
func (o *Object) refs(yield func(f *Field, id ID)) {
	h := o.class.h
	off := 0
	for _, f := range o.class.allFields {
		n := f.Type.Size(h.idSize)
		if off+n > len(o.data) {
			return
		}
		if f.Type == TypeObject {
			if id := h.readID(o.data[off:]); id != 0 {
				yield(f, id)
			}
		}
		off += n
	}
}

// ObjectArray is an array of references.
type ObjectArray struct {
	instanceBase
	elems []ID
}

// Length returns the number of elements.
func (a *ObjectArray) Length() int { return len(a.elems) }

// Element returns the i-th element, nil when null or dangling.
func (a *ObjectArray) Element(i int) Thing {
	if i < 0 || i >= len(a.elems) {
		return nil
	}
	return a.class.h.FindThing(a.elems[i])
}

// Elements returns all elements; null slots are nil.
func (a *ObjectArray) Elements() []Thing {
	out := make([]Thing, len(a.elems))
	for i := range a.elems {
		out[i] = a.Element(i)
	}
	return out
}

// PrimitiveArray is an array of a primitive element type.
type PrimitiveArray struct {
	instanceBase
	elemType BasicType
	length   int
	data     []byte
}

// Length returns the number of elements.
func (a *PrimitiveArray) Length() int { return a.length }

// ElementType returns the element type.
func (a *PrimitiveArray) ElementType() BasicType { return a.elemType }

// Bytes returns the raw big-endian element payload.
func (a *PrimitiveArray) Bytes() []byte { return a.data }

// zeroValue backs the elements of arrays dumped without data.
var zeroValue [8]byte

// Value returns the decoded i-th element.
func (a *PrimitiveArray) Value(i int) interface{} {
	n := a.elemType.Size(0)
	if i < 0 || i >= a.length {
		return nil
	}
	if a.data == nil {
		return a.class.h.decode(a.elemType, zeroValue[:n])
	}
	if (i+1)*n > len(a.data) {
		return nil
	}
	return a.class.h.decode(a.elemType, a.data[i*n:(i+1)*n])
}

// Values returns all decoded elements.
func (a *PrimitiveArray) Values() []interface{} {
	out := make([]interface{}, a.length)
	for i := range out {
		out[i] = a.Value(i)
	}
	return out
}

func (h *Heap) readID(b []byte) ID {
	if h.idSize == 4 {
		return ID(binary.BigEndian.Uint32(b))
	}
	return binary.BigEndian.Uint64(b)
}

// decode converts a big-endian encoded value; object references become ref.
func (h *Heap) decode(t BasicType, b []byte) interface{} {
	switch t {
	case TypeObject:
		return ref(h.readID(b))
	case TypeBoolean:
		return b[0] != 0
	case TypeChar:
		return string(rune(binary.BigEndian.Uint16(b)))
	case TypeFloat:
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	case TypeDouble:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case TypeByte:
		return int8(b[0])
	case TypeShort:
		return int16(binary.BigEndian.Uint16(b))
	case TypeInt:
		return int32(binary.BigEndian.Uint32(b))
	case TypeLong:
		return int64(binary.BigEndian.Uint64(b))
	}
	return nil
}

// resolve turns ref values into Things; everything else passes through.
func (h *Heap) resolve(v interface{}) interface{} {
	r, ok := v.(ref)
	if !ok {
		return v
	}
	if t := h.FindThing(ID(r)); t != nil {
		return t
	}
	return nil
}
