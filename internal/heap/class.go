package heap

import "fmt"

// Thing is anything addressable by ID in the snapshot: classes and instances.
type Thing interface {
	ID() ID
	// Class returns the class of the thing. For a JavaClass this is the
	// java.lang.Class class, which may be nil in partial dumps.
	Class() *JavaClass
	// Size returns the shallow size in bytes.
	Size() int64
	String() string
}

// Field describes an instance or static field declared by a class.
type Field struct {
	Name   string
	Type   BasicType
	Static bool
	Owner  *JavaClass
}

// QualifiedName returns "declaring.Class.field".
func (f *Field) QualifiedName() string {
	if f.Owner == nil {
		return f.Name
	}
	return f.Owner.name + "." + f.Name
}

// Signature returns the JVM signature character for the field type.
func (f *Field) Signature() string {
	for c, t := range descriptorTypes {
		if t == f.Type {
			return string(c)
		}
	}
	return "L"
}

// FieldValue pairs a field with its decoded value. Object references are
// resolved to Thing (nil when null or dangling); primitives decode to bool,
// string (char), int8, int16, int32, int64, float32 or float64.
type FieldValue struct {
	Field *Field
	Value interface{}
}

// ref is an unresolved object reference stored in static field tables.
type ref ID

type staticValue struct {
	field *Field
	value interface{}
}

// JavaClass is a loaded class in the snapshot.
type JavaClass struct {
	h            *Heap
	id           ID
	name         string
	superID      ID
	loaderID     ID
	instanceSize int
	size         int64

	super      *JavaClass
	fields     []*Field
	allFields  []*Field
	statics    []staticValue
	subclasses []*JavaClass
	instances  []Instance
	arrayOf    BasicType
}

// ID returns the class object ID.
func (c *JavaClass) ID() ID { return c.id }

// Name returns the dotted class name.
func (c *JavaClass) Name() string { return c.name }

// Class returns java.lang.Class.
func (c *JavaClass) Class() *JavaClass { return c.h.javaLangClass }

// Size returns the shallow size of the class mirror.
func (c *JavaClass) Size() int64 { return c.size }

func (c *JavaClass) String() string { return "class " + c.name }

// Superclass returns the direct superclass, or nil for roots of the hierarchy.
func (c *JavaClass) Superclass() *JavaClass { return c.super }

// Loader returns the defining class loader instance, or nil for the bootstrap loader.
func (c *JavaClass) Loader() Thing {
	if c.loaderID == 0 {
		return nil
	}
	return c.h.FindThing(c.loaderID)
}

// InstanceSize returns the instance field payload size recorded in the dump.
func (c *JavaClass) InstanceSize() int { return c.instanceSize }

// IsArray reports whether this is an array class.
func (c *JavaClass) IsArray() bool {
	return len(c.name) > 2 && c.name[len(c.name)-2:] == "[]"
}

// Fields returns the instance fields declared by this class only.
func (c *JavaClass) Fields() []*Field { return c.fields }

// AllFields returns instance fields in dump layout order: this class first,
// then each superclass.
func (c *JavaClass) AllFields() []*Field { return c.allFields }

// StaticFields returns the static field values in declaration order.
func (c *JavaClass) StaticFields() []FieldValue {
	out := make([]FieldValue, len(c.statics))
	for i, s := range c.statics {
		out[i] = FieldValue{Field: s.field, Value: c.h.resolve(s.value)}
	}
	return out
}

// StaticValue returns the value of the named static field.
func (c *JavaClass) StaticValue(name string) (interface{}, bool) {
	for _, s := range c.statics {
		if s.field.Name == name {
			return c.h.resolve(s.value), true
		}
	}
	return nil, false
}

// DirectSubclasses returns the immediate subclasses.
func (c *JavaClass) DirectSubclasses() []*JavaClass { return c.subclasses }

// Subclasses returns all transitive subclasses in pre-order, excluding c.
func (c *JavaClass) Subclasses() []*JavaClass {
	var out []*JavaClass
	var walk func(k *JavaClass)
	walk = func(k *JavaClass) {
		for _, s := range k.subclasses {
			out = append(out, s)
			walk(s)
		}
	}
	walk(c)
	return out
}

// Superclasses returns the superclass chain nearest first, excluding c.
func (c *JavaClass) Superclasses() []*JavaClass {
	var out []*JavaClass
	for s := c.super; s != nil; s = s.super {
		out = append(out, s)
	}
	return out
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *JavaClass) IsSubclassOf(other *JavaClass) bool {
	if other == nil {
		return false
	}
	for s := c; s != nil; s = s.super {
		if s.id == other.id {
			return true
		}
	}
	return false
}

// Instances returns the direct instances of the class in heap order.
func (c *JavaClass) Instances() []Instance { return c.instances }

// InstancesCount returns the number of instances, optionally including subclasses.
func (c *JavaClass) InstancesCount(includeSubclasses bool) int {
	n := len(c.instances)
	if includeSubclasses {
		for _, s := range c.Subclasses() {
			n += len(s.instances)
		}
	}
	return n
}

// GoString renders a debugging form with the ID.
func (c *JavaClass) GoString() string {
	return fmt.Sprintf("JavaClass{%s@%#x}", c.name, c.id)
}
