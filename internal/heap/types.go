package heap

import (
	"fmt"
	"strings"
)

// ID identifies a class or instance in the snapshot.
type ID = uint64

// BasicType represents the HPROF encoding of Java field and array element types.
type BasicType uint8

const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

// Size returns the encoded size in bytes for a basic type.
func (t BasicType) Size(idSize int) int {
	switch t {
	case TypeObject:
		return idSize
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeFloat, TypeInt:
		return 4
	case TypeDouble, TypeLong:
		return 8
	default:
		return 0
	}
}

// Name returns the Java source name of the type ("int", "boolean", "Object").
func (t BasicType) Name() string {
	switch t {
	case TypeObject:
		return "Object"
	case TypeBoolean:
		return "boolean"
	case TypeChar:
		return "char"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known HPROF basic type.
func (t BasicType) Valid() bool {
	return t == TypeObject || (t >= TypeBoolean && t <= TypeLong)
}

// heapSize is the in-JVM size of a field of this type under mode.
func (t BasicType) heapSize(mode SizeMode) int64 {
	if t == TypeObject {
		return referenceSize(mode)
	}
	return int64(t.Size(0))
}

// PrimitiveTypes lists the element types of primitive arrays in descriptor order.
var PrimitiveTypes = []BasicType{
	TypeBoolean, TypeChar, TypeFloat, TypeDouble, TypeByte, TypeShort, TypeInt, TypeLong,
}

// PrimitiveArrayClassName returns the class name of a primitive array, e.g. "int[]".
func PrimitiveArrayClassName(t BasicType) string {
	return t.Name() + "[]"
}

var descriptorTypes = map[byte]BasicType{
	'Z': TypeBoolean,
	'C': TypeChar,
	'F': TypeFloat,
	'D': TypeDouble,
	'B': TypeByte,
	'S': TypeShort,
	'I': TypeInt,
	'J': TypeLong,
}

// NormalizeClassName converts JVM internal names and array descriptors into
// the dotted source form used throughout the model:
//
//	java/lang/String      -> java.lang.String
//	[I                    -> int[]
//	[[Ljava/lang/Object;  -> java.lang.Object[][]
//	[java.lang.String     -> java.lang.String[]
func NormalizeClassName(name string) string {
	name = strings.ReplaceAll(name, "/", ".")
	if !strings.HasPrefix(name, "[") {
		return name
	}

	dims := 0
	for strings.HasPrefix(name, "[") {
		dims++
		name = name[1:]
	}

	var base string
	switch {
	case len(name) == 1 && descriptorTypes[name[0]] != 0:
		base = descriptorTypes[name[0]].Name()
	case strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";"):
		base = name[1 : len(name)-1]
	default:
		base = strings.TrimSuffix(name, ";")
	}
	return base + strings.Repeat("[]", dims)
}

// SizeMode controls how shallow sizes are calculated.
type SizeMode int

const (
	// SizeModeCompressedOops uses a 12-byte header and 4-byte references.
	SizeModeCompressedOops SizeMode = iota
	// SizeModeNonCompressed uses a 16-byte header and 8-byte references.
	SizeModeNonCompressed
)

// ParseSizeMode maps a configuration string to a SizeMode.
func ParseSizeMode(s string) SizeMode {
	switch strings.ToLower(s) {
	case "noncompressed", "non-compressed", "uncompressed":
		return SizeModeNonCompressed
	default:
		return SizeModeCompressedOops
	}
}

func objectHeaderSize(mode SizeMode) int64 {
	if mode == SizeModeNonCompressed {
		return 16
	}
	return 12
}

func referenceSize(mode SizeMode) int64 {
	if mode == SizeModeNonCompressed {
		return 8
	}
	return 4
}

func arrayHeaderSize(mode SizeMode) int64 {
	return objectHeaderSize(mode) + 4
}

// classObjectSize approximates the shallow size of a java.lang.Class mirror.
func classObjectSize(mode SizeMode, staticCount int) int64 {
	core := int64(15)*referenceSize(mode) + 20
	return alignTo8(objectHeaderSize(mode) + core + int64(staticCount)*referenceSize(mode))
}

func alignTo8(size int64) int64 {
	return (size + 7) &^ 7
}

// RootKind is the kind of a GC root.
type RootKind string

const (
	RootUnknown        RootKind = "UNKNOWN"
	RootJNIGlobal      RootKind = "JNI_GLOBAL"
	RootJNILocal       RootKind = "JNI_LOCAL"
	RootJavaFrame      RootKind = "JAVA_FRAME"
	RootNativeStack    RootKind = "NATIVE_STACK"
	RootStickyClass    RootKind = "STICKY_CLASS"
	RootThreadBlock    RootKind = "THREAD_BLOCK"
	RootMonitorUsed    RootKind = "MONITOR_USED"
	RootThreadObject   RootKind = "THREAD_OBJECT"
	RootInternedString RootKind = "INTERNED_STRING"
	RootFinalizing     RootKind = "FINALIZING"
	RootDebugger       RootKind = "DEBUGGER"
	RootReferenceClean RootKind = "REFERENCE_CLEANUP"
	RootVMInternal     RootKind = "VM_INTERNAL"
	RootJNIMonitor     RootKind = "JNI_MONITOR"
)

var rootDescriptions = map[RootKind]string{
	RootUnknown:        "unknown root",
	RootJNIGlobal:      "JNI global",
	RootJNILocal:       "JNI local",
	RootJavaFrame:      "Java local",
	RootNativeStack:    "native stack",
	RootStickyClass:    "system class",
	RootThreadBlock:    "thread block",
	RootMonitorUsed:    "busy monitor",
	RootThreadObject:   "thread object",
	RootInternedString: "interned string",
	RootFinalizing:     "finalizing",
	RootDebugger:       "debugger",
	RootReferenceClean: "reference cleanup",
	RootVMInternal:     "VM internal",
	RootJNIMonitor:     "JNI monitor",
}

// GCRoot is a reference held by the virtual machine outside the object graph.
type GCRoot struct {
	ObjectID   ID
	Kind       RootKind
	ThreadID   ID
	FrameIndex int
}

// Description returns a human readable description of the root.
func (r *GCRoot) Description() string {
	if d, ok := rootDescriptions[r.Kind]; ok {
		return "Reference from " + d
	}
	return "Reference from " + strings.ToLower(string(r.Kind))
}
