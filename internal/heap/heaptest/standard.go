package heaptest

import "github.com/heapql/internal/heap"

// Refs names the interesting objects of the standard fixture.
type Refs struct {
	FileInputStreams    []heap.ID
	BufferedInputStream heap.ID
	DataInputStream     heap.ID
	FinalizedStream     heap.ID

	Properties      heap.ID
	PropertiesTable heap.ID
	PropertyEntries []heap.ID

	HashMap      heap.ID
	HashMapTable heap.ID

	MainThread      heap.ID
	FinalizerThread heap.ID
	AppLoader       heap.ID
	ExtLoader       heap.ID
	Finalizer       heap.ID
	WeakRef         heap.ID
	WeakTarget      heap.ID
	FileSystem      heap.ID
	TmpFileLock     heap.ID
	SystemClass     heap.ID
	FileClass       heap.ID

	NodeA, NodeB, Orphan heap.ID
	EmptyIntArray        heap.ID
	IntArray             heap.ID
	Strings              map[string]heap.ID
}

var properties = []struct{ key, value string }{
	{"java.version", "1.6.0_20"},
	{"sun.cpu.isalist", ""},
	{"path.separator", ":"},
	{"user.name", "duke"},
}

// Standard builds the fixture heap shared by engine tests: a JDK 6 style
// class library slice with streams, properties, hash maps, threads,
// class loaders, finalizers, weak references and a reference cycle.
func Standard() (*heap.Heap, *Refs, error) {
	f := New()
	r := &Refs{Strings: make(map[string]heap.ID)}

	f.Class("java.lang.Object", "")
	f.Class("java.lang.Class", "java.lang.Object")
	f.Class("java.lang.String", "java.lang.Object",
		F("value", heap.TypeObject), F("offset", heap.TypeInt), F("count", heap.TypeInt), F("hash", heap.TypeInt))
	f.Class("java.lang.ClassLoader", "java.lang.Object", F("parent", heap.TypeObject))
	f.Class("sun.misc.Launcher$ExtClassLoader", "java.lang.ClassLoader")
	f.Class("sun.misc.Launcher$AppClassLoader", "java.lang.ClassLoader")
	f.Class("java.lang.Thread", "java.lang.Object",
		F("name", heap.TypeObject), F("priority", heap.TypeInt), F("daemon", heap.TypeBoolean))
	f.Class("java.lang.System", "java.lang.Object")

	f.Class("java.io.FileDescriptor", "java.lang.Object", F("fd", heap.TypeInt))
	f.Class("java.io.InputStream", "java.lang.Object")
	f.Class("java.io.FileInputStream", "java.io.InputStream", F("fd", heap.TypeObject), F("path", heap.TypeObject))
	f.Class("java.io.FilterInputStream", "java.io.InputStream", F("in", heap.TypeObject))
	f.Class("java.io.BufferedInputStream", "java.io.FilterInputStream",
		F("buf", heap.TypeObject), F("count", heap.TypeInt), F("pos", heap.TypeInt))
	f.Class("java.io.DataInputStream", "java.io.FilterInputStream")
	f.Class("java.io.UnixFileSystem", "java.lang.Object", F("slash", heap.TypeChar))
	f.Class("java.io.File", "java.lang.Object", F("path", heap.TypeObject), F("prefixLength", heap.TypeInt))

	f.Class("java.util.Dictionary", "java.lang.Object")
	f.Class("java.util.Hashtable", "java.util.Dictionary", F("table", heap.TypeObject), F("count", heap.TypeInt))
	f.Class("java.util.Hashtable$Entry", "java.lang.Object",
		F("hash", heap.TypeInt), F("key", heap.TypeObject), F("value", heap.TypeObject), F("next", heap.TypeObject))
	f.Class("java.util.Properties", "java.util.Hashtable", F("defaults", heap.TypeObject))
	f.Class("java.util.AbstractMap", "java.lang.Object")
	f.Class("java.util.HashMap", "java.util.AbstractMap", F("table", heap.TypeObject), F("size", heap.TypeInt))
	f.Class("java.util.HashMap$Entry", "java.lang.Object",
		F("key", heap.TypeObject), F("value", heap.TypeObject), F("next", heap.TypeObject), F("hash", heap.TypeInt))

	f.Class("java.lang.ref.Reference", "java.lang.Object",
		F("referent", heap.TypeObject), F("queue", heap.TypeObject), F("next", heap.TypeObject))
	f.Class("java.lang.ref.FinalReference", "java.lang.ref.Reference")
	f.Class("java.lang.ref.Finalizer", "java.lang.ref.FinalReference", F("prev", heap.TypeObject))
	f.Class("java.lang.ref.WeakReference", "java.lang.ref.Reference")
	f.Class("test.Node", "java.lang.Object", F("next", heap.TypeObject), F("value", heap.TypeInt))

	str := func(s string) heap.ID {
		id := f.String(s)
		if _, ok := r.Strings[s]; !ok {
			r.Strings[s] = id
		}
		return id
	}

	r.ExtLoader = f.Object("sun.misc.Launcher$ExtClassLoader", nil)
	r.AppLoader = f.Object("sun.misc.Launcher$AppClassLoader", map[string]interface{}{"parent": r.ExtLoader})
	f.SetLoader("test.Node", r.AppLoader)

	for i, p := range []string{"/etc/passwd", "/tmp/data.bin"} {
		fd := f.Object("java.io.FileDescriptor", map[string]interface{}{"fd": 3 + i})
		r.FileInputStreams = append(r.FileInputStreams,
			f.Object("java.io.FileInputStream", map[string]interface{}{"fd": fd, "path": str(p)}))
	}
	buf := f.PrimitiveArray(heap.TypeByte, int8(1), int8(2), int8(3), int8(4))
	r.BufferedInputStream = f.Object("java.io.BufferedInputStream", map[string]interface{}{
		"in": r.FileInputStreams[0], "buf": buf, "count": 4, "pos": 1,
	})
	r.DataInputStream = f.Object("java.io.DataInputStream", map[string]interface{}{"in": r.BufferedInputStream})

	var table []heap.ID
	for _, p := range properties {
		e := f.Object("java.util.Hashtable$Entry", map[string]interface{}{
			"hash": len(p.key), "key": str(p.key), "value": str(p.value),
		})
		r.PropertyEntries = append(r.PropertyEntries, e)
		table = append(table, e)
	}
	table = append(table, 0, 0)
	r.PropertiesTable = f.ObjectArray("java.util.Hashtable$Entry", table...)
	r.Properties = f.Object("java.util.Properties", map[string]interface{}{
		"table": r.PropertiesTable, "count": len(properties),
	})
	f.Static("java.lang.System", "props", heap.TypeObject, r.Properties)
	f.Static("java.lang.System", "in", heap.TypeObject, r.DataInputStream)

	e1 := f.Object("java.util.HashMap$Entry", map[string]interface{}{"key": str("alpha"), "value": str("one"), "hash": 1})
	e2 := f.Object("java.util.HashMap$Entry", map[string]interface{}{"key": str("beta"), "value": str("two"), "hash": 2})
	r.HashMapTable = f.ObjectArray("java.util.HashMap$Entry", e1, 0, e2, 0)
	r.HashMap = f.Object("java.util.HashMap", map[string]interface{}{"table": r.HashMapTable, "size": 2})

	r.MainThread = f.Object("java.lang.Thread", map[string]interface{}{
		"name": f.CharArray("main"), "priority": 5, "daemon": false,
	})
	r.FinalizerThread = f.Object("java.lang.Thread", map[string]interface{}{
		"name": f.CharArray("Finalizer"), "priority": 8, "daemon": true,
	})

	r.FileSystem = f.Object("java.io.UnixFileSystem", map[string]interface{}{"slash": "/"})
	r.TmpFileLock = f.Object("java.lang.Object", nil)
	f.Static("java.io.File", "$assertionsDisabled", heap.TypeBoolean, true)
	f.Static("java.io.File", "serialVersionUID", heap.TypeLong, int64(301077366599181567))
	f.Static("java.io.File", "fs", heap.TypeObject, r.FileSystem)
	f.Static("java.io.File", "separatorChar", heap.TypeChar, "/")
	f.Static("java.io.File", "separator", heap.TypeObject, str("/"))
	f.Static("java.io.File", "pathSeparatorChar", heap.TypeChar, ":")
	f.Static("java.io.File", "pathSeparator", heap.TypeObject, str(":"))
	f.Static("java.io.File", "tmpFileLock", heap.TypeObject, r.TmpFileLock)
	f.Static("java.io.File", "counter", heap.TypeInt, -1)
	f.Static("java.io.File", "tmpdir", heap.TypeObject, heap.ID(0))

	r.FinalizedStream = r.FileInputStreams[1]
	r.Finalizer = f.Object("java.lang.ref.Finalizer", map[string]interface{}{"referent": r.FinalizedStream})
	f.Static("java.lang.ref.Finalizer", "unfinalized", heap.TypeObject, r.Finalizer)

	r.WeakTarget = str("weakly held")
	r.WeakRef = f.Object("java.lang.ref.WeakReference", map[string]interface{}{"referent": r.WeakTarget})
	f.Static("java.lang.Thread", "weakCache", heap.TypeObject, r.WeakRef)

	r.NodeA = f.Reserve()
	r.NodeB = f.Object("test.Node", map[string]interface{}{"next": r.NodeA, "value": 2})
	f.ObjectWithID(r.NodeA, "test.Node", map[string]interface{}{"next": r.NodeB, "value": 1})
	r.Orphan = f.Object("test.Node", map[string]interface{}{"next": r.NodeA, "value": 3})

	r.IntArray = f.PrimitiveArray(heap.TypeInt, int32(1), int32(2), int32(3))
	r.EmptyIntArray = f.PrimitiveArray(heap.TypeInt)
	f.PrimitiveArray(heap.TypeBoolean, true, false)
	f.PrimitiveArray(heap.TypeShort, int16(7))
	f.PrimitiveArray(heap.TypeLong, int64(1)<<40)
	f.PrimitiveArray(heap.TypeFloat, float32(1.5))
	f.PrimitiveArray(heap.TypeDouble, 2.25)

	r.SystemClass = f.ClassID("java.lang.System")
	r.FileClass = f.ClassID("java.io.File")
	for _, name := range f.order {
		f.Root(heap.RootStickyClass, f.ClassID(name))
	}
	f.Root(heap.RootThreadObject, r.MainThread)
	f.Root(heap.RootThreadObject, r.FinalizerThread)
	f.Root(heap.RootJNIGlobal, r.NodeB)
	f.Root(heap.RootJavaFrame, r.HashMap)

	h, err := f.Build()
	if err != nil {
		return nil, nil, err
	}
	return h, r, nil
}
