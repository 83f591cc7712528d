package oql

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapql/internal/heap"
	"github.com/heapql/internal/heap/heaptest"
	apperrors "github.com/heapql/pkg/errors"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *heaptest.Refs) {
	t.Helper()
	h, refs, err := heaptest.Standard()
	require.NoError(t, err)
	return NewEngine(h, opts...), refs
}

func collect(t *testing.T, e *Engine, query string) []interface{} {
	t.Helper()
	var rows []interface{}
	err := e.ExecuteQuery(context.Background(), query, VisitorFunc(func(r interface{}) bool {
		rows = append(rows, r)
		return false
	}))
	require.NoError(t, err, query)
	return rows
}

func single(t *testing.T, e *Engine, query string) interface{} {
	t.Helper()
	rows := collect(t, e, query)
	require.Len(t, rows, 1, query)
	return rows[0]
}

func ids(rows []interface{}) []heap.ID {
	out := make([]heap.ID, 0, len(rows))
	for _, r := range rows {
		if th, ok := r.(heap.Thing); ok {
			out = append(out, th.ID())
		}
	}
	return out
}

func TestEngine_SelectFrom(t *testing.T) {
	e, refs := newTestEngine(t)

	rows := collect(t, e, `select s from java.lang.String s where s.toString() == "alpha"`)
	assert.Equal(t, []heap.ID{refs.Strings["alpha"]}, ids(rows))

	rows = collect(t, e, "select m.size from java.util.HashMap m")
	assert.Equal(t, []interface{}{int32(2)}, rows)

	rows = collect(t, e, "select f from java.io.File f")
	assert.Empty(t, rows)
}

func TestEngine_InstanceOf(t *testing.T) {
	e, refs := newTestEngine(t)

	assert.Len(t, collect(t, e, "select c from instanceof java.lang.ClassLoader c"), 2)
	assert.Empty(t, collect(t, e, "select c from java.lang.ClassLoader c"))

	rows := collect(t, e, "select s from instanceof java.io.InputStream s")
	assert.ElementsMatch(t, []heap.ID{
		refs.FileInputStreams[0], refs.FileInputStreams[1], refs.BufferedInputStream, refs.DataInputStream,
	}, ids(rows))

	assert.Equal(t, 4, single(t, e, `select count(heap.objects("java.io.InputStream"))`))
	assert.Equal(t, 0, single(t, e, `select count(heap.objects("java.io.InputStream", false))`))
}

func TestEngine_PrimitiveArrayAliases(t *testing.T) {
	e, refs := newTestEngine(t)

	rows := collect(t, e, "select a from [I a where a.length > 1")
	assert.Equal(t, []heap.ID{refs.IntArray}, ids(rows))

	for _, alias := range []string{"[Z", "[S", "[J", "[F", "[D"} {
		assert.Len(t, collect(t, e, "select a from "+alias+" a"), 1, alias)
	}
}

func TestEngine_NumericTypes(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		query string
		want  interface{}
	}{
		{`select count(heap.objects("java.io.InputStream"))`, 4},
		{`select count(heap.objects("java.io.InputStream"), "true")`, float64(4)},
		{`select length([1, 2, 3])`, 3},
		{`select length("héllo")`, 5},
		{`select 1 + 2`, float64(3)},
		{`select sum([1, 2, 3.5])`, 6.5},
		{`select "a" + 1`, "a1"},
		{`select 7 % 4`, float64(3)},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, single(t, e, tt.query))
		})
	}

	size := single(t, e, "select sizeof(m) from java.util.HashMap m")
	assert.IsType(t, int64(0), size)
	assert.Greater(t, size.(int64), int64(0))

	assert.Equal(t, true, single(t, e, "select rsizeof(m) >= sizeof(m) from java.util.HashMap m"))
}

func TestEngine_ClassFields(t *testing.T) {
	e, _ := newTestEngine(t)

	rows := collect(t, e, `select map(heap.findClass("java.io.File").fields, 'toHtml(it.field.name) + " = " + toHtml(it.value)')`)
	require.Len(t, rows, 12)
	assert.Equal(t, "$assertionsDisabled = true", rows[0])
	assert.Equal(t, "serialVersionUID = 301077366599181567", rows[1])
	assert.Equal(t, "counter = -1", rows[8])
	assert.Equal(t, "tmpdir = null", rows[9])
	assert.Equal(t, "path = undefined", rows[10])
	assert.Equal(t, "prefixLength = undefined", rows[11])

	sigs := collect(t, e, `select map(heap.findClass("java.io.File").fields, "it.name + ':' + it.signature + ':' + it.static")`)
	assert.Equal(t, "counter:int:true", sigs[8])
	assert.Equal(t, "path:Object:false", sigs[10])
}

func TestEngine_ToHtml(t *testing.T) {
	e, refs := newTestEngine(t)

	tests := []struct {
		query string
		want  string
	}{
		{`select toHtml(heap.findClass("java.io.File"))`, "<a href='file://class/java.io.File'>class java.io.File</a>"},
		{`select toHtml("<b>")`, "&lt;b&gt;"},
		{`select toHtml(null)`, "null"},
		{`select toHtml([1, "a"])`, "[ 1, a ]"},
		{`select toHtml({ a: 1, b: "x" })`, "{ a:1, b:x, }"},
		{`select toHtml({ toHtml: function() { return "custom"; } })`, "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, single(t, e, tt.query))
		})
	}

	rows := collect(t, e, `select map(heap.findClass("java.io.File").statics, 'index + "=" + toHtml(it)')`)
	require.Len(t, rows, 10)
	assert.Equal(t, "$assertionsDisabled=true", rows[0])
	assert.Contains(t, rows[2], fmt.Sprintf("fs=<a href='file://instance/java.io.UnixFileSystem@%d'>java.io.UnixFileSystem#", refs.FileSystem))
}

func TestEngine_MapFlattensSequences(t *testing.T) {
	e, refs := newTestEngine(t)

	rows := collect(t, e, `select map(heap.findClass("java.io.InputStream").subclasses(), "it.instances()")`)
	assert.ElementsMatch(t, []heap.ID{
		refs.FileInputStreams[0], refs.FileInputStreams[1], refs.BufferedInputStream, refs.DataInputStream,
	}, ids(rows))

	rows = collect(t, e, `select map([1, 2], "[it, it * 10]")`)
	assert.Equal(t, []interface{}{
		[]interface{}{float64(1), float64(10)},
		[]interface{}{float64(2), float64(20)},
	}, rows)
}

func TestEngine_ResultParameter(t *testing.T) {
	e, _ := newTestEngine(t)

	n := single(t, e, `count(heap.objects("[C"))`).(int)
	require.Greater(t, n, 2)

	rows := collect(t, e, `select map(heap.objects("[C"), "length(result)")`)
	want := make([]interface{}, n)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, rows)

	rows = collect(t, e, `select filter(heap.objects("[C"), "length(result) < 2")`)
	assert.Len(t, rows, 2)
}

func TestInterp_UsesParam(t *testing.T) {
	e, _ := newTestEngine(t)
	in := newInterp(context.Background(), e)

	closure := func(src string) interface{} {
		x, err := parseExpressionSource(src)
		require.NoError(t, err)
		v, err := in.eval(x, in.globals)
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		name     string
		callback interface{}
		want     bool
	}{
		{"expression without result", "it.size > 10", false},
		{"expression reading result", "length(result) > 0", true},
		{"result inside object literal", "{ n: result.length }", true},
		{"member named result", "it.result", false},
		{"closure without result", closure("function(it, index) { return it; }"), false},
		{"closure reading result", closure("function(it, index, array, acc) { return acc.length; }"), true},
		{"closure with unused result", closure("function(it, index, array, acc) { return it; }"), false},
		{"native", in.globals.vars["length"], true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, in.usesParam(tt.callback, itemParams, 3))
		})
	}
}

func TestEngine_ReferenceDuality(t *testing.T) {
	e, refs := newTestEngine(t)

	rows := collect(t, e, fmt.Sprintf(`
		var b = heap.findObject("%d");
		var f = heap.findObject("%d");
		[refers(b, f), contains(referees(b), "identical(it, f)"), contains(referrers(f), "identical(it, b)"), refers(f, b)]`,
		refs.BufferedInputStream, refs.FileInputStreams[0]))
	assert.Equal(t, []interface{}{true, true, true, false}, rows)

	// every referee of every stream lists the stream among its referrers
	bad := single(t, e, `
		var bad = 0;
		heap.forEachObject(function(s) {
			forEachReferee(function(r) {
				if (!contains(referrers(r), function(x) { return identical(x, s); })) bad++;
			}, s);
		}, "java.io.InputStream");
		bad`)
	assert.Equal(t, float64(0), bad)

	var visited []interface{}
	err := e.ExecuteQuery(context.Background(), fmt.Sprintf(`
		var seen = [];
		forEachReferrer(function(r) { seen.push(objectid(r)); }, heap.findObject("%d"));
		seen`, refs.FileInputStreams[0]), VisitorFunc(func(r interface{}) bool {
		visited = append(visited, r)
		return false
	}))
	require.NoError(t, err)
	assert.Contains(t, visited, fmt.Sprint(refs.BufferedInputStream))
}

func TestEngine_StableRowOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	fresh, _ := newTestEngine(t)

	for _, q := range []string{
		`select referrers(s) from java.lang.String s`,
		`select referees(o) from instanceof java.lang.Object o`,
		`select heap.objects("java.lang.Object")`,
		`select s from instanceof java.io.InputStream s`,
	} {
		first := ids(collect(t, e, q))
		require.NotEmpty(t, first, q)
		assert.Equal(t, first, ids(collect(t, e, q)), q)
		assert.Equal(t, first, ids(collect(t, fresh, q)), q)
	}
}

func TestEngine_Reachables(t *testing.T) {
	e, refs := newTestEngine(t)

	rows := collect(t, e, fmt.Sprintf(`select reachables(heap.findObject("%d"))`, refs.NodeB))
	assert.ElementsMatch(t, []heap.ID{refs.NodeA, refs.NodeB}, ids(rows))

	rows = collect(t, e, fmt.Sprintf(`select reachables(heap.findObject("%d"), "test.Node.next")`, refs.NodeB))
	assert.Empty(t, rows)

	rows = collect(t, e, fmt.Sprintf(`select reachables(heap.findObject("%d"), "it.value == 1")`, refs.NodeB))
	assert.Empty(t, rows)

	rows = collect(t, e, fmt.Sprintf(`select heap.reachables(heap.findObject("%d"))`, refs.Orphan))
	assert.ElementsMatch(t, []heap.ID{refs.NodeA, refs.NodeB}, ids(rows))

	// Inherited fields resolve to the class declaring them.
	rows = collect(t, e, fmt.Sprintf(`select reachables(heap.findObject("%d"))`, refs.WeakRef))
	assert.Contains(t, ids(rows), refs.WeakTarget)
	rows = collect(t, e, fmt.Sprintf(`select reachables(heap.findObject("%d"), "java.lang.ref.WeakReference.referent")`, refs.WeakRef))
	assert.NotContains(t, ids(rows), refs.WeakTarget)

	// A missing field is not a field list; as a predicate it fails loudly.
	err := e.ExecuteQuery(context.Background(),
		fmt.Sprintf(`select reachables(heap.findObject("%d"), "test.Node.bogus")`, refs.NodeB), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeQueryError, apperrors.GetErrorCode(err))
}

func TestEngine_ReachableExcludesOption(t *testing.T) {
	e, refs := newTestEngine(t, WithReachableExcludes("java.lang.ref.Reference.referent"))

	rows := collect(t, e, fmt.Sprintf(`select reachables(heap.findObject("%d"))`, refs.WeakRef))
	assert.NotContains(t, ids(rows), refs.WeakTarget)
}

func TestEngine_TopAndSort(t *testing.T) {
	e, _ := newTestEngine(t)

	rows := collect(t, e, `
		var xs = [5, 1, 4, 2, 3];
		[top(xs)[0] == sort(xs)[4], top(xs, "lhs - rhs", 2).length, top(xs, "rhs - lhs")[0], sort(xs, "rhs - lhs")[0]]`)
	assert.Equal(t, []interface{}{true, 2, float64(1), float64(5)}, rows)

	// ties resolve to the same element in both
	same := single(t, e, `select identical(
		top(heap.objects("java.lang.String"), "sizeof(lhs) - sizeof(rhs)", 1)[0],
		sort(heap.objects("java.lang.String"), "sizeof(lhs) - sizeof(rhs)")[length(heap.objects("java.lang.String")) - 1])`)
	assert.Equal(t, true, same)

	assert.Equal(t, float64(1), single(t, e, "select min([3, 1, 2])"))
	assert.Equal(t, float64(3), single(t, e, "select max([3, 1, 2])"))
	assert.Equal(t, "bb", single(t, e, `select max(["a", "bb", "c"], "lhs.length > rhs.length")`))
}

func TestEngine_Unique(t *testing.T) {
	e, _ := newTestEngine(t)

	rows := collect(t, e, `select unique(map(heap.objects("java.lang.ClassLoader"), "it.clazz.name"))`)
	assert.ElementsMatch(t, []interface{}{"sun.misc.Launcher$ExtClassLoader", "sun.misc.Launcher$AppClassLoader"}, rows)

	rows = collect(t, e, `select unique([1, 2, 3, 4], "it % 2")`)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, rows)
}

func TestEngine_VisitorStop(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, query := range []string{
		"select s from java.lang.String s",
		`select heap.objects("java.lang.String")`,
	} {
		n := 0
		err := e.ExecuteQuery(context.Background(), query, VisitorFunc(func(interface{}) bool {
			n++
			return n == 3
		}))
		require.NoError(t, err)
		assert.Equal(t, 3, n, query)
	}
}

func TestEngine_NilVisitor(t *testing.T) {
	var out bytes.Buffer
	e, _ := newTestEngine(t, WithOutput(&out))

	require.NoError(t, e.ExecuteQuery(context.Background(), "select s from java.lang.String s", nil))
	require.NoError(t, e.ExecuteQuery(context.Background(), `print("side"); println(" effect")`, nil))
	assert.Equal(t, "side effect\n", out.String())
}

func TestEngine_Print(t *testing.T) {
	var out bytes.Buffer
	e, _ := newTestEngine(t, WithOutput(&out))

	collect(t, e, `print("a"); println(1 + 1); println(); print(heap.findClass("java.io.File"))`)
	assert.Equal(t, "a2\n\nclass java.io.File", out.String())
}

func TestEngine_Scripts(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name  string
		query string
		want  interface{}
	}{
		{"completion value", "var total = 0; for (var i = 1; i <= 4; i++) { total += i; } total", float64(10)},
		{"for in object", `var o = {a: 1, b: 2}; var ks = []; for (var k in o) { ks.push(k); } ks.join(",")`, "a,b"},
		{"for of array", `var s = 0; for (var x of [1, 2, 3]) { s += x; } s`, float64(6)},
		{"closures", "function adder(n) { return function(x) { return x + n; }; } adder(2)(3)", float64(5)},
		{"hoisting", "twice(4); function twice(x) { return 2 * x; }", float64(8)},
		{"caller scope in callbacks", `var limit = 2; count([1, 2, 3], "it > limit")`, float64(1)},
		{"while and break", "var n = 0; while (true) { n++; if (n == 5) break; } n", float64(5)},
		{"try catch", `try { throw "boom"; } catch (e) { e + "!" }`, "boom!"},
		{"catch eval error", `var r; try { undefinedFunction(); } catch (e) { r = "caught"; } r`, "caught"},
		{"typeof", `typeof heap.findClass("java.io.File") + "," + typeof 1 + "," + typeof undefined`, "object,number,undefined"},
		{"loose equality", `[null == undefined, 1 == "1", 1 === "1"].join(",")`, "true,true,false"},
		{"string methods", `"Hello".toLowerCase().replace("l", "L").substring(1, 4)`, "eLl"},
		{"ternary", `var x = 3; x > 2 ? "big" : "small"`, "big"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, single(t, e, tt.query))
		})
	}

	rows := collect(t, e, "map([1, 2], function(x) { return x * 2; })")
	assert.Equal(t, []interface{}{float64(2), float64(4)}, rows)
}

func TestEngine_HeapObject(t *testing.T) {
	e, refs := newTestEngine(t)

	assert.Equal(t, true, single(t, e, "var n = 0; heap.forEachClass(function(c) { n++; }); n == length(heap.classes())"))
	assert.Equal(t, fmt.Sprint(refs.HashMap), single(t, e, fmt.Sprintf(`select objectid(heap.findObject("0x%x"))`, refs.HashMap)))
	assert.Nil(t, single(t, e, `select heap.findObject("12345678")`))
	assert.Nil(t, single(t, e, `select heap.findClass("com.example.Missing")`))
	assert.Equal(t, len(e.Heap().Roots()), single(t, e, "select count(heap.roots())"))

	rows := collect(t, e, "select heap.finalizables()")
	assert.Equal(t, []heap.ID{refs.FinalizedStream}, ids(rows))

	rows = collect(t, e, `select heap.objects("java.util.HashMap$Entry", true, "it.value.toString() == 'two'")`)
	require.Len(t, rows, 1)

	paths := collect(t, e, fmt.Sprintf(`select heap.livepaths(heap.findObject("%d"))`, refs.NodeA))
	require.NotEmpty(t, paths)
	chain, ok := paths[0].(*heap.ReferenceChain)
	require.True(t, ok)
	assert.Equal(t, refs.NodeA, chain.Target().ID())

	assert.Empty(t, collect(t, e, fmt.Sprintf(`select heap.livepaths(heap.findObject("%d"))`, refs.Orphan)))

	root := single(t, e, fmt.Sprintf(`select root(heap.findObject("%d"))`, refs.MainThread))
	assert.IsType(t, &heap.GCRoot{}, root)

	assert.Equal(t, "java.util.HashMap", single(t, e, "select classof(m).name from java.util.HashMap m"))
	assert.Equal(t, true, single(t, e, fmt.Sprintf(
		`select heap.describeRef(heap.findObject("%d"), heap.findObject("%d")) != "??"`, refs.HashMap, refs.HashMapTable)))
}

func TestEngine_ClassMembers(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, "java.io.FilterInputStream", single(t, e, `select heap.findClass("java.io.BufferedInputStream").superclass.name`))
	assert.Equal(t, "/", single(t, e, `select heap.findClass("java.io.File").separator.toString()`))
	assert.Equal(t, true, single(t, e, `select heap.findClass("java.io.DataInputStream").isSubclassOf(heap.findClass("java.io.InputStream"))`))
	assert.Len(t, collect(t, e, `select map(heap.findClass("java.io.InputStream").subclasses(), "it.name")`), 4)
	assert.Equal(t, 4, single(t, e, `select count(heap.findClass("java.io.InputStream").instances(true))`))

	rows := collect(t, e, `select s.toString().toUpperCase() from java.lang.String s where s.toString().startsWith("/etc")`)
	assert.Equal(t, []interface{}{"/ETC/PASSWD"}, rows)

	rows = collect(t, e, `select t.name.toString() from java.lang.Thread t where t.daemon`)
	assert.Equal(t, []interface{}{"Finalizer"}, rows)
}

func TestEngine_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"syntax", "select s from [[I s", apperrors.CodeParseError},
		{"callback syntax", `select filter([1], "it >")`, apperrors.CodeParseError},
		{"unknown class", "select s from com.example.Missing s", apperrors.CodeQueryError},
		{"unknown function", "select undefinedFunction(1)", apperrors.CodeQueryError},
		{"not a collection", "select map(1, 'it')", apperrors.CodeQueryError},
		{"uncaught throw", `throw "boom"`, apperrors.CodeQueryError},
		{"runaway recursion", "function f() { return f(); } f()", apperrors.CodeQueryError},
		{"length of number", "select length(1)", apperrors.CodeQueryError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ExecuteQuery(ctx, tt.query, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetErrorCode(err))
		})
	}
}

func TestEngine_ParseErrorEvaluatesNothing(t *testing.T) {
	var out bytes.Buffer
	e, _ := newTestEngine(t, WithOutput(&out))

	err := e.ExecuteQuery(context.Background(), `print("x"); var = 1`, nil)
	assert.True(t, apperrors.IsParseError(err))
	assert.Empty(t, out.String())
}

func TestEngine_Cancellation(t *testing.T) {
	t.Run("cancelled context", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := e.ExecuteQuery(ctx, "select s from java.lang.String s", nil)
		assert.True(t, apperrors.IsCancelled(err))
	})

	t.Run("cancel from visitor", func(t *testing.T) {
		e, _ := newTestEngine(t)
		n := 0
		err := e.ExecuteQuery(context.Background(), "select s from java.lang.String s", VisitorFunc(func(interface{}) bool {
			n++
			e.Cancel()
			return false
		}))
		assert.True(t, apperrors.IsCancelled(err))
		assert.Equal(t, 1, n)
		assert.True(t, e.IsCancelled())

		require.NoError(t, e.ExecuteQuery(context.Background(), "select 1", nil))
		assert.False(t, e.IsCancelled())
	})

	t.Run("deadline stops endless loop", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := e.ExecuteQuery(ctx, "while (true) {}", nil)
		assert.True(t, apperrors.IsCancelled(err))
	})

	t.Run("try does not catch cancellation", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := e.ExecuteQuery(ctx, "try { while (true) {} } catch (e) { 1 }", nil)
		assert.True(t, apperrors.IsCancelled(err))
	})
}

func TestEngine_ExecuteParsed(t *testing.T) {
	e, _ := newTestEngine(t)
	q, err := Parse("select m from java.util.HashMap m")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		n := 0
		require.NoError(t, e.Execute(context.Background(), q, VisitorFunc(func(interface{}) bool {
			n++
			return false
		})))
		assert.Equal(t, 1, n)
	}
}
