package oql

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/heapql/internal/heap"
)

// Script values are plain interface{} values:
//
//	nil            null
//	undefined      undefined
//	bool, string   booleans and strings
//	float64        numbers produced by arithmetic; heap numerics
//	               (int8..int64, float32, uint64 ids) are numbers too
//	*jsArray       array literals and materialized collections
//	*jsObject      object literals
//	*closure       script functions
//	*native        built-in functions and bound methods
//	*seq           lazy sequences
//	heap.Thing     classes and instances
//	*heap.GCRoot, *fieldInfo, *livePath
type undefinedType struct{}

var undefined = undefinedType{}

type jsArray struct {
	elems []interface{}
}

func newArray(elems []interface{}) *jsArray {
	return &jsArray{elems: elems}
}

// jsObject keeps its keys in insertion order.
type jsObject struct {
	keys   []string
	values map[string]interface{}
}

func newObject() *jsObject {
	return &jsObject{values: make(map[string]interface{})}
}

func (o *jsObject) get(key string) (interface{}, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *jsObject) set(key string, v interface{}) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

type closure struct {
	fn  *funcLit
	env *scope
}

type native struct {
	name string
	fn   func(args []interface{}) (interface{}, error)
}

func newNative(name string, fn func(args []interface{}) (interface{}, error)) *native {
	return &native{name: name, fn: fn}
}

// errStop ends an iteration early. Producers pass it through untouched;
// only seq.forEach swallows it.
var errStop = errors.New("stop iteration")

// seq is a lazy, re-iterable sequence. each pushes elements to yield until
// the sequence is exhausted or yield returns an error.
type seq struct {
	each func(yield func(v interface{}) error) error
}

func (s *seq) forEach(fn func(v interface{}) error) error {
	if err := s.each(fn); err != nil && err != errStop {
		return err
	}
	return nil
}

func (s *seq) toSlice() ([]interface{}, error) {
	var out []interface{}
	err := s.forEach(func(v interface{}) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

func sliceSeq(elems []interface{}) *seq {
	return &seq{each: func(yield func(interface{}) error) error {
		for _, v := range elems {
			if err := yield(v); err != nil {
				return err
			}
		}
		return nil
	}}
}

func thingSeq[T heap.Thing](things []T) *seq {
	return &seq{each: func(yield func(interface{}) error) error {
		for _, t := range things {
			if err := yield(heap.Thing(t)); err != nil {
				return err
			}
		}
		return nil
	}}
}

// fieldInfo is the script view of a declared field.
type fieldInfo struct {
	field *heap.Field
	value interface{}
}

// livePath is the script view of a reference chain.
type livePath struct {
	chain *heap.ReferenceChain
}

// isCollection reports whether v can be iterated element by element.
func isCollection(v interface{}) bool {
	switch v.(type) {
	case *jsArray, *jsObject, *seq, *heap.ObjectArray, *heap.PrimitiveArray, *livePath:
		return true
	}
	return false
}

// iterate calls fn with each key and element of a collection. Arrays and
// sequences use numeric positions as keys; objects use their property names.
func iterate(v interface{}, fn func(key, val interface{}) error) error {
	switch c := v.(type) {
	case *jsArray:
		for i, e := range c.elems {
			if err := fn(float64(i), e); err != nil {
				return err
			}
		}
	case *jsObject:
		for _, k := range c.keys {
			if err := fn(k, c.values[k]); err != nil {
				return err
			}
		}
	case *seq:
		i := 0
		return c.each(func(e interface{}) error {
			err := fn(float64(i), e)
			i++
			return err
		})
	case *heap.ObjectArray:
		for i := 0; i < c.Length(); i++ {
			if err := fn(float64(i), thingOrNull(c.Element(i))); err != nil {
				return err
			}
		}
	case *heap.PrimitiveArray:
		for i := 0; i < c.Length(); i++ {
			if err := fn(float64(i), c.Value(i)); err != nil {
				return err
			}
		}
	case *livePath:
		for i, t := range c.chain.Objects {
			if err := fn(float64(i), t); err != nil {
				return err
			}
		}
	default:
		return evalErrorf("%s is not iterable", describe(v))
	}
	return nil
}

// forEachElement iterates a collection and swallows errStop.
func forEachElement(v interface{}, fn func(key, val interface{}) error) error {
	if err := iterate(v, fn); err != nil && err != errStop {
		return err
	}
	return nil
}

func toSlice(v interface{}) ([]interface{}, error) {
	if a, ok := v.(*jsArray); ok {
		return a.elems, nil
	}
	var out []interface{}
	err := forEachElement(v, func(_, e interface{}) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// thingOrNull avoids typed-nil interface values.
func thingOrNull(t heap.Thing) interface{} {
	if t == nil {
		return nil
	}
	return t
}

// asThing converts a value to a heap thing; nil and non-things yield nil.
func asThing(v interface{}) heap.Thing {
	switch t := v.(type) {
	case heap.Thing:
		return t
	case *fieldInfo:
		return asThing(t.value)
	}
	return nil
}

func toNumberOK(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func isNumber(v interface{}) bool {
	_, ok := toNumberOK(v)
	return ok
}

func toNumber(v interface{}) float64 {
	if n, ok := toNumberOK(v); ok {
		return n
	}
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return parseNumber(x)
	case heap.Thing:
		if s, ok := javaString(x); ok {
			return parseNumber(s)
		}
	}
	return math.NaN()
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n, err := strconv.ParseUint(s[2:], 16, 64); err == nil {
			return float64(n)
		}
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == math.Trunc(n) && math.Abs(n) < 1e21:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// javaString returns the contents of java.lang.String instances and char arrays.
func javaString(t heap.Thing) (string, bool) {
	if s, ok := heap.JavaString(t); ok {
		return s, true
	}
	if a, ok := t.(*heap.PrimitiveArray); ok && a.ElementType() == heap.TypeChar {
		u := make([]uint16, 0, a.Length())
		for i := 0; i < a.Length(); i++ {
			if s, ok := a.Value(i).(string); ok {
				u = append(u, utf16.Encode([]rune(s))...)
			}
		}
		return string(utf16.Decode(u)), true
	}
	return "", false
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int8, int16, int32, int:
		n, _ := toNumberOK(x)
		return strconv.FormatInt(int64(n), 10)
	case float64:
		return formatNumber(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case undefinedType:
		return "undefined"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case heap.Thing:
		if s, ok := javaString(x); ok {
			return s
		}
		return x.String()
	case *heap.GCRoot:
		return x.Description()
	case *fieldInfo:
		return x.field.Name
	case *livePath:
		return x.chain.String()
	case *jsArray:
		return joinValues(x.elems, ",")
	case *seq:
		elems, err := x.toSlice()
		if err != nil {
			return "[sequence]"
		}
		return joinValues(elems, ",")
	case *jsObject:
		return "[object Object]"
	case *closure:
		return "function " + x.fn.name + "() { [script] }"
	case *native:
		return "function " + x.name + "() { [native code] }"
	}
	return "[object]"
}

func joinValues(elems []interface{}, sep string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if e == nil || e == undefined {
			continue
		}
		parts[i] = toString(e)
	}
	return strings.Join(parts, sep)
}

func truthy(v interface{}) bool {
	if n, ok := toNumberOK(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	switch x := v.(type) {
	case nil, undefinedType:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	return true
}

func typeOf(v interface{}) string {
	if isNumber(v) {
		return "number"
	}
	switch v.(type) {
	case undefinedType:
		return "undefined"
	case bool:
		return "boolean"
	case string:
		return "string"
	case *closure, *native:
		return "function"
	}
	return "object"
}

// describe names a value for error messages.
func describe(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case undefinedType:
		return "undefined"
	case string:
		return strconv.Quote(x)
	}
	return toString(v)
}

// isPrimitive reports whether v is null, undefined, a boolean, number or string.
func isPrimitive(v interface{}) bool {
	switch v.(type) {
	case nil, undefinedType, bool, string:
		return true
	}
	return isNumber(v)
}

// toPrimitive converts objects to their string form for comparisons.
func toPrimitive(v interface{}) interface{} {
	if isPrimitive(v) {
		return v
	}
	return toString(v)
}

func looseEquals(a, b interface{}) bool {
	aNull := a == nil || a == undefined
	bNull := b == nil || b == undefined
	if aNull || bNull {
		return aNull && bNull
	}
	if ta, ok := a.(heap.Thing); ok {
		if tb, ok := b.(heap.Thing); ok {
			return ta.ID() == tb.ID()
		}
	}
	if !isPrimitive(a) && !isPrimitive(b) {
		return sameReference(a, b)
	}
	a, b = toPrimitive(a), toPrimitive(b)
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa == sb
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	return toNumber(a) == toNumber(b)
}

func strictEquals(a, b interface{}) bool {
	if na, ok := toNumberOK(a); ok {
		nb, ok := toNumberOK(b)
		return ok && na == nb
	}
	if ta, ok := a.(heap.Thing); ok {
		tb, ok := b.(heap.Thing)
		return ok && ta.ID() == tb.ID()
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case undefinedType:
		return b == undefined
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	}
	return sameReference(a, b)
}

// sameReference compares reference values; all composite script values are
// pointers so the comparison never panics.
func sameReference(a, b interface{}) bool {
	switch a.(type) {
	case *jsArray, *jsObject, *closure, *native, *seq, *heap.GCRoot, *fieldInfo, *livePath:
		return a == b
	}
	return false
}

// compareValues returns -1, 0 or 1; ok is false when the values are unordered.
func compareValues(a, b interface{}) (int, bool) {
	a, b = toPrimitive(a), toPrimitive(b)
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
	}
	x, y := toNumber(a), toNumber(b)
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return 0, false
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// valueKey normalizes a value for use as a map key by unique().
func valueKey(v interface{}) interface{} {
	if t, ok := v.(heap.Thing); ok {
		return thingKey(t.ID())
	}
	if n, ok := toNumberOK(v); ok {
		return n
	}
	switch v.(type) {
	case nil, undefinedType, bool, string:
		return v
	}
	if sameReference(v, v) {
		return v
	}
	return toString(v)
}

type thingKey heap.ID

// utf16Length is the length of s in UTF-16 code units.
func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// export converts a script value to a plain Go value for delivery to a
// visitor: objects become map[string]interface{} and sequences are drained.
func export(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case undefinedType:
		return nil, nil
	case *jsObject:
		out := make(map[string]interface{}, len(x.keys))
		for _, k := range x.keys {
			e, err := export(x.values[k])
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case *jsArray, *seq:
		elems, err := toSlice(x)
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			if out[i], err = export(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *fieldInfo:
		return export(x.value)
	case *livePath:
		return x.chain, nil
	}
	return v, nil
}
