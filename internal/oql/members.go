package oql

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/heapql/internal/heap"
)

// member resolves obj.name.
func (in *interp) member(obj interface{}, name string) (interface{}, error) {
	switch x := obj.(type) {
	case nil, undefinedType:
		return nil, evalErrorf("cannot read property %q of %s", name, describe(obj))
	case string:
		return in.stringMember(x, name), nil
	case bool:
		if name == "toString" {
			return bound("toString", func([]interface{}) (interface{}, error) { return toString(x), nil }), nil
		}
		return undefined, nil
	case *jsArray:
		return in.arrayMember(x, name), nil
	case *jsObject:
		if v, ok := x.get(name); ok {
			return v, nil
		}
		if name == "toString" {
			return bound("toString", func([]interface{}) (interface{}, error) { return toString(x), nil }), nil
		}
		return undefined, nil
	case *seq:
		return in.seqMember(x, name), nil
	case *heap.JavaClass:
		return in.classMember(x, name), nil
	case *heap.Object:
		return in.objectMember(x, name), nil
	case *heap.ObjectArray, *heap.PrimitiveArray:
		return in.heapArrayMember(x.(heap.Instance), name), nil
	case *heap.GCRoot:
		return in.rootMember(x, name), nil
	case *fieldInfo:
		switch name {
		case "name":
			return x.field.Name, nil
		case "signature":
			return x.field.Type.Name(), nil
		case "value":
			return x.value, nil
		case "field":
			return x, nil
		case "static":
			return x.field.Static, nil
		case "declaringClass":
			if x.field.Owner == nil {
				return nil, nil
			}
			return x.field.Owner, nil
		case "toString":
			return bound("toString", func([]interface{}) (interface{}, error) { return x.field.Name, nil }), nil
		}
		return undefined, nil
	case *livePath:
		switch name {
		case "length":
			return len(x.chain.Objects), nil
		case "root":
			return x.chain.Root, nil
		case "toString":
			return bound("toString", func([]interface{}) (interface{}, error) { return x.chain.String(), nil }), nil
		case "toHtml":
			return bound("toHtml", func([]interface{}) (interface{}, error) { return in.toHTML(x) }), nil
		}
		return undefined, nil
	}
	if n, ok := toNumberOK(obj); ok {
		return numberMember(n, name), nil
	}
	return undefined, nil
}

// index resolves obj[key].
func (in *interp) index(obj interface{}, key interface{}) (interface{}, error) {
	if isNumber(key) {
		i := toNumber(key)
		if i == math.Trunc(i) {
			if v, ok, err := elementAt(obj, int(i)); ok || err != nil {
				return v, err
			}
		}
	}
	return in.member(obj, toString(key))
}

// elementAt returns the i-th element of indexable values; ok is false when
// obj is not indexable.
func elementAt(obj interface{}, i int) (interface{}, bool, error) {
	outOfRange := func(n int) bool { return i < 0 || i >= n }
	switch x := obj.(type) {
	case *jsArray:
		if outOfRange(len(x.elems)) {
			return undefined, true, nil
		}
		return x.elems[i], true, nil
	case string:
		r := []rune(x)
		if outOfRange(len(r)) {
			return undefined, true, nil
		}
		return string(r[i]), true, nil
	case *heap.ObjectArray:
		if outOfRange(x.Length()) {
			return undefined, true, nil
		}
		return thingOrNull(x.Element(i)), true, nil
	case *heap.PrimitiveArray:
		if outOfRange(x.Length()) {
			return undefined, true, nil
		}
		return x.Value(i), true, nil
	case *livePath:
		if outOfRange(len(x.chain.Objects)) {
			return undefined, true, nil
		}
		return x.chain.Objects[i], true, nil
	case *seq:
		var found interface{} = undefined
		pos := 0
		err := x.forEach(func(v interface{}) error {
			if pos == i {
				found = v
				return errStop
			}
			pos++
			return nil
		})
		return found, true, err
	}
	return nil, false, nil
}

func bound(name string, fn func(args []interface{}) (interface{}, error)) *native {
	return newNative(name, fn)
}

func arg(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return undefined
}

func intArg(args []interface{}, i int, def int) int {
	v := arg(args, i)
	if v == undefined {
		return def
	}
	n := toNumber(v)
	if math.IsNaN(n) {
		return def
	}
	return int(n)
}

func (in *interp) objectMember(o *heap.Object, name string) interface{} {
	if name == "clazz" {
		return o.Class()
	}
	if v, ok := o.FieldValue(name); ok {
		return v
	}
	switch name {
	case "id":
		return o.ID()
	case "toString":
		return bound("toString", func([]interface{}) (interface{}, error) { return toString(o), nil })
	}
	if s, ok := javaString(o); ok {
		return in.stringMember(s, name)
	}
	return undefined
}

func (in *interp) heapArrayMember(a heap.Instance, name string) interface{} {
	switch name {
	case "length":
		switch x := a.(type) {
		case *heap.ObjectArray:
			return x.Length()
		case *heap.PrimitiveArray:
			return x.Length()
		}
	case "clazz":
		return a.Class()
	case "id":
		return a.ID()
	case "toString":
		return bound("toString", func([]interface{}) (interface{}, error) { return toString(a), nil })
	}
	return undefined
}

func (in *interp) classMember(c *heap.JavaClass, name string) interface{} {
	switch name {
	case "name":
		return c.Name()
	case "superclass":
		if s := c.Superclass(); s != nil {
			return s
		}
		return nil
	case "loader":
		return thingOrNull(c.Loader())
	case "id":
		return c.ID()
	case "instanceSize":
		return c.InstanceSize()
	case "fields":
		statics := c.StaticFields()
		out := make([]interface{}, 0, len(statics)+len(c.Fields()))
		for _, fv := range statics {
			out = append(out, &fieldInfo{field: fv.Field, value: fv.Value})
		}
		for _, f := range c.Fields() {
			out = append(out, &fieldInfo{field: f, value: undefined})
		}
		return newArray(out)
	case "statics":
		obj := newObject()
		for _, fv := range c.StaticFields() {
			obj.set(fv.Field.Name, fv.Value)
		}
		return obj
	case "toString":
		return bound("toString", func([]interface{}) (interface{}, error) { return c.String(), nil })
	case "subclasses":
		return bound("subclasses", func([]interface{}) (interface{}, error) {
			return newArray(classValues(c.Subclasses())), nil
		})
	case "superclasses":
		return bound("superclasses", func([]interface{}) (interface{}, error) {
			return newArray(classValues(c.Superclasses())), nil
		})
	case "isSubclassOf":
		return bound("isSubclassOf", func(args []interface{}) (interface{}, error) {
			other, ok := arg(args, 0).(*heap.JavaClass)
			if !ok {
				return false, nil
			}
			return c.IsSubclassOf(other), nil
		})
	case "instances":
		return bound("instances", func(args []interface{}) (interface{}, error) {
			sub := arg(args, 0)
			return in.instancesSeq(c, sub != undefined && truthy(sub)), nil
		})
	}
	if v, ok := c.StaticValue(name); ok {
		return v
	}
	return undefined
}

func classValues(classes []*heap.JavaClass) []interface{} {
	out := make([]interface{}, len(classes))
	for i, c := range classes {
		out[i] = c
	}
	return out
}

func (in *interp) rootMember(r *heap.GCRoot, name string) interface{} {
	switch name {
	case "id":
		return r.ObjectID
	case "description":
		return r.Description()
	case "referrer":
		return thingOrNull(in.h.FindThing(r.ObjectID))
	case "type":
		return strings.TrimPrefix(r.Description(), "Reference from ")
	case "kind":
		return string(r.Kind)
	case "thread":
		if r.ThreadID == 0 {
			return nil
		}
		return r.ThreadID
	case "toString":
		return bound("toString", func([]interface{}) (interface{}, error) { return r.Description(), nil })
	}
	return undefined
}

func (in *interp) seqMember(s *seq, name string) interface{} {
	switch name {
	case "length":
		elems, err := s.toSlice()
		if err != nil {
			return undefined
		}
		return len(elems)
	case "toArray":
		return bound("toArray", func([]interface{}) (interface{}, error) {
			elems, err := s.toSlice()
			return newArray(elems), err
		})
	case "toString":
		return bound("toString", func([]interface{}) (interface{}, error) { return toString(s), nil })
	}
	return undefined
}

func numberMember(n float64, name string) interface{} {
	switch name {
	case "toString":
		return bound("toString", func(args []interface{}) (interface{}, error) {
			radix := intArg(args, 0, 10)
			if radix != 10 && n == math.Trunc(n) && radix >= 2 && radix <= 36 {
				return strconv.FormatInt(int64(n), radix), nil
			}
			return formatNumber(n), nil
		})
	case "toFixed":
		return bound("toFixed", func(args []interface{}) (interface{}, error) {
			return strconv.FormatFloat(n, 'f', intArg(args, 0, 0), 64), nil
		})
	}
	return undefined
}

func (in *interp) stringMember(s string, name string) interface{} {
	runes := func() []rune { return []rune(s) }
	strArg := func(args []interface{}, i int) string { return toString(arg(args, i)) }

	switch name {
	case "length":
		return utf16Length(s)
	case "toString", "valueOf":
		return bound(name, func([]interface{}) (interface{}, error) { return s, nil })
	case "charAt":
		return bound(name, func(args []interface{}) (interface{}, error) {
			r, i := runes(), intArg(args, 0, 0)
			if i < 0 || i >= len(r) {
				return "", nil
			}
			return string(r[i]), nil
		})
	case "charCodeAt":
		return bound(name, func(args []interface{}) (interface{}, error) {
			r, i := runes(), intArg(args, 0, 0)
			if i < 0 || i >= len(r) {
				return math.NaN(), nil
			}
			return float64(r[i]), nil
		})
	case "indexOf":
		return bound(name, func(args []interface{}) (interface{}, error) {
			r := runes()
			from := clamp(intArg(args, 1, 0), 0, len(r))
			i := strings.Index(string(r[from:]), strArg(args, 0))
			if i < 0 {
				return float64(-1), nil
			}
			return float64(from + len([]rune(string(r[from:])[:i]))), nil
		})
	case "lastIndexOf":
		return bound(name, func(args []interface{}) (interface{}, error) {
			i := strings.LastIndex(s, strArg(args, 0))
			if i < 0 {
				return float64(-1), nil
			}
			return float64(len([]rune(s[:i]))), nil
		})
	case "substring", "slice":
		return bound(name, func(args []interface{}) (interface{}, error) {
			r := runes()
			start, end := intArg(args, 0, 0), intArg(args, 1, len(r))
			if name == "slice" {
				start, end = relIndex(start, len(r)), relIndex(end, len(r))
			}
			start, end = clamp(start, 0, len(r)), clamp(end, 0, len(r))
			if start > end {
				if name == "slice" {
					return "", nil
				}
				start, end = end, start
			}
			return string(r[start:end]), nil
		})
	case "substr":
		return bound(name, func(args []interface{}) (interface{}, error) {
			r := runes()
			start := clamp(relIndex(intArg(args, 0, 0), len(r)), 0, len(r))
			end := clamp(start+intArg(args, 1, len(r)), start, len(r))
			return string(r[start:end]), nil
		})
	case "toLowerCase":
		return bound(name, func([]interface{}) (interface{}, error) { return strings.ToLower(s), nil })
	case "toUpperCase":
		return bound(name, func([]interface{}) (interface{}, error) { return strings.ToUpper(s), nil })
	case "trim":
		return bound(name, func([]interface{}) (interface{}, error) { return strings.TrimSpace(s), nil })
	case "startsWith":
		return bound(name, func(args []interface{}) (interface{}, error) {
			return strings.HasPrefix(s, strArg(args, 0)), nil
		})
	case "endsWith":
		return bound(name, func(args []interface{}) (interface{}, error) {
			return strings.HasSuffix(s, strArg(args, 0)), nil
		})
	case "contains", "includes":
		return bound(name, func(args []interface{}) (interface{}, error) {
			return strings.Contains(s, strArg(args, 0)), nil
		})
	case "equals":
		return bound(name, func(args []interface{}) (interface{}, error) {
			return s == strArg(args, 0), nil
		})
	case "concat":
		return bound(name, func(args []interface{}) (interface{}, error) {
			var sb strings.Builder
			sb.WriteString(s)
			for _, a := range args {
				sb.WriteString(toString(a))
			}
			return sb.String(), nil
		})
	case "split":
		return bound(name, func(args []interface{}) (interface{}, error) {
			var parts []string
			if arg(args, 0) == undefined {
				parts = []string{s}
			} else {
				parts = strings.Split(s, strArg(args, 0))
			}
			out := make([]interface{}, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return newArray(out), nil
		})
	case "replace", "replaceAll":
		return bound(name, func(args []interface{}) (interface{}, error) {
			n := 1
			if name == "replaceAll" {
				n = -1
			}
			return strings.Replace(s, strArg(args, 0), strArg(args, 1), n), nil
		})
	case "matches":
		return bound(name, func(args []interface{}) (interface{}, error) {
			re, err := regexp.Compile("^(?:" + strArg(args, 0) + ")$")
			if err != nil {
				return nil, evalErrorf("invalid pattern %q: %v", strArg(args, 0), err)
			}
			return re.MatchString(s), nil
		})
	}
	return undefined
}

func relIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (in *interp) arrayMember(a *jsArray, name string) interface{} {
	switch name {
	case "length":
		return len(a.elems)
	case "toString":
		return bound(name, func([]interface{}) (interface{}, error) { return toString(a), nil })
	case "push":
		return bound(name, func(args []interface{}) (interface{}, error) {
			a.elems = append(a.elems, args...)
			return float64(len(a.elems)), nil
		})
	case "pop":
		return bound(name, func([]interface{}) (interface{}, error) {
			if len(a.elems) == 0 {
				return undefined, nil
			}
			v := a.elems[len(a.elems)-1]
			a.elems = a.elems[:len(a.elems)-1]
			return v, nil
		})
	case "shift":
		return bound(name, func([]interface{}) (interface{}, error) {
			if len(a.elems) == 0 {
				return undefined, nil
			}
			v := a.elems[0]
			a.elems = a.elems[1:]
			return v, nil
		})
	case "join":
		return bound(name, func(args []interface{}) (interface{}, error) {
			sep := ","
			if v := arg(args, 0); v != undefined {
				sep = toString(v)
			}
			return joinValues(a.elems, sep), nil
		})
	case "indexOf", "includes":
		return bound(name, func(args []interface{}) (interface{}, error) {
			for i, e := range a.elems {
				if strictEquals(e, arg(args, 0)) {
					if name == "includes" {
						return true, nil
					}
					return float64(i), nil
				}
			}
			if name == "includes" {
				return false, nil
			}
			return float64(-1), nil
		})
	case "slice":
		return bound(name, func(args []interface{}) (interface{}, error) {
			n := len(a.elems)
			start := clamp(relIndex(intArg(args, 0, 0), n), 0, n)
			end := clamp(relIndex(intArg(args, 1, n), n), 0, n)
			if start > end {
				return newArray(nil), nil
			}
			return newArray(append([]interface{}(nil), a.elems[start:end]...)), nil
		})
	case "concat":
		return bound(name, func(args []interface{}) (interface{}, error) {
			s, err := in.concat(append([]interface{}{a}, args...))
			if err != nil {
				return nil, err
			}
			elems, err := s.toSlice()
			return newArray(elems), err
		})
	case "reverse":
		return bound(name, func([]interface{}) (interface{}, error) {
			for i, j := 0, len(a.elems)-1; i < j; i, j = i+1, j-1 {
				a.elems[i], a.elems[j] = a.elems[j], a.elems[i]
			}
			return a, nil
		})
	case "forEach":
		return bound(name, func(args []interface{}) (interface{}, error) {
			fn, err := in.function(arg(args, 0), itemParams)
			if err != nil {
				return nil, err
			}
			for i, e := range a.elems {
				if _, err := fn(e, float64(i), a); err != nil {
					return nil, err
				}
			}
			return undefined, nil
		})
	case "map", "filter":
		return bound(name, func(args []interface{}) (interface{}, error) {
			fn, err := in.function(arg(args, 0), itemParams)
			if err != nil {
				return nil, err
			}
			var out []interface{}
			for i, e := range a.elems {
				v, err := fn(e, float64(i), a)
				if err != nil {
					return nil, err
				}
				switch {
				case name == "map":
					out = append(out, v)
				case truthy(v):
					out = append(out, e)
				}
			}
			return newArray(out), nil
		})
	case "sort":
		return bound(name, func(args []interface{}) (interface{}, error) {
			sorted, err := in.sortValues(a.elems, arg(args, 0))
			if err != nil {
				return nil, err
			}
			copy(a.elems, sorted)
			return a, nil
		})
	}
	return undefined
}
