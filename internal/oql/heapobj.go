package oql

import (
	"strconv"
	"strings"

	"github.com/heapql/internal/heap"
)

// heapObject builds the global "heap" object.
func (in *interp) heapObject() *jsObject {
	h := in.h
	obj := newObject()
	def := func(name string, fn func(args []interface{}) (interface{}, error)) {
		obj.set(name, newNative(name, fn))
	}

	def("forEachClass", func(args []interface{}) (interface{}, error) {
		fn, err := in.function(arg(args, 0), itemParams)
		if err != nil {
			return nil, err
		}
		for _, c := range h.Classes() {
			if err := in.check(); err != nil {
				return nil, err
			}
			r, err := fn(c)
			if err != nil {
				return nil, err
			}
			if truthy(r) {
				break
			}
		}
		return undefined, nil
	})

	def("forEachObject", func(args []interface{}) (interface{}, error) {
		fn, err := in.function(arg(args, 0), itemParams)
		if err != nil {
			return nil, err
		}
		cls, err := in.classArg(arg(args, 1), "java.lang.Object")
		if err != nil {
			return nil, err
		}
		for _, inst := range h.Instances(cls, boolArg(args, 2, true)) {
			if err := in.check(); err != nil {
				return nil, err
			}
			r, err := fn(inst)
			if err != nil {
				return nil, err
			}
			if truthy(r) {
				break
			}
		}
		return undefined, nil
	})

	def("findClass", func(args []interface{}) (interface{}, error) {
		if c := h.FindClass(toString(arg(args, 0))); c != nil {
			return c, nil
		}
		return nil, nil
	})

	def("findObject", func(args []interface{}) (interface{}, error) {
		id, ok := parseObjectID(arg(args, 0))
		if !ok {
			return nil, nil
		}
		return thingOrNull(h.FindThing(id)), nil
	})

	def("objects", func(args []interface{}) (interface{}, error) {
		cls, err := in.classArg(arg(args, 0), "java.lang.Object")
		if err != nil {
			return nil, err
		}
		s := in.instancesSeq(cls, boolArg(args, 1, true))
		where := arg(args, 2)
		if where == undefined || where == nil {
			return s, nil
		}
		return in.builtinFilter([]interface{}{s, where})
	})

	def("classes", func([]interface{}) (interface{}, error) {
		return in.checked(thingSeq(h.Classes())), nil
	})

	def("roots", func([]interface{}) (interface{}, error) {
		roots := h.Roots()
		return &seq{each: func(yield func(interface{}) error) error {
			for _, r := range roots {
				if err := in.check(); err != nil {
					return err
				}
				if err := yield(r); err != nil {
					return err
				}
			}
			return nil
		}}, nil
	})

	def("finalizables", func([]interface{}) (interface{}, error) {
		return in.checked(thingSeq(h.Finalizables())), nil
	})

	def("livepaths", func(args []interface{}) (interface{}, error) {
		t, err := thingArg("livepaths", args, 0)
		if err != nil {
			return nil, err
		}
		chains := h.LivePaths(t, boolArg(args, 1, false), in.engine.maxPaths)
		paths := make([]interface{}, len(chains))
		for i, c := range chains {
			paths[i] = &livePath{chain: c}
		}
		return sliceSeq(paths), nil
	})

	def("describeRef", func(args []interface{}) (interface{}, error) {
		from, err := thingArg("describeRef", args, 0)
		if err != nil {
			return nil, err
		}
		to, err := thingArg("describeRef", args, 1)
		if err != nil {
			return nil, err
		}
		return h.DescribeReference(from, to), nil
	})

	def("reachables", func(args []interface{}) (interface{}, error) {
		t, err := thingArg("reachables", args, 0)
		if err != nil {
			return nil, err
		}
		return in.reachableSeq(t, heap.WithFieldExcludes(in.engine.excludes)), nil
	})

	return obj
}

// checked interleaves cancellation checks with the elements of s.
func (in *interp) checked(s *seq) *seq {
	return &seq{each: func(yield func(interface{}) error) error {
		return s.each(func(v interface{}) error {
			if err := in.check(); err != nil {
				return err
			}
			return yield(v)
		})
	}}
}

func (in *interp) instancesSeq(cls *heap.JavaClass, includeSubclasses bool) *seq {
	return in.checked(thingSeq(in.h.Instances(cls, includeSubclasses)))
}

// classArg resolves a class given by name or as a class value.
func (in *interp) classArg(v interface{}, def string) (*heap.JavaClass, error) {
	switch x := v.(type) {
	case *heap.JavaClass:
		return x, nil
	case undefinedType, nil:
		v = def
	}
	name := toString(v)
	cls := in.h.FindClass(name)
	if cls == nil {
		return nil, evalErrorf("%s is not a class", name)
	}
	return cls, nil
}

func boolArg(args []interface{}, i int, def bool) bool {
	v := arg(args, i)
	if v == undefined {
		return def
	}
	return truthy(v)
}

// thingArg returns args[i] as a heap thing, failing on null and non-heap values.
func thingArg(fn string, args []interface{}, i int) (heap.Thing, error) {
	v := arg(args, i)
	if t := asThing(v); t != nil {
		return t, nil
	}
	return nil, evalErrorf("%s: %s is not a heap object", fn, describe(v))
}

// parseObjectID accepts numbers and decimal or 0x-prefixed hex strings.
func parseObjectID(v interface{}) (heap.ID, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			id, err := strconv.ParseUint(s[2:], 16, 64)
			return id, err == nil
		}
		id, err := strconv.ParseUint(s, 10, 64)
		return id, err == nil
	}
	if n, ok := toNumberOK(v); ok && n >= 0 {
		return heap.ID(n), true
	}
	if t := asThing(v); t != nil {
		return t.ID(), true
	}
	return 0, false
}

func (in *interp) builtinClassof(args []interface{}) (interface{}, error) {
	t, err := thingArg("classof", args, 0)
	if err != nil {
		return nil, err
	}
	if c := t.Class(); c != nil {
		return c, nil
	}
	return nil, nil
}

// forEachRef calls fn for each referrer (or referee) of obj until fn
// returns a truthy value.
func (in *interp) forEachRef(args []interface{}, referrers bool) (interface{}, error) {
	name := "forEachReferee"
	if referrers {
		name = "forEachReferrer"
	}
	fn, err := in.function(arg(args, 0), itemParams)
	if err != nil {
		return nil, err
	}
	t, err := thingArg(name, args, 1)
	if err != nil {
		return nil, err
	}
	refs := in.h.Referees(t)
	if referrers {
		refs = in.h.Referrers(t)
	}
	for _, r := range refs {
		if err := in.check(); err != nil {
			return nil, err
		}
		v, err := fn(r)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			break
		}
	}
	return undefined, nil
}

func (in *interp) refSeq(args []interface{}, referrers bool) (interface{}, error) {
	name := "referees"
	if referrers {
		name = "referrers"
	}
	t, err := thingArg(name, args, 0)
	if err != nil {
		return nil, err
	}
	if referrers {
		return in.checked(thingSeq(in.h.Referrers(t))), nil
	}
	return in.checked(thingSeq(in.h.Referees(t))), nil
}

func (in *interp) builtinIdentical(args []interface{}) (interface{}, error) {
	return strictEquals(arg(args, 0), arg(args, 1)), nil
}

func (in *interp) builtinObjectID(args []interface{}) (interface{}, error) {
	t, err := thingArg("objectid", args, 0)
	if err != nil {
		return nil, err
	}
	return strconv.FormatUint(t.ID(), 10), nil
}

func (in *interp) builtinRefers(args []interface{}) (interface{}, error) {
	from, err := thingArg("refers", args, 0)
	if err != nil {
		return nil, err
	}
	to, err := thingArg("refers", args, 1)
	if err != nil {
		return nil, err
	}
	return in.h.Refers(from, to), nil
}

func (in *interp) builtinRoot(args []interface{}) (interface{}, error) {
	t, err := thingArg("root", args, 0)
	if err != nil {
		return nil, err
	}
	if r := in.h.FindRoot(t); r != nil {
		return r, nil
	}
	return nil, nil
}

func (in *interp) builtinSizeof(args []interface{}) (interface{}, error) {
	t, err := thingArg("sizeof", args, 0)
	if err != nil {
		return nil, err
	}
	return t.Size(), nil
}

func (in *interp) builtinRsizeof(args []interface{}) (interface{}, error) {
	t, err := thingArg("rsizeof", args, 0)
	if err != nil {
		return nil, err
	}
	return in.h.RetainedSize(t), nil
}

// builtinReachables walks everything reachable from obj. The optional
// second argument is either a comma separated list of qualified field
// names ("java.lang.ref.Reference.referent") whose edges are not followed,
// or a predicate over it that prunes matching objects.
func (in *interp) builtinReachables(args []interface{}) (interface{}, error) {
	t, err := thingArg("reachables", args, 0)
	if err != nil {
		return nil, err
	}
	excl := arg(args, 1)
	if excl == undefined || excl == nil {
		return in.reachableSeq(t, heap.WithFieldExcludes(in.engine.excludes)), nil
	}
	if s, ok := excl.(string); ok {
		if ex, ok := in.fieldExcludes(s); ok {
			return in.reachableSeq(t, heap.WithFieldExcludes(ex)), nil
		}
	}
	fn, err := in.function(excl, itemParams)
	if err != nil {
		return nil, err
	}
	return in.reachableSeq(t, heap.WithExclude(func(t heap.Thing) (bool, error) {
		v, err := fn(t)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	})), nil
}

// fieldExcludes parses a comma separated list of qualified field names.
// Every entry must name an instance field of a known class or of one of
// its superclasses. Inherited fields resolve to their declaring class.
func (in *interp) fieldExcludes(s string) (heap.FieldExcludes, bool) {
	ex := make(heap.FieldExcludes)
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		dot := strings.LastIndexByte(p, '.')
		if dot <= 0 || dot == len(p)-1 || !isIdentifier(p[dot+1:]) {
			return nil, false
		}
		cls := in.h.FindClass(p[:dot])
		if cls == nil {
			return nil, false
		}
		f := lookupField(cls, p[dot+1:])
		if f == nil {
			return nil, false
		}
		ex[f.QualifiedName()] = struct{}{}
	}
	return ex, true
}

func lookupField(cls *heap.JavaClass, name string) *heap.Field {
	for _, f := range cls.AllFields() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (in *interp) reachableSeq(t heap.Thing, opt heap.ReachableOption) *seq {
	return &seq{each: func(yield func(interface{}) error) error {
		w := in.h.Reachables(t, opt)
		for {
			if err := in.check(); err != nil {
				return err
			}
			next, ok := w.Next()
			if !ok {
				return w.Err()
			}
			if err := yield(next); err != nil {
				return err
			}
		}
	}}
}
