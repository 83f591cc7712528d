package oql

import (
	pq "container/heap"
	"fmt"
	"math"
	"slices"
)

// installGlobals defines the global functions and the heap object.
func (in *interp) installGlobals() {
	g := in.globals
	g.define("undefined", undefined)
	g.define("NaN", math.NaN())
	g.define("Infinity", math.Inf(1))
	g.define("heap", in.heapObject())

	for name, fn := range map[string]func(args []interface{}) (interface{}, error){
		"concat":   func(args []interface{}) (interface{}, error) { return in.concat(args) },
		"contains": in.builtinContains,
		"count":    in.builtinCount,
		"filter":   in.builtinFilter,
		"length":   in.builtinLength,
		"map":      in.builtinMap,
		"max":      func(args []interface{}) (interface{}, error) { return in.extremum(args, "lhs > rhs") },
		"min":      func(args []interface{}) (interface{}, error) { return in.extremum(args, "lhs < rhs") },
		"sort":     in.builtinSort,
		"sum":      in.builtinSum,
		"top":      in.builtinTop,
		"unique":   in.builtinUnique,
		"toArray":  in.builtinToArray,
		"print":    func(args []interface{}) (interface{}, error) { return in.print(args, false) },
		"println":  func(args []interface{}) (interface{}, error) { return in.print(args, true) },
		"toHtml":   func(args []interface{}) (interface{}, error) { return in.toHTML(arg(args, 0)) },

		"classof":         in.builtinClassof,
		"forEachReferrer": func(args []interface{}) (interface{}, error) { return in.forEachRef(args, true) },
		"forEachReferee":  func(args []interface{}) (interface{}, error) { return in.forEachRef(args, false) },
		"identical":       in.builtinIdentical,
		"objectid":        in.builtinObjectID,
		"reachables":      in.builtinReachables,
		"referrers":       func(args []interface{}) (interface{}, error) { return in.refSeq(args, true) },
		"referees":        func(args []interface{}) (interface{}, error) { return in.refSeq(args, false) },
		"refers":          in.builtinRefers,
		"root":            in.builtinRoot,
		"sizeof":          in.builtinSizeof,
		"rsizeof":         in.builtinRsizeof,
	} {
		g.define(name, newNative(name, fn))
	}
}

// collectionArg returns args[0], rejecting values that cannot be iterated.
func collectionArg(name string, args []interface{}) (interface{}, error) {
	c := arg(args, 0)
	if !isCollection(c) {
		return nil, evalErrorf("%s: %s is not a collection", name, describe(c))
	}
	return c, nil
}

func (in *interp) concat(args []interface{}) (*seq, error) {
	parts := append([]interface{}(nil), args...)
	return &seq{each: func(yield func(interface{}) error) error {
		for _, p := range parts {
			if !isCollection(p) {
				if err := yield(p); err != nil {
					return err
				}
				continue
			}
			if err := iterate(p, func(_, v interface{}) error { return yield(v) }); err != nil {
				return err
			}
		}
		return nil
	}}, nil
}

func (in *interp) builtinContains(args []interface{}) (interface{}, error) {
	c, err := collectionArg("contains", args)
	if err != nil {
		return nil, err
	}
	fn, err := in.function(arg(args, 1), itemParams)
	if err != nil {
		return nil, err
	}
	found := false
	err = forEachElement(c, func(k, v interface{}) error {
		if err := in.check(); err != nil {
			return err
		}
		r, err := fn(v, k, c)
		if err != nil {
			return err
		}
		if truthy(r) {
			found = true
			return errStop
		}
		return nil
	})
	return found, err
}

// builtinCount returns an int without a predicate and a float64 with one.
func (in *interp) builtinCount(args []interface{}) (interface{}, error) {
	c := arg(args, 0)
	pred := arg(args, 1)
	if pred == undefined {
		if !isCollection(c) {
			if truthy(c) {
				return 1, nil
			}
			return 0, nil
		}
		n := 0
		err := forEachElement(c, func(_, _ interface{}) error {
			n++
			return in.check()
		})
		return n, err
	}

	fn, err := in.function(pred, itemParams)
	if err != nil {
		return nil, err
	}
	if !isCollection(c) {
		c = newArray([]interface{}{c})
	}
	var n float64
	err = forEachElement(c, func(k, v interface{}) error {
		if err := in.check(); err != nil {
			return err
		}
		r, err := fn(v, k, c)
		if err != nil {
			return err
		}
		if truthy(r) {
			n++
		}
		return nil
	})
	return n, err
}

func (in *interp) builtinFilter(args []interface{}) (interface{}, error) {
	c, err := collectionArg("filter", args)
	if err != nil {
		return nil, err
	}
	fn, err := in.function(arg(args, 1), itemParams)
	if err != nil {
		return nil, err
	}
	keep := in.usesParam(arg(args, 1), itemParams, 3)
	return &seq{each: func(yield func(interface{}) error) error {
		result := newArray(nil)
		return iterate(c, func(k, v interface{}) error {
			if err := in.check(); err != nil {
				return err
			}
			r, err := fn(v, k, c, result)
			if err != nil {
				return err
			}
			if !truthy(r) {
				return nil
			}
			if keep {
				result.elems = append(result.elems, v)
			}
			return yield(v)
		})
	}}, nil
}

// builtinLength counts collection elements, UTF-16 units of strings and
// the elements of heap arrays. The result is always an int.
func (in *interp) builtinLength(args []interface{}) (interface{}, error) {
	v := arg(args, 0)
	switch x := v.(type) {
	case string:
		return utf16Length(x), nil
	case *jsArray:
		return len(x.elems), nil
	}
	if isCollection(v) {
		n := 0
		err := forEachElement(v, func(_, _ interface{}) error {
			n++
			return in.check()
		})
		return n, err
	}
	if t := asThing(v); t != nil {
		if s, ok := javaString(t); ok {
			return utf16Length(s), nil
		}
	}
	return nil, evalErrorf("length: %s is not a collection or string", describe(v))
}

// builtinMap yields the mapped value of every element. Sequence results are
// flattened one level. The values produced so far are only retained when
// the callback reads result.
func (in *interp) builtinMap(args []interface{}) (interface{}, error) {
	c, err := collectionArg("map", args)
	if err != nil {
		return nil, err
	}
	fn, err := in.function(arg(args, 1), itemParams)
	if err != nil {
		return nil, err
	}
	keep := in.usesParam(arg(args, 1), itemParams, 3)
	return &seq{each: func(yield func(interface{}) error) error {
		result := newArray(nil)
		emit := func(e interface{}) error {
			if keep {
				result.elems = append(result.elems, e)
			}
			return yield(e)
		}
		return iterate(c, func(k, v interface{}) error {
			if err := in.check(); err != nil {
				return err
			}
			r, err := fn(v, k, c, result)
			if err != nil {
				return err
			}
			if s, ok := r.(*seq); ok {
				return s.each(emit)
			}
			return emit(r)
		})
	}}, nil
}

// extremum keeps the first element and replaces it whenever
// code(next, current) is truthy.
func (in *interp) extremum(args []interface{}, def string) (interface{}, error) {
	c := arg(args, 0)
	if !isCollection(c) {
		return c, nil
	}
	code := arg(args, 1)
	if code == undefined {
		code = def
	}
	fn, err := in.function(code, compareParams)
	if err != nil {
		return nil, err
	}
	var (
		res   interface{} = undefined
		first             = true
	)
	err = forEachElement(c, func(_, v interface{}) error {
		if first {
			res, first = v, false
			return nil
		}
		r, err := fn(v, res)
		if err != nil {
			return err
		}
		if truthy(r) {
			res = v
		}
		return in.check()
	})
	return res, err
}

func (in *interp) comparator(code interface{}) (func(a, b interface{}) (float64, error), error) {
	if code == undefined {
		code = "lhs - rhs"
	}
	fn, err := in.function(code, compareParams)
	if err != nil {
		return nil, err
	}
	return func(a, b interface{}) (float64, error) {
		r, err := fn(a, b)
		if err != nil {
			return 0, err
		}
		if b, ok := r.(bool); ok {
			if b {
				return -1, nil
			}
			return 1, nil
		}
		return toNumber(r), nil
	}, nil
}

// sortValues returns a stably sorted copy of elems.
func (in *interp) sortValues(elems []interface{}, code interface{}) ([]interface{}, error) {
	cmp, err := in.comparator(code)
	if err != nil {
		return nil, err
	}
	out := append([]interface{}(nil), elems...)
	var sortErr error
	slices.SortStableFunc(out, func(a, b interface{}) int {
		if sortErr != nil {
			return 0
		}
		r, err := cmp(a, b)
		if err != nil {
			sortErr = err
			return 0
		}
		return sign(r)
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, in.check()
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}

func (in *interp) builtinSort(args []interface{}) (interface{}, error) {
	c, err := collectionArg("sort", args)
	if err != nil {
		return nil, err
	}
	elems, err := toSlice(c)
	if err != nil {
		return nil, err
	}
	sorted, err := in.sortValues(elems, arg(args, 1))
	if err != nil {
		return nil, err
	}
	return newArray(sorted), nil
}

func (in *interp) builtinSum(args []interface{}) (interface{}, error) {
	c, err := collectionArg("sum", args)
	if err != nil {
		return nil, err
	}
	var fn callable
	if code := arg(args, 1); code != undefined {
		if fn, err = in.function(code, itemParams); err != nil {
			return nil, err
		}
	}
	var total float64
	err = forEachElement(c, func(k, v interface{}) error {
		if fn != nil {
			r, err := fn(v, k, c)
			if err != nil {
				return err
			}
			v = r
		}
		total += toNumber(v)
		return in.check()
	})
	return total, err
}

// ranked is an element with its position in the input; later positions
// outrank earlier ones on comparator ties, as in a stable ascending sort.
type ranked struct {
	v   interface{}
	pos int
}

// rankHeap is a min-heap on rank holding the best n candidates.
type rankHeap struct {
	items []ranked
	cmp   func(a, b interface{}) (float64, error)
	err   error
}

func (h *rankHeap) Len() int { return len(h.items) }

func (h *rankHeap) Less(i, j int) bool { return h.lower(h.items[i], h.items[j]) }

func (h *rankHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *rankHeap) Push(x interface{}) { h.items = append(h.items, x.(ranked)) }

func (h *rankHeap) Pop() interface{} {
	old := h.items
	x := old[len(old)-1]
	h.items = old[:len(old)-1]
	return x
}

func (h *rankHeap) lower(a, b ranked) bool {
	if h.err != nil {
		return false
	}
	r, err := h.cmp(a.v, b.v)
	if err != nil {
		h.err = err
		return false
	}
	if r == 0 {
		return a.pos < b.pos
	}
	return r < 0
}

// builtinTop returns the n highest ranked elements, best first, so that
// top(c, cmp)[0] is the last element of sort(c, cmp).
func (in *interp) builtinTop(args []interface{}) (interface{}, error) {
	c, err := collectionArg("top", args)
	if err != nil {
		return nil, err
	}
	cmp, err := in.comparator(arg(args, 1))
	if err != nil {
		return nil, err
	}
	n := intArg(args, 2, 10)
	if n <= 0 {
		return newArray(nil), nil
	}

	h := &rankHeap{cmp: cmp}
	pos := 0
	err = forEachElement(c, func(_, v interface{}) error {
		r := ranked{v: v, pos: pos}
		pos++
		if h.Len() < n {
			pq.Push(h, r)
		} else if h.lower(h.items[0], r) {
			h.items[0] = r
			pq.Fix(h, 0)
		}
		if h.err != nil {
			return h.err
		}
		return in.check()
	})
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = pq.Pop(h).(ranked).v
	}
	if h.err != nil {
		return nil, h.err
	}
	return newArray(out), nil
}

func (in *interp) builtinUnique(args []interface{}) (interface{}, error) {
	c, err := collectionArg("unique", args)
	if err != nil {
		return nil, err
	}
	var keyFn callable
	if code := arg(args, 1); code != undefined {
		if keyFn, err = in.function(code, itemParams); err != nil {
			return nil, err
		}
	}
	return &seq{each: func(yield func(interface{}) error) error {
		seen := make(map[interface{}]struct{})
		return iterate(c, func(k, v interface{}) error {
			if err := in.check(); err != nil {
				return err
			}
			key := v
			if keyFn != nil {
				r, err := keyFn(v, k, c)
				if err != nil {
					return err
				}
				key = r
			}
			nk := valueKey(key)
			if _, dup := seen[nk]; dup {
				return nil
			}
			seen[nk] = struct{}{}
			return yield(v)
		})
	}}, nil
}

func (in *interp) builtinToArray(args []interface{}) (interface{}, error) {
	v := arg(args, 0)
	if !isCollection(v) {
		return newArray([]interface{}{v}), nil
	}
	elems, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	return newArray(append([]interface{}(nil), elems...)), nil
}

func (in *interp) print(args []interface{}, newline bool) (interface{}, error) {
	s := toString(arg(args, 0))
	if arg(args, 0) == undefined {
		s = ""
	}
	if newline {
		s += "\n"
	}
	if _, err := fmt.Fprint(in.engine.out, s); err != nil {
		return nil, evalErrorf("print: %v", err)
	}
	return undefined, nil
}
