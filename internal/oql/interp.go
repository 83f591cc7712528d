package oql

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/heapql/internal/heap"
)

// maxCallDepth bounds script recursion.
const maxCallDepth = 512

type scope struct {
	vars   map[string]interface{}
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]interface{}), parent: parent}
}

func (s *scope) lookup(name string) (interface{}, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) define(name string, v interface{}) {
	s.vars[name] = v
}

// assign updates the nearest binding; unknown names become globals.
func (s *scope) assign(name string, v interface{}) {
	sc := s
	for ; sc.parent != nil; sc = sc.parent {
		if _, ok := sc.vars[name]; ok {
			break
		}
	}
	sc.vars[name] = v
}

type flow int

const (
	flowNormal flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// interp evaluates one query. It is not safe for concurrent use.
type interp struct {
	ctx     context.Context
	engine  *Engine
	h       *heap.Heap
	globals *scope

	// callScope is the scope of the innermost call expression being
	// evaluated; string callbacks resolve free names against it.
	callScope *scope
	depth     int
	// last is the completion value of the most recent expression statement.
	last     interface{}
	compiled map[string]expr
}

func newInterp(ctx context.Context, e *Engine) *interp {
	in := &interp{
		ctx:      ctx,
		engine:   e,
		h:        e.heap,
		globals:  newScope(nil),
		compiled: make(map[string]expr),
		last:     undefined,
	}
	in.callScope = in.globals
	in.installGlobals()
	return in
}

// check reports cancellation through Engine.Cancel or the context.
func (in *interp) check() error {
	if in.engine.IsCancelled() {
		return ErrCancelled
	}
	select {
	case <-in.ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}

func (in *interp) run(body []stmt) (interface{}, error) {
	in.hoist(body, in.globals)
	f, v, err := in.execList(body, in.globals)
	if err != nil {
		return nil, err
	}
	if f == flowReturn {
		return v, nil
	}
	return in.last, nil
}

func (in *interp) hoist(body []stmt, sc *scope) {
	for _, s := range body {
		if d, ok := s.(*funcDecl); ok {
			sc.define(d.fn.name, &closure{fn: d.fn, env: sc})
		}
	}
}

func (in *interp) execList(body []stmt, sc *scope) (flow, interface{}, error) {
	for _, s := range body {
		f, v, err := in.exec(s, sc)
		if err != nil || f != flowNormal {
			return f, v, err
		}
	}
	return flowNormal, nil, nil
}

func (in *interp) exec(s stmt, sc *scope) (flow, interface{}, error) {
	switch s := s.(type) {
	case *exprStmt:
		v, err := in.eval(s.x, sc)
		if err != nil {
			return flowNormal, nil, err
		}
		in.last = v
	case *varDecl:
		for i, name := range s.names {
			var v interface{} = undefined
			if s.inits[i] != nil {
				var err error
				if v, err = in.eval(s.inits[i], sc); err != nil {
					return flowNormal, nil, err
				}
			}
			sc.define(name, v)
		}
	case *blockStmt:
		inner := newScope(sc)
		in.hoist(s.body, inner)
		return in.execList(s.body, inner)
	case *ifStmt:
		c, err := in.eval(s.test, sc)
		if err != nil {
			return flowNormal, nil, err
		}
		if truthy(c) {
			return in.exec(s.then, sc)
		}
		if s.els != nil {
			return in.exec(s.els, sc)
		}
	case *forStmt:
		return in.execFor(s, sc)
	case *forInStmt:
		return in.execForIn(s, sc)
	case *whileStmt:
		for {
			if err := in.check(); err != nil {
				return flowNormal, nil, err
			}
			c, err := in.eval(s.test, sc)
			if err != nil {
				return flowNormal, nil, err
			}
			if !truthy(c) {
				break
			}
			f, v, err := in.exec(s.body, sc)
			if err != nil || f == flowReturn {
				return f, v, err
			}
			if f == flowBreak {
				break
			}
		}
	case *breakStmt:
		return flowBreak, nil, nil
	case *continueStmt:
		return flowContinue, nil, nil
	case *returnStmt:
		if s.x == nil {
			return flowReturn, undefined, nil
		}
		v, err := in.eval(s.x, sc)
		return flowReturn, v, err
	case *funcDecl:
		if _, ok := sc.vars[s.fn.name]; !ok {
			sc.define(s.fn.name, &closure{fn: s.fn, env: sc})
		}
	case *throwStmt:
		v, err := in.eval(s.x, sc)
		if err != nil {
			return flowNormal, nil, err
		}
		return flowNormal, nil, &thrown{value: v}
	case *tryStmt:
		f, v, err := in.exec(s.body, sc)
		if err == nil {
			return f, v, nil
		}
		caught, ok := catchable(err)
		if !ok {
			return f, v, err
		}
		inner := newScope(sc)
		inner.define(s.param, caught)
		return in.exec(s.handler, inner)
	case *emptyStmt:
	default:
		return flowNormal, nil, evalErrorf("unsupported statement %T", s)
	}
	return flowNormal, nil, nil
}

// catchable converts script errors to catch values. Cancellation is never caught.
func catchable(err error) (interface{}, bool) {
	var t *thrown
	if errors.As(err, &t) {
		return t.value, true
	}
	var e *EvalError
	if errors.As(err, &e) {
		return e.Error(), true
	}
	return nil, false
}

func (in *interp) execFor(s *forStmt, sc *scope) (flow, interface{}, error) {
	loop := newScope(sc)
	if s.init != nil {
		if _, _, err := in.exec(s.init, loop); err != nil {
			return flowNormal, nil, err
		}
	}
	for {
		if err := in.check(); err != nil {
			return flowNormal, nil, err
		}
		if s.test != nil {
			c, err := in.eval(s.test, loop)
			if err != nil {
				return flowNormal, nil, err
			}
			if !truthy(c) {
				return flowNormal, nil, nil
			}
		}
		f, v, err := in.exec(s.body, loop)
		if err != nil || f == flowReturn {
			return f, v, err
		}
		if f == flowBreak {
			return flowNormal, nil, nil
		}
		if s.update != nil {
			if _, err := in.eval(s.update, loop); err != nil {
				return flowNormal, nil, err
			}
		}
	}
}

func (in *interp) execForIn(s *forInStmt, sc *scope) (flow, interface{}, error) {
	obj, err := in.eval(s.obj, sc)
	if err != nil {
		return flowNormal, nil, err
	}
	if obj == nil || obj == undefined {
		return flowNormal, nil, nil
	}
	var (
		result     flow
		returnVal  interface{}
		loop       = newScope(sc)
		iterateErr error
	)
	body := func(key, val interface{}) error {
		if err := in.check(); err != nil {
			return err
		}
		if s.of {
			loop.define(s.name, val)
		} else {
			loop.define(s.name, key)
		}
		f, v, err := in.exec(s.body, loop)
		switch {
		case err != nil:
			return err
		case f == flowReturn:
			result, returnVal = flowReturn, v
			return errStop
		case f == flowBreak:
			return errStop
		}
		return nil
	}
	if isCollection(obj) {
		iterateErr = forEachElement(obj, body)
	} else {
		iterateErr = in.forEachProperty(obj, body)
	}
	if iterateErr != nil {
		return flowNormal, nil, iterateErr
	}
	return result, returnVal, nil
}

func (in *interp) eval(x expr, sc *scope) (interface{}, error) {
	switch x := x.(type) {
	case *numberLit:
		return x.value, nil
	case *stringLit:
		return x.value, nil
	case *boolLit:
		return x.value, nil
	case *nullLit:
		return nil, nil
	case *ident:
		if v, ok := sc.lookup(x.name); ok {
			return v, nil
		}
		return nil, evalErrorf("%s is not defined", x.name)
	case *arrayLit:
		elems := make([]interface{}, len(x.elems))
		for i, e := range x.elems {
			v, err := in.eval(e, sc)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return newArray(elems), nil
	case *objectLit:
		obj := newObject()
		for i, k := range x.keys {
			v, err := in.eval(x.values[i], sc)
			if err != nil {
				return nil, err
			}
			obj.set(k, v)
		}
		return obj, nil
	case *funcLit:
		return &closure{fn: x, env: sc}, nil
	case *unaryExpr:
		return in.evalUnary(x, sc)
	case *updateExpr:
		old, err := in.eval(x.target, sc)
		if err != nil {
			return nil, err
		}
		n := toNumber(old)
		next := n + 1
		if x.op == "--" {
			next = n - 1
		}
		if err := in.assign(x.target, next, sc); err != nil {
			return nil, err
		}
		if x.prefix {
			return next, nil
		}
		return n, nil
	case *binaryExpr:
		l, err := in.eval(x.l, sc)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(x.r, sc)
		if err != nil {
			return nil, err
		}
		return binaryOp(x.op, l, r)
	case *logicalExpr:
		l, err := in.eval(x.l, sc)
		if err != nil {
			return nil, err
		}
		if truthy(l) == (x.op == "||") {
			return l, nil
		}
		return in.eval(x.r, sc)
	case *condExpr:
		c, err := in.eval(x.test, sc)
		if err != nil {
			return nil, err
		}
		if truthy(c) {
			return in.eval(x.then, sc)
		}
		return in.eval(x.els, sc)
	case *assignExpr:
		v, err := in.eval(x.value, sc)
		if err != nil {
			return nil, err
		}
		if x.op != "=" {
			cur, err := in.eval(x.target, sc)
			if err != nil {
				return nil, err
			}
			if v, err = binaryOp(x.op[:1], cur, v); err != nil {
				return nil, err
			}
		}
		return v, in.assign(x.target, v, sc)
	case *memberExpr:
		obj, err := in.eval(x.obj, sc)
		if err != nil {
			return nil, err
		}
		return in.member(obj, x.name)
	case *indexExpr:
		obj, err := in.eval(x.obj, sc)
		if err != nil {
			return nil, err
		}
		key, err := in.eval(x.key, sc)
		if err != nil {
			return nil, err
		}
		return in.index(obj, key)
	case *callExpr:
		return in.evalCall(x, sc)
	}
	return nil, evalErrorf("unsupported expression %T", x)
}

func (in *interp) evalUnary(x *unaryExpr, sc *scope) (interface{}, error) {
	if x.op == "typeof" {
		if id, ok := x.x.(*ident); ok {
			if _, defined := sc.lookup(id.name); !defined {
				return "undefined", nil
			}
		}
	}
	v, err := in.eval(x.x, sc)
	if err != nil {
		return nil, err
	}
	switch x.op {
	case "!":
		return !truthy(v), nil
	case "-":
		return -toNumber(v), nil
	case "+":
		return toNumber(v), nil
	case "typeof":
		return typeOf(v), nil
	}
	return nil, evalErrorf("unknown operator %s", x.op)
}

func binaryOp(op string, l, r interface{}) (interface{}, error) {
	switch op {
	case "+":
		pl, pr := toPrimitive(l), toPrimitive(r)
		_, ls := pl.(string)
		_, rs := pr.(string)
		if ls || rs {
			return toString(pl) + toString(pr), nil
		}
		return toNumber(pl) + toNumber(pr), nil
	case "-":
		return toNumber(l) - toNumber(r), nil
	case "*":
		return toNumber(l) * toNumber(r), nil
	case "/":
		return toNumber(l) / toNumber(r), nil
	case "%":
		return math.Mod(toNumber(l), toNumber(r)), nil
	case "==":
		return looseEquals(l, r), nil
	case "!=":
		return !looseEquals(l, r), nil
	case "===":
		return strictEquals(l, r), nil
	case "!==":
		return !strictEquals(l, r), nil
	case "<", "<=", ">", ">=":
		c, ok := compareValues(l, r)
		if !ok {
			return false, nil
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		}
		return c >= 0, nil
	}
	return nil, evalErrorf("unknown operator %s", op)
}

func (in *interp) assign(target expr, v interface{}, sc *scope) error {
	switch t := target.(type) {
	case *ident:
		sc.assign(t.name, v)
		return nil
	case *memberExpr:
		obj, err := in.eval(t.obj, sc)
		if err != nil {
			return err
		}
		return setProperty(obj, t.name, v)
	case *indexExpr:
		obj, err := in.eval(t.obj, sc)
		if err != nil {
			return err
		}
		key, err := in.eval(t.key, sc)
		if err != nil {
			return err
		}
		if arr, ok := obj.(*jsArray); ok && isNumber(key) {
			i := int(toNumber(key))
			if i < 0 {
				return evalErrorf("invalid array index %d", i)
			}
			for len(arr.elems) <= i {
				arr.elems = append(arr.elems, undefined)
			}
			arr.elems[i] = v
			return nil
		}
		return setProperty(obj, toString(key), v)
	}
	return evalErrorf("invalid assignment target")
}

func setProperty(obj interface{}, name string, v interface{}) error {
	if o, ok := obj.(*jsObject); ok {
		o.set(name, v)
		return nil
	}
	return evalErrorf("cannot set property %s of %s", name, describe(obj))
}

func (in *interp) evalCall(x *callExpr, sc *scope) (interface{}, error) {
	fn, err := in.eval(x.callee, sc)
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, len(x.args))
	for i, a := range x.args {
		if args[i], err = in.eval(a, sc); err != nil {
			return nil, err
		}
	}
	saved := in.callScope
	in.callScope = sc
	defer func() { in.callScope = saved }()

	v, err := in.call(fn, args)
	if err != nil {
		if m, ok := x.callee.(*memberExpr); ok && isNotFunction(err) {
			return nil, evalErrorf("%s is not a function", m.name)
		}
		return nil, err
	}
	return v, nil
}

var errNotFunction = errors.New("not a function")

func isNotFunction(err error) bool {
	return errors.Is(err, errNotFunction)
}

func (in *interp) call(fn interface{}, args []interface{}) (interface{}, error) {
	switch f := fn.(type) {
	case *native:
		return f.fn(args)
	case *closure:
		if err := in.check(); err != nil {
			return nil, err
		}
		if in.depth >= maxCallDepth {
			return nil, evalErrorf("maximum call depth %d exceeded", maxCallDepth)
		}
		in.depth++
		savedLast := in.last
		defer func() {
			in.depth--
			in.last = savedLast
		}()

		sc := newScope(f.env)
		for i, p := range f.fn.params {
			if i < len(args) {
				sc.define(p, args[i])
			} else {
				sc.define(p, undefined)
			}
		}
		sc.define("arguments", newArray(append([]interface{}(nil), args...)))
		in.hoist(f.fn.body, sc)
		flow, v, err := in.execList(f.fn.body, sc)
		if err != nil {
			return nil, err
		}
		if flow == flowReturn {
			return v, nil
		}
		return undefined, nil
	}
	return nil, &EvalError{Msg: describe(fn) + " is not a function", Err: errNotFunction}
}

// Parameter lists bound by string callbacks.
var (
	itemParams    = []string{"it", "index", "array", "result"}
	compareParams = []string{"lhs", "rhs"}
)

// callable is a script function, a native or a compiled expression string.
type callable func(args ...interface{}) (interface{}, error)

// function turns a callback argument into a callable. Strings are compiled
// as expressions over params and evaluated in the caller's scope.
func (in *interp) function(v interface{}, params []string) (callable, error) {
	switch f := v.(type) {
	case string:
		x, err := in.compile(f)
		if err != nil {
			return nil, err
		}
		env := in.callScope
		return func(args ...interface{}) (interface{}, error) {
			sc := newScope(env)
			for i, p := range params {
				if i < len(args) {
					sc.define(p, args[i])
				} else {
					sc.define(p, undefined)
				}
			}
			return in.eval(x, sc)
		}, nil
	case *closure, *native:
		return func(args ...interface{}) (interface{}, error) {
			return in.call(f, args)
		}, nil
	}
	return nil, evalErrorf("%s is not a function or expression", describe(v))
}

// usesParam reports whether callback v may read its i-th parameter.
// Native functions are assumed to read all of them.
func (in *interp) usesParam(v interface{}, params []string, i int) bool {
	switch f := v.(type) {
	case string:
		x, err := in.compile(f)
		return err != nil || mentions(x, params[i])
	case *closure:
		return i < len(f.fn.params) && mentions(f.fn, f.fn.params[i])
	}
	return true
}

func (in *interp) compile(src string) (expr, error) {
	if x, ok := in.compiled[src]; ok {
		return x, nil
	}
	x, err := parseExpressionSource(src)
	if err != nil {
		return nil, err
	}
	in.compiled[src] = x
	return x, nil
}

// forEachProperty enumerates the named members of non-collection values:
// instance fields, class statics and the keys of GC roots.
func (in *interp) forEachProperty(v interface{}, fn func(key, val interface{}) error) error {
	var err error
	switch x := v.(type) {
	case *heap.Object:
		for _, fv := range x.Fields() {
			if err = fn(fv.Field.Name, fv.Value); err != nil {
				break
			}
		}
	case *heap.JavaClass:
		for _, fv := range x.StaticFields() {
			if err = fn(fv.Field.Name, fv.Value); err != nil {
				break
			}
		}
	case string:
		for i, r := range []rune(x) {
			if err = fn(strconv.Itoa(i), string(r)); err != nil {
				break
			}
		}
	}
	if err == errStop {
		return nil
	}
	return err
}
