package oql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/heapql/internal/heap"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/utils"
)

// ObjectVisitor receives query results one row at a time. Returning true
// stops the query.
type ObjectVisitor interface {
	Visit(result interface{}) bool
}

// VisitorFunc adapts a function to ObjectVisitor.
type VisitorFunc func(result interface{}) bool

// Visit calls f(result).
func (f VisitorFunc) Visit(result interface{}) bool { return f(result) }

// Engine evaluates OQL queries against one heap snapshot. Queries may run
// concurrently; Cancel stops all of them.
type Engine struct {
	heap      *heap.Heap
	logger    utils.Logger
	out       io.Writer
	excludes  heap.FieldExcludes
	maxPaths  int
	cancelled atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger utils.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithOutput sets the writer used by print and println.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.out = w
		}
	}
}

// WithReachableExcludes sets qualified field names ("java.lang.ref.Reference.referent")
// whose edges reachables() does not follow by default.
func WithReachableExcludes(fields ...string) Option {
	return func(e *Engine) { e.excludes = heap.ParseFieldExcludes(fields...) }
}

// WithMaxPaths bounds the number of paths heap.livepaths() returns.
func WithMaxPaths(n int) Option {
	return func(e *Engine) { e.maxPaths = n }
}

// NewEngine creates a query engine over h.
func NewEngine(h *heap.Heap, opts ...Option) *Engine {
	e := &Engine{
		heap:     h,
		logger:   &utils.NullLogger{},
		out:      io.Discard,
		excludes: heap.FieldExcludes{},
		maxPaths: heap.DefaultMaxPaths,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Heap returns the snapshot the engine queries.
func (e *Engine) Heap() *heap.Heap { return e.heap }

// Cancel stops running queries at their next loop iteration or sequence step.
func (e *Engine) Cancel() { e.cancelled.Store(true) }

// IsCancelled reports whether Cancel was called since the last query started.
func (e *Engine) IsCancelled() bool { return e.cancelled.Load() }

// ExecuteQuery parses and runs a query, passing each result row to visitor.
// A nil visitor evaluates the query for its side effects only. Errors are
// *apperrors.AppError values with code PARSE_ERROR, QUERY_ERROR or
// QUERY_CANCELLED.
func (e *Engine) ExecuteQuery(ctx context.Context, query string, visitor ObjectVisitor) error {
	e.cancelled.Store(false)
	q, err := Parse(query)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeParseError, "invalid query", err)
	}
	return e.Execute(ctx, q, visitor)
}

// Execute runs a parsed query.
func (e *Engine) Execute(ctx context.Context, q *Query, visitor ObjectVisitor) (err error) {
	start := time.Now()
	rows := 0
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
		if err != nil {
			err = classify(err)
			e.logger.Debug("query failed after %v: %v", time.Since(start), err)
			return
		}
		e.logger.Debug("query delivered %d rows in %v", rows, time.Since(start))
	}()

	in := newInterp(ctx, e)
	d := &deliverer{in: in, visitor: visitor, rows: &rows}

	switch {
	case !q.IsSelect():
		v, err := in.run(q.script)
		if err != nil {
			return err
		}
		_, err = d.deliver(v)
		return err
	case q.From == nil:
		v, err := in.eval(q.projection, in.globals)
		if err != nil {
			return err
		}
		_, err = d.deliver(v)
		return err
	}
	return e.selectFrom(in, q, d)
}

func (e *Engine) selectFrom(in *interp, q *Query, d *deliverer) error {
	cls := e.heap.FindClass(q.From.ClassName)
	if cls == nil {
		return evalErrorf("%s is not a class", q.From.ClassName)
	}
	for _, inst := range e.heap.Instances(cls, q.From.InstanceOf) {
		if err := in.check(); err != nil {
			return err
		}
		row := newScope(in.globals)
		row.define(q.From.Binding, inst)
		if q.where != nil {
			ok, err := in.eval(q.where, row)
			if err != nil {
				return err
			}
			if !truthy(ok) {
				continue
			}
		}
		v, err := in.eval(q.projection, row)
		if err != nil {
			return err
		}
		stop, err := d.deliver(v)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

// deliverer hands results to the visitor. Arrays and sequences are
// flattened into one visit per element.
type deliverer struct {
	in      *interp
	visitor ObjectVisitor
	rows    *int
}

func (d *deliverer) deliver(v interface{}) (bool, error) {
	switch v.(type) {
	case *jsArray, *seq:
		stop := false
		err := forEachElement(v, func(_, e interface{}) error {
			if err := d.in.check(); err != nil {
				return err
			}
			s, err := d.visit(e)
			if err != nil {
				return err
			}
			if s {
				stop = true
				return errStop
			}
			return nil
		})
		return stop, err
	}
	return d.visit(v)
}

func (d *deliverer) visit(v interface{}) (bool, error) {
	out, err := export(v)
	if err != nil {
		return false, err
	}
	*d.rows++
	if d.visitor == nil {
		return false, nil
	}
	return d.visitor.Visit(out), nil
}

// classify wraps engine errors in coded application errors.
func classify(err error) error {
	var pe *ParseError
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.CodeQueryCancelled, "query cancelled", err)
	case errors.As(err, &pe):
		return apperrors.Wrap(apperrors.CodeParseError, "invalid query", err)
	}
	return apperrors.Wrap(apperrors.CodeQueryError, "query failed", err)
}
