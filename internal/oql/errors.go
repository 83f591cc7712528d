package oql

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports a syntax error. Nothing is evaluated when a query fails to parse.
type ParseError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func newParseError(src string, offset int, msg string) *ParseError {
	if offset > len(src) {
		offset = len(src)
	}
	line := strings.Count(src[:offset], "\n") + 1
	col := offset - strings.LastIndexByte(src[:offset], '\n')
	return &ParseError{Offset: offset, Line: line, Column: col, Msg: msg}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// EvalError reports a failure while evaluating a parsed query.
type EvalError struct {
	Msg string
	Err error
}

func evalErrorf(format string, args ...interface{}) *EvalError {
	return &EvalError{Msg: fmt.Sprintf(format, args...)}
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *EvalError) Unwrap() error { return e.Err }

// ErrCancelled is returned when a query is stopped by Cancel or its context.
var ErrCancelled = errors.New("query cancelled")

// thrown carries a value raised by a script throw statement.
type thrown struct {
	value interface{}
}

func (t *thrown) Error() string {
	return "uncaught exception: " + toString(t.value)
}
