// Package oql implements the object query language used to inspect heap
// snapshots.
//
// A query is either a select statement
//
//	select <expr> [from [instanceof] <class> <ident> [where <expr>]]
//
// or a script of statements whose completion value is the result. Results
// that are arrays or sequences are delivered one element per visit.
//
// Builtin functions accept callbacks either as script functions or as
// expression strings evaluated with it, index, array and result bound
// (lhs and rhs for comparators).
//
// Files in this package:
//   - lexer.go, parser.go, ast.go: tokens, syntax tree and the select grammar
//   - interp.go: statement and expression evaluation
//   - values.go: script values and conversions
//   - members.go: property access on heap things and script values
//   - builtins.go, heapobj.go: global functions and the heap object
//   - html.go: toHtml rendering
//   - engine.go: Engine, result delivery and error classification
//   - catalog.go: predefined queries
package oql
