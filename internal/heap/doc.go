// Package heap provides an immutable, fully materialized model of a Java heap
// snapshot: classes, instances, arrays and GC roots, plus the graph queries
// built on top of them.
//
// # Package Organization
//
//   - types.go: basic types, field descriptors, GC root kinds
//   - heap.go: the Heap snapshot and lookups
//   - class.go, instance.go: JavaClass and Instance implementations
//   - builder.go: incremental construction used by loaders and fixtures
//   - graph_refs.go: outgoing references and the referrer index
//   - graph_reachable.go: lazy reachability walks with pruning
//   - graph_paths.go: reference chains from GC roots
//   - dom_dominator.go: dominator tree and retained sizes
//   - strings.go: java.lang.String value decoding
package heap
