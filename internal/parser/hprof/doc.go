// Package hprof loads Java HPROF heap dump files into heap snapshots.
//
// Files in this package:
//   - types.go: record and sub-record tags, header and load statistics
//   - core_reader.go: buffered big-endian reader for HPROF primitives
//   - loader.go: record loop feeding a heap.Builder
//
// Dumps compressed with gzip or zstd are detected by magic bytes and
// decompressed while streaming. Records other than STRING, LOAD_CLASS and
// HEAP_DUMP(_SEGMENT) are skipped.
package hprof
