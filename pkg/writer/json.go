// Package writer encodes query results as JSON, optionally compressed, for
// export files and HTTP responses.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/heapql/pkg/compression"
)

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
	// Compression wraps the output stream. TypeNone writes plain JSON.
	Compression compression.Type
	Level       compression.Level
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Compression: compression.TypeNone, Level: compression.LevelDefault}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	w := NewJSONWriter[T]()
	w.Indent = "  "
	return w
}

// NewCompressedJSONWriter creates a compact JSON writer compressing with t.
func NewCompressedJSONWriter[T any](t compression.Type) *JSONWriter[T] {
	w := NewJSONWriter[T]()
	w.Compression = t
	return w
}

// Extension returns the file suffix for the writer's output, e.g. ".json.gz".
func (w *JSONWriter[T]) Extension() string {
	return ".json" + w.Compression.Extension()
}

// Write encodes data to writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	cw, err := compression.NewWriter(writer, w.Compression, w.Level)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(cw)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	if err := encoder.Encode(data); err != nil {
		cw.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return cw.Close()
}

// Encode returns the encoded bytes of data.
func (w *JSONWriter[T]) Encode(data T) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteToFile writes data to a file.
func (w *JSONWriter[T]) WriteToFile(data T, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := w.Write(data, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteResult contains statistics about written output.
type WriteResult struct {
	JSONSize       int64
	CompressedSize int64
	CompressionPct float64
}

// EncodeWithStats encodes data and reports the plain and compressed sizes.
func (w *JSONWriter[T]) EncodeWithStats(data T) ([]byte, *WriteResult, error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	out, err := w.Encode(data)
	if err != nil {
		return nil, nil, err
	}
	res := &WriteResult{JSONSize: int64(len(plain)), CompressedSize: int64(len(out))}
	if res.JSONSize > 0 {
		res.CompressionPct = float64(res.CompressedSize) / float64(res.JSONSize) * 100
	}
	return out, res, nil
}
