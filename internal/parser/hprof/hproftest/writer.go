// Package hproftest writes small synthetic HPROF dumps for tests.
package hproftest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Basic type codes used in dumps.
const (
	Object  byte = 2
	Boolean byte = 4
	Char    byte = 5
	Float   byte = 6
	Double  byte = 7
	Byte    byte = 8
	Short   byte = 9
	Int     byte = 10
	Long    byte = 11
)

// Field is an instance field declaration.
type Field struct {
	Name string
	Type byte
}

// Static is a static field with its value.
type Static struct {
	Name  string
	Type  byte
	Value interface{}
}

// Writer assembles an HPROF stream. Heap dump sub-records are buffered and
// emitted as one HEAP_DUMP_SEGMENT by Bytes.
type Writer struct {
	idSize  int
	out     bytes.Buffer
	heap    bytes.Buffer
	strings map[string]uint64
	nextStr uint64
	serial  uint32
}

// NewWriter starts a dump with the given identifier size.
func NewWriter(idSize int) *Writer {
	w := &Writer{idSize: idSize, strings: make(map[string]uint64), nextStr: 0x10}
	w.out.WriteString("JAVA PROFILE 1.0.2")
	w.out.WriteByte(0)
	binary.Write(&w.out, binary.BigEndian, uint32(idSize))
	binary.Write(&w.out, binary.BigEndian, uint64(1700000000000))
	return w
}

func (w *Writer) id(buf *bytes.Buffer, v uint64) {
	if w.idSize == 4 {
		binary.Write(buf, binary.BigEndian, uint32(v))
		return
	}
	binary.Write(buf, binary.BigEndian, v)
}

func (w *Writer) record(tag byte, body []byte) {
	w.out.WriteByte(tag)
	binary.Write(&w.out, binary.BigEndian, uint32(0))
	binary.Write(&w.out, binary.BigEndian, uint32(len(body)))
	w.out.Write(body)
}

// String interns s as a STRING record and returns its ID.
func (w *Writer) String(s string) uint64 {
	if id, ok := w.strings[s]; ok {
		return id
	}
	id := w.nextStr
	w.nextStr++
	w.strings[s] = id
	var body bytes.Buffer
	w.id(&body, id)
	body.WriteString(s)
	w.record(0x01, body.Bytes())
	return id
}

// Raw emits an arbitrary top-level record.
func (w *Writer) Raw(tag byte, body []byte) {
	w.record(tag, body)
}

// Class emits LOAD_CLASS plus CLASS_DUMP. name uses internal form, e.g. "java/lang/String".
func (w *Writer) Class(id, super uint64, name string, instSize uint32, statics []Static, fields []Field) {
	nameID := w.String(name)
	w.serial++
	var lc bytes.Buffer
	binary.Write(&lc, binary.BigEndian, w.serial)
	w.id(&lc, id)
	binary.Write(&lc, binary.BigEndian, uint32(0))
	w.id(&lc, nameID)
	w.record(0x02, lc.Bytes())

	staticNames := make([]uint64, len(statics))
	for i, s := range statics {
		staticNames[i] = w.String(s.Name)
	}
	fieldNames := make([]uint64, len(fields))
	for i, f := range fields {
		fieldNames[i] = w.String(f.Name)
	}

	h := &w.heap
	h.WriteByte(0x20)
	w.id(h, id)
	binary.Write(h, binary.BigEndian, uint32(0))
	w.id(h, super)
	for i := 0; i < 5; i++ { // loader, signers, protection domain, reserved x2
		w.id(h, 0)
	}
	binary.Write(h, binary.BigEndian, instSize)
	binary.Write(h, binary.BigEndian, uint16(0))
	binary.Write(h, binary.BigEndian, uint16(len(statics)))
	for i, s := range statics {
		w.id(h, staticNames[i])
		h.WriteByte(s.Type)
		w.value(h, s.Type, s.Value)
	}
	binary.Write(h, binary.BigEndian, uint16(len(fields)))
	for i, f := range fields {
		w.id(h, fieldNames[i])
		h.WriteByte(f.Type)
	}
}

// Instance emits an INSTANCE_DUMP. values follow the class field layout,
// own fields first then superclass fields.
func (w *Writer) Instance(id, classID uint64, types []byte, values []interface{}) {
	var data bytes.Buffer
	for i, t := range types {
		w.value(&data, t, values[i])
	}
	h := &w.heap
	h.WriteByte(0x21)
	w.id(h, id)
	binary.Write(h, binary.BigEndian, uint32(0))
	w.id(h, classID)
	binary.Write(h, binary.BigEndian, uint32(data.Len()))
	h.Write(data.Bytes())
}

// ObjectArray emits an OBJ_ARRAY_DUMP.
func (w *Writer) ObjectArray(id, classID uint64, elems []uint64) {
	h := &w.heap
	h.WriteByte(0x22)
	w.id(h, id)
	binary.Write(h, binary.BigEndian, uint32(0))
	binary.Write(h, binary.BigEndian, uint32(len(elems)))
	w.id(h, classID)
	for _, e := range elems {
		w.id(h, e)
	}
}

// PrimitiveArray emits a PRIM_ARRAY_DUMP.
func (w *Writer) PrimitiveArray(id uint64, elemType byte, values []interface{}) {
	h := &w.heap
	h.WriteByte(0x23)
	w.id(h, id)
	binary.Write(h, binary.BigEndian, uint32(0))
	binary.Write(h, binary.BigEndian, uint32(len(values)))
	h.WriteByte(elemType)
	for _, v := range values {
		w.value(h, elemType, v)
	}
}

// Root emits a root sub-record. extra carries the trailing payload required by tag.
func (w *Writer) Root(tag byte, id uint64, extra ...uint32) {
	h := &w.heap
	h.WriteByte(tag)
	w.id(h, id)
	if tag == 0x01 {
		w.id(h, 0)
		return
	}
	for _, e := range extra {
		binary.Write(h, binary.BigEndian, e)
	}
}

// HeapBytes appends raw bytes to the pending heap dump segment.
func (w *Writer) HeapBytes(b []byte) {
	w.heap.Write(b)
}

// Bytes flushes the pending heap dump segment and returns the dump.
func (w *Writer) Bytes() []byte {
	if w.heap.Len() > 0 {
		w.record(0x1C, w.heap.Bytes())
		w.heap.Reset()
		w.record(0x2C, nil)
	}
	return w.out.Bytes()
}

func (w *Writer) value(buf *bytes.Buffer, t byte, v interface{}) {
	switch t {
	case Object:
		var id uint64
		switch n := v.(type) {
		case uint64:
			id = n
		case int:
			id = uint64(n)
		}
		w.id(buf, id)
	case Boolean:
		if b, _ := v.(bool); b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case Byte:
		buf.WriteByte(byte(toInt(v)))
	case Char:
		if s, ok := v.(string); ok && s != "" {
			binary.Write(buf, binary.BigEndian, uint16([]rune(s)[0]))
		} else {
			binary.Write(buf, binary.BigEndian, uint16(toInt(v)))
		}
	case Short:
		binary.Write(buf, binary.BigEndian, int16(toInt(v)))
	case Int:
		binary.Write(buf, binary.BigEndian, int32(toInt(v)))
	case Long:
		binary.Write(buf, binary.BigEndian, toInt(v))
	case Float:
		f, _ := v.(float64)
		binary.Write(buf, binary.BigEndian, math.Float32bits(float32(f)))
	case Double:
		f, _ := v.(float64)
		binary.Write(buf, binary.BigEndian, math.Float64bits(f))
	}
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint16:
		return int64(n)
	case byte:
		return int64(n)
	}
	return 0
}
