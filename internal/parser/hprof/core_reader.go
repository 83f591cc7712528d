package hprof

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/heapql/internal/heap"
)

// Reader provides buffered, position-tracking reads of HPROF binary data.
type Reader struct {
	r       *bufio.Reader
	idSize  int
	pos     int64
	byteBuf []byte
}

// NewReader creates a new HPROF reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:       bufio.NewReaderSize(r, 64*1024),
		idSize:  8, // replaced by the header value
		byteBuf: make([]byte, 8),
	}
}

// SetIDSize sets the identifier size (4 or 8 bytes).
func (r *Reader) SetIDSize(size int) {
	r.idSize = size
}

// IDSize returns the current identifier size.
func (r *Reader) IDSize() int {
	return r.idSize
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadHeader reads the HPROF file header.
func (r *Reader) ReadHeader() (*Header, error) {
	format, err := r.readNullTerminatedString()
	if err != nil {
		return nil, fmt.Errorf("failed to read format string: %w", err)
	}

	idSize, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read ID size: %w", err)
	}
	if idSize != 4 && idSize != 8 {
		return nil, fmt.Errorf("unsupported identifier size %d", idSize)
	}
	r.idSize = int(idSize)

	timestamp, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}

	return &Header{
		Format:    format,
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(int64(timestamp)),
	}, nil
}

// ReadRecordHeader reads a record header (tag, time delta, length).
func (r *Reader) ReadRecordHeader() (tag RecordTag, timeDelta uint32, length uint32, err error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return 0, 0, 0, err
	}
	tag = RecordTag(tagByte)

	if timeDelta, err = r.ReadUint32(); err != nil {
		return 0, 0, 0, err
	}
	if length, err = r.ReadUint32(); err != nil {
		return 0, 0, 0, err
	}
	return tag, timeDelta, length, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err == nil {
		r.pos++
	}
	return b, err
}

// readChunk bounds the up-front allocation of ReadBytes. Lengths come from
// the file, so buffers grow only as data actually arrives.
const readChunk = 1 << 20

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	buf := make([]byte, 0, min(n, readChunk))
	for len(buf) < n {
		k := min(n-len(buf), readChunk)
		if cap(buf)-len(buf) < k {
			buf = append(buf, make([]byte, k)...)[:len(buf)]
		}
		read, err := io.ReadFull(r.r, buf[len(buf):len(buf)+k])
		r.pos += int64(read)
		buf = buf[:len(buf)+read]
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return buf, err
		}
	}
	return buf, nil
}

func (r *Reader) fill(n int) error {
	read, err := io.ReadFull(r.r, r.byteBuf[:n])
	r.pos += int64(read)
	return err
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.fill(2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.byteBuf[:2]), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.fill(4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.byteBuf[:4]), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.fill(8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.byteBuf[:8]), nil
}

// ReadID reads an identifier (size depends on header).
func (r *Reader) ReadID() (uint64, error) {
	if r.idSize == 4 {
		v, err := r.ReadUint32()
		return uint64(v), err
	}
	return r.ReadUint64()
}

// Skip skips n bytes.
func (r *Reader) Skip(n int64) error {
	skipped, err := r.r.Discard(int(n))
	r.pos += int64(skipped)
	return err
}

func (r *Reader) readNullTerminatedString() (string, error) {
	var result []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		result = append(result, b)
	}
	return string(result), nil
}

// ReadValue reads a value of the given basic type, decoded to the Go type
// the heap model uses for that type. Object values are returned as heap.ID.
func (r *Reader) ReadValue(t heap.BasicType) (interface{}, error) {
	switch t {
	case heap.TypeObject:
		return r.ReadID()
	case heap.TypeBoolean:
		b, err := r.ReadByte()
		return b != 0, err
	case heap.TypeByte:
		b, err := r.ReadByte()
		return int8(b), err
	case heap.TypeChar:
		v, err := r.ReadUint16()
		return string(rune(v)), err
	case heap.TypeShort:
		v, err := r.ReadUint16()
		return int16(v), err
	case heap.TypeInt:
		v, err := r.ReadUint32()
		return int32(v), err
	case heap.TypeFloat:
		v, err := r.ReadUint32()
		return math.Float32frombits(v), err
	case heap.TypeLong:
		v, err := r.ReadUint64()
		return int64(v), err
	case heap.TypeDouble:
		v, err := r.ReadUint64()
		return math.Float64frombits(v), err
	default:
		return nil, fmt.Errorf("unknown basic type: %d", t)
	}
}
