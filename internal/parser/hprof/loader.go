package hprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/heapql/internal/heap"
	"github.com/heapql/pkg/compression"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/utils"
)

// LoaderOptions configures the HPROF loader.
type LoaderOptions struct {
	// SizeMode controls shallow size calculation.
	SizeMode heap.SizeMode
	// Workers bounds the parallelism of lazy index construction. 0 uses GOMAXPROCS.
	Workers int
	// Logger receives progress output. Nil suppresses it.
	Logger utils.Logger
}

// DefaultLoaderOptions returns options matching a 64-bit JVM with compressed oops.
func DefaultLoaderOptions() *LoaderOptions {
	return &LoaderOptions{SizeMode: heap.SizeModeCompressedOops}
}

// Loader reads HPROF streams into heap snapshots.
type Loader struct {
	opts   *LoaderOptions
	logger utils.Logger
}

// NewLoader creates a loader. Nil options use DefaultLoaderOptions.
func NewLoader(opts *LoaderOptions) *Loader {
	if opts == nil {
		opts = DefaultLoaderOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Loader{opts: opts, logger: logger}
}

// LoadFile opens path, transparently decompressing gzip or zstd dumps.
func (l *Loader) LoadFile(ctx context.Context, path string) (*heap.Heap, *Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open heap dump: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load parses an HPROF stream. Compressed input is detected by magic bytes.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*heap.Heap, *Stats, error) {
	start := time.Now()
	timer := utils.NewTimer("hprof load", utils.WithLogger(l.logger), utils.WithEnabled(l.opts.Logger != nil))

	rc, ctype, err := compression.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	if ctype != compression.TypeNone {
		l.logger.Debug("Decompressing %s heap dump", ctype)
	}

	reader := NewReader(rc)
	header, err := reader.ReadHeader()
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeParseError, "failed to read header", err)
	}
	l.logger.Debug("HPROF header: %s, id size %d", header.Format, header.IDSize)

	st := &loadState{
		reader:     reader,
		builder:    heap.NewBuilder(header.IDSize, heap.WithSizeMode(l.opts.SizeMode), heap.WithLogger(l.logger), heap.WithWorkers(l.opts.Workers)),
		strings:    make(map[heap.ID]string),
		classNames: make(map[heap.ID]heap.ID),
		stats:      &Stats{},
	}

	pt := timer.Start("records")
	if err := l.readRecords(ctx, st); err != nil {
		if ctx.Err() != nil {
			return nil, nil, err
		}
		return nil, nil, apperrors.Wrap(apperrors.CodeParseError,
			fmt.Sprintf("failed to parse records at offset %d", reader.Pos()), err)
	}
	pt.Stop()

	pt = timer.Start("build")
	h, err := st.builder.Build()
	if err != nil {
		return nil, nil, err
	}
	pt.Stop()
	timer.PrintSummary()

	st.stats.Duration = time.Since(start)
	return h, st.stats, nil
}

type loadState struct {
	reader     *Reader
	builder    *heap.Builder
	strings    map[heap.ID]string
	classNames map[heap.ID]heap.ID // class object ID -> name string ID
	stats      *Stats
	// end is the stream offset where the current heap dump segment ends.
	end int64
}

// payload checks that n more bytes fit in the current heap dump segment.
func (st *loadState) payload(what string, n int64) error {
	left := st.end - st.reader.Pos()
	if n < 0 || n > left {
		return fmt.Errorf("%s of %d bytes overruns the segment (%d bytes left)", what, n, left)
	}
	return nil
}

func (l *Loader) readRecords(ctx context.Context, st *loadState) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tag, _, length, err := st.reader.ReadRecordHeader()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch tag {
		case TagString:
			err = st.readString(length)
		case TagLoadClass:
			err = st.readLoadClass()
		case TagHeapDump, TagHeapDumpSegment:
			err = l.readHeapDump(ctx, st, int64(length))
		default:
			st.stats.SkippedRecords++
			err = st.reader.Skip(int64(length))
		}
		if err != nil {
			return fmt.Errorf("record %#02x: %w", uint8(tag), err)
		}
	}
}

func (st *loadState) readString(length uint32) error {
	id, err := st.reader.ReadID()
	if err != nil {
		return err
	}
	n := int(length) - st.reader.IDSize()
	if n < 0 {
		return fmt.Errorf("invalid string length %d", n)
	}
	b, err := st.reader.ReadBytes(n)
	if err != nil {
		return err
	}
	st.strings[id] = string(b)
	st.stats.Strings++
	return nil
}

func (st *loadState) readLoadClass() error {
	if _, err := st.reader.ReadUint32(); err != nil { // serial
		return err
	}
	classID, err := st.reader.ReadID()
	if err != nil {
		return err
	}
	if _, err := st.reader.ReadUint32(); err != nil { // stack trace serial
		return err
	}
	nameID, err := st.reader.ReadID()
	if err != nil {
		return err
	}
	st.classNames[classID] = nameID
	return nil
}

func (st *loadState) className(classID heap.ID) string {
	if name, ok := st.strings[st.classNames[classID]]; ok {
		return name
	}
	return fmt.Sprintf("unknown.Class@%#x", classID)
}

// rootLayout describes the fixed payload that follows the object ID of a root sub-record.
type rootLayout struct {
	kind heap.RootKind
	// extra holds the kinds of trailing fields: 'i' for an ID, 'u' for a u4.
	extra string
}

var rootLayouts = map[HeapDumpTag]rootLayout{
	HeapTagRootUnknown:        {heap.RootUnknown, ""},
	HeapTagRootJNIGlobal:      {heap.RootJNIGlobal, "i"},
	HeapTagRootJNILocal:       {heap.RootJNILocal, "uu"},
	HeapTagRootJavaFrame:      {heap.RootJavaFrame, "uu"},
	HeapTagRootNativeStack:    {heap.RootNativeStack, "u"},
	HeapTagRootStickyClass:    {heap.RootStickyClass, ""},
	HeapTagRootThreadBlock:    {heap.RootThreadBlock, "u"},
	HeapTagRootMonitorUsed:    {heap.RootMonitorUsed, ""},
	HeapTagRootThreadObject:   {heap.RootThreadObject, "uu"},
	HeapTagRootInternedString: {heap.RootInternedString, ""},
	HeapTagRootFinalizing:     {heap.RootFinalizing, ""},
	HeapTagRootDebugger:       {heap.RootDebugger, ""},
	HeapTagRootReferenceClean: {heap.RootReferenceClean, ""},
	HeapTagRootVMInternal:     {heap.RootVMInternal, ""},
	HeapTagRootJNIMonitor:     {heap.RootJNIMonitor, "uu"},
}

func (l *Loader) readHeapDump(ctx context.Context, st *loadState, length int64) error {
	end := st.reader.Pos() + length
	st.end = end
	for st.reader.Pos() < end {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := st.reader.ReadByte()
		if err != nil {
			return err
		}
		tag := HeapDumpTag(b)

		if layout, ok := rootLayouts[tag]; ok {
			if err := st.readRoot(tag, layout); err != nil {
				return err
			}
			continue
		}

		switch tag {
		case 0x00:
			// padding
		case HeapTagClassDump:
			err = st.readClassDump()
		case HeapTagInstanceDump:
			err = st.readInstanceDump()
		case HeapTagObjectArrayDump:
			err = st.readObjectArrayDump()
		case HeapTagPrimitiveArrayDump:
			err = st.readPrimitiveArrayDump(true)
		case HeapTagPrimitiveArrayNoData:
			err = st.readPrimitiveArrayDump(false)
		case HeapTagHeapDumpInfo:
			if _, err = st.reader.ReadUint32(); err == nil {
				_, err = st.reader.ReadID()
			}
		case HeapTagUnreachable:
			_, err = st.reader.ReadID()
		default:
			// The payload length of an unknown sub-record cannot be known.
			remaining := end - st.reader.Pos()
			l.logger.Warn("Unknown heap dump tag %#02x, skipping %d bytes", uint8(tag), remaining)
			st.stats.SkippedRecords++
			return st.reader.Skip(remaining)
		}
		if err != nil {
			return fmt.Errorf("sub-record %#02x: %w", uint8(tag), err)
		}
	}
	return nil
}

func (st *loadState) readRoot(tag HeapDumpTag, layout rootLayout) error {
	id, err := st.reader.ReadID()
	if err != nil {
		return err
	}
	root := heap.GCRoot{ObjectID: id, Kind: layout.kind, FrameIndex: -1}
	var u4s []uint32
	for _, c := range layout.extra {
		if c == 'i' {
			if _, err := st.reader.ReadID(); err != nil {
				return err
			}
			continue
		}
		v, err := st.reader.ReadUint32()
		if err != nil {
			return err
		}
		u4s = append(u4s, v)
	}
	switch tag {
	case HeapTagRootJNILocal, HeapTagRootJavaFrame:
		root.ThreadID = heap.ID(u4s[0])
		root.FrameIndex = int(int32(u4s[1]))
	case HeapTagRootNativeStack, HeapTagRootThreadBlock:
		root.ThreadID = heap.ID(u4s[0])
	case HeapTagRootThreadObject:
		root.ThreadID = heap.ID(u4s[0])
	}
	st.builder.AddRoot(root)
	st.stats.Roots++
	return nil
}

func (st *loadState) readClassDump() error {
	r := st.reader
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil { // stack trace serial
		return err
	}
	superID, err := r.ReadID()
	if err != nil {
		return err
	}
	loaderID, err := r.ReadID()
	if err != nil {
		return err
	}
	// signers, protection domain, two reserved
	for i := 0; i < 4; i++ {
		if _, err := r.ReadID(); err != nil {
			return err
		}
	}
	instSize, err := r.ReadUint32()
	if err != nil {
		return err
	}

	cpCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(cpCount); i++ {
		if _, err := r.ReadUint16(); err != nil {
			return err
		}
		t, err := st.readType()
		if err != nil {
			return err
		}
		if _, err := r.ReadValue(t); err != nil {
			return err
		}
	}

	def := heap.ClassDef{
		ID:           classID,
		Name:         st.className(classID),
		SuperID:      superID,
		LoaderID:     loaderID,
		InstanceSize: int(instSize),
	}

	staticCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(staticCount); i++ {
		nameID, err := r.ReadID()
		if err != nil {
			return err
		}
		t, err := st.readType()
		if err != nil {
			return err
		}
		v, err := r.ReadValue(t)
		if err != nil {
			return err
		}
		def.Statics = append(def.Statics, heap.StaticDef{Name: st.strings[nameID], Type: t, Value: v})
	}

	fieldCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(fieldCount); i++ {
		nameID, err := r.ReadID()
		if err != nil {
			return err
		}
		t, err := st.readType()
		if err != nil {
			return err
		}
		def.Fields = append(def.Fields, heap.FieldDef{Name: st.strings[nameID], Type: t})
	}

	if err := st.builder.AddClass(def); err != nil {
		return err
	}
	st.stats.Classes++
	return nil
}

func (st *loadState) readType() (heap.BasicType, error) {
	b, err := st.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	t := heap.BasicType(b)
	if !t.Valid() {
		return 0, fmt.Errorf("invalid basic type %d", b)
	}
	return t, nil
}

func (st *loadState) readInstanceDump() error {
	r := st.reader
	id, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := st.payload("instance", int64(n)); err != nil {
		return err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return err
	}
	st.builder.AddInstance(id, classID, data)
	st.stats.Instances++
	return nil
}

func (st *loadState) readObjectArrayDump() error {
	r := st.reader
	id, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	if err := st.payload("object array", int64(n)*int64(r.IDSize())); err != nil {
		return err
	}
	elems := make([]heap.ID, n)
	for i := range elems {
		if elems[i], err = r.ReadID(); err != nil {
			return err
		}
	}
	st.builder.AddObjectArray(id, classID, elems)
	st.stats.ObjectArrays++
	return nil
}

func (st *loadState) readPrimitiveArrayDump(withData bool) error {
	r := st.reader
	id, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	t, err := st.readType()
	if err != nil {
		return err
	}
	if t == heap.TypeObject {
		return fmt.Errorf("primitive array %#x has object element type", id)
	}
	// Arrays dumped without data keep a nil buffer and read as zeros.
	var data []byte
	if withData {
		size := int64(n) * int64(t.Size(r.IDSize()))
		if err := st.payload("primitive array", size); err != nil {
			return err
		}
		if data, err = r.ReadBytes(int(size)); err != nil {
			return err
		}
	}
	st.builder.AddPrimitiveArray(id, t, int(n), data)
	st.stats.PrimitiveArrays++
	return nil
}
