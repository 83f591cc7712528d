package hprof

import "time"

// RecordTag represents the type of a top-level HPROF record.
type RecordTag uint8

const (
	TagString          RecordTag = 0x01
	TagLoadClass       RecordTag = 0x02
	TagUnloadClass     RecordTag = 0x03
	TagStackFrame      RecordTag = 0x04
	TagStackTrace      RecordTag = 0x05
	TagAllocSites      RecordTag = 0x06
	TagHeapSummary     RecordTag = 0x07
	TagStartThread     RecordTag = 0x0A
	TagEndThread       RecordTag = 0x0B
	TagHeapDump        RecordTag = 0x0C
	TagCPUSamples      RecordTag = 0x0D
	TagControlSettings RecordTag = 0x0E
	TagHeapDumpSegment RecordTag = 0x1C
	TagHeapDumpEnd     RecordTag = 0x2C
)

// HeapDumpTag represents sub-record tags within a heap dump record.
type HeapDumpTag uint8

const (
	HeapTagRootUnknown          HeapDumpTag = 0xFF
	HeapTagRootJNIGlobal        HeapDumpTag = 0x01
	HeapTagRootJNILocal         HeapDumpTag = 0x02
	HeapTagRootJavaFrame        HeapDumpTag = 0x03
	HeapTagRootNativeStack      HeapDumpTag = 0x04
	HeapTagRootStickyClass      HeapDumpTag = 0x05
	HeapTagRootThreadBlock      HeapDumpTag = 0x06
	HeapTagRootMonitorUsed      HeapDumpTag = 0x07
	HeapTagRootThreadObject     HeapDumpTag = 0x08
	HeapTagClassDump            HeapDumpTag = 0x20
	HeapTagInstanceDump         HeapDumpTag = 0x21
	HeapTagObjectArrayDump      HeapDumpTag = 0x22
	HeapTagPrimitiveArrayDump   HeapDumpTag = 0x23
	HeapTagRootInternedString   HeapDumpTag = 0x89
	HeapTagRootFinalizing       HeapDumpTag = 0x8A
	HeapTagRootDebugger         HeapDumpTag = 0x8B
	HeapTagRootReferenceClean   HeapDumpTag = 0x8C
	HeapTagRootVMInternal       HeapDumpTag = 0x8D
	HeapTagRootJNIMonitor       HeapDumpTag = 0x8E
	HeapTagPrimitiveArrayNoData HeapDumpTag = 0xC3
	HeapTagHeapDumpInfo         HeapDumpTag = 0xFE
	HeapTagUnreachable          HeapDumpTag = 0x90
)

// Header represents the HPROF file header.
type Header struct {
	Format    string    // e.g., "JAVA PROFILE 1.0.2"
	IDSize    int       // Size of identifiers (4 or 8 bytes)
	Timestamp time.Time // Dump timestamp
}

// Stats summarizes what a load consumed.
type Stats struct {
	Strings         int
	Classes         int
	Instances       int
	ObjectArrays    int
	PrimitiveArrays int
	Roots           int
	SkippedRecords  int
	Duration        time.Duration
}
