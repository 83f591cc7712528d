package heap

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const stringClassName = "java.lang.String"

// java.lang.String coder values for compact strings.
const (
	coderLatin1 = 0
	coderUTF16  = 1
)

var (
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// IsString reports whether t is a java.lang.String instance.
func IsString(t Thing) bool {
	o, ok := t.(*Object)
	return ok && o.class.name == stringClassName
}

// StringValue decodes the contents of a java.lang.String instance. Both the
// char[] layout (with optional offset/count) and the compact byte[] layout
// with a coder are supported.
func (h *Heap) StringValue(t Thing) (string, bool) {
	o, ok := t.(*Object)
	if !ok || o.class.name != stringClassName {
		return "", false
	}
	v, _ := o.FieldValue("value")
	arr, ok := v.(*PrimitiveArray)
	if !ok {
		return "", false
	}

	switch arr.elemType {
	case TypeChar:
		data := arr.data
		if cnt, ok := intField(o, "count"); ok {
			off, _ := intField(o, "offset")
			start, end := clampRange(2*off, 2*(off+cnt), len(data))
			data = data[start:end]
		}
		return decodeWith(utf16BE, data)
	case TypeByte:
		coder, _ := intField(o, "coder")
		if coder == coderUTF16 {
			return decodeWith(utf16LE, arr.data)
		}
		return decodeWith(charmap.ISO8859_1, arr.data)
	}
	return "", false
}

func decodeWith(enc encoding.Encoding, data []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func intField(o *Object, name string) (int, bool) {
	v, ok := o.FieldValue(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int64:
		return int(n), true
	}
	return 0, false
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

// JavaString decodes t when it is a java.lang.String instance.
func JavaString(t Thing) (string, bool) {
	o, ok := t.(*Object)
	if !ok || o.class.h == nil {
		return "", false
	}
	return o.class.h.StringValue(o)
}
