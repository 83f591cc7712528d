package oql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/heapql/internal/heap"
)

// FormatText renders a delivered result as plain text.
func FormatText(v interface{}) string {
	switch x := v.(type) {
	case map[string]interface{}:
		keys := sortedKeys(x)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatText(x[k])
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatText(e)
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	case *heap.ReferenceChain:
		return x.String()
	}
	return toString(v)
}

// FormatHTML renders a delivered result as an HTML fragment. Heap objects
// become links into the heap browser.
func FormatHTML(v interface{}) string {
	switch x := v.(type) {
	case *heap.JavaClass:
		return fmt.Sprintf("<a href='file://class/%s'>class %s</a>", x.Name(), x.Name())
	case heap.Instance:
		name := x.Class().Name()
		return fmt.Sprintf("<a href='file://instance/%s@%d'>%s#%d</a>", name, x.ID(), name, x.Number())
	case *heap.ReferenceChain:
		var sb strings.Builder
		if x.Root != nil {
			sb.WriteString(htmlEscaper.Replace(x.Root.Description()))
			sb.WriteString(" -&gt; ")
		}
		for i, t := range x.Objects {
			if i > 0 {
				sb.WriteString(" -&gt; ")
			}
			sb.WriteString(FormatHTML(t))
		}
		return sb.String()
	case map[string]interface{}:
		var sb strings.Builder
		sb.WriteString("{ ")
		for _, k := range sortedKeys(x) {
			sb.WriteString(htmlEscaper.Replace(k) + ":" + FormatHTML(x[k]) + ", ")
		}
		sb.WriteString("}")
		return sb.String()
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatHTML(e)
		}
		return "[ " + strings.Join(parts, ", ") + " ]"
	}
	return htmlEscaper.Replace(toString(v))
}

// ObjectIDOf returns the decimal object ID of a heap result, or "" for
// values that are not heap objects.
func ObjectIDOf(v interface{}) string {
	if t, ok := v.(heap.Thing); ok && t != nil {
		return strconv.FormatUint(t.ID(), 10)
	}
	return ""
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
