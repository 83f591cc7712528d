package oql

import (
	"fmt"
	"strings"

	"github.com/heapql/internal/heap"
)

var htmlEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// toHTML renders a value as an HTML fragment. Classes and instances become
// file:// links understood by the heap browser.
func (in *interp) toHTML(v interface{}) (string, error) {
	if err := in.check(); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case nil:
		return "null", nil
	case undefinedType:
		return "undefined", nil
	case *heap.JavaClass:
		return fmt.Sprintf("<a href='file://class/%s'>class %s</a>", x.Name(), x.Name()), nil
	case heap.Instance:
		name := x.Class().Name()
		return fmt.Sprintf("<a href='file://instance/%s@%d'>%s#%d</a>", name, x.ID(), name, x.Number()), nil
	case *fieldInfo:
		return in.toHTML(x.value)
	case *livePath:
		var sb strings.Builder
		if x.chain.Root != nil {
			sb.WriteString(htmlEscaper.Replace(x.chain.Root.Description()))
			sb.WriteString(" -&gt; ")
		}
		for i, t := range x.chain.Objects {
			if i > 0 {
				sb.WriteString(" -&gt; ")
			}
			s, err := in.toHTML(t)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	case *jsArray:
		parts := make([]string, len(x.elems))
		for i, e := range x.elems {
			s, err := in.toHTML(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[ " + strings.Join(parts, ", ") + " ]", nil
	case *seq:
		var sb strings.Builder
		sb.WriteString("[ ")
		err := x.forEach(func(e interface{}) error {
			s, err := in.toHTML(e)
			if err != nil {
				return err
			}
			sb.WriteString(s)
			sb.WriteString(", ")
			return nil
		})
		if err != nil {
			return "", err
		}
		sb.WriteString("]")
		return sb.String(), nil
	case *jsObject:
		if fn, ok := x.get("toHtml"); ok {
			r, err := in.call(fn, nil)
			if err != nil {
				return "", err
			}
			return toString(r), nil
		}
		var sb strings.Builder
		sb.WriteString("{ ")
		for _, k := range x.keys {
			s, err := in.toHTML(x.values[k])
			if err != nil {
				return "", err
			}
			sb.WriteString(k + ":" + s + ", ")
		}
		sb.WriteString("}")
		return sb.String(), nil
	}
	return htmlEscaper.Replace(toString(v)), nil
}
