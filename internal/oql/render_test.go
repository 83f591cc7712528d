package oql

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapql/internal/heap"
	"github.com/heapql/internal/heap/heaptest"
)

func TestFormatText(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"null", nil, "null"},
		{"string", "a<b", "a<b"},
		{"integral float", float64(3), "3"},
		{"fraction", 2.5, "2.5"},
		{"int32", int32(-7), "-7"},
		{"bool", true, "true"},
		{"array", []interface{}{float64(1), "x", nil}, "[ 1, x, null ]"},
		{"map keys sorted", map[string]interface{}{"b": float64(2), "a": "one"}, "{ a: one, b: 2 }"},
		{"nested", map[string]interface{}{"xs": []interface{}{true}}, "{ xs: [ true ] }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatText(tt.in))
		})
	}
}

func TestFormatHTML(t *testing.T) {
	h, refs, err := heaptest.Standard()
	require.NoError(t, err)

	cls := h.FindClass("java.util.HashMap")
	require.NotNil(t, cls)
	inst, ok := h.FindThing(refs.HashMap).(heap.Instance)
	require.True(t, ok)

	assert.Equal(t, "<a href='file://class/java.util.HashMap'>class java.util.HashMap</a>", FormatHTML(cls))
	link := fmt.Sprintf("<a href='file://instance/java.util.HashMap@%d'>java.util.HashMap#%d</a>", refs.HashMap, inst.Number())
	assert.Equal(t, link, FormatHTML(inst))
	assert.Equal(t, "[ "+link+", 1 ]", FormatHTML([]interface{}{inst, float64(1)}))

	assert.Equal(t, "a&lt;b&gt;", FormatHTML("a<b>"))
	assert.Equal(t, "{ k:v, }", FormatHTML(map[string]interface{}{"k": "v"}))
	assert.Equal(t, "null", FormatHTML(nil))
}

func TestObjectIDOf(t *testing.T) {
	h, refs, err := heaptest.Standard()
	require.NoError(t, err)

	assert.Equal(t, strconv.FormatUint(refs.HashMap, 10), ObjectIDOf(h.FindThing(refs.HashMap)))
	assert.Equal(t, "", ObjectIDOf("not a heap object"))
	assert.Equal(t, "", ObjectIDOf(nil))
}
