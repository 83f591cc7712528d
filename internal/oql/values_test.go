package oql

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "null"},
		{undefined, "undefined"},
		{true, "true"},
		{float64(3), "3"},
		{2.5, "2.5"},
		{math.NaN(), "NaN"},
		{math.Inf(-1), "-Infinity"},
		{int64(301077366599181567), "301077366599181567"},
		{uint64(1 << 63), "9223372036854775808"},
		{int32(-1), "-1"},
		{newArray([]interface{}{1.0, "a", nil}), "1,a,"},
		{newArray([]interface{}{undefined, nil, 2.0}), ",,2"},
		{newObject(), "[object Object]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, toString(tt.in))
		})
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []interface{}{nil, undefined, false, 0.0, int32(0), "", math.NaN()} {
		assert.False(t, truthy(v), "%#v", v)
	}
	for _, v := range []interface{}{true, 1.0, int64(-1), "0", newArray(nil), newObject()} {
		assert.True(t, truthy(v), "%#v", v)
	}
}

func TestEquality(t *testing.T) {
	assert.True(t, looseEquals(nil, undefined))
	assert.True(t, looseEquals(1.0, "1"))
	assert.True(t, looseEquals(int32(2), 2.0))
	assert.False(t, looseEquals(nil, 0.0))

	assert.False(t, strictEquals(1.0, "1"))
	assert.True(t, strictEquals(int64(7), 7.0))
	a := newArray(nil)
	assert.True(t, strictEquals(a, a))
	assert.False(t, strictEquals(a, newArray(nil)))
}

func TestCompareValues(t *testing.T) {
	c, ok := compareValues(1.0, int32(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = compareValues("b", "a")
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = compareValues(math.NaN(), 1.0)
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, float64(0), parseNumber("  "))
	assert.Equal(t, float64(255), parseNumber("0xff"))
	assert.Equal(t, 1.5, parseNumber(" 1.5 "))
	assert.True(t, math.IsNaN(parseNumber("abc")))
}

func TestUTF16Length(t *testing.T) {
	assert.Equal(t, 5, utf16Length("héllo"))
	assert.Equal(t, 2, utf16Length("😀"))
}

func TestValueKey(t *testing.T) {
	assert.Equal(t, valueKey(int32(1)), valueKey(1.0))
	assert.NotEqual(t, valueKey("1"), valueKey(1.0))
}

func TestSeqIsReiterable(t *testing.T) {
	s := sliceSeq([]interface{}{1.0, 2.0})
	first, err := s.toSlice()
	assert.NoError(t, err)
	second, err := s.toSlice()
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExport(t *testing.T) {
	obj := newObject()
	obj.set("a", newArray([]interface{}{1.0, undefined}))
	obj.set("b", sliceSeq([]interface{}{"x"}))

	out, err := export(obj)
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": []interface{}{1.0, nil},
		"b": []interface{}{"x"},
	}, out)
}
