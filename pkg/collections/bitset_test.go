package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitset_SetTestClear(t *testing.T) {
	b := NewBitset(100)
	assert.Equal(t, 100, b.Size())
	assert.False(t, b.Test(5))

	b.Set(5)
	b.Set(64)
	b.Set(99)
	b.Set(-1)
	assert.True(t, b.Test(5))
	assert.True(t, b.Test(64))
	assert.False(t, b.Test(-1))
	assert.Equal(t, 3, b.Count())

	b.Clear(64)
	b.Clear(1000)
	assert.False(t, b.Test(64))
	assert.Equal(t, []int{5, 99}, b.ToSlice())
}

func TestBitset_Grows(t *testing.T) {
	b := NewBitset(0)
	b.Set(500)
	assert.True(t, b.Test(500))
	assert.False(t, b.Test(499))
	assert.Equal(t, 501, b.Size())
}

func TestBitset_TestAndSet(t *testing.T) {
	b := NewBitset(10)
	assert.False(t, b.TestAndSet(3))
	assert.True(t, b.TestAndSet(3))
	assert.Equal(t, 1, b.Count())
}

func TestBitset_IterateStops(t *testing.T) {
	b := NewBitset(200)
	for _, i := range []int{0, 63, 64, 150} {
		b.Set(i)
	}
	var got []int
	b.Iterate(func(i int) bool {
		got = append(got, i)
		return len(got) < 3
	})
	assert.Equal(t, []int{0, 63, 64}, got)
}
