// Package collections holds the compact containers used by heap traversals.
package collections

import "math/bits"

// Bitset is a growable set of small non-negative integers, one bit each.
// Heap walks index it by dense object position.
type Bitset struct {
	words []uint64
	size  int
}

// NewBitset creates a bitset sized for n positions.
func NewBitset(n int) *Bitset {
	if n < 0 {
		n = 0
	}
	return &Bitset{words: make([]uint64, (n+63)/64), size: n}
}

// Set adds i. Negative positions are ignored.
func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	if w := i / 64; w >= len(b.words) {
		grown := make([]uint64, w+1+len(b.words)/2)
		copy(grown, b.words)
		b.words = grown
	}
	b.words[i/64] |= 1 << (uint(i) % 64)
	if i >= b.size {
		b.size = i + 1
	}
}

// TestAndSet adds i and reports whether it was already present.
func (b *Bitset) TestAndSet(i int) bool {
	if b.Test(i) {
		return true
	}
	b.Set(i)
	return false
}

// Clear removes i.
func (b *Bitset) Clear(i int) {
	if i < 0 || i/64 >= len(b.words) {
		return
	}
	b.words[i/64] &^= 1 << (uint(i) % 64)
}

// Test reports whether i is present.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i/64 >= len(b.words) {
		return false
	}
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Count returns the number of positions present.
func (b *Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Size returns one past the highest position the bitset was sized or set for.
func (b *Bitset) Size() int { return b.size }

// Iterate calls fn for each present position in ascending order until fn
// returns false.
func (b *Bitset) Iterate(fn func(i int) bool) {
	for wi, w := range b.words {
		for w != 0 {
			if !fn(wi*64 + bits.TrailingZeros64(w)) {
				return
			}
			w &= w - 1
		}
	}
}

// ToSlice returns the present positions in ascending order.
func (b *Bitset) ToSlice() []int {
	out := make([]int, 0, b.Count())
	b.Iterate(func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}
