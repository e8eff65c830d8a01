// Package ring implements a generic, growable ring buffer over an ordered
// element type, supporting sorted insertion and binary search. It is a
// direct adaptation of the teacher's catrate.ringBuffer (catrate/ring.go),
// generalized for reuse by ptime's TickCalibration table.
package ring

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Buffer is a ring buffer over an ordered element type E, supporting
// O(log n) search and O(n) sorted insert.
type Buffer[E constraints.Ordered] struct {
	s    []E
	r, w uint
}

// New returns a Buffer with the given initial capacity, which must be a
// power of 2 and positive.
func New[E constraints.Ordered](size int) *Buffer[E] {
	if size <= 0 || size&(size-1) != 0 {
		panic(`ring: size must be a power of 2`)
	}
	return &Buffer[E]{s: make([]E, size)}
}

func (x *Buffer[E]) mask(val uint) uint {
	return val & (uint(len(x.s)) - 1)
}

func (x *Buffer[E]) bounds() (i1, l1, l2 int) {
	if x.r == x.w {
		return
	}
	i1 = int(x.mask(x.r))
	l1 = int(x.mask(x.w))
	if l1 <= i1 {
		l2 = l1
		l1 = len(x.s)
	}
	return
}

// Len returns the number of elements currently stored.
func (x *Buffer[E]) Len() int { return int(x.w - x.r) }

// Cap returns the current backing capacity.
func (x *Buffer[E]) Cap() int { return len(x.s) }

// Get returns the element at logical index i, where 0 is the oldest element.
func (x *Buffer[E]) Get(i int) E {
	if i < 0 || i >= x.Len() {
		panic(`ring: get: index out of range`)
	}
	return x.s[x.mask(x.r+uint(i))]
}

// Last returns the most recently inserted element. Panics if empty.
func (x *Buffer[E]) Last() E {
	return x.Get(x.Len() - 1)
}

// Slice returns a freshly allocated, logically-ordered copy of the buffer's
// contents.
func (x *Buffer[E]) Slice() (b []E) {
	if l := x.Len(); l != 0 {
		b = make([]E, l)
		i1, l1, l2 := x.bounds()
		copy(b, x.s[i1:l1])
		copy(b[l1-i1:], x.s[:l2])
	}
	return b
}

// RemoveBefore discards the first index elements (the oldest), e.g. after
// determining they are no longer needed for future queries.
func (x *Buffer[E]) RemoveBefore(index int) {
	if index < 0 || index > x.Len() {
		panic(`ring: remove before: index out of range`)
	}
	x.r += uint(index)
}

// Search returns the index of the first element >= value, per sort.Search
// semantics, assuming the buffer is sorted ascending.
func (x *Buffer[E]) Search(value E) int {
	return sort.Search(x.Len(), func(i int) bool {
		return x.Get(i) >= value
	})
}

// Insert places value at logical index, growing the backing array (doubling)
// if full. Intended for sorted insertion: callers typically pass the result
// of Search(value) as index.
func (x *Buffer[E]) Insert(index int, value E) {
	l := x.Len()
	if index < 0 || index > l {
		panic(`ring: insert: index out of range`)
	}

	if l == len(x.s) {
		// full: expand the buffer, relocating everything to start at 0
		s := make([]E, uint(len(x.s))<<1)
		if len(s) == 0 {
			panic(`ring: insert: overflow`)
		}

		i1, l1, l2 := x.bounds()
		l = l1 - i1
		if index < l {
			copy(s, x.s[i1:i1+index])
			s[index] = value
			copy(s[index+1:], x.s[i1+index:l1])
			l++
			copy(s[l:], x.s[:l2])
			l += l2
		} else {
			copy(s, x.s[i1:l1])
			copy(s[l:], x.s[:index-l])
			s[index] = value
			copy(s[index+1:], x.s[index-l:l2])
			l += l2 + 1
		}

		x.r = 0
		x.w = uint(l)
		x.s = s
		return
	}

	var i, j int
	if l == 0 {
		x.r = 0
		x.w = 0
	} else {
		i = int(x.mask(x.r))
		j = int(x.mask(x.w))
	}

	if l == 0 || i < j {
		copy(x.s[i+index+1:], x.s[i+index:j])
		x.s[i+index] = value
		x.w++
		return
	}

	if index >= len(x.s)-i {
		index -= len(x.s) - i
		copy(x.s[index+1:], x.s[index:j])
		x.s[index] = value
		x.w++
		return
	}

	copy(x.s[1:], x.s[:j])
	x.s[0] = x.s[len(x.s)-1]
	copy(x.s[i+index+1:], x.s[i+index:])
	x.s[i+index] = value
	x.w++
}
