package core

import (
	"golang.org/x/exp/constraints"
)

// Series is an ordered sequence of values, oldest first
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Until returns the prefix of the series up to and including index i.
// The returned series shares memory with s but its capacity is clipped,
// so appending to it can never overwrite values after i.
func (s Series[T]) Until(i int) Series[T] {
	if i < 0 {
		return s[:0:0]
	}
	if i >= len(s) {
		i = len(s) - 1
	}
	return s[: i+1 : i+1]
}

// Window returns the half-open range [from, to) clamped to the series bounds
func (s Series[T]) Window(from, to int) Series[T] {
	from = max(from, 0)
	to = min(to, len(s))
	if from >= to {
		return Series[T]{}
	}
	return s[from:to:to]
}

// Max returns the highest value and its index, or the zero value and -1 when empty.
// The first occurrence wins on ties.
func (s Series[T]) Max() (T, int) {
	var best T
	idx := -1
	for i, v := range s {
		if idx == -1 || v > best {
			best, idx = v, i
		}
	}
	return best, idx
}

// Min returns the lowest value and its index, or the zero value and -1 when empty.
// The first occurrence wins on ties.
func (s Series[T]) Min() (T, int) {
	var best T
	idx := -1
	for i, v := range s {
		if idx == -1 || v < best {
			best, idx = v, i
		}
	}
	return best, idx
}

// Crossover detects when this series crosses above the reference series
// Returns true when the current value is higher, but the previous value was not
func (s Series[T]) Crossover(ref Series[T]) bool {
	if len(s) < 2 || len(ref) < 2 {
		return false
	}
	return s.Last(0) > ref.Last(0) && s.Last(1) <= ref.Last(1)
}

// Crossunder detects when this series crosses below the reference series
func (s Series[T]) Crossunder(ref Series[T]) bool {
	if len(s) < 2 || len(ref) < 2 {
		return false
	}
	return s.Last(0) <= ref.Last(0) && s.Last(1) > ref.Last(1)
}
