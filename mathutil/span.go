package mathutil

import (
	"golang.org/x/exp/constraints"
)

// Span is an inclusive range of offsets, as used by HTTP byte ranges.
type Span[T constraints.Integer] struct {
	Start T
	End   T
}

func (s Span[T]) Len() T {
	return s.End - s.Start + 1
}

// Spans splits [0, total) into consecutive spans of at most size elements.
func Spans[T constraints.Integer](total, size T) []Span[T] {
	if size <= 0 {
		panic("span size must be positive")
	}

	if total <= 0 {
		return nil
	}

	out := make([]Span[T], 0, (total+size-1)/size)
	for start := T(0); start < total; start += size {
		out = append(out, Span[T]{Start: start, End: min(start+size, total) - 1})
	}

	return out
}
