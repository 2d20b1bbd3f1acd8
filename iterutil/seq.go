package iterutil

import (
	"iter"
)

func WithIndex[Slice ~[]E, E any](s iter.Seq[Slice]) iter.Seq2[int, Slice] {
	return func(yield func(int, Slice) bool) {
		index := 0
		for v := range s {
			if !yield(index, v) {
				return
			}
			index++
		}
	}
}

func Map[T any, Slice ~[]E, E any](s Slice, f func(i int, v E) T) []T {
	result := make([]T, len(s))
	for i, v := range s {
		result[i] = f(i, v)
	}
	return result
}

// Take2 yields at most n pairs of s. A non-positive n yields everything.
func Take2[K, V any](s iter.Seq2[K, V], n int) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if n <= 0 {
			for k, v := range s {
				if !yield(k, v) {
					return
				}
			}
			return
		}

		taken := 0
		for k, v := range s {
			if !yield(k, v) {
				return
			}
			taken++
			if taken == n {
				return
			}
		}
	}
}

// Collect2 gathers the values of a fallible sequence, stopping at the first error.
func Collect2[T any](s iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range s {
		if nil != err {
			return out, err
		}
		out = append(out, v)
	}

	return out, nil
}
