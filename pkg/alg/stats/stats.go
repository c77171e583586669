// Package stats provides the numeric helpers shared by the scheduler and
// the plan summary.
package stats

import (
	"cmp"
	"slices"
)

// Number is any integer or floating point type, including named ones such
// as time.Duration.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Sum returns the sum of values. Returns 0 for an empty slice.
func Sum[T Number](values []T) T {
	var sum T

	for _, v := range values {
		sum += v
	}

	return sum
}

// Clamp restricts val to [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// Median returns the middle value, or the mean of the two middle values
// for an even count. The input is not modified. Returns 0 for an empty
// slice.
func Median[T Number](values []T) T {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}

	lo, hi := sorted[n/2-1], sorted[n/2]

	return lo + (hi-lo)/2
}

// Bounds returns the smallest and the largest value. Returns zeros for an
// empty slice.
func Bounds[T cmp.Ordered](values []T) (lo, hi T) {
	if len(values) == 0 {
		return lo, hi
	}

	return slices.Min(values), slices.Max(values)
}
