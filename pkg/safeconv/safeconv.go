// Package safeconv converts between integer types when the value is known
// to fit. A value that does not fit is a programming error and panics.
package safeconv

import "fmt"

// Integer is any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Must converts v to To and panics when the value changes on the way.
func Must[To, From Integer](v From) To {
	out := To(v)

	if From(out) != v || (v < 0) != (out < 0) {
		panic(fmt.Sprintf("safeconv: %T value %d does not fit in %T", v, v, out))
	}

	return out
}

// Truncate converts v to To keeping only the low-order bits that fit. Use it
// where wrapping is the defined behavior, such as the 32-bit file size field
// of a git index entry.
func Truncate[To, From Integer](v From) To {
	return To(v)
}
