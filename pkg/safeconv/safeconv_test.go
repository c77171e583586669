package safeconv_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/bahn/pkg/safeconv"
)

func TestMust(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 42, safeconv.Must[int](uint(42)))
	assert.Equal(t, uint(0), safeconv.Must[uint](0))
	assert.Equal(t, uint32(math.MaxUint32), safeconv.Must[uint32](math.MaxUint32))
	assert.Equal(t, math.MaxInt, safeconv.Must[int](uint(math.MaxInt)))
}

func TestMust_Panics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func()
	}{
		{name: "negative to uint", fn: func() { safeconv.Must[uint](-1) }},
		{name: "uint overflows int", fn: func() { safeconv.Must[int](uint(math.MaxInt) + 1) }},
		{name: "int overflows uint32", fn: func() { safeconv.Must[uint32](math.MaxUint32 + 1) }},
		{name: "negative to uint32", fn: func() { safeconv.Must[uint32](-7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Panics(t, tt.fn)
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	const fourGiB = uint64(1) << 32

	assert.Equal(t, uint32(5), safeconv.Truncate[uint32](fourGiB+5))
	assert.Equal(t, uint32(0), safeconv.Truncate[uint32](fourGiB))
	assert.Equal(t, uint32(math.MaxUint32), safeconv.Truncate[uint32](fourGiB-1))
	assert.Equal(t, uint32(1234), safeconv.Truncate[uint32](uint64(1234)))
	assert.NotPanics(t, func() { safeconv.Truncate[uint32](uint64(math.MaxUint64)) })
}
