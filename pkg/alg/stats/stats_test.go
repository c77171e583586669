package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/bahn/pkg/alg/stats"
)

func TestSum(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 6.5, stats.Sum([]float64{1, 2, 3.5}), 1e-9)
	assert.Equal(t, 90*time.Second, stats.Sum([]time.Duration{time.Minute, 30 * time.Second}))
	assert.Zero(t, stats.Sum[int](nil))
}

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		val  int64
		want int64
	}{
		{name: "below", val: -5, want: 0},
		{name: "inside", val: 7, want: 7},
		{name: "above", val: 99, want: 10},
		{name: "at upper bound", val: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, stats.Clamp(tt.val, 0, 10))
		})
	}
}

func TestMedian(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []time.Duration
		want   time.Duration
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []time.Duration{time.Minute}, want: time.Minute},
		{name: "odd", values: []time.Duration{9 * time.Minute, time.Minute, 5 * time.Minute}, want: 5 * time.Minute},
		{name: "even", values: []time.Duration{4 * time.Minute, time.Minute, 2 * time.Minute, 8 * time.Minute}, want: 3 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, stats.Median(tt.values))
		})
	}
}

func TestMedian_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	values := []int{3, 1, 2}
	stats.Median(values)

	assert.Equal(t, []int{3, 1, 2}, values)
}

func TestBounds(t *testing.T) {
	t.Parallel()

	lo, hi := stats.Bounds([]int{4, -2, 9, 0})
	assert.Equal(t, -2, lo)
	assert.Equal(t, 9, hi)

	lo, hi = stats.Bounds[int](nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}
