// Package schedule generates the jittered, strictly increasing commit
// timestamps that spread a decomposition across a time window.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Sumatoshi-tech/bahn/pkg/alg/stats"
)

// Defaults.
const (
	DefaultMinGap = 30 * time.Second

	jitterLow       = 0.3
	jitterHigh      = 2.0
	ceilingFactor   = 3.0
	secondRedraws   = 8
	maxNudgeSeconds = 120

	// secondsPerGap is the shortest window, per gap, that leaves room for
	// the seconds rule and strictly increasing offsets.
	secondsPerGap = 4
)

// ErrInvalidSchedule is the sentinel matched by InvalidScheduleError.
var ErrInvalidSchedule = errors.New("invalid schedule")

// InvalidScheduleError reports a malformed spread or start, or a minimum gap
// that cannot be honored within the spread.
type InvalidScheduleError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}

	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidSchedule.
func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

// Result is a generated schedule.
type Result struct {
	Times []time.Time
	// Spread is the window the times were placed in. It is wider than the
	// requested spread when that one was too short for the count.
	Spread time.Duration
	// Warnings holds relaxations applied to honor the spread.
	Warnings []error
}

// Gaps returns the durations between consecutive timestamps.
func (r Result) Gaps() []time.Duration {
	if len(r.Times) < 2 {
		return nil
	}

	gaps := make([]time.Duration, 0, len(r.Times)-1)
	for i := 1; i < len(r.Times); i++ {
		gaps = append(gaps, r.Times[i].Sub(r.Times[i-1]))
	}

	return gaps
}

// Scheduler draws commit timestamps from a random source.
type Scheduler struct {
	rng    *rand.Rand
	minGap time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMinGap sets the gap floor.
func WithMinGap(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.minGap = d
		}
	}
}

// NewScheduler creates a Scheduler drawing from rng.
func NewScheduler(rng *rand.Rand, opts ...Option) *Scheduler {
	s := &Scheduler{rng: rng, minGap: DefaultMinGap}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewSeeded returns a random source seeded for reproducible schedules.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate returns n timestamps t1 < ... < tn with start <= t1 and
// tn <= start+spread. Gaps are jittered around spread/n, clamped between the
// gap floor and three times the mean gap, and no timestamp falls on second
// :00 or :30. A spread shorter than four seconds per gap is widened to that
// minimum and reported in Result.Warnings.
func (s *Scheduler) Generate(n int, start time.Time, spread time.Duration) (Result, error) {
	start = start.Truncate(time.Second)

	switch {
	case n <= 0:
		return Result{}, &InvalidScheduleError{Field: "count", Value: fmt.Sprint(n), Reason: "must be positive"}
	case n == 1:
		return Result{Times: []time.Time{start}, Spread: spread}, nil
	}

	var result Result

	total := int64(spread / time.Second)
	if minimum := int64(secondsPerGap * (n - 1)); total < minimum {
		widened := time.Duration(minimum) * time.Second
		result.Warnings = append(result.Warnings, &InvalidScheduleError{
			Field:  "spread",
			Value:  spread.String(),
			Reason: fmt.Sprintf("too short for %d commits, widened to %s", n, widened),
		})
		total = minimum
		spread = widened
	}

	result.Spread = spread

	gapCount := float64(n - 1)
	floor := s.minGap.Seconds()

	if gapCount*floor > float64(total) {
		relaxed := float64(total) / (2 * gapCount)
		result.Warnings = append(result.Warnings, &InvalidScheduleError{
			Field: "min gap",
			Value: s.minGap.String(),
			Reason: fmt.Sprintf("%d commits do not fit in %s, relaxed to %s",
				n, spread, time.Duration(relaxed*float64(time.Second)).Round(time.Second)),
		})
		floor = relaxed
	}

	gaps := s.drawGaps(n, float64(total))
	fitGaps(gaps, float64(total), floor, ceilingFactor*float64(total)/gapCount)

	result.Times = s.place(start, gaps, total)

	return result, nil
}

// drawGaps draws n-1 jittered gaps around total/n.
func (s *Scheduler) drawGaps(n int, total float64) []float64 {
	mean := total / float64(n)
	gaps := make([]float64, n-1)

	for i := range gaps {
		gaps[i] = mean * (jitterLow + s.rng.Float64()*(jitterHigh-jitterLow))
	}

	return gaps
}

// fitGaps rescales gaps to sum to total, then clamps them to [floor, ceiling]
// and hands the excess or deficit to the gaps that still have room, in
// proportion to that room.
func fitGaps(gaps []float64, total, floor, ceiling float64) {
	scale := total / stats.Sum(gaps)
	for i := range gaps {
		gaps[i] *= scale
	}

	for range len(gaps) + 1 {
		for i := range gaps {
			gaps[i] = stats.Clamp(gaps[i], floor, ceiling)
		}

		diff := total - stats.Sum(gaps)
		if math.Abs(diff) < 1e-6 {
			return
		}

		room := make([]float64, len(gaps))
		for i, g := range gaps {
			if diff > 0 {
				room[i] = ceiling - g
			} else {
				room[i] = g - floor
			}
		}

		totalRoom := stats.Sum(room)
		if totalRoom <= 0 {
			return
		}

		for i := range gaps {
			gaps[i] += diff * room[i] / totalRoom
		}
	}
}

// place turns gaps into whole-second offsets and timestamps. Each offset is
// kept inside the window, after its predecessor, off the :00 and :30
// seconds, and at a gap length not used before.
func (s *Scheduler) place(start time.Time, gaps []float64, total int64) []time.Time {
	n := len(gaps) + 1
	times := make([]time.Time, n)
	seen := make(map[int64]struct{}, n)

	cumulative := 0.0
	prev := int64(-1)

	for i := range n {
		if i > 0 {
			cumulative += gaps[i-1]
		}

		want := int64(math.Round(cumulative))
		lo := prev + 1
		hi := total - int64(2*(n-1-i))

		offset := s.fit(start, want, lo, hi, func(o int64) bool {
			if i == 0 {
				return true
			}

			_, used := seen[o-prev]

			return !used
		})

		if i > 0 {
			seen[offset-prev] = struct{}{}
		}

		times[i] = start.Add(time.Duration(offset) * time.Second)
		prev = offset
	}

	return times
}

// fit returns the offset closest to want that satisfies the window, the
// seconds rule and accept. When no offset passes accept, the search repeats
// without it; the window and the seconds rule always hold because place
// leaves at least two consecutive offsets in [lo, hi].
func (s *Scheduler) fit(start time.Time, want, lo, hi int64, accept func(int64) bool) int64 {
	want = stats.Clamp(want, lo, hi)

	if offset, ok := s.search(start, want, lo, hi, accept); ok {
		return offset
	}

	if offset, ok := s.search(start, want, lo, hi, func(int64) bool { return true }); ok {
		return offset
	}

	return want
}

// search redraws the seconds component of want first and scans nearby
// offsets when redraws fail.
func (s *Scheduler) search(start time.Time, want, lo, hi int64, accept func(int64) bool) (int64, bool) {
	ok := func(o int64) bool {
		return o >= lo && o <= hi && humanSecond(start, o) && accept(o)
	}

	if ok(want) {
		return want, true
	}

	second := int64(start.Add(time.Duration(want) * time.Second).Second())

	for range secondRedraws {
		candidate := want - second + s.drawSecond()
		if ok(candidate) {
			return candidate, true
		}
	}

	for d := int64(1); d <= maxNudgeSeconds; d++ {
		if ok(want + d) {
			return want + d, true
		}

		if ok(want - d) {
			return want - d, true
		}
	}

	return 0, false
}

// drawSecond draws a seconds value other than 0 and 30.
func (s *Scheduler) drawSecond() int64 {
	for {
		sec := int64(s.rng.IntN(60))
		if sec != 0 && sec != 30 {
			return sec
		}
	}
}

func humanSecond(start time.Time, offset int64) bool {
	sec := start.Add(time.Duration(offset) * time.Second).Second()

	return sec != 0 && sec != 30
}
