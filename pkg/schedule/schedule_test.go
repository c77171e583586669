package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/schedule"
)

func requireHumanSchedule(t *testing.T, times []time.Time, start time.Time, spread time.Duration) {
	t.Helper()

	requireWindowedSchedule(t, times, start, spread)

	gaps := make(map[time.Duration]int)

	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])

		gaps[gap]++
		assert.Equal(t, 1, gaps[gap], "gap %s repeated", gap)
	}
}

// requireWindowedSchedule checks the properties that hold for every count:
// inside the window, strictly increasing, never on second :00 or :30.
func requireWindowedSchedule(t *testing.T, times []time.Time, start time.Time, spread time.Duration) {
	t.Helper()

	require.NotEmpty(t, times)
	assert.False(t, times[0].Before(start), "first timestamp before start")
	assert.False(t, times[len(times)-1].After(start.Add(spread)), "last timestamp after window")

	for i, ts := range times {
		sec := ts.Second()
		assert.NotContains(t, []int{0, 30}, sec, "timestamp %d on a round second: %s", i, ts)

		if i > 0 {
			assert.True(t, ts.After(times[i-1]), "timestamps %d and %d not increasing", i-1, i)
		}
	}
}

func TestGenerate_ScenarioC(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	spread := 4 * time.Hour

	for seed := range uint64(200) {
		result, err := schedule.NewScheduler(schedule.NewSeeded(seed)).Generate(5, start, spread)
		require.NoError(t, err)
		require.Empty(t, result.Warnings)
		require.Len(t, result.Times, 5)

		requireHumanSchedule(t, result.Times, start, spread)
	}
}

func TestGenerate_Properties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		n      int
		spread time.Duration
	}{
		{name: "two commits", n: 2, spread: time.Hour},
		{name: "many commits", n: 40, spread: 3 * time.Hour},
		{name: "one day", n: 12, spread: 24 * time.Hour},
		{name: "tight window", n: 8, spread: 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Date(2025, 3, 1, 14, 7, 30, 0, time.UTC)

			for seed := range uint64(50) {
				result, err := schedule.NewScheduler(schedule.NewSeeded(seed)).Generate(tt.n, start, tt.spread)
				require.NoError(t, err)
				require.Len(t, result.Times, tt.n)

				requireHumanSchedule(t, result.Times, start, tt.spread)

				ceiling := time.Duration(3*float64(tt.spread)/float64(tt.n-1)) + 2*time.Minute
				for _, gap := range result.Gaps() {
					assert.LessOrEqual(t, gap, ceiling)
				}
			}
		})
	}
}

func TestGenerate_LargeCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		n      int
		spread time.Duration
	}{
		{name: "two hundred", n: 200, spread: 2 * time.Hour},
		{name: "five hundred", n: 500, spread: 2 * time.Hour},
		{name: "minimal window", n: 60, spread: 4 * 59 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

			for seed := range uint64(30) {
				result, err := schedule.NewScheduler(schedule.NewSeeded(seed)).Generate(tt.n, start, tt.spread)
				require.NoError(t, err)
				require.Len(t, result.Times, tt.n)

				requireWindowedSchedule(t, result.Times, start, tt.spread)
			}
		})
	}
}

func TestGenerate_WidensShortSpread(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

	for seed := range uint64(20) {
		result, err := schedule.NewScheduler(schedule.NewSeeded(seed)).Generate(20, start, time.Minute)
		require.NoError(t, err)
		require.Len(t, result.Times, 20)
		assert.Equal(t, 76*time.Second, result.Spread)

		var invalid *schedule.InvalidScheduleError
		require.ErrorAs(t, result.Warnings[0], &invalid)
		assert.Equal(t, "spread", invalid.Field)

		requireWindowedSchedule(t, result.Times, start, result.Spread)
	}
}

func TestGenerate_SingleCommit(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

	result, err := schedule.NewScheduler(schedule.NewSeeded(1)).Generate(1, start, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{start}, result.Times)
	assert.Equal(t, time.Hour, result.Spread)
	assert.Nil(t, result.Gaps())
}

func TestGenerate_RelaxesFloor(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	spread := 2 * time.Minute

	result, err := schedule.NewScheduler(schedule.NewSeeded(7)).Generate(10, start, spread)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	require.ErrorIs(t, result.Warnings[0], schedule.ErrInvalidSchedule)

	var invalid *schedule.InvalidScheduleError
	require.ErrorAs(t, result.Warnings[0], &invalid)
	assert.Equal(t, "min gap", invalid.Field)

	require.Len(t, result.Times, 10)

	for i := 1; i < len(result.Times); i++ {
		assert.True(t, result.Times[i].After(result.Times[i-1]))
	}

	assert.False(t, result.Times[9].After(start.Add(spread)))
}

func TestGenerate_FloorHonored(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

	for seed := range uint64(50) {
		result, err := schedule.NewScheduler(schedule.NewSeeded(seed), schedule.WithMinGap(10*time.Minute)).
			Generate(6, start, 2*time.Hour)
		require.NoError(t, err)

		for _, gap := range result.Gaps() {
			assert.GreaterOrEqual(t, gap, 10*time.Minute-2*time.Minute)
		}
	}
}

func TestGenerate_Invalid(t *testing.T) {
	t.Parallel()

	scheduler := schedule.NewScheduler(schedule.NewSeeded(1))
	start := time.Now()

	_, err := scheduler.Generate(0, start, time.Hour)
	require.ErrorIs(t, err, schedule.ErrInvalidSchedule)

	_, err = scheduler.Generate(-3, start, time.Hour)
	require.ErrorIs(t, err, schedule.ErrInvalidSchedule)
}

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

	first, err := schedule.NewScheduler(schedule.NewSeeded(42)).Generate(7, start, 3*time.Hour)
	require.NoError(t, err)

	second, err := schedule.NewScheduler(schedule.NewSeeded(42)).Generate(7, start, 3*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, first.Times, second.Times)
}

func TestParseSpread(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "2h", want: 2 * time.Hour},
		{in: "30m", want: 30 * time.Minute},
		{in: "1d", want: 24 * time.Hour},
		{in: "45s", want: 45 * time.Second},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "3", want: 3 * time.Hour},
		{in: " 2H ", want: 2 * time.Hour},
		{in: "", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "-1h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := schedule.ParseSpread(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, schedule.ErrInvalidSchedule)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStart(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", 2*60*60)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-12-25 09:00", want: time.Date(2025, 12, 25, 9, 0, 0, 0, loc)},
		{in: "2025-12-25 09:00:15", want: time.Date(2025, 12, 25, 9, 0, 15, 0, loc)},
		{in: "2025-12-25", want: time.Date(2025, 12, 25, 9, 0, 0, 0, loc)},
		{in: "2025-12-25T10:30:00Z", want: time.Date(2025, 12, 25, 10, 30, 0, 0, time.UTC)},
		{in: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := schedule.ParseStart(tt.in, loc)
			if tt.wantErr {
				require.ErrorIs(t, err, schedule.ErrInvalidSchedule)

				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestDefaultSpread(t *testing.T) {
	t.Parallel()

	rng := schedule.NewSeeded(3)

	for range 100 {
		d := schedule.DefaultSpread(rng)
		assert.GreaterOrEqual(t, d, 2*time.Hour)
		assert.LessOrEqual(t, d, 4*time.Hour)
		assert.Zero(t, d%time.Hour)
	}
}
