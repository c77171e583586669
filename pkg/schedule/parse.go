package schedule

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Default working-session spread bounds, in hours.
const (
	minDefaultSpreadHours = 2
	maxDefaultSpreadHours = 4
	dateOnlyHour          = 9
)

var startLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// ParseSpread parses a spread such as "2h", "30m", "1d", "45s" or "1h30m".
// A bare number counts hours.
func ParseSpread(value string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return 0, &InvalidScheduleError{Field: "spread", Value: value, Reason: "empty"}
	}

	var d time.Duration

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		d = time.Duration(n * float64(time.Hour))
	} else if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, &InvalidScheduleError{Field: "spread", Value: value, Reason: "bad day count"}
		}

		d = time.Duration(n * float64(24*time.Hour))
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, &InvalidScheduleError{Field: "spread", Value: value, Reason: "use forms like 2h, 30m, 1d or 45s"}
		}

		d = parsed
	}

	if d <= 0 {
		return 0, &InvalidScheduleError{Field: "spread", Value: value, Reason: "must be positive"}
	}

	return d, nil
}

// ParseStart parses a start instant in loc. It accepts "YYYY-MM-DD HH:MM",
// an optional seconds field, RFC 3339, and a bare date, which means 09:00.
func ParseStart(value string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(value)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if day, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return time.Date(day.Year(), day.Month(), day.Day(), dateOnlyHour, 0, 0, 0, loc), nil
	}

	return time.Time{}, &InvalidScheduleError{Field: "start", Value: value, Reason: "use YYYY-MM-DD HH:MM"}
}

// DefaultSpread draws a spread of two to four whole hours, the length of a
// typical working session.
func DefaultSpread(rng *rand.Rand) time.Duration {
	hours := minDefaultSpreadHours + rng.IntN(maxDefaultSpreadHours-minDefaultSpreadHours+1)

	return time.Duration(hours) * time.Hour
}
