package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinutesPerDay = 24 * 60

	// SlotGranularity is the step between candidate start times, in minutes.
	SlotGranularity = 30

	dateLayout = "2006-01-02"
)

var ErrInvalidClock = errors.New("time must be HH:MM between 00:00 and 24:00")

// TimeRange is a half-open [Start, End) interval in minutes of the day.
type TimeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether r and o share at least one minute.
// [a,b) and [c,d) overlap iff a < d && c < b.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Covers reports whether o lies entirely inside r.
func (r TimeRange) Covers(o TimeRange) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Duration returns the length of the range in minutes.
func (r TimeRange) Duration() int {
	return r.End - r.Start
}

func (r TimeRange) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}

// OverlapsAny reports whether r overlaps any of the given ranges.
func (r TimeRange) OverlapsAny(ranges []TimeRange) bool {
	for _, o := range ranges {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}

// FormatClock renders a minute of the day as HH:MM.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseClock parses HH:MM into a minute of the day. "24:00" is accepted as
// the end of the day.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err == nil {
		return t.Hour()*60 + t.Minute(), nil
	}
	if s == "24:00" {
		return MinutesPerDay, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
}

// DateOf truncates t to a calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a UTC midnight date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
