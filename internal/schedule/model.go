package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one weekly recurring availability rule for a provider.
type Entry struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	DayOfWeek   time.Weekday
	StartTime   int  // minute of day
	EndTime     int  // minute of day
	BreakStart  *int // optional, minute of day
	BreakEnd    *int // optional, minute of day
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Window returns the working window of the entry.
func (e Entry) Window() TimeRange {
	return TimeRange{Start: e.StartTime, End: e.EndTime}
}

// Break returns the break window when both bounds are set.
func (e Entry) Break() (TimeRange, bool) {
	if e.BreakStart == nil || e.BreakEnd == nil {
		return TimeRange{}, false
	}
	return TimeRange{Start: *e.BreakStart, End: *e.BreakEnd}, true
}

// EntriesForDay filters entries down to the given weekday.
func EntriesForDay(entries []Entry, day time.Weekday) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.DayOfWeek == day {
			out = append(out, e)
		}
	}
	return out
}
