package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidDay       = errors.New("day of week must be between 0 (Sunday) and 6 (Saturday)")
	ErrInvalidWindow    = errors.New("schedule start time must be before end time and within the day")
	ErrInvalidBreak     = errors.New("break must satisfy start <= break start < break end <= end")
	ErrScheduleConflict = errors.New("schedule overlaps an existing entry for the same day")
)

// ConflictError names the stored entry a candidate collides with.
type ConflictError struct {
	Existing Entry
	Overlap  TimeRange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: entry %s (%s) overlaps %s",
		ErrScheduleConflict, e.Existing.ID, e.Existing.Window(), e.Overlap)
}

func (e *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}

// ValidateEntry checks the invariants of a single entry.
func ValidateEntry(e Entry) error {
	if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
		return ErrInvalidDay
	}
	if e.StartTime < 0 || e.EndTime > MinutesPerDay || e.StartTime >= e.EndTime {
		return ErrInvalidWindow
	}

	if (e.BreakStart == nil) != (e.BreakEnd == nil) {
		return ErrInvalidBreak
	}
	if brk, ok := e.Break(); ok {
		if brk.Start < e.StartTime || brk.Start >= brk.End || brk.End > e.EndTime {
			return ErrInvalidBreak
		}
	}
	return nil
}

// CheckConflict compares candidate against existing entries of the same
// provider and weekday. The candidate itself is skipped when editing. Only
// two available entries can conflict.
func CheckConflict(candidate Entry, existing []Entry) error {
	if !candidate.IsAvailable {
		return nil
	}

	window := candidate.Window()
	for _, e := range existing {
		if e.ProviderID != candidate.ProviderID || e.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		if candidate.ID != uuid.Nil && e.ID == candidate.ID {
			continue
		}
		if !e.IsAvailable {
			continue
		}
		if other := e.Window(); window.Overlaps(other) {
			return &ConflictError{
				Existing: e,
				Overlap: TimeRange{
					Start: max(window.Start, other.Start),
					End:   min(window.End, other.End),
				},
			}
		}
	}
	return nil
}
