package schedule

import (
	"errors"
	"slices"
	"time"
)

var ErrInvalidDuration = errors.New("service duration must be a positive multiple of 30 minutes")

// ValidateDuration checks a service duration against the slot granularity.
func ValidateDuration(durationMinutes int) error {
	if durationMinutes <= 0 || durationMinutes%SlotGranularity != 0 {
		return ErrInvalidDuration
	}
	return nil
}

// GenerateCandidateSlots returns every [start, start+duration) range that fits
// in the entry's window, stepping by SlotGranularity from the window start.
// Ranges touching the break are dropped, not clipped. A nil or unavailable
// entry yields no slots.
func GenerateCandidateSlots(entry *Entry, durationMinutes int) ([]TimeRange, error) {
	if err := ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}
	if entry == nil || !entry.IsAvailable {
		return nil, nil
	}

	brk, hasBreak := entry.Break()

	var slots []TimeRange
	for start := entry.StartTime; start+durationMinutes <= entry.EndTime; start += SlotGranularity {
		slot := TimeRange{Start: start, End: start + durationMinutes}
		if hasBreak && slot.Overlaps(brk) {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// CandidateSlotsForDay merges the candidates of every entry for the weekday
// into one chronological sequence.
func CandidateSlotsForDay(entries []Entry, day time.Weekday, durationMinutes int) ([]TimeRange, error) {
	if err := ValidateDuration(durationMinutes); err != nil {
		return nil, err
	}

	var all []TimeRange
	for _, e := range EntriesForDay(entries, day) {
		slots, err := GenerateCandidateSlots(&e, durationMinutes)
		if err != nil {
			return nil, err
		}
		all = append(all, slots...)
	}

	slices.SortStableFunc(all, func(a, b TimeRange) int {
		return a.Start - b.Start
	})
	return slices.Compact(all), nil
}
