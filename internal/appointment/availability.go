package appointment

import "github.com/smiledental/booking-engine/internal/schedule"

// ResolveAvailableSlots keeps the candidates that overlap none of the booked
// intervals, in candidate order. An empty result means no availability.
func ResolveAvailableSlots(candidates, booked []schedule.TimeRange) []schedule.TimeRange {
	available := make([]schedule.TimeRange, 0, len(candidates))
	for _, c := range candidates {
		if c.OverlapsAny(booked) {
			continue
		}
		available = append(available, c)
	}
	return available
}

// OccupiedIntervals returns the footprints of appointments whose status
// still holds calendar time.
func OccupiedIntervals(appts []Appointment) []schedule.TimeRange {
	var out []schedule.TimeRange
	for _, a := range appts {
		if a.Status.Occupies() {
			out = append(out, a.Range())
		}
	}
	return out
}

func containsSlot(slots []schedule.TimeRange, want schedule.TimeRange) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}
