package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledental/booking-engine/internal/schedule"
)

func TestResolveAvailableSlotsExcludesBookedSlot(t *testing.T) {
	candidates, err := schedule.GenerateCandidateSlots(mondayEntry(newID()), 30)
	require.NoError(t, err)
	require.Len(t, candidates, 14)

	booked := []schedule.TimeRange{clockRange("10:00", "10:30")}
	available := ResolveAvailableSlots(candidates, booked)

	assert.Len(t, available, 13)
	assert.NotContains(t, available, clockRange("10:00", "10:30"))
	assert.Contains(t, available, clockRange("09:30", "10:00"))
	assert.Contains(t, available, clockRange("10:30", "11:00"))
}

func TestResolveAvailableSlotsPreservesOrder(t *testing.T) {
	candidates := []schedule.TimeRange{
		clockRange("09:00", "10:00"),
		clockRange("09:30", "10:30"),
		clockRange("10:00", "11:00"),
		clockRange("10:30", "11:30"),
	}
	booked := []schedule.TimeRange{clockRange("09:45", "10:15")}

	available := ResolveAvailableSlots(candidates, booked)
	assert.Equal(t, []schedule.TimeRange{clockRange("10:30", "11:30")}, available)
}

func TestResolveAvailableSlotsEmptyInputs(t *testing.T) {
	assert.Empty(t, ResolveAvailableSlots(nil, []schedule.TimeRange{clockRange("09:00", "09:30")}))

	candidates := []schedule.TimeRange{clockRange("09:00", "09:30")}
	assert.Equal(t, candidates, ResolveAvailableSlots(candidates, nil))

	assert.Empty(t, ResolveAvailableSlots(candidates, []schedule.TimeRange{clockRange("08:00", "12:00")}))
}

func TestOccupiedIntervalsIgnoresFreedStatuses(t *testing.T) {
	appts := []Appointment{
		{StartTime: 540, EndTime: 570, Status: StatusPending},
		{StartTime: 570, EndTime: 600, Status: StatusConfirmed},
		{StartTime: 600, EndTime: 630, Status: StatusCompleted},
		{StartTime: 630, EndTime: 660, Status: StatusCancelled},
		{StartTime: 660, EndTime: 690, Status: StatusNoShow},
	}

	assert.Equal(t, []schedule.TimeRange{
		{Start: 540, End: 570},
		{Start: 570, End: 600},
		{Start: 600, End: 630},
	}, OccupiedIntervals(appts))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusNoShow, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusNoShow, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
