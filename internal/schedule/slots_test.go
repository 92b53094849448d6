package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minutes(clock string) int {
	m, err := ParseClock(clock)
	if err != nil {
		panic(err)
	}
	return m
}

func ptr(v int) *int { return &v }

func mondayWithLunch() *Entry {
	return &Entry{
		ID:          uuid.New(),
		ProviderID:  uuid.New(),
		DayOfWeek:   time.Monday,
		StartTime:   minutes("09:00"),
		EndTime:     minutes("17:00"),
		BreakStart:  ptr(minutes("12:00")),
		BreakEnd:    ptr(minutes("13:00")),
		IsAvailable: true,
	}
}

func starts(slots []TimeRange) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, FormatClock(s.Start))
	}
	return out
}

func TestGenerateCandidateSlotsSkipsLunchBreak(t *testing.T) {
	slots, err := GenerateCandidateSlots(mondayWithLunch(), 30)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	}, starts(slots))
	assert.Len(t, slots, 14)

	for _, s := range slots {
		assert.Equal(t, 30, s.Duration())
	}
}

func TestGenerateCandidateSlotsNeverTouchesBreak(t *testing.T) {
	entry := mondayWithLunch()
	brk, _ := entry.Break()

	for _, d := range []int{30, 60, 90, 120, 240} {
		slots, err := GenerateCandidateSlots(entry, d)
		require.NoError(t, err)
		for _, s := range slots {
			assert.False(t, s.Overlaps(brk), "duration %d produced %s inside break", d, s)
			assert.True(t, entry.Window().Covers(s))
		}
	}
}

func TestGenerateCandidateSlotsLongerService(t *testing.T) {
	slots, err := GenerateCandidateSlots(mondayWithLunch(), 60)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"09:00", "09:30", "10:00", "10:30", "11:00",
		"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00",
	}, starts(slots))
	assert.Equal(t, TimeRange{Start: minutes("16:00"), End: minutes("17:00")}, slots[len(slots)-1])
}

func TestGenerateCandidateSlotsIsDeterministic(t *testing.T) {
	entry := mondayWithLunch()

	first, err := GenerateCandidateSlots(entry, 30)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := GenerateCandidateSlots(entry, 30)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGenerateCandidateSlotsEmptyCases(t *testing.T) {
	slots, err := GenerateCandidateSlots(nil, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)

	off := mondayWithLunch()
	off.IsAvailable = false
	slots, err = GenerateCandidateSlots(off, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)

	short := &Entry{StartTime: minutes("09:00"), EndTime: minutes("09:30"), IsAvailable: true}
	slots, err = GenerateCandidateSlots(short, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateCandidateSlotsRejectsInvalidDuration(t *testing.T) {
	for _, d := range []int{0, -30, 15, 45, 61} {
		_, err := GenerateCandidateSlots(mondayWithLunch(), d)
		assert.ErrorIs(t, err, ErrInvalidDuration, "duration %d", d)
	}

	_, err := GenerateCandidateSlots(nil, 20)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestCandidateSlotsForDayMergesWindows(t *testing.T) {
	provider := uuid.New()
	entries := []Entry{
		{ID: uuid.New(), ProviderID: provider, DayOfWeek: time.Thursday, StartTime: minutes("14:00"), EndTime: minutes("15:00"), IsAvailable: true},
		{ID: uuid.New(), ProviderID: provider, DayOfWeek: time.Thursday, StartTime: minutes("08:00"), EndTime: minutes("09:00"), IsAvailable: true},
		{ID: uuid.New(), ProviderID: provider, DayOfWeek: time.Friday, StartTime: minutes("08:00"), EndTime: minutes("18:00"), IsAvailable: true},
	}

	slots, err := CandidateSlotsForDay(entries, time.Thursday, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:30", "14:00", "14:30"}, starts(slots))

	slots, err = CandidateSlotsForDay(entries, time.Sunday, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
