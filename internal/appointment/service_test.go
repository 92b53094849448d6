package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledental/booking-engine/internal/catalog"
	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/internal/metrics"
	redisclient "github.com/smiledental/booking-engine/internal/redis"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/store"
	"github.com/smiledental/booking-engine/pkg/logging"
)

// 2030-01-07 is a Monday.
var monday = time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)

func newID() uuid.UUID { return uuid.New() }

func clock(s string) int {
	m, err := schedule.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return m
}

func clockRange(start, end string) schedule.TimeRange {
	return schedule.TimeRange{Start: clock(start), End: clock(end)}
}

func intPtr(v int) *int { return &v }

func mondayEntry(providerID uuid.UUID) *schedule.Entry {
	return &schedule.Entry{
		ProviderID:  providerID,
		DayOfWeek:   time.Monday,
		StartTime:   clock("09:00"),
		EndTime:     clock("17:00"),
		BreakStart:  intPtr(clock("12:00")),
		BreakEnd:    intPtr(clock("13:00")),
		IsAvailable: true,
	}
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepository
	catalog  *catalog.MemoryCatalog
	provider uuid.UUID
	service  uuid.UUID
	released *recordingReleaser
}

type recordingReleaser struct {
	mu       sync.Mutex
	releases []SlotRelease
}

func (r *recordingReleaser) Release(_ context.Context, rel SlotRelease) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases = append(r.releases, rel)
	return nil
}

func newFixture(t *testing.T, repo Repository) *fixture {
	t.Helper()
	ctx := context.Background()

	schedules := schedule.NewService(schedule.NewMemoryRepository(), nil, logging.Nop())
	provider := newID()
	require.NoError(t, schedules.SaveEntry(ctx, mondayEntry(provider)))

	cat := catalog.NewMemoryCatalog()
	serviceID := newID()
	cat.Set(serviceID, 30)

	mem, _ := repo.(*MemoryRepository)
	if repo == nil {
		mem = NewMemoryRepository()
		repo = mem
	}

	cfg := config.Config{CommitMaxAttempts: 3}
	rel := &recordingReleaser{}
	svc := NewService(repo, schedules, cat, redisclient.NewLocalLocker(), cfg).
		WithReleaser(rel).
		WithMetrics(metrics.New(prometheus.NewRegistry())).
		WithLogger(logging.Nop())

	return &fixture{svc: svc, repo: mem, catalog: cat, provider: provider, service: serviceID, released: rel}
}

func (f *fixture) book(t *testing.T, start string, status AppointmentStatus) *Appointment {
	t.Helper()
	appt, err := f.svc.CommitBooking(context.Background(), BookingRequest{
		ProviderID: f.provider,
		ServiceID:  f.service,
		PatientID:  newID(),
		Date:       monday,
		StartTime:  clock(start),
		Status:     status,
	})
	require.NoError(t, err)
	return appt
}

func TestGetAvailableSlotsFreshDay(t *testing.T) {
	f := newFixture(t, nil)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.provider, f.service, monday)
	require.NoError(t, err)
	assert.Len(t, slots, 14)
	for _, s := range slots {
		assert.False(t, s.Overlaps(clockRange("12:00", "13:00")), "slot %s overlaps lunch", s)
	}
}

func TestGetAvailableSlotsExcludesConfirmedBooking(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "10:00", StatusConfirmed)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.provider, f.service, monday)
	require.NoError(t, err)
	assert.Len(t, slots, 13)
	assert.NotContains(t, slots, clockRange("10:00", "10:30"))
}

func TestGetAvailableSlotsNoScheduleIsEmpty(t *testing.T) {
	f := newFixture(t, nil)

	tuesday := monday.AddDate(0, 0, 1)
	slots, err := f.svc.GetAvailableSlots(context.Background(), f.provider, f.service, tuesday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGetAvailableSlotsUnknownService(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.GetAvailableSlots(context.Background(), f.provider, newID(), monday)
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)
}

func TestCommitBookingPersistsAppointment(t *testing.T) {
	f := newFixture(t, nil)

	appt := f.book(t, "13:30", "")
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, PaymentUnpaid, appt.PaymentStatus)
	assert.Equal(t, clockRange("13:30", "14:00"), appt.Range())
	assert.Regexp(t, `^BK-[0-9A-F]{10}$`, appt.BookingRef)

	stored, err := f.repo.GetAppointmentByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.BookingRef, stored.BookingRef)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentCreated, events[0].EventType)
}

func TestCommitBookingRejectsUnbookableTimes(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "10:00", StatusConfirmed)

	for _, start := range []string{"10:00", "12:00", "12:30", "08:30", "16:45", "17:00"} {
		t.Run(start, func(t *testing.T) {
			_, err := f.svc.CommitBooking(context.Background(), BookingRequest{
				ProviderID: f.provider,
				ServiceID:  f.service,
				PatientID:  newID(),
				Date:       monday,
				StartTime:  clock(start),
			})
			assert.ErrorIs(t, err, ErrSlotNoLongerAvailable)
		})
	}
}

func TestCommitBookingValidatesRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CommitBooking(ctx, BookingRequest{ProviderID: f.provider, ServiceID: f.service, Date: monday, StartTime: clock("09:00")})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = f.svc.CommitBooking(ctx, BookingRequest{
		ProviderID: f.provider, ServiceID: f.service, PatientID: newID(),
		Date: monday, StartTime: clock("09:00"), Status: StatusCompleted,
	})
	assert.ErrorIs(t, err, ErrInvalidInitialStatus)

	bad := newID()
	f.catalog.Set(bad, 45)
	_, err = f.svc.CommitBooking(ctx, BookingRequest{
		ProviderID: f.provider, ServiceID: bad, PatientID: newID(),
		Date: monday, StartTime: clock("09:00"),
	})
	assert.ErrorIs(t, err, schedule.ErrInvalidDuration)
}

func TestCommitBookingConcurrentSameSlot(t *testing.T) {
	f := newFixture(t, nil)

	const callers = 2
	var wg sync.WaitGroup
	results := make([]error, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.svc.CommitBooking(context.Background(), BookingRequest{
				ProviderID: f.provider,
				ServiceID:  f.service,
				PatientID:  newID(),
				Date:       monday,
				StartTime:  clock("10:00"),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, lost int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotNoLongerAvailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, lost)

	appts, err := f.repo.ListByProviderDate(context.Background(), f.provider, monday)
	require.NoError(t, err)
	assert.Len(t, appts, 1)
}

func TestCommitBookingNeverDoubleBooksUnderLoad(t *testing.T) {
	f := newFixture(t, nil)
	long := newID()
	f.catalog.Set(long, 60)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc := f.service
			if i%2 == 0 {
				svc = long
			}
			starts := []string{"09:00", "09:30", "10:00", "10:30", "13:00", "13:30"}
			_, _ = f.svc.CommitBooking(context.Background(), BookingRequest{
				ProviderID: f.provider,
				ServiceID:  svc,
				PatientID:  newID(),
				Date:       monday,
				StartTime:  clock(starts[i%len(starts)]),
			})
		}(i)
	}
	wg.Wait()

	appts, err := f.repo.ListByProviderDate(context.Background(), f.provider, monday)
	require.NoError(t, err)
	require.NotEmpty(t, appts)
	for i := range appts {
		for j := i + 1; j < len(appts); j++ {
			assert.False(t, appts[i].Range().Overlaps(appts[j].Range()),
				"%s overlaps %s", appts[i].Range(), appts[j].Range())
		}
	}
}

func TestServiceDurationChangeDoesNotResizeExistingAppointment(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, "09:00", StatusConfirmed)

	f.catalog.Set(f.service, 60)

	stored, err := f.repo.GetAppointmentByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, clockRange("09:00", "09:30"), stored.Range(), "historical bookings keep their original footprint")

	// the old 30 minute footprint still blocks only 09:00-09:30
	slots, err := f.svc.GetAvailableSlots(context.Background(), f.provider, f.service, monday)
	require.NoError(t, err)
	assert.Contains(t, slots, clockRange("09:30", "10:30"))
	assert.NotContains(t, slots, clockRange("09:00", "10:00"))
}

type flakyRepository struct {
	*MemoryRepository
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *flakyRepository) Reserve(ctx context.Context, appt *Appointment, ev EventLog) error {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failures
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("serialization failure: %w", store.ErrTransient)
	}
	return r.MemoryRepository.Reserve(ctx, appt, ev)
}

func TestCommitBookingRetriesTransientFailures(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: NewMemoryRepository(), failures: 2}
	f := newFixture(t, repo)

	appt, err := f.svc.CommitBooking(context.Background(), BookingRequest{
		ProviderID: f.provider,
		ServiceID:  f.service,
		PatientID:  newID(),
		Date:       monday,
		StartTime:  clock("11:00"),
	})
	require.NoError(t, err)
	assert.NotNil(t, appt)
	assert.Equal(t, 3, repo.calls)
}

func TestCommitBookingGivesUpAfterMaxAttempts(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: NewMemoryRepository(), failures: 10}
	f := newFixture(t, repo)

	_, err := f.svc.CommitBooking(context.Background(), BookingRequest{
		ProviderID: f.provider,
		ServiceID:  f.service,
		PatientID:  newID(),
		Date:       monday,
		StartTime:  clock("11:00"),
	})
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.Equal(t, 3, repo.calls)

	appts, err := repo.ListByProviderDate(context.Background(), f.provider, monday)
	require.NoError(t, err)
	assert.Empty(t, appts, "no partial rows")
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "10:00", StatusConfirmed)

	cancelled, err := f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	require.Len(t, f.released.releases, 1)
	rel := f.released.releases[0]
	assert.Equal(t, f.provider, rel.ProviderID)
	assert.Equal(t, f.service, rel.ServiceID)
	assert.Equal(t, clockRange("10:00", "10:30"), rel.Range)
	assert.Equal(t, ReleaseCancelled, rel.Reason)

	slots, err := f.svc.GetAvailableSlots(ctx, f.provider, f.service, monday)
	require.NoError(t, err)
	assert.Contains(t, slots, clockRange("10:00", "10:30"))
}

func TestTransitionsFollowStatusTable(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, "14:00", "")

	_, err := f.svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	confirmed, err := f.svc.Confirm(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	completed, err := f.svc.Complete(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Empty(t, f.released.releases, "completed visits keep their slot")

	_, err = f.svc.Cancel(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.svc.Cancel(ctx, newID())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMarkNoShowReleasesSlot(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, "15:00", StatusConfirmed)

	updated, err := f.svc.MarkNoShow(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, updated.Status)
	require.Len(t, f.released.releases, 1)
	assert.Equal(t, ReleaseNoShow, f.released.releases[0].Reason)
}

func TestListByPatientClampsPaging(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	patient := newID()

	for _, start := range []string{"09:00", "10:00", "11:00"} {
		_, err := f.svc.CommitBooking(ctx, BookingRequest{
			ProviderID: f.provider, ServiceID: f.service, PatientID: patient,
			Date: monday, StartTime: clock(start),
		})
		require.NoError(t, err)
	}

	appts, err := f.svc.ListByPatient(ctx, patient, 0, -5)
	require.NoError(t, err)
	require.Len(t, appts, 3)
	assert.Equal(t, clock("11:00"), appts[0].StartTime)
}

type pageRecorder struct {
	*MemoryRepository
	limit int
}

func (r *pageRecorder) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.limit = limit
	return r.MemoryRepository.ListByPatient(ctx, patientID, limit, offset)
}

func TestListByPatientCapsLargeLimit(t *testing.T) {
	rec := &pageRecorder{MemoryRepository: NewMemoryRepository()}
	f := newFixture(t, rec)
	ctx := context.Background()

	_, err := f.svc.ListByPatient(ctx, newID(), 500, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, rec.limit)

	_, err = f.svc.ListByPatient(ctx, newID(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.limit)

	_, err = f.svc.ListByPatient(ctx, newID(), 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, rec.limit)
}

func TestListProviderDayIncludesReleasedAppointments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	late := f.book(t, "14:00", StatusConfirmed)
	early := f.book(t, "09:00", StatusPending)
	_, err := f.svc.Cancel(ctx, late.ID)
	require.NoError(t, err)

	appts, err := f.svc.ListProviderDay(ctx, f.provider, monday.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, early.ID, appts[0].ID)
	assert.Equal(t, late.ID, appts[1].ID)
	assert.Equal(t, StatusCancelled, appts[1].Status)
}
