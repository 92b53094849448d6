package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledental/booking-engine/internal/schedule"
)

var appointmentCols = []string{"id", "booking_ref", "provider_id", "service_id", "patient_id", "appointment_date", "start_minute", "end_minute", "status", "payment_status", "created_at", "updated_at"}

func TestPgRepositoryListOccupied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	provider := uuid.New()

	mock.ExpectQuery("status IN \\('pending', 'confirmed', 'completed'\\)").
		WithArgs(provider, monday).
		WillReturnRows(pgxmock.NewRows([]string{"start_minute", "end_minute"}).
			AddRow(600, 630).
			AddRow(780, 840))

	occupied, err := repo.ListOccupied(context.Background(), provider, monday)
	require.NoError(t, err)
	assert.Equal(t, []schedule.TimeRange{{Start: 600, End: 630}, {Start: 780, End: 840}}, occupied)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryReserveInsertsInsideCalendarLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	now := time.Now().UTC()
	appt := &Appointment{
		ID:            uuid.New(),
		BookingRef:    "BK-0011223344",
		ProviderID:    uuid.New(),
		ServiceID:     uuid.New(),
		PatientID:     uuid.New(),
		Date:          monday,
		StartTime:     600,
		EndTime:       630,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
	}

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(CalendarLockKey(appt.ProviderID, monday)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT start_minute, end_minute").
		WithArgs(appt.ProviderID, monday).
		WillReturnRows(pgxmock.NewRows([]string{"start_minute", "end_minute"}).AddRow(540, 600))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(appt.ID, appt.BookingRef, appt.ProviderID, appt.ServiceID, appt.PatientID, monday, 600, 630, "pending", "unpaid").
		WillReturnRows(pgxmock.NewRows(appointmentCols).
			AddRow(appt.ID, appt.BookingRef, appt.ProviderID, appt.ServiceID, appt.PatientID, monday, 600, 630, "pending", "unpaid", now, now))
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = repo.Reserve(context.Background(), appt, EventLog{EventType: EventAppointmentCreated, Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, now, appt.CreatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryReserveRejectsOverlap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	appt := &Appointment{ID: uuid.New(), ProviderID: uuid.New(), Date: monday, StartTime: 600, EndTime: 660, Status: StatusPending}

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT start_minute, end_minute").
		WithArgs(appt.ProviderID, monday).
		WillReturnRows(pgxmock.NewRows([]string{"start_minute", "end_minute"}).AddRow(630, 660))
	mock.ExpectRollback()

	err = repo.Reserve(context.Background(), appt, EventLog{EventType: EventAppointmentCreated})
	assert.ErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateStatusCompareAndSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()
	provider := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT provider_id, appointment_date").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"provider_id", "appointment_date"}).AddRow(provider, monday))
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(CalendarLockKey(provider, monday)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "cancelled", "confirmed").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = repo.UpdateAppointmentStatus(context.Background(), id, StatusConfirmed, StatusCancelled, EventLog{EventType: EventAppointmentCancelled})
	assert.True(t, errors.Is(err, ErrAppointmentNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetAppointmentNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id := uuid.New()

	mock.ExpectQuery("FROM appointments").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err = repo.GetAppointmentByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
