package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledental/booking-engine/internal/appointment"
)

var entryCols = []string{"id", "provider_id", "service_id", "patient_id", "requested_date", "requested_time", "status", "created_at", "notified_at"}

func sampleEntry() Entry {
	return Entry{
		ID:            uuid.New(),
		ProviderID:    uuid.New(),
		ServiceID:     uuid.New(),
		PatientID:     uuid.New(),
		Date:          monday,
		RequestedTime: 600,
		Status:        StatusPending,
	}
}

func TestPgRepositoryClaimNotifiesPendingEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	e := sampleEntry()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("waitlist:"+e.ProviderID.String()+":"+e.ServiceID.String()+":2030-01-07").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(e.ProviderID, e.ServiceID, monday, 600, 660).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE waitlist_entries").
		WithArgs(e.ID).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(e.ID, e.ProviderID, e.ServiceID, e.PatientID, monday, 600, "notified", now, &now))
	mock.ExpectCommit()

	claimed, err := repo.Claim(context.Background(), e, clockRange("10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, claimed.Status)
	require.NotNil(t, claimed.NotifiedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryClaimRefusesOutstandingOffer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	e := sampleEntry()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(e.ProviderID, e.ServiceID, monday, 600, 660).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err = repo.Claim(context.Background(), e, clockRange("10:00", "11:00"))
	assert.ErrorIs(t, err, ErrOfferOutstanding)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryClaimLost(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	e := sampleEntry()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("UPDATE waitlist_entries").
		WithArgs(e.ID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = repo.Claim(context.Background(), e, clockRange("10:00", "11:00"))
	assert.ErrorIs(t, err, ErrClaimLost)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryExpireStaleReturnsExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	e := sampleEntry()
	cutoff := time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)
	today := time.Date(2030, 1, 6, 0, 0, 0, 0, time.UTC)
	notifiedAt := cutoff.Add(-time.Hour)

	mock.ExpectQuery("SET status = 'expired'").
		WithArgs(cutoff, today).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(e.ID, e.ProviderID, e.ServiceID, e.PatientID, monday, 600, "expired", notifiedAt, &notifiedAt))

	expired, err := repo.ExpireStale(context.Background(), cutoff, today)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, e.ID, expired[0].ID)
	assert.Equal(t, StatusExpired, expired[0].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryCreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	e := sampleEntry()

	mock.ExpectQuery("INSERT INTO waitlist_entries").
		WithArgs(e.ID, e.ProviderID, e.ServiceID, e.PatientID, monday, 600).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = repo.Create(context.Background(), &e)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryListCandidatesOrdersFIFO(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	a, b := sampleEntry(), sampleEntry()
	t1 := time.Date(2029, 12, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("ORDER BY created_at, id").
		WithArgs(a.ProviderID, a.ServiceID, monday, 600, 630).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(a.ID, a.ProviderID, a.ServiceID, a.PatientID, monday, 600, "pending", t1, (*time.Time)(nil)).
			AddRow(b.ID, a.ProviderID, a.ServiceID, b.PatientID, monday, 600, "pending", t1.Add(time.Minute), (*time.Time)(nil)))

	got, err := repo.ListCandidates(context.Background(), a.ProviderID, a.ServiceID, monday, clockRange("10:00", "10:30"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Nil(t, got[0].NotifiedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReleaseQueueClaimDue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	q := NewPgReleaseQueue(mock)
	now := time.Now().UTC()
	provider, service, apptID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(now, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "provider_id", "service_id", "release_date", "start_minute", "end_minute", "reason", "appointment_id", "not_before"}).
			AddRow(int64(7), provider, service, monday, 600, 630, appointment.ReleaseCancelled, &apptID, now))

	due, err := q.ClaimDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(7), due[0].ID)
	assert.Equal(t, clockRange("10:00", "10:30"), due[0].Release.Range)
	require.NotNil(t, due[0].Release.AppointmentID)
	assert.Equal(t, apptID, *due[0].Release.AppointmentID)

	require.NoError(t, mock.ExpectationsWereMet())
}
