package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/store"
)

type PgRepository struct {
	db store.DB
}

func NewPgRepository(db store.DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, booking_ref, provider_id, service_id, patient_id, appointment_date, start_minute, end_minute, status, payment_status, created_at, updated_at`

// CalendarLockKey names the advisory lock shared by every writer of a
// provider's calendar day.
func CalendarLockKey(providerID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("calendar:%s:%s", providerID, schedule.FormatDate(date))
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, payment string

	err := row.Scan(
		&a.ID,
		&a.BookingRef,
		&a.ProviderID,
		&a.ServiceID,
		&a.PatientID,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&status,
		&payment,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	a.PaymentStatus = PaymentStatus(payment)
	a.Date = schedule.DateOf(a.Date)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func listOccupied(ctx context.Context, q store.Querier, providerID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	rows, err := q.Query(ctx, `
		SELECT start_minute, end_minute
		FROM appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND status IN ('pending', 'confirmed', 'completed')
		ORDER BY start_minute
	`, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list occupied intervals: %w", err)
	}
	defer rows.Close()

	var result []schedule.TimeRange
	for rows.Next() {
		var r schedule.TimeRange
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("scan occupied interval: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func insertEvent(ctx context.Context, q store.Querier, ev EventLog) error {
	if len(ev.Payload) == 0 {
		ev.Payload = []byte(`{}`)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByProviderDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND appointment_date = $2
		ORDER BY start_minute, created_at
	`, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by provider date: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, start_minute DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListOccupied(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	return listOccupied(ctx, r.db, providerID, date)
}

func (r *PgRepository) Reserve(ctx context.Context, appt *Appointment, ev EventLog) error {
	return store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := store.LockKey(ctx, tx, CalendarLockKey(appt.ProviderID, appt.Date)); err != nil {
			return err
		}

		occupied, err := listOccupied(ctx, tx, appt.ProviderID, appt.Date)
		if err != nil {
			return err
		}
		if appt.Range().OverlapsAny(occupied) {
			return ErrSlotTaken
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, booking_ref, provider_id, service_id, patient_id, appointment_date, start_minute, end_minute, status, payment_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			RETURNING `+appointmentColumns+`
		`, appt.ID, appt.BookingRef, appt.ProviderID, appt.ServiceID, appt.PatientID, appt.Date,
			appt.StartTime, appt.EndTime, string(appt.Status), string(appt.PaymentStatus))

		saved, err := scanAppointment(row)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		ev.AppointmentID = &saved.ID
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}

		*appt = *saved
		return nil
	})
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, ev EventLog) (*Appointment, error) {
	var updated *Appointment

	err := store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var providerID uuid.UUID
		var date time.Time
		err := tx.QueryRow(ctx, `
			SELECT provider_id, appointment_date
			FROM appointments
			WHERE id = $1
		`, id).Scan(&providerID, &date)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAppointmentNotFound
			}
			return fmt.Errorf("load appointment calendar: %w", err)
		}

		if err := store.LockKey(ctx, tx, CalendarLockKey(providerID, schedule.DateOf(date))); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING `+appointmentColumns+`
		`, id, string(to), string(from))

		updated, err = scanAppointment(row)
		if err != nil {
			return err
		}

		ev.AppointmentID = &updated.ID
		return insertEvent(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	return insertEvent(ctx, r.db, ev)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
