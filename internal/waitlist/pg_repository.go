package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/store"
)

type PgRepository struct {
	db store.DB
}

func NewPgRepository(db store.DB) *PgRepository {
	return &PgRepository{db: db}
}

const entryColumns = `id, provider_id, service_id, patient_id, requested_date, requested_time, status, created_at, notified_at`

const uniqueViolation = "23505"

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var status string

	err := row.Scan(
		&e.ID,
		&e.ProviderID,
		&e.ServiceID,
		&e.PatientID,
		&e.Date,
		&e.RequestedTime,
		&status,
		&e.CreatedAt,
		&e.NotifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.Status = Status(status)
	e.Date = schedule.DateOf(e.Date)
	return &e, nil
}

func (r *PgRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, provider_id, service_id, patient_id, requested_date, requested_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', now())
		RETURNING `+entryColumns+`
	`, e.ID, e.ProviderID, e.ServiceID, e.PatientID, e.Date, e.RequestedTime)

	saved, err := scanEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	*e = *saved
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) ListCandidates(ctx context.Context, providerID, serviceID uuid.UUID, date time.Time, window schedule.TimeRange) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE provider_id = $1
		  AND service_id = $2
		  AND requested_date = $3
		  AND requested_time >= $4
		  AND requested_time < $5
		  AND status = 'pending'
		ORDER BY created_at, id
	`, providerID, serviceID, date, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("list waitlist candidates: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Claim(ctx context.Context, e Entry, freed schedule.TimeRange) (*Entry, error) {
	var claimed *Entry

	err := store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := store.LockKey(ctx, tx, dayKey(e)); err != nil {
			return err
		}

		var outstanding bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM waitlist_entries
				WHERE provider_id = $1
				  AND service_id = $2
				  AND requested_date = $3
				  AND requested_time >= $4
				  AND requested_time < $5
				  AND status = 'notified'
			)
		`, e.ProviderID, e.ServiceID, e.Date, freed.Start, freed.End).Scan(&outstanding)
		if err != nil {
			return fmt.Errorf("check outstanding offer: %w", err)
		}
		if outstanding {
			return ErrOfferOutstanding
		}

		row := tx.QueryRow(ctx, `
			UPDATE waitlist_entries
			SET status = 'notified',
			    notified_at = now()
			WHERE id = $1
			  AND status = 'pending'
			RETURNING `+entryColumns+`
		`, e.ID)

		claimed, err = scanEntry(row)
		if errors.Is(err, ErrEntryNotFound) {
			return ErrClaimLost
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Entry, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = $2
		WHERE id = $1
		  AND status = $3
		RETURNING `+entryColumns+`
	`, id, string(to), string(from))
	return scanEntry(row)
}

func (r *PgRepository) ExpireStale(ctx context.Context, offerCutoff, today time.Time) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE waitlist_entries
		SET status = 'expired'
		WHERE (status = 'notified' AND notified_at < $1)
		   OR (status IN ('pending', 'notified') AND requested_date < $2)
		RETURNING `+entryColumns, offerCutoff, today)
	if err != nil {
		return nil, fmt.Errorf("expire waitlist entries: %w", err)
	}
	defer rows.Close()

	var expired []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired waitlist entry: %w", err)
		}
		expired = append(expired, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expired, nil
}

// PgReleaseQueue stores deferred releases in slot_releases.
type PgReleaseQueue struct {
	db store.DB
}

func NewPgReleaseQueue(db store.DB) *PgReleaseQueue {
	return &PgReleaseQueue{db: db}
}

func (q *PgReleaseQueue) Enqueue(ctx context.Context, rel appointment.SlotRelease, notBefore time.Time) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO slot_releases (provider_id, service_id, release_date, start_minute, end_minute, reason, appointment_id, not_before)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rel.ProviderID, rel.ServiceID, rel.Date, rel.Range.Start, rel.Range.End, rel.Reason, rel.AppointmentID, notBefore)
	if err != nil {
		return fmt.Errorf("enqueue slot release: %w", err)
	}
	return nil
}

func (q *PgReleaseQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueuedRelease, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE slot_releases
		SET processed_at = now()
		WHERE id IN (
			SELECT id
			FROM slot_releases
			WHERE processed_at IS NULL
			  AND not_before <= $1
			ORDER BY not_before, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, provider_id, service_id, release_date, start_minute, end_minute, reason, appointment_id, not_before
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due releases: %w", err)
	}
	defer rows.Close()

	var result []QueuedRelease
	for rows.Next() {
		var qr QueuedRelease
		rel := &qr.Release
		if err := rows.Scan(
			&qr.ID,
			&rel.ProviderID,
			&rel.ServiceID,
			&rel.Date,
			&rel.Range.Start,
			&rel.Range.End,
			&rel.Reason,
			&rel.AppointmentID,
			&qr.NotBefore,
		); err != nil {
			return nil, fmt.Errorf("scan slot release: %w", err)
		}
		rel.Date = schedule.DateOf(rel.Date)
		result = append(result, qr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
