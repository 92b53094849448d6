package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smiledental/booking-engine/internal/store"
)

type PgRepository struct {
	db store.DB
}

func NewPgRepository(db store.DB) *PgRepository {
	return &PgRepository{db: db}
}

const entryColumns = `id, provider_id, day_of_week, start_minute, end_minute, break_start, break_end, is_available, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var day int

	err := row.Scan(
		&e.ID,
		&e.ProviderID,
		&day,
		&e.StartTime,
		&e.EndTime,
		&e.BreakStart,
		&e.BreakEnd,
		&e.IsAvailable,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.DayOfWeek = time.Weekday(day)
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM schedule_entries
		WHERE provider_id = $1
		ORDER BY day_of_week, start_minute
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return collectEntries(rows)
}

func (r *PgRepository) ListByProviderDay(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM schedule_entries
		WHERE provider_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`, providerID, int(day))
	if err != nil {
		return nil, fmt.Errorf("list schedule entries for day: %w", err)
	}
	return collectEntries(rows)
}

func (r *PgRepository) SaveChecked(ctx context.Context, entry *Entry, check func(existing []Entry) error) error {
	return store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		key := fmt.Sprintf("schedule:%s:%d", entry.ProviderID, entry.DayOfWeek)
		if err := store.LockKey(ctx, tx, key); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT `+entryColumns+`
			FROM schedule_entries
			WHERE provider_id = $1 AND day_of_week = $2
			ORDER BY start_minute
		`, entry.ProviderID, int(entry.DayOfWeek))
		if err != nil {
			return fmt.Errorf("load schedule entries: %w", err)
		}
		existing, err := collectEntries(rows)
		if err != nil {
			return err
		}

		if err := check(existing); err != nil {
			return err
		}

		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO schedule_entries (id, provider_id, day_of_week, start_minute, end_minute, break_start, break_end, is_available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (id) DO UPDATE
			SET day_of_week = EXCLUDED.day_of_week,
			    start_minute = EXCLUDED.start_minute,
			    end_minute = EXCLUDED.end_minute,
			    break_start = EXCLUDED.break_start,
			    break_end = EXCLUDED.break_end,
			    is_available = EXCLUDED.is_available,
			    updated_at = now()
			WHERE schedule_entries.provider_id = EXCLUDED.provider_id
			RETURNING `+entryColumns+`
		`, entry.ID, entry.ProviderID, int(entry.DayOfWeek), entry.StartTime, entry.EndTime,
			entry.BreakStart, entry.BreakEnd, entry.IsAvailable)

		saved, err := scanEntry(row)
		if err != nil {
			return fmt.Errorf("upsert schedule entry: %w", err)
		}
		*entry = *saved
		return nil
	})
}
