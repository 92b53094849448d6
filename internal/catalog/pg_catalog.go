package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smiledental/booking-engine/internal/store"
)

// PgCatalog reads service durations from the services table.
type PgCatalog struct {
	db store.DB
}

func NewPgCatalog(db store.DB) *PgCatalog {
	return &PgCatalog{db: db}
}

func (c *PgCatalog) DurationMinutes(ctx context.Context, serviceID uuid.UUID) (int, error) {
	var minutes int
	err := c.db.QueryRow(ctx, `
		SELECT duration_minutes
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrServiceNotFound
		}
		return 0, fmt.Errorf("load service duration: %w", err)
	}
	return minutes, nil
}
