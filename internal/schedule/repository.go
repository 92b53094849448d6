package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEntryNotFound = errors.New("schedule entry not found")

// Repository contains all store interactions needed by the schedule service.
type Repository interface {
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Entry, error)
	ListByProviderDay(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]Entry, error)

	// SaveChecked loads the provider's entries for entry.DayOfWeek inside a
	// critical section scoped to (provider, day), runs check against them and
	// upserts entry only when check returns nil.
	SaveChecked(ctx context.Context, entry *Entry, check func(existing []Entry) error) error
}
