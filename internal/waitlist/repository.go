package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
)

var (
	ErrEntryNotFound  = errors.New("waitlist entry not found")
	ErrDuplicateEntry = errors.New("patient is already waiting for this time")

	// ErrClaimLost means the entry stopped being pending before the claim.
	ErrClaimLost = errors.New("waitlist entry already claimed")

	// ErrOfferOutstanding means an entry whose requested time falls in the
	// freed range is already notified and still holds the offer.
	ErrOfferOutstanding = errors.New("an offer for this time is outstanding")
)

// Repository stores waitlist entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// ListCandidates returns pending entries of the provider/service/date whose
	// requested time falls in window, oldest first (created_at, then id).
	ListCandidates(ctx context.Context, providerID, serviceID uuid.UUID, date time.Time, window schedule.TimeRange) ([]Entry, error)

	// Claim moves e from pending to notified. freed is the released range;
	// any notified entry of the same provider/service/date requested inside
	// it blocks the claim. It fails with ErrClaimLost or ErrOfferOutstanding
	// without changing anything.
	Claim(ctx context.Context, e Entry, freed schedule.TimeRange) (*Entry, error)

	// UpdateStatus moves id from -> to. A row no longer in from yields
	// ErrEntryNotFound.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Entry, error)

	// ExpireStale expires notified entries older than offerCutoff and
	// pending or notified entries for dates before today, returning them.
	ExpireStale(ctx context.Context, offerCutoff, today time.Time) ([]Entry, error)
}

// ReleaseQueue holds freed slots until their grace period ends.
type ReleaseQueue interface {
	Enqueue(ctx context.Context, rel appointment.SlotRelease, notBefore time.Time) error

	// ClaimDue takes up to limit releases whose grace period ended by now.
	// A claimed release is not returned again.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueuedRelease, error)
}

// dayKey serializes claims for one provider, service and date.
func dayKey(e Entry) string {
	return fmt.Sprintf("waitlist:%s:%s:%s", e.ProviderID, e.ServiceID, schedule.FormatDate(e.Date))
}
