package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/schedule"
)

// Release reasons.
const (
	ReleaseCancelled = "cancelled"
	ReleaseNoShow    = "no_show"
	ReleaseManual    = "manual"
)

// SlotRelease describes calendar time that just stopped being occupied.
type SlotRelease struct {
	ProviderID    uuid.UUID
	ServiceID     uuid.UUID
	Date          time.Time
	Range         schedule.TimeRange
	Reason        string
	AppointmentID *uuid.UUID
}

// ReleaseOf builds the release emitted when appt leaves the occupying set.
func ReleaseOf(appt *Appointment, reason string) SlotRelease {
	id := appt.ID
	return SlotRelease{
		ProviderID:    appt.ProviderID,
		ServiceID:     appt.ServiceID,
		Date:          appt.Date,
		Range:         appt.Range(),
		Reason:        reason,
		AppointmentID: &id,
	}
}

// Releaser receives freed slots once the freeing transaction has committed.
type Releaser interface {
	Release(ctx context.Context, rel SlotRelease) error
}
