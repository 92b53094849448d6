package waitlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusNotified Status = "notified"
	StatusExpired  Status = "expired"
	StatusBooked   Status = "booked"
)

// Entry is a patient's request to be told when a time opens up.
type Entry struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	ServiceID     uuid.UUID
	PatientID     uuid.UUID
	Date          time.Time // UTC midnight
	RequestedTime int       // minute of day
	Status        Status
	CreatedAt     time.Time
	NotifiedAt    *time.Time
}

// Range is the time the patient would occupy if booked for a service of
// the given duration.
func (e Entry) Range(durationMinutes int) schedule.TimeRange {
	return schedule.TimeRange{Start: e.RequestedTime, End: e.RequestedTime + durationMinutes}
}

// QueuedRelease is a freed slot waiting out the grace period.
type QueuedRelease struct {
	ID        int64
	Release   appointment.SlotRelease
	NotBefore time.Time
}
