package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by Reserve when an occupying appointment
	// overlapping the requested range exists at commit time.
	ErrSlotTaken = errors.New("overlapping appointment exists")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByProviderDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// ListOccupied returns the intervals held by pending, confirmed and
	// completed appointments of the provider on date.
	ListOccupied(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeRange, error)

	// Reserve re-reads the occupied intervals of (provider, date) and inserts
	// appt in the same transaction, or returns ErrSlotTaken.
	Reserve(ctx context.Context, appt *Appointment, ev EventLog) error

	// UpdateAppointmentStatus moves id from -> to inside the calendar
	// transaction. A row no longer in from yields ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, ev EventLog) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
