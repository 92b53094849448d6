package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Occupies reports whether an appointment in this status reserves calendar time.
func (s AppointmentStatus) Occupies() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether from -> to is an allowed status change.
// completed, cancelled and no_show are terminal.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentStatus is tracked alongside the appointment but never gates availability.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Appointment struct {
	ID            uuid.UUID
	BookingRef    string
	ProviderID    uuid.UUID
	ServiceID     uuid.UUID
	PatientID     uuid.UUID
	Date          time.Time // UTC midnight
	StartTime     int       // minute of day
	EndTime       int       // minute of day
	Status        AppointmentStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Range is the calendar footprint fixed at booking time.
func (a Appointment) Range() schedule.TimeRange {
	return schedule.TimeRange{Start: a.StartTime, End: a.EndTime}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
