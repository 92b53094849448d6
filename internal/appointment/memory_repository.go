package appointment

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/schedule"
)

// MemoryRepository is an in-process ledger. Its mutex plays the role of the
// per-(provider, date) transaction.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]Appointment
	events       []EventLog
	nextEventID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListByProviderDate(_ context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byProviderDate(providerID, date), nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.StartTime - a.StartTime
	})

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListOccupied(_ context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return OccupiedIntervals(r.byProviderDate(providerID, date)), nil
}

func (r *MemoryRepository) Reserve(_ context.Context, appt *Appointment, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	occupied := OccupiedIntervals(r.byProviderDate(appt.ProviderID, appt.Date))
	if appt.Range().OverlapsAny(occupied) {
		return ErrSlotTaken
	}

	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments[appt.ID] = *appt

	ev.AppointmentID = &appt.ID
	r.appendEvent(ev)
	return nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, ev EventLog) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = a

	ev.AppointmentID = &a.ID
	r.appendEvent(ev)
	return &a, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendEvent(ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *MemoryRepository) appendEvent(ev EventLog) {
	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, ev)
}

func (r *MemoryRepository) byProviderDate(providerID uuid.UUID, date time.Time) []Appointment {
	var out []Appointment
	for _, a := range r.appointments {
		if a.ProviderID == providerID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int {
		return a.StartTime - b.StartTime
	})
	return out
}
