package appointment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/smiledental/booking-engine/internal/catalog"
	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/internal/metrics"
	redisclient "github.com/smiledental/booking-engine/internal/redis"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/store"
	"github.com/smiledental/booking-engine/pkg/logging"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

var (
	// ErrSlotNoLongerAvailable means the requested time is not bookable any
	// more, either at validation or because a concurrent booking won.
	ErrSlotNoLongerAvailable   = errors.New("this time is no longer available, please choose another")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidInitialStatus    = errors.New("initial status must be pending or confirmed")
	ErrMissingField            = errors.New("provider, service, patient and date are required")
)

var tracer = otel.Tracer("booking-engine/appointment")

// ScheduleSource yields the weekly entries that apply on a calendar date.
type ScheduleSource interface {
	EntriesForDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.Entry, error)
}

type BookingRequest struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	PatientID  uuid.UUID
	Date       time.Time
	StartTime  int
	Status     AppointmentStatus // pending when empty
}

type Service struct {
	repo      Repository
	schedules ScheduleSource
	services  catalog.Lookup
	locker    redisclient.Locker
	cfg       config.Config

	releaser Releaser
	metrics  *metrics.Engine
	logger   *logging.Logger
}

func NewService(repo Repository, schedules ScheduleSource, services catalog.Lookup, locker redisclient.Locker, cfg config.Config) *Service {
	if locker == nil {
		locker = redisclient.NewLocalLocker()
	}
	return &Service{
		repo:      repo,
		schedules: schedules,
		services:  services,
		locker:    locker,
		cfg:       cfg,
		logger:    logging.Default().Component("booking"),
	}
}

// WithReleaser sets where freed slots are sent after a cancellation or no-show.
func (s *Service) WithReleaser(r Releaser) *Service {
	s.releaser = r
	return s
}

func (s *Service) WithMetrics(m *metrics.Engine) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithLogger(l *logging.Logger) *Service {
	if l != nil {
		s.logger = l.Component("booking")
	}
	return s
}

// GetAvailableSlots returns the bookable slots of a provider for a service on
// date, in chronological order.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID, serviceID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	ctx, span := tracer.Start(ctx, "appointment.available_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", providerID.String()),
		attribute.String("service_id", serviceID.String()),
		attribute.String("date", schedule.FormatDate(date)),
	)

	slots, err := s.availableSlots(ctx, providerID, serviceID, schedule.DateOf(date))
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveAvailability("error")
		return nil, err
	}

	if len(slots) == 0 {
		s.metrics.ObserveAvailability("empty")
	} else {
		s.metrics.ObserveAvailability("ok")
	}
	return slots, nil
}

func (s *Service) availableSlots(ctx context.Context, providerID, serviceID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	duration, err := s.services.DurationMinutes(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load service duration: %w", err)
	}
	return s.slotsForDuration(ctx, providerID, date, duration)
}

func (s *Service) slotsForDuration(ctx context.Context, providerID uuid.UUID, date time.Time, duration int) ([]schedule.TimeRange, error) {
	entries, err := s.schedules.EntriesForDate(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	candidates, err := schedule.CandidateSlotsForDay(entries, date.Weekday(), duration)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	booked, err := s.repo.ListOccupied(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("load occupied intervals: %w", err)
	}

	return ResolveAvailableSlots(candidates, booked), nil
}

// CommitBooking validates req against fresh state and reserves the slot inside
// the provider's calendar critical section. A lost race is reported as
// ErrSlotNoLongerAvailable; exhausted retries as store.ErrTransactionFailed.
func (s *Service) CommitBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.commit_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", req.ProviderID.String()),
		attribute.String("service_id", req.ServiceID.String()),
		attribute.String("date", schedule.FormatDate(req.Date)),
		attribute.Int("start_minute", req.StartTime),
	)

	started := time.Now()
	appt, err := s.commitBooking(ctx, req)
	outcome := bookingOutcome(err)
	s.metrics.ObserveBooking(outcome, time.Since(started).Seconds())

	if err != nil {
		if outcome != "conflict" && outcome != "invalid" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.logger.Info().
			Str("provider_id", req.ProviderID.String()).
			Str("date", schedule.FormatDate(req.Date)).
			Str("start", schedule.FormatClock(req.StartTime)).
			Str("outcome", outcome).
			Err(err).
			Msg("booking not committed")
		return nil, err
	}

	s.metrics.ObserveTransition(string(appt.Status))
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("booking_ref", appt.BookingRef).
		Str("provider_id", appt.ProviderID.String()).
		Str("date", schedule.FormatDate(appt.Date)).
		Str("slot", appt.Range().String()).
		Msg("booking committed")
	return appt, nil
}

func (s *Service) commitBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.ProviderID == uuid.Nil || req.ServiceID == uuid.Nil || req.PatientID == uuid.Nil || req.Date.IsZero() {
		return nil, ErrMissingField
	}

	status := req.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusConfirmed {
		return nil, ErrInvalidInitialStatus
	}

	date := schedule.DateOf(req.Date)

	duration, err := s.services.DurationMinutes(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service duration: %w", err)
	}
	if err := schedule.ValidateDuration(duration); err != nil {
		return nil, err
	}

	want := schedule.TimeRange{Start: req.StartTime, End: req.StartTime + duration}

	slots, err := s.slotsForDuration(ctx, req.ProviderID, date, duration)
	if err != nil {
		return nil, err
	}
	if !containsSlot(slots, want) {
		return nil, ErrSlotNoLongerAvailable
	}

	appt := &Appointment{
		ProviderID:    req.ProviderID,
		ServiceID:     req.ServiceID,
		PatientID:     req.PatientID,
		Date:          date,
		StartTime:     want.Start,
		EndTime:       want.End,
		Status:        status,
		PaymentStatus: PaymentUnpaid,
	}

	err = store.Retry(ctx, s.cfg.CommitMaxAttempts, func(ctx context.Context) error {
		return s.locker.WithCalendarLock(ctx, appt.ProviderID, date, func(lockCtx context.Context) error {
			appt.ID = uuid.New()
			appt.BookingRef = newBookingRef()

			ev := EventLog{
				EventType: EventAppointmentCreated,
				Payload: eventPayload(map[string]any{
					"booking_ref": appt.BookingRef,
					"patient_id":  appt.PatientID.String(),
					"service_id":  appt.ServiceID.String(),
					"date":        schedule.FormatDate(date),
					"slot":        appt.Range().String(),
					"status":      string(appt.Status),
				}),
			}
			return s.repo.Reserve(lockCtx, appt, ev)
		})
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, ErrSlotNoLongerAvailable
		}
		if errors.Is(err, store.ErrTransactionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	return appt, nil
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrSlotNoLongerAvailable):
		return "conflict"
	case errors.Is(err, store.ErrTransactionFailed):
		return "exhausted"
	case errors.Is(err, schedule.ErrInvalidDuration),
		errors.Is(err, ErrInvalidInitialStatus),
		errors.Is(err, ErrMissingField),
		errors.Is(err, catalog.ErrServiceNotFound):
		return "invalid"
	default:
		return "error"
	}
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, EventAppointmentConfirmed, "")
}

// Complete marks a confirmed appointment as attended. The slot stays occupied.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, EventAppointmentCompleted, "")
}

// Cancel frees the appointment's slot and hands it to the waitlist.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, EventAppointmentCancelled, ReleaseCancelled)
}

// MarkNoShow frees the appointment's slot and hands it to the waitlist.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, EventAppointmentNoShow, ReleaseNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, eventType, releaseReason string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment_id", id.String()),
		attribute.String("to", string(to)),
	)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	from := appt.Status
	var updated *Appointment

	err = store.Retry(ctx, s.cfg.CommitMaxAttempts, func(ctx context.Context) error {
		return s.locker.WithCalendarLock(ctx, appt.ProviderID, appt.Date, func(lockCtx context.Context) error {
			ev := EventLog{
				EventType: eventType,
				Payload: eventPayload(map[string]any{
					"from": string(from),
					"to":   string(to),
				}),
			}
			var err error
			updated, err = s.repo.UpdateAppointmentStatus(lockCtx, id, from, to, ev)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// status moved underneath us
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.metrics.ObserveTransition(string(to))
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("appointment status changed")

	if from.Occupies() && !to.Occupies() && s.releaser != nil {
		if err := s.releaser.Release(ctx, ReleaseOf(updated, releaseReason)); err != nil {
			s.logger.Error().
				Err(err).
				Str("appointment_id", id.String()).
				Msg("failed to hand freed slot to waitlist")
		}
	}

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListProviderDay returns every appointment of the provider on date,
// cancelled and no-show ones included, ordered by start time.
func (s *Service) ListProviderDay(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListByProviderDate(ctx, providerID, schedule.DateOf(date))
}

func newBookingRef() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}
	return "BK-" + strings.ToUpper(hex.EncodeToString(b))
}

func eventPayload(v map[string]any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
