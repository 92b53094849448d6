package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smiledental/booking-engine/internal/metrics"
	"github.com/smiledental/booking-engine/pkg/logging"
)

var tracer = otel.Tracer("booking-engine/schedule")

type Service struct {
	repo    Repository
	metrics *metrics.Engine
	logger  *logging.Logger
}

func NewService(repo Repository, m *metrics.Engine, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger.Component("schedule"),
	}
}

// ValidateScheduleEntry checks candidate on its own and against the stored
// entries of the provider without persisting anything.
func (s *Service) ValidateScheduleEntry(ctx context.Context, providerID uuid.UUID, candidate Entry) error {
	ctx, span := tracer.Start(ctx, "schedule.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", providerID.String()),
		attribute.Int("day_of_week", int(candidate.DayOfWeek)),
	)

	candidate.ProviderID = providerID
	if err := ValidateEntry(candidate); err != nil {
		s.metrics.ObserveScheduleCheck("invalid")
		return err
	}

	existing, err := s.repo.ListByProviderDay(ctx, providerID, candidate.DayOfWeek)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load schedule entries: %w", err)
	}

	if err := CheckConflict(candidate, existing); err != nil {
		s.metrics.ObserveScheduleCheck("conflict")
		return err
	}

	s.metrics.ObserveScheduleCheck("ok")
	return nil
}

// SaveEntry validates entry and persists it when it does not conflict with the
// provider's other entries for the same day.
func (s *Service) SaveEntry(ctx context.Context, entry *Entry) error {
	ctx, span := tracer.Start(ctx, "schedule.save")
	defer span.End()
	span.SetAttributes(attribute.String("provider_id", entry.ProviderID.String()))

	if err := ValidateEntry(*entry); err != nil {
		s.metrics.ObserveScheduleCheck("invalid")
		return err
	}

	err := s.repo.SaveChecked(ctx, entry, func(existing []Entry) error {
		return CheckConflict(*entry, existing)
	})
	if err != nil {
		if errors.Is(err, ErrScheduleConflict) {
			s.metrics.ObserveScheduleCheck("conflict")
			s.logger.Info().
				Str("provider_id", entry.ProviderID.String()).
				Int("day_of_week", int(entry.DayOfWeek)).
				Err(err).
				Msg("schedule edit rejected")
			return err
		}
		span.RecordError(err)
		return fmt.Errorf("save schedule entry: %w", err)
	}

	s.metrics.ObserveScheduleCheck("ok")
	s.logger.Info().
		Str("entry_id", entry.ID.String()).
		Str("provider_id", entry.ProviderID.String()).
		Int("day_of_week", int(entry.DayOfWeek)).
		Str("window", entry.Window().String()).
		Msg("schedule entry saved")
	return nil
}

// EntriesForDate returns the provider's entries that apply to the weekday of date.
func (s *Service) EntriesForDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Entry, error) {
	entries, err := s.repo.ListByProviderDay(ctx, providerID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load schedule entries: %w", err)
	}
	return entries, nil
}

// ListEntries returns every weekly entry of a provider.
func (s *Service) ListEntries(ctx context.Context, providerID uuid.UUID) ([]Entry, error) {
	entries, err := s.repo.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}
