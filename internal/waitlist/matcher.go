package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/catalog"
	"github.com/smiledental/booking-engine/internal/metrics"
	"github.com/smiledental/booking-engine/internal/notify"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/store"
	"github.com/smiledental/booking-engine/pkg/logging"
)

const EventWaitlistNotified = "WAITLIST_NOTIFIED"

// ReleaseOfferExpired marks a release created when an offer lapsed unanswered.
const ReleaseOfferExpired = "offer_expired"

var tracer = otel.Tracer("booking-engine/waitlist")

// Ledger is the part of the appointment ledger the matcher reads and
// writes. appointment.Repository satisfies it.
type Ledger interface {
	ListOccupied(ctx context.Context, providerID uuid.UUID, date time.Time) ([]schedule.TimeRange, error)
	InsertEvent(ctx context.Context, ev appointment.EventLog) error
}

// Matcher promotes the oldest fitting waitlist entry when a slot frees up.
type Matcher struct {
	repo        Repository
	ledger      Ledger
	services    catalog.Lookup
	dispatcher  notify.Dispatcher
	maxAttempts int
	metrics     *metrics.Engine
	logger      *logging.Logger
}

func NewMatcher(repo Repository, ledger Ledger, services catalog.Lookup, dispatcher notify.Dispatcher, maxAttempts int) *Matcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Matcher{
		repo:        repo,
		ledger:      ledger,
		services:    services,
		dispatcher:  dispatcher,
		maxAttempts: maxAttempts,
		logger:      logging.Default().Component("waitlist"),
	}
}

func (m *Matcher) WithMetrics(e *metrics.Engine) *Matcher {
	m.metrics = e
	return m
}

func (m *Matcher) WithLogger(l *logging.Logger) *Matcher {
	if l != nil {
		m.logger = l.Component("waitlist")
	}
	return m
}

// OnSlotFreed notifies at most one waiting patient for rel. It returns nil,
// nil when no pending entry fits the freed time.
func (m *Matcher) OnSlotFreed(ctx context.Context, rel appointment.SlotRelease) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitlist.on_slot_freed")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", rel.ProviderID.String()),
		attribute.String("service_id", rel.ServiceID.String()),
		attribute.String("date", schedule.FormatDate(rel.Date)),
		attribute.String("range", rel.Range.String()),
	)

	date := schedule.DateOf(rel.Date)

	duration, err := m.services.DurationMinutes(ctx, rel.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service duration: %w", err)
	}

	candidates, err := m.repo.ListCandidates(ctx, rel.ProviderID, rel.ServiceID, date, rel.Range)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(candidates) == 0 {
		m.metrics.ObserveWaitlistClaim("no_candidates")
		return nil, nil
	}

	occupied, err := m.ledger.ListOccupied(ctx, rel.ProviderID, date)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load occupied intervals: %w", err)
	}

	// transient remembers a candidate skipped after its claim retries ran
	// out; the release is reported as failed only if nobody else won.
	var transient error
	for _, c := range candidates {
		want := c.Range(duration)
		if want.End > rel.Range.End {
			continue
		}
		if len(appointment.ResolveAvailableSlots([]schedule.TimeRange{want}, occupied)) == 0 {
			continue
		}

		var claimed *Entry
		err := store.Retry(ctx, m.maxAttempts, func(ctx context.Context) error {
			var err error
			claimed, err = m.repo.Claim(ctx, c, rel.Range)
			return err
		})

		switch {
		case err == nil:
			m.metrics.ObserveWaitlistClaim("claimed")
			m.announce(ctx, claimed, want, rel)
			return claimed, nil
		case errors.Is(err, ErrClaimLost):
			m.metrics.ObserveWaitlistClaim("lost")
			continue
		case errors.Is(err, ErrOfferOutstanding):
			// an open offer covers this freed range, nobody else may be told
			m.metrics.ObserveWaitlistClaim("outstanding")
			return nil, nil
		case errors.Is(err, store.ErrTransactionFailed):
			m.metrics.ObserveWaitlistClaim("exhausted")
			m.logger.Warn().Err(err).Str("waitlist_entry_id", c.ID.String()).Msg("claim retries exhausted, trying next candidate")
			transient = err
			continue
		default:
			m.metrics.ObserveWaitlistClaim("error")
			span.RecordError(err)
			return nil, fmt.Errorf("claim waitlist entry %s: %w", c.ID, err)
		}
	}

	if transient != nil {
		span.RecordError(transient)
		return nil, fmt.Errorf("match release %s: %w", rel.Range, transient)
	}

	m.metrics.ObserveWaitlistClaim("no_fit")
	return nil, nil
}

// releaseForOffer describes the time an expired offer was holding so it can
// be offered to the next patient.
func (m *Matcher) releaseForOffer(ctx context.Context, e Entry) (appointment.SlotRelease, error) {
	duration, err := m.services.DurationMinutes(ctx, e.ServiceID)
	if err != nil {
		return appointment.SlotRelease{}, fmt.Errorf("load service duration: %w", err)
	}
	return appointment.SlotRelease{
		ProviderID: e.ProviderID,
		ServiceID:  e.ServiceID,
		Date:       e.Date,
		Range:      e.Range(duration),
		Reason:     ReleaseOfferExpired,
	}, nil
}

// announce records and dispatches the offer. Failures are logged only; the
// claim itself has already committed.
func (m *Matcher) announce(ctx context.Context, e *Entry, slot schedule.TimeRange, rel appointment.SlotRelease) {
	payload := map[string]any{
		"waitlist_entry_id": e.ID.String(),
		"provider_id":       e.ProviderID.String(),
		"service_id":        e.ServiceID.String(),
		"date":              schedule.FormatDate(e.Date),
		"start":             schedule.FormatClock(slot.Start),
		"end":               schedule.FormatClock(slot.End),
		"reason":            rel.Reason,
	}

	ev := appointment.EventLog{
		EventType:     EventWaitlistNotified,
		AppointmentID: rel.AppointmentID,
		Payload:       mustJSON(payload),
	}
	if err := m.ledger.InsertEvent(ctx, ev); err != nil {
		m.logger.Error().Err(err).Str("waitlist_entry_id", e.ID.String()).Msg("failed to record waitlist event")
	}

	n := notify.Notification{
		Kind:        notify.KindWaitlistSlotOpened,
		RecipientID: e.PatientID,
		Payload:     payload,
	}
	if err := m.dispatcher.Dispatch(ctx, n); err != nil {
		m.logger.Error().Err(err).Str("waitlist_entry_id", e.ID.String()).Msg("failed to dispatch waitlist notification")
		return
	}

	m.logger.Info().
		Str("waitlist_entry_id", e.ID.String()).
		Str("provider_id", e.ProviderID.String()).
		Str("date", schedule.FormatDate(e.Date)).
		Str("slot", slot.String()).
		Msg("waitlist patient notified")
}
