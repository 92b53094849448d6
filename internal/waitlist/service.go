package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/internal/metrics"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/pkg/logging"
)

var (
	ErrMissingField         = errors.New("provider, service, patient and date are required")
	ErrInvalidRequestedTime = errors.New("requested time must be on the 30 minute grid")
)

type JoinRequest struct {
	ProviderID    uuid.UUID
	ServiceID     uuid.UUID
	PatientID     uuid.UUID
	Date          time.Time
	RequestedTime int
}

// Service is the entry point for waitlist operations. It implements
// appointment.Releaser.
type Service struct {
	repo    Repository
	queue   ReleaseQueue
	matcher *Matcher
	grace   time.Duration
	offer   time.Duration
	now     func() time.Time
	metrics *metrics.Engine
	logger  *logging.Logger
}

func NewService(repo Repository, queue ReleaseQueue, matcher *Matcher, cfg config.Config, m *metrics.Engine, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		queue:   queue,
		matcher: matcher,
		grace:   cfg.WaitlistGracePeriod,
		offer:   cfg.WaitlistOfferTTL,
		now:     func() time.Time { return time.Now().UTC() },
		metrics: m,
		logger:  logger.Component("waitlist"),
	}
}

// Join puts a patient on the waitlist for one time of one provider and
// service.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*Entry, error) {
	if req.ProviderID == uuid.Nil || req.ServiceID == uuid.Nil || req.PatientID == uuid.Nil || req.Date.IsZero() {
		return nil, ErrMissingField
	}
	if req.RequestedTime < 0 || req.RequestedTime >= schedule.MinutesPerDay || req.RequestedTime%schedule.SlotGranularity != 0 {
		return nil, ErrInvalidRequestedTime
	}

	e := &Entry{
		ProviderID:    req.ProviderID,
		ServiceID:     req.ServiceID,
		PatientID:     req.PatientID,
		Date:          schedule.DateOf(req.Date),
		RequestedTime: req.RequestedTime,
		Status:        StatusPending,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return nil, err
		}
		return nil, fmt.Errorf("create waitlist entry: %w", err)
	}

	s.logger.Info().
		Str("waitlist_entry_id", e.ID.String()).
		Str("provider_id", e.ProviderID.String()).
		Str("date", schedule.FormatDate(e.Date)).
		Str("requested_time", schedule.FormatClock(e.RequestedTime)).
		Msg("patient joined waitlist")
	return e, nil
}

// Release hands a freed slot to the matcher, right away when no grace
// period is configured and through the release queue otherwise. An inline
// match that fails is queued for the worker to retry.
func (s *Service) Release(ctx context.Context, rel appointment.SlotRelease) error {
	if s.grace <= 0 || s.queue == nil {
		s.metrics.ObserveRelease("inline")
		_, err := s.matcher.OnSlotFreed(ctx, rel)
		if err == nil || s.queue == nil {
			return err
		}
		s.logger.Warn().Err(err).
			Str("provider_id", rel.ProviderID.String()).
			Str("range", rel.Range.String()).
			Msg("inline waitlist matching failed, queueing release")
		if qerr := s.queue.Enqueue(ctx, rel, s.now()); qerr != nil {
			return fmt.Errorf("queue release after %v: %w", err, qerr)
		}
		s.metrics.ObserveRelease("requeued")
		return nil
	}

	notBefore := s.now().Add(s.grace)
	if err := s.queue.Enqueue(ctx, rel, notBefore); err != nil {
		return err
	}
	s.metrics.ObserveRelease("deferred")
	s.logger.Debug().
		Str("provider_id", rel.ProviderID.String()).
		Str("range", rel.Range.String()).
		Time("not_before", notBefore).
		Msg("slot release deferred")
	return nil
}

// NotifyWaitlistOnFree runs the matcher for rel immediately and returns the
// notified entry, or nil when nobody fits.
func (s *Service) NotifyWaitlistOnFree(ctx context.Context, rel appointment.SlotRelease) (*Entry, error) {
	if rel.ProviderID == uuid.Nil || rel.ServiceID == uuid.Nil || rel.Date.IsZero() {
		return nil, ErrMissingField
	}
	if rel.Range.Start < 0 || rel.Range.End > schedule.MinutesPerDay || rel.Range.Start >= rel.Range.End {
		return nil, schedule.ErrInvalidWindow
	}
	if rel.Reason == "" {
		rel.Reason = appointment.ReleaseManual
	}
	s.metrics.ObserveRelease("manual")
	return s.matcher.OnSlotFreed(ctx, rel)
}

// MarkBooked closes a notified entry once the patient has taken the offer.
func (s *Service) MarkBooked(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.UpdateStatus(ctx, id, StatusNotified, StatusBooked)
}

// ProcessDueReleases drains releases whose grace period has ended. A release
// whose matching fails is queued again one grace period later.
func (s *Service) ProcessDueReleases(ctx context.Context, limit int) (int, error) {
	if s.queue == nil {
		return 0, nil
	}

	due, err := s.queue.ClaimDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, qr := range due {
		if _, err := s.matcher.OnSlotFreed(ctx, qr.Release); err != nil {
			s.logger.Error().Err(err).Int64("release_id", qr.ID).Msg("waitlist matching failed, requeueing")
			if err := s.queue.Enqueue(ctx, qr.Release, s.now().Add(s.grace)); err != nil {
				s.logger.Error().Err(err).Int64("release_id", qr.ID).Msg("failed to requeue slot release")
			}
			continue
		}
		processed++
	}
	return processed, nil
}

// ExpireStale ends offers nobody acted on and entries for past dates. The
// time held by each lapsed offer is released again for the next patient.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	now := s.now()
	today := schedule.DateOf(now)
	var cutoff time.Time
	if s.offer > 0 {
		cutoff = now.Add(-s.offer)
	}

	expired, err := s.repo.ExpireStale(ctx, cutoff, today)
	if err != nil {
		return 0, err
	}

	for _, e := range expired {
		if e.Date.Before(today) {
			continue
		}
		rel, err := s.matcher.releaseForOffer(ctx, e)
		if err == nil {
			err = s.Release(ctx, rel)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("waitlist_entry_id", e.ID.String()).Msg("failed to release lapsed offer")
		}
	}
	return int64(len(expired)), nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
