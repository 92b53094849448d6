package waitlist

import (
	"context"
	"time"

	"github.com/smiledental/booking-engine/pkg/logging"
)

const defaultReleaseBatch = 50

// Worker periodically drains deferred releases and expires stale entries.
type Worker struct {
	svc      *Service
	interval time.Duration
	batch    int
	logger   *logging.Logger
}

func NewWorker(svc *Service, interval time.Duration, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Worker{
		svc:      svc,
		interval: interval,
		batch:    defaultReleaseBatch,
		logger:   logger.Component("release-worker"),
	}
}

func (w *Worker) WithBatchSize(n int) *Worker {
	if n > 0 {
		w.batch = n
	}
	return w
}

// Start runs once immediately and then on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("shutdown signal received, stopping release worker")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	processed, err := w.svc.ProcessDueReleases(runCtx, w.batch)
	if err != nil {
		w.logger.Error().Err(err).Msg("release run error")
	}

	expired, err := w.svc.ExpireStale(runCtx)
	if err != nil {
		w.logger.Error().Err(err).Msg("expiry run error")
	}

	w.logger.Debug().
		Int("releases_processed", processed).
		Int64("entries_expired", expired).
		Dur("elapsed", time.Since(start)).
		Msg("release run complete")
}
