// Package app wires the engine's components for the configured backend.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/catalog"
	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/internal/db"
	"github.com/smiledental/booking-engine/internal/metrics"
	"github.com/smiledental/booking-engine/internal/notify"
	redisclient "github.com/smiledental/booking-engine/internal/redis"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/waitlist"
	"github.com/smiledental/booking-engine/pkg/logging"
)

type App struct {
	Config config.Config
	Logger *logging.Logger

	Pool  *pgxpool.Pool // nil with the memory backend
	Redis *redis.Client // nil when no redis is configured

	Metrics   *metrics.Engine
	Catalog   catalog.Lookup
	Schedules *schedule.Service
	Bookings  *appointment.Service
	Waitlist  *waitlist.Service
	Worker    *waitlist.Worker
	Relay     *notify.Relay // nil with the memory backend

	// set only with the memory backend, used for demo data
	memoryCatalog *catalog.MemoryCatalog
}

// Build connects the configured backends and assembles the services.
func Build(ctx context.Context, cfg config.Config, logger *logging.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(reg),
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Redis = rdb
	if rdb == nil {
		logger.Warn().Msg("REDIS_ADDR not set, using in-process calendar locks")
	}

	var (
		scheduleRepo schedule.Repository
		ledger       appointment.Repository
		waitRepo     waitlist.Repository
		queue        waitlist.ReleaseQueue
		dispatcher   notify.Dispatcher
		lookup       catalog.Lookup
	)

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{}, logger)
		cancel()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Pool = pool

		scheduleRepo = schedule.NewPgRepository(pool)
		ledger = appointment.NewPgRepository(pool)
		waitRepo = waitlist.NewPgRepository(pool)
		queue = waitlist.NewPgReleaseQueue(pool)

		outbox := notify.NewOutboxDispatcher(pool)
		dispatcher = outbox
		a.Relay = notify.NewRelay(outbox, notify.NewLogSender(logger), logger)

		lookup = catalog.NewPgCatalog(pool)
		if rdb != nil {
			lookup = catalog.NewCachedCatalog(lookup, rdb, cfg.CatalogCacheTTL, logger)
		}

	case config.BackendMemory:
		scheduleRepo = schedule.NewMemoryRepository()
		ledger = appointment.NewMemoryRepository()
		waitRepo = waitlist.NewMemoryRepository()
		queue = waitlist.NewMemoryReleaseQueue()
		dispatcher = notify.NewLogDispatcher(logger)

		a.memoryCatalog = catalog.NewMemoryCatalog()
		lookup = a.memoryCatalog

	default:
		a.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	a.Catalog = lookup
	a.Schedules = schedule.NewService(scheduleRepo, a.Metrics, logger)

	matcher := waitlist.NewMatcher(waitRepo, ledger, lookup, dispatcher, cfg.ClaimMaxAttempts).
		WithMetrics(a.Metrics).
		WithLogger(logger)
	a.Waitlist = waitlist.NewService(waitRepo, queue, matcher, cfg, a.Metrics, logger)
	a.Worker = waitlist.NewWorker(a.Waitlist, cfg.WorkerInterval, logger)

	a.Bookings = appointment.NewService(ledger, a.Schedules, lookup, redisclient.NewLocker(rdb, cfg), cfg).
		WithReleaser(a.Waitlist).
		WithMetrics(a.Metrics).
		WithLogger(logger)

	return a, nil
}

// Close releases the backend connections.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("error closing redis")
		}
	}
}
