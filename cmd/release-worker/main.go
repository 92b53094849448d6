package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smiledental/booking-engine/internal/app"
	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel)
	if cfg.IsDev() {
		logger = logging.NewConsole(cfg.LogLevel)
	}
	logger = logger.Component("release-worker")

	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal().Str("store_backend", cfg.StoreBackend).Msg("release-worker needs the postgres backend")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("grace_period", cfg.WaitlistGracePeriod).
		Dur("offer_ttl", cfg.WaitlistOfferTTL).
		Msg("release-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(rootCtx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if a.Relay != nil {
		go a.Relay.WithInterval(cfg.WorkerInterval).Start(rootCtx)
	}

	a.Worker.Start(rootCtx)
}
