package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smiledental/booking-engine/internal/api"
	"github.com/smiledental/booking-engine/internal/app"
	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/pkg/logging"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel)
	if cfg.IsDev() {
		logger = logging.NewConsole(cfg.LogLevel)
	}
	logger = logger.Component("api-server")

	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Dur("waitlist_grace_period", cfg.WaitlistGracePeriod).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(rootCtx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if cfg.StoreBackend == config.BackendMemory {
		if _, err := a.SeedDemo(rootCtx, 3); err != nil {
			logger.Fatal().Err(err).Msg("seed demo data")
		}
		// the release worker cannot see this process's memory
		go a.Worker.Start(rootCtx)
	}

	routerCfg := api.RouterConfig{
		Bookings:  a.Bookings,
		Schedules: a.Schedules,
		Waitlist:  a.Waitlist,
		Redis:     a.Redis,
		Metrics:   promhttp.Handler(),
		Logger:    logger,
		Env:       cfg.Env,
		Version:   version,
	}
	if a.Pool != nil {
		routerCfg.Postgres = a.Pool
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
