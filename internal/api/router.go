package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/internal/waitlist"
	"github.com/smiledental/booking-engine/pkg/logging"
)

type RouterConfig struct {
	Bookings  *appointment.Service
	Schedules *schedule.Service
	Waitlist  *waitlist.Service

	Postgres Pinger        // nil with the memory backend
	Redis    *redis.Client // nil when no redis is configured
	Metrics  http.Handler  // served on /metrics when set

	Logger  *logging.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger.Component("http")))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Get("/availability", availabilityHandler(cfg.Bookings))
		r.Get("/appointments", providerDayHandler(cfg.Bookings))
		r.Get("/schedule", listScheduleHandler(cfg.Schedules))
		r.Put("/schedule", saveScheduleHandler(cfg.Schedules))
		r.Post("/schedule/validate", validateScheduleHandler(cfg.Schedules))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Bookings))
		r.Get("/", listAppointmentsHandler(cfg.Bookings))
		r.Get("/{id}", getAppointmentHandler(cfg.Bookings))
		r.Post("/{id}/confirm", transitionHandler(cfg.Bookings.Confirm))
		r.Post("/{id}/complete", transitionHandler(cfg.Bookings.Complete))
		r.Post("/{id}/cancel", transitionHandler(cfg.Bookings.Cancel))
		r.Post("/{id}/no-show", transitionHandler(cfg.Bookings.MarkNoShow))
	})

	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", joinWaitlistHandler(cfg.Waitlist))
		r.Post("/releases", releaseHandler(cfg.Waitlist))
		r.Post("/{id}/booked", markBookedHandler(cfg.Waitlist))
	})

	return r
}
