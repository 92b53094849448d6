package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine exposes counters/histograms for the scheduling engine.
type Engine struct {
	availabilityTotal  *prometheus.CounterVec
	bookingTotal       *prometheus.CounterVec
	bookingLatency     prometheus.Histogram
	scheduleChecks     *prometheus.CounterVec
	waitlistClaims     *prometheus.CounterVec
	slotReleases       *prometheus.CounterVec
	appointmentChanges *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Engine {
	m := &Engine{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Availability lookups by result",
		}, []string{"result"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "coordinator",
			Name:      "commits_total",
			Help:      "Booking commit attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "coordinator",
			Name:      "commit_latency_seconds",
			Help:      "Latency of the booking commit path",
			Buckets:   prometheus.DefBuckets,
		}),
		scheduleChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "schedule",
			Name:      "validations_total",
			Help:      "Schedule entry validations by result",
		}, []string{"result"}),
		waitlistClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "waitlist",
			Name:      "claims_total",
			Help:      "Waitlist claim attempts by outcome",
		}, []string{"outcome"}),
		slotReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "waitlist",
			Name:      "slot_releases_total",
			Help:      "Freed slots handed to the waitlist by mode",
		}, []string{"mode"}),
		appointmentChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "ledger",
			Name:      "status_transitions_total",
			Help:      "Appointment status transitions by target status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.availabilityTotal,
		m.bookingTotal,
		m.bookingLatency,
		m.scheduleChecks,
		m.waitlistClaims,
		m.slotReleases,
		m.appointmentChanges,
	)
	return m
}

func (m *Engine) ObserveAvailability(result string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(result).Inc()
}

func (m *Engine) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *Engine) ObserveScheduleCheck(result string) {
	if m == nil {
		return
	}
	m.scheduleChecks.WithLabelValues(result).Inc()
}

func (m *Engine) ObserveWaitlistClaim(outcome string) {
	if m == nil {
		return
	}
	m.waitlistClaims.WithLabelValues(outcome).Inc()
}

func (m *Engine) ObserveRelease(mode string) {
	if m == nil {
		return
	}
	m.slotReleases.WithLabelValues(mode).Inc()
}

func (m *Engine) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.appointmentChanges.WithLabelValues(status).Inc()
}
