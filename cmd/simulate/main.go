package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smiledental/booking-engine/internal/config"
	"github.com/smiledental/booking-engine/internal/db"
	"github.com/smiledental/booking-engine/internal/schedule"
	"github.com/smiledental/booking-engine/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	PatientLimit int
	DaysAhead    int
	PostgresDSN  string
}

type service struct {
	ID       uuid.UUID
	Duration int
}

type DataPool struct {
	Patients  []uuid.UUID
	Providers []uuid.UUID
	Services  []service

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, maxLatency time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		return latencies[min(len(latencies)*p/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), pct(50), pct(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Availability  OperationMetrics
	Booking       OperationMetrics
	Cancel        OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *logging.Logger
	metrics Metrics
}

func main() {
	logger := logging.NewConsole(os.Getenv("LOG_LEVEL")).Component("simulate")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("providers", len(dataPool.Providers)).
		Int("services", len(dataPool.Services)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 2000),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 5),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.PostgresDSN == "":
		return cfg, fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	case cfg.Workers <= 0:
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	case cfg.DaysAhead <= 0:
		return cfg, fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	var err error
	if dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dp.Providers, err = loadIDs(ctx, pool, `SELECT id FROM providers LIMIT $1`, 1000); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT id, duration_minutes FROM services`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s service
		if err := rows.Scan(&s.ID, &s.Duration); err != nil {
			return nil, err
		}
		dp.Services = append(dp.Services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(dp.Patients) == 0:
		return nil, fmt.Errorf("no patients loaded")
	case len(dp.Providers) == 0:
		return nil, fmt.Errorf("no providers loaded")
	case len(dp.Services) == 0:
		return nil, fmt.Errorf("no services loaded")
	}
	return dp, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doListByPatient(ctx, rng)
		}
	}
}

// doBooking reads availability for a random provider, service and day, then
// books the first offered slot. Many workers chase the same early slots, so
// conflicts are expected and count separately from errors.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	svc := s.pool.Services[rng.Intn(len(s.pool.Services))]
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := schedule.FormatDate(time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)))

	start := time.Now()
	url := fmt.Sprintf("%s/providers/%s/availability?service_id=%s&date=%s", s.config.APIBaseURL, provider, svc.ID, date)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.Availability.Record(time.Since(start), false, false)
		return
	}

	var avail struct {
		Slots []struct {
			Start string `json:"start"`
		} `json:"slots"`
	}
	ok := resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&avail) == nil
	_ = resp.Body.Close()
	s.metrics.Availability.Record(time.Since(start), ok, false)
	if !ok || len(avail.Slots) == 0 {
		return
	}

	body, _ := json.Marshal(map[string]string{
		"provider_id": provider.String(),
		"service_id":  svc.ID.String(),
		"patient_id":  patient.String(),
		"date":        date,
		"start_time":  avail.Slots[rng.Intn(min(3, len(avail.Slots)))].Start,
	})

	start = time.Now()
	req, _ = http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.NewDecoder(resp.Body).Decode(&appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(appt.ID)
		}
		s.metrics.Booking.Record(latency, true, false)
	case http.StatusConflict:
		s.metrics.Booking.Record(latency, false, true)
	default:
		s.metrics.Booking.Record(latency, false, false)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.post(ctx, &s.metrics.Cancel, fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, apptID))
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments?patient_id=%s&limit=20&offset=0", s.config.APIBaseURL, patientID), nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		_ = resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ListByPatient.Record(latency, success, false)
}

func (s *Simulator) post(ctx context.Context, om *OperationMetrics, url string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		_ = resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	om.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, maxLatency := om.Stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), maxLatency.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}
