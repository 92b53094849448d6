package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/smiledental/booking-engine/internal/db"
	"github.com/smiledental/booking-engine/pkg/logging"
)

var specialties = []string{
	"General Dentistry",
	"Orthodontics",
	"Periodontics",
	"Endodontics",
	"Pediatric Dentistry",
	"Oral Surgery",
	"Prosthodontics",
}

var services = []struct {
	name     string
	duration int
}{
	{"Check-up", 30},
	{"Cleaning", 60},
	{"Filling", 60},
	{"Whitening", 90},
	{"Root Canal", 120},
}

func main() {
	_ = godotenv.Load()
	logger := logging.NewConsole(os.Getenv("LOG_LEVEL")).Component("seed")
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedServices(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed services")
	}
	if err := seedProviders(ctx, pool, faker, 20, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedPatients(ctx, pool, faker, 2000, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, logger *logging.Logger) error {
	batch := &pgx.Batch{}
	for _, s := range services {
		batch.Queue(`
			INSERT INTO services (id, name, duration_minutes)
			VALUES ($1, $2, $3)
		`, uuid.New(), s.name, s.duration)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	logger.Info().Int("count", len(services)).Msg("services seeded")
	return nil
}

// seedProviders gives every provider a Monday to Friday week with a lunch
// break, plus a short Saturday morning for some of them.
func seedProviders(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger *logging.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + faker.LastName()
		specialty := specialties[faker.Number(0, len(specialties)-1)]

		if _, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty)
			VALUES ($1, $2, $3)
		`, id, name, specialty); err != nil {
			return err
		}

		startHour := faker.Number(7, 9)
		for day := time.Monday; day <= time.Friday; day++ {
			start := startHour * 60
			end := start + 8*60
			breakStart := start + 4*60
			breakEnd := breakStart + 60
			if err := insertEntry(ctx, tx, id, day, start, end, &breakStart, &breakEnd); err != nil {
				return err
			}
		}
		if faker.Bool() {
			if err := insertEntry(ctx, tx, id, time.Saturday, 9*60, 12*60, nil, nil); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	logger.Info().Int("count", count).Msg("providers seeded")
	return nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, provider uuid.UUID, day time.Weekday, start, end int, breakStart, breakEnd *int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_entries (id, provider_id, day_of_week, start_minute, end_minute, break_start, break_end, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
	`, uuid.New(), provider, int(day), start, end, breakStart, breakEnd)
	if err != nil {
		return err
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger *logging.Logger) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			batch.Queue(`
				INSERT INTO patients (id, name, email)
				VALUES ($1, $2, $3)
			`, uuid.New(), faker.Name(), faker.Email())
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		logger.Info().Int("seeded", end).Int("total", count).Msg("patients progress")
	}
	return nil
}

