package app

import (
	"context"
	"errors"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/schedule"
)

// ErrDemoUnsupported is returned by SeedDemo outside the memory backend;
// use cmd/seed for Postgres.
var ErrDemoUnsupported = errors.New("demo data is only seeded into the memory backend")

type DemoService struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
}

type DemoData struct {
	Providers []uuid.UUID
	Services  []DemoService
}

var demoServices = []struct {
	name     string
	duration int
}{
	{"Check-up", 30},
	{"Cleaning", 60},
	{"Filling", 60},
	{"Root canal", 90},
}

// SeedDemo registers a few services and providers with a Monday to Friday
// 09:00-17:00 schedule and a 12:00-13:00 lunch break.
func (a *App) SeedDemo(ctx context.Context, providers int) (*DemoData, error) {
	if a.memoryCatalog == nil {
		return nil, ErrDemoUnsupported
	}

	data := &DemoData{}
	for _, s := range demoServices {
		id := uuid.New()
		a.memoryCatalog.Set(id, s.duration)
		data.Services = append(data.Services, DemoService{ID: id, Name: s.name, DurationMinutes: s.duration})
	}

	for i := 0; i < providers; i++ {
		providerID := uuid.New()
		for day := time.Monday; day <= time.Friday; day++ {
			brkStart, brkEnd := 12*60, 13*60
			entry := &schedule.Entry{
				ProviderID:  providerID,
				DayOfWeek:   day,
				StartTime:   9 * 60,
				EndTime:     17 * 60,
				BreakStart:  &brkStart,
				BreakEnd:    &brkEnd,
				IsAvailable: true,
			}
			if err := a.Schedules.SaveEntry(ctx, entry); err != nil {
				return nil, err
			}
		}
		data.Providers = append(data.Providers, providerID)

		a.Logger.Info().
			Str("provider_id", providerID.String()).
			Str("name", "Dr. "+gofakeit.LastName()).
			Msg("demo provider ready")
	}

	for _, s := range data.Services {
		a.Logger.Info().
			Str("service_id", s.ID.String()).
			Str("name", s.Name).
			Int("duration_minutes", s.DurationMinutes).
			Msg("demo service ready")
	}
	return data, nil
}
