package schedule

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps schedule entries in process. A single mutex stands
// in for the per-(provider, day) transaction.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[uuid.UUID]Entry)}
}

func (r *MemoryRepository) ListByProvider(_ context.Context, providerID uuid.UUID) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(e Entry) bool { return e.ProviderID == providerID }), nil
}

func (r *MemoryRepository) ListByProviderDay(_ context.Context, providerID uuid.UUID, day time.Weekday) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(e Entry) bool { return e.ProviderID == providerID && e.DayOfWeek == day }), nil
}

func (r *MemoryRepository) SaveChecked(_ context.Context, entry *Entry, check func(existing []Entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.filter(func(e Entry) bool {
		return e.ProviderID == entry.ProviderID && e.DayOfWeek == entry.DayOfWeek
	})
	if err := check(existing); err != nil {
		return err
	}

	now := time.Now().UTC()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if prev, ok := r.entries[entry.ID]; ok {
		if prev.ProviderID != entry.ProviderID {
			return ErrEntryNotFound
		}
		entry.CreatedAt = prev.CreatedAt
	} else {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	r.entries[entry.ID] = *entry
	return nil
}

func (r *MemoryRepository) filter(keep func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if a.DayOfWeek != b.DayOfWeek {
			return int(a.DayOfWeek) - int(b.DayOfWeek)
		}
		return a.StartTime - b.StartTime
	})
	return out
}
