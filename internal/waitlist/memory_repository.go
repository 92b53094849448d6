package waitlist

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smiledental/booking-engine/internal/appointment"
	"github.com/smiledental/booking-engine/internal/schedule"
)

type memoryEntry struct {
	Entry
	seq int64
}

// MemoryRepository keeps entries in process. The mutex stands in for the
// claim transaction and its per-day lock.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*memoryEntry
	seq     int64
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[uuid.UUID]*memoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.entries {
		if other.PatientID == e.PatientID && sameTuple(other.Entry, *e) &&
			(other.Status == StatusPending || other.Status == StatusNotified) {
			return ErrDuplicateEntry
		}
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	e.Status = StatusPending
	e.NotifiedAt = nil

	r.seq++
	r.entries[e.ID] = &memoryEntry{Entry: *e, seq: r.seq}
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	e := m.Entry
	return &e, nil
}

func (r *MemoryRepository) ListCandidates(_ context.Context, providerID, serviceID uuid.UUID, date time.Time, window schedule.TimeRange) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*memoryEntry
	for _, m := range r.entries {
		if m.Status != StatusPending || m.ProviderID != providerID || m.ServiceID != serviceID || !m.Date.Equal(date) {
			continue
		}
		if m.RequestedTime < window.Start || m.RequestedTime >= window.End {
			continue
		}
		matched = append(matched, m)
	}

	slices.SortFunc(matched, func(a, b *memoryEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.seq - b.seq)
	})

	out := make([]Entry, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.Entry)
	}
	return out, nil
}

func (r *MemoryRepository) Claim(_ context.Context, e Entry, freed schedule.TimeRange) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.entries {
		if other.Status == StatusNotified && sameDay(other.Entry, e) &&
			other.RequestedTime >= freed.Start && other.RequestedTime < freed.End {
			return nil, ErrOfferOutstanding
		}
	}

	m, ok := r.entries[e.ID]
	if !ok || m.Status != StatusPending {
		return nil, ErrClaimLost
	}

	now := r.now()
	m.Status = StatusNotified
	m.NotifiedAt = &now

	claimed := m.Entry
	return &claimed, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.entries[id]
	if !ok || m.Status != from {
		return nil, ErrEntryNotFound
	}
	m.Status = to
	e := m.Entry
	return &e, nil
}

func (r *MemoryRepository) ExpireStale(_ context.Context, offerCutoff, today time.Time) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []Entry
	for _, m := range r.entries {
		stale := m.Status == StatusNotified && m.NotifiedAt != nil && m.NotifiedAt.Before(offerCutoff)
		past := (m.Status == StatusPending || m.Status == StatusNotified) && m.Date.Before(today)
		if stale || past {
			m.Status = StatusExpired
			expired = append(expired, m.Entry)
		}
	}
	return expired, nil
}

func sameDay(a, b Entry) bool {
	return a.ProviderID == b.ProviderID &&
		a.ServiceID == b.ServiceID &&
		a.Date.Equal(b.Date)
}

func sameTuple(a, b Entry) bool {
	return sameDay(a, b) && a.RequestedTime == b.RequestedTime
}

// MemoryReleaseQueue is an in-process ReleaseQueue.
type MemoryReleaseQueue struct {
	mu     sync.Mutex
	nextID int64
	items  []QueuedRelease
}

func NewMemoryReleaseQueue() *MemoryReleaseQueue {
	return &MemoryReleaseQueue{}
}

func (q *MemoryReleaseQueue) Enqueue(_ context.Context, rel appointment.SlotRelease, notBefore time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	q.items = append(q.items, QueuedRelease{ID: q.nextID, Release: rel, NotBefore: notBefore})
	return nil
}

func (q *MemoryReleaseQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]QueuedRelease, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	slices.SortStableFunc(q.items, func(a, b QueuedRelease) int {
		return a.NotBefore.Compare(b.NotBefore)
	})

	var due, rest []QueuedRelease
	for _, item := range q.items {
		if !item.NotBefore.After(now) && (limit <= 0 || len(due) < limit) {
			due = append(due, item)
			continue
		}
		rest = append(rest, item)
	}
	q.items = rest
	return due, nil
}

// Len reports how many releases are still queued.
func (q *MemoryReleaseQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
