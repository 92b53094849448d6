package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrServiceNotFound = errors.New("service not found")

// Lookup resolves the configured duration of a clinic service.
type Lookup interface {
	DurationMinutes(ctx context.Context, serviceID uuid.UUID) (int, error)
}

// MemoryCatalog is an in-process Lookup.
type MemoryCatalog struct {
	mu        sync.RWMutex
	durations map[uuid.UUID]int
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{durations: make(map[uuid.UUID]int)}
}

// Set registers or changes the duration of a service.
func (c *MemoryCatalog) Set(serviceID uuid.UUID, minutes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations[serviceID] = minutes
}

func (c *MemoryCatalog) DurationMinutes(_ context.Context, serviceID uuid.UUID) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.durations[serviceID]
	if !ok {
		return 0, ErrServiceNotFound
	}
	return d, nil
}
