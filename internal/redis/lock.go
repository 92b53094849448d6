package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smiledental/booking-engine/internal/store"
)

// ErrLockNotAcquired is transient: the booking path retries it like a
// serialization failure.
var ErrLockNotAcquired = fmt.Errorf("calendar lock not acquired: %w", store.ErrTransient)

const lockPollInterval = 25 * time.Millisecond

// Locker guards critical sections per provider calendar day.
type Locker interface {
	WithCalendarLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

func calendarKey(providerID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:calendar:%s:%s", providerID, date.Format("2006-01-02"))
}

type redisCalendarLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisCalendarLocker creates a locker that uses a per (provider, date)
// Redis key. Callers wait up to wait for a busy key before giving up.
func NewRedisCalendarLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisCalendarLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *redisCalendarLocker) WithCalendarLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := calendarKey(providerID, date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release must run even when ctx is already cancelled
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisCalendarLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire calendar lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisCalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}

type localCalendarLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker serializes calendar days inside one process. It is used
// when no Redis address is configured.
func NewLocalLocker() Locker {
	return &localCalendarLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localCalendarLocker) WithCalendarLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := calendarKey(providerID, date)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
