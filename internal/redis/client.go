package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smiledental/booking-engine/internal/config"
)

// NewRedisClient connects to the configured Redis. It returns nil, nil when
// no address is set so callers can fall back to in-process locking.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	return rdb, nil
}

// NewLocker picks the Redis calendar lock when a client is available and the
// in-process lock otherwise.
func NewLocker(client *redis.Client, cfg config.Config) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisCalendarLocker(client, cfg.LockTTL, cfg.LockWait)
}
