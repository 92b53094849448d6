package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smiledental/booking-engine/pkg/logging"
)

// CachedCatalog keeps durations in redis in front of another Lookup.
// Redis failures fall through to the wrapped lookup.
type CachedCatalog struct {
	next   Lookup
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedCatalog(next Lookup, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedCatalog {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedCatalog{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.Component("catalog"),
	}
}

func cacheKey(serviceID uuid.UUID) string {
	return fmt.Sprintf("catalog:duration:%s", serviceID)
}

func (c *CachedCatalog) DurationMinutes(ctx context.Context, serviceID uuid.UUID) (int, error) {
	key := cacheKey(serviceID)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if minutes, convErr := strconv.Atoi(raw); convErr == nil {
			return minutes, nil
		}
		c.logger.Warn().Str("key", key).Str("value", raw).Msg("discarding malformed cached duration")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	minutes, err := c.next.DurationMinutes(ctx, serviceID)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, key, minutes, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return minutes, nil
}
