package hotelsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LocationCache remembers city to destination id lookups.
type LocationCache interface {
	Get(ctx context.Context, city string) (string, bool, error)
	Set(ctx context.Context, city, destinationID string) error
}

// DefaultLocationTTL bounds how long a resolved city is reused.
const DefaultLocationTTL = 24 * time.Hour

// RedisLocationCache stores lookups as plain string keys with a TTL.
type RedisLocationCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisLocationCache wraps a go-redis client. Zero ttl uses DefaultLocationTTL.
func NewRedisLocationCache(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisLocationCache {
	if prefix == "" {
		prefix = "hotelbot:location:"
	}
	if ttl <= 0 {
		ttl = DefaultLocationTTL
	}
	return &RedisLocationCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisLocationCache) key(city string) string {
	return c.prefix + strings.ToLower(strings.Join(strings.Fields(city), " "))
}

// Get returns ok=false on a miss.
func (c *RedisLocationCache) Get(ctx context.Context, city string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.key(city)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("location cache get: %w", err)
	}
	return v, true, nil
}

func (c *RedisLocationCache) Set(ctx context.Context, city, destinationID string) error {
	if err := c.rdb.Set(ctx, c.key(city), destinationID, c.ttl).Err(); err != nil {
		return fmt.Errorf("location cache set: %w", err)
	}
	return nil
}
