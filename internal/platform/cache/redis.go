package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// RedisJSON stores JSON-encoded values under a key prefix with a fixed expiry.
type RedisJSON[V any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisJSON builds a JSON cache over client.
func NewRedisJSON[V any](client redis.Cmdable, prefix string, ttl time.Duration) *RedisJSON[V] {
	return &RedisJSON[V]{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisJSON[V]) key(k string) string {
	return c.prefix + ":" + k
}

// Get returns the cached value. A miss is (zero, false, nil).
func (c *RedisJSON[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if c == nil || c.client == nil {
		return zero, false, nil
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	var out V
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, false, fmt.Errorf("platform/cache: decode %s: %w", key, err)
	}
	return out, true, nil
}

// Set stores value with the cache's expiry.
func (c *RedisJSON[V]) Set(ctx context.Context, key string, value V) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

// Delete drops key.
func (c *RedisJSON[V]) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(key)).Err()
}
