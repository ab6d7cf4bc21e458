package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis.
// Completed responses and in-flight reservations live under separate keys.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idempotency:v1:",
	}
}

func (c *IdempotencyCache) responseKey(key string) string { return c.prefix + "resp:" + key }
func (c *IdempotencyCache) lockKey(key string) string     { return c.prefix + "lock:" + key }

// Reserve claims key for one in-flight request. A false result means another
// request holds it or a response is already stored.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	exists, err := c.client.Exists(ctx, c.responseKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency exists: %w", err)
	}
	if exists > 0 {
		return false, nil
	}
	ok, err := c.client.SetNX(ctx, c.lockKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return ok, nil
}

// Get retrieves a cached response by idempotency key.
// Returns nil, nil if the key does not exist.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.responseKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

// Set stores a response with TTL and drops the reservation.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.responseKey(key), value, ttl)
	pipe.Del(ctx, c.lockKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

// Release drops a reservation without storing a response, so the key may be retried.
func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
