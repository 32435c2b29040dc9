package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Cache = (*Redis)(nil)

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithTTL sets the expiry for cached proofs. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// Redis is a Cache backed by Redis, for sharing proofs across pool
// instances. The caller owns the Redis client lifecycle.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: 24 * time.Hour}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name implements Cache.
func (r *Redis) Name() string { return "redis" }

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	proof, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return proof, true, nil
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, key string, proof []byte) error {
	return r.client.Set(ctx, key, proof, r.ttl).Err()
}

// Ping verifies the Redis connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
