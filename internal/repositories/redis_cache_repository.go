package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// ResponseCacheRepository stores generated answers under opaque keys
type ResponseCacheRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisResponseCacheRepository implements ResponseCacheRepository with SETEX/GET
type RedisResponseCacheRepository struct {
	client *redis.Client
}

// NewRedisResponseCacheRepository creates a new Redis-based answer cache
func NewRedisResponseCacheRepository(client *redis.Client) *RedisResponseCacheRepository {
	return &RedisResponseCacheRepository{
		client: client,
	}
}

// Get returns the cached value or ErrCacheMiss
func (r *RedisResponseCacheRepository) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores value with the given expiry. A non-positive ttl is rejected so
// nothing is ever cached forever.
func (r *RedisResponseCacheRepository) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a cached value
func (r *RedisResponseCacheRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
