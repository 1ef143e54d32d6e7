package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "rate_limit:"

// fixedWindowScript counts a hit and reports whether it is within the limit.
// The window starts at the first hit.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
    redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
    return 0
end
return 1
`)

// RateLimiter decides whether another request from an identity is allowed
type RateLimiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// RedisRateLimiter is a fixed-window counter shared by every server instance
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter allows limit requests per identity per window
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for identity and reports whether it fits the window
func (l *RedisRateLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	allowed, err := fixedWindowScript.Run(ctx, l.client,
		[]string{rateLimitKeyPrefix + identity},
		l.limit, int(l.window.Seconds()),
	).Int()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}
