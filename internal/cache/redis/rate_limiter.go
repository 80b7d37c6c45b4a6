package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a fixed window: INCR on a
// per-key counter whose TTL is set on first increment. Coarser than a
// sliding window but race-free without scripting, which is plenty for
// shielding the API surface.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

func rateLimitKey(key string) string {
	return "truthbond:ratelimit:" + key
}

// Allow reports whether a request for key is permitted under limit requests
// per window. The request is counted either way; counters expire with the
// window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rk := rateLimitKey(key)

	pipe := rl.rdb.TxPipeline()
	count := pipe.Incr(ctx, rk)
	pipe.ExpireNX(ctx, rk, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}

	return count.Val() <= int64(limit), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
