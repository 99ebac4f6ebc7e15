// Package ratelimit provides the Redis-backed fixed-window limiter gating
// the AI builder endpoint.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit is one fixed-window rule.
type Limit struct {
	Name   string        // window label, part of the Redis key
	Max    int64         // allowed requests per window
	Window time.Duration // window length
}

// BuilderLimits gates the AI builder endpoint per tenant.
var BuilderLimits = []Limit{
	{Name: "minute", Max: 10, Window: time.Minute},
	{Name: "day", Max: 200, Window: 24 * time.Hour},
}

// Limiter counts requests per key in fixed windows via INCR. Redis being
// unreachable fails open: the request is allowed and the outage logged.
type Limiter struct {
	rdb    redis.Cmdable
	limits []Limit
}

// New creates a limiter enforcing the given limits. Every limit must pass
// for a request to be allowed.
func New(rdb redis.Cmdable, limits []Limit) *Limiter {
	return &Limiter{rdb: rdb, limits: limits}
}

// Allow consumes one unit for key in every window. It returns false with a
// retry-after hint when any window is exhausted.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	for _, lim := range l.limits {
		redisKey := fmt.Sprintf("ratelimit:%s:%s", key, lim.Name)

		count, err := l.rdb.Incr(ctx, redisKey).Result()
		if err != nil {
			slog.Warn("Rate limiter unavailable, failing open", "key", redisKey, "error", err)
			return true, 0
		}

		// ExpireNX on every hit: sets the window on the first increment and
		// heals a counter whose EXPIRE was lost.
		if err := l.rdb.ExpireNX(ctx, redisKey, lim.Window).Err(); err != nil {
			slog.Warn("Failed to set rate limit window", "key", redisKey, "error", err)
		}

		if count > lim.Max {
			retryAfter := lim.Window
			if ttl, err := l.rdb.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
				retryAfter = ttl
			}
			return false, retryAfter
		}
	}
	return true, 0
}
