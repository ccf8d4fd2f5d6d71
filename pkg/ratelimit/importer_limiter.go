// Package ratelimit provides sliding-window rate limiting for outbound API calls.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript admits a request when fewer than ARGV[3] requests were
// admitted in the last ARGV[4] ms. On rejection it returns the negative number
// of milliseconds until the oldest entry leaves the window.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(oldest[2] + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter limits requests per key across all workers sharing a
// Redis instance. Without Redis it limits within the process only.
type SlidingWindowLimiter struct {
	redis  redis.Scripter
	limit  int
	window time.Duration

	mu    sync.Mutex
	local map[string][]time.Time
	now   func() time.Time
}

// NewSlidingWindowLimiter creates a limiter admitting limit requests per window.
// redisClient may be nil.
func NewSlidingWindowLimiter(redisClient redis.Scripter, limit int, window time.Duration) *SlidingWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &SlidingWindowLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		local:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow checks if request is allowed and returns wait duration if not.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil {
		return l.allowLocal(key)
	}

	now := l.now()
	result, err := slidingWindowScript.Run(ctx, l.redis, []string{fmt.Sprintf("ratelimit:%s", key)},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
	).Int64()
	if err != nil {
		// Fail open: a Redis outage must not stop imports.
		return true, 0
	}

	switch {
	case result == 1:
		return true, 0
	case result < 0:
		return false, time.Duration(-result) * time.Millisecond
	default:
		return false, l.window
	}
}

func (l *SlidingWindowLimiter) allowLocal(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	hits := l.local[key]
	keep := 0
	for keep < len(hits) && !hits[keep].After(cutoff) {
		keep++
	}
	hits = hits[keep:]

	if len(hits) < l.limit {
		l.local[key] = append(hits, now)
		return true, 0
	}
	l.local[key] = hits
	return false, hits[0].Add(l.window).Sub(now)
}

// Wait blocks until a request for key is admitted or ctx is done.
func (l *SlidingWindowLimiter) Wait(ctx context.Context, key string) error {
	for {
		ok, wait := l.Allow(ctx, key)
		if ok {
			return nil
		}
		if wait <= 0 || wait > l.window {
			wait = l.window
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
