package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore is the distributed fixed-window backend for deployments running
// more than one limiter instance. The counter key carries the window TTL, so
// window reset is Redis expiry. Denied checks still bump the counter past the
// limit; the admission decision (first N per window) is unaffected because
// the expiry is only armed on the first increment.
type RedisStore struct {
	client       *redis.Client
	timeProvider func() time.Time
}

type RedisStoreOpts struct {
	TimeProvider func() time.Time
}

func NewRedisStore(client *redis.Client, opts *RedisStoreOpts) *RedisStore {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &RedisStore{client: client, timeProvider: timeProvider}
}

func (s *RedisStore) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	now := s.timeProvider()
	window := time.Duration(cfg.WindowMs) * time.Millisecond
	redisKey := redisKeyPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	var resetTime time.Time
	if count == 1 {
		if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to arm rate limit window: %w", err)
		}
		resetTime = now.Add(window)
	} else {
		ttl, err := s.client.PTTL(ctx, redisKey).Result()
		if err != nil {
			return Result{}, fmt.Errorf("failed to read rate limit window: %w", err)
		}
		if ttl <= 0 {
			// Counter survived without a TTL (e.g. partial failure after a
			// crash); re-arm rather than leaking a permanent window.
			if err := s.client.PExpire(ctx, redisKey, window).Err(); err != nil {
				return Result{}, fmt.Errorf("failed to re-arm rate limit window: %w", err)
			}
			ttl = window
		}
		resetTime = now.Add(ttl)
	}

	allowed := count <= int64(cfg.Requests)
	remaining := cfg.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetTime: resetTime.UnixMilli(),
		Limit:     cfg.Requests,
		WindowMs:  cfg.WindowMs,
	}, nil
}
