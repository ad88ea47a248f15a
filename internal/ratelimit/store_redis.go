package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ftledger:ratelimit:"

// RedisStore implements Store with one sorted set per key, scored by the
// admission time in milliseconds, so replicas share the window.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewRedisStore(client *redis.Client, clock func() time.Time) *RedisStore {
	if clock == nil {
		clock = time.Now
	}
	return &RedisStore{client: client, clock: clock}
}

// allowScript trims the window, counts it and records the admission in one
// step, so concurrent requests for a key cannot all pass the count before
// any of them is recorded.
//
// KEYS[1] window key; ARGV cutoff ms, now ms, limit, window ms, member.
// Returns {allowed, count before admission, oldest score or -1}.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local score = -1
if oldest[2] then score = tonumber(oldest[2]) end
if n >= tonumber(ARGV[3]) then
  return {0, n, score}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {1, n, score}
`)

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.clock()
	nowMs := now.UnixMilli()

	out, err := allowScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		strconv.FormatInt(now.Add(-window).UnixMilli(), 10),
		nowMs,
		limit,
		window.Milliseconds(),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit window: %w", err)
	}
	if len(out) != 3 {
		return Result{}, fmt.Errorf("rate limit window: unexpected reply %v", out)
	}
	allowed, n, oldest := out[0] == 1, int(out[1]), out[2]

	resetAt := now.Add(window)
	if oldest >= 0 {
		resetAt = time.UnixMilli(oldest).Add(window)
	}
	if !allowed {
		return Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - n - 1,
		ResetAt:   resetAt,
	}, nil
}
