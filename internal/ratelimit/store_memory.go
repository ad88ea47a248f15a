package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore implements Store with per-key timestamp windows. It is not
// shared across replicas; use RedisStore for that.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	clock   func() time.Time
}

func NewInMemoryStore(clock func() time.Time) *InMemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryStore{
		windows: make(map[string][]time.Time),
		clock:   clock,
	}
}

// Allow admits the request when fewer than limit requests were admitted for
// key within the trailing window.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	stamps := prune(s.windows[key], now.Add(-window))

	if len(stamps) >= limit {
		s.windows[key] = stamps
		resetAt := stamps[0].Add(window)
		return Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// prune drops timestamps at or before cutoff. stamps is ascending.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
