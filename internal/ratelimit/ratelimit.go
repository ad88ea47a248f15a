// Package ratelimit bounds how many actions a caller may submit over HTTP
// within a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Store counts requests per key in a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
