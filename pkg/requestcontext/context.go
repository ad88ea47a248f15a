// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Middleware and consumers set the values; the dispatcher and handlers read
// them without importing net/http or the Kafka client.
//
//	caller, ok := requestcontext.Caller(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests pin the clock with requestcontext.WithTime.
package requestcontext

import (
	"context"
	"time"

	id "ftledger/pkg/domain"
)

type (
	callerKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Caller returns the authenticated account that submitted the request.
func Caller(ctx context.Context) (id.ActorID, bool) {
	caller, ok := ctx.Value(callerKey{}).(id.ActorID)
	return caller, ok
}

// WithCaller injects the authenticated account.
func WithCaller(ctx context.Context, caller id.ActorID) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// RequestID returns the request or correlation id, empty when unset.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Time returns the request-scoped time if one was injected.
func Time(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(requestTimeKey{}).(time.Time)
	return t, ok
}

// Now returns the request-scoped time, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := Time(ctx); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time so every component handling the request
// sees the same instant.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
