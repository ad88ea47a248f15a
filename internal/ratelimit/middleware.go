package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/platform/httputil"
	"ftledger/pkg/platform/middleware/metadata"
	"ftledger/pkg/requestcontext"
)

// Middleware enforces a per-caller limit. Requests without an authenticated
// caller are keyed by client IP.
type Middleware struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

// New returns a limiter admitting limit requests per window. A limit of zero
// or less disables limiting.
func New(store Store, limit int, window time.Duration, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, limit: limit, window: window, logger: logger}
}

// Limit wraps next. Store failures fail open: the ledger stays writable when
// the limiter backend is down.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		key := "ip:" + metadata.GetClientIP(ctx)
		if caller, ok := requestcontext.Caller(ctx); ok {
			key = "caller:" + caller.String()
		}

		result, err := m.store.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"key", key,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"key", key,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many actions, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
