package testutil

import (
	"net/http"
	"time"

	id "ftledger/pkg/domain"
	"ftledger/pkg/requestcontext"
)

// WithCaller marks the request as authenticated by caller, the way the JWT
// middleware does.
func WithCaller(req *http.Request, caller id.ActorID) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// PassThrough is a no-op middleware for routes whose auth is simulated with
// WithCaller.
func PassThrough(next http.Handler) http.Handler {
	return next
}
