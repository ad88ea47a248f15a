package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/platform/httputil"
	"ftledger/pkg/platform/middleware/metadata"
	"ftledger/pkg/requestcontext"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims the middleware needs from a validated token.
type JWTClaims struct {
	Caller id.ActorID
	JTI    string
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's account in the request context as the caller.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)
			clientIP := metadata.GetClientIP(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
					"client_ip", clientIP,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
					"client_ip", clientIP,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			if claims.Caller.IsZero() {
				logger.WarnContext(ctx, "unauthorized access - zero account subject",
					"jti", claims.JTI,
					"request_id", requestID,
					"client_ip", clientIP,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token subject cannot be the zero address"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, claims.Caller)))
		})
	}
}
