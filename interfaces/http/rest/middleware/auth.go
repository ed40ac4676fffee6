package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"watchtower-backend/pkg/auth"
)

// Authenticate resolves the caller's identity. The watchlist itself is
// shared, so a missing token degrades to the anonymous user instead of
// rejecting the request; a presented but invalid token is still rejected.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserContext{UserID: auth.AnonymousUserID}

			if token := bearerToken(r); token != "" && validator != nil {
				validated, err := validator.Validate(token)
				if err != nil {
					logger.Debug("rejecting presented token", zap.Error(err))
					respondJSONError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				user = validated
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
		})
	}
}

// Limiter is the slice of the rate limiter surface the middleware needs.
// Both the in-process limiters and the DynamoDB-backed one satisfy it.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit applies a per-IP request budget.
func RateLimit(limiter Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil || !allowed {
				respondJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
