package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"chatgraph-backend/internal/api/response"
)

// Limiter reports whether a keyed request fits the current rate window
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, resetTime time.Time, err error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	rateLimiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(rateLimiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter}
}

// Limit applies rate limiting keyed by client IP
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}

		allowed, remaining, resetTime, err := m.rateLimiter.Allow(r.Context(), key)
		if err != nil {
			// If the rate limiter fails, allow the request
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
