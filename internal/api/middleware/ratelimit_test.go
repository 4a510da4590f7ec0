package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allowed   bool
	remaining int
	reset     time.Time
	err       error
}

func (s stubLimiter) Allow(context.Context, string) (bool, int, time.Time, error) {
	return s.allowed, s.remaining, s.reset, s.err
}

func limitRequest(t *testing.T, limiter stubLimiter) *httptest.ResponseRecorder {
	t.Helper()

	mw := NewRateLimitMiddleware(limiter)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/threads", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	mw.Limit(next).ServeHTTP(rec, req)
	return rec
}

func TestLimitAllowedSetsHeaders(t *testing.T) {
	reset := time.Date(2026, 8, 31, 10, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	rec := limitRequest(t, stubLimiter{allowed: true, remaining: 41, reset: reset})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "41", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2026-08-31T08:30:00Z", rec.Header().Get("X-RateLimit-Reset"))

	parsed, err := time.Parse(time.RFC3339, rec.Header().Get("X-RateLimit-Reset"))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(reset))
}

func TestLimitExceeded(t *testing.T) {
	rec := limitRequest(t, stubLimiter{allowed: false, remaining: 0, reset: time.Now()})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestLimitFailsOpen(t *testing.T) {
	rec := limitRequest(t, stubLimiter{err: context.DeadlineExceeded})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
}
