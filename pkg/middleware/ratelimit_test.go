package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsWithinBudget(t *testing.T) {
	limiter := NewLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow("client-a"), "request %d should pass", i+1)
	}
	require.False(t, limiter.Allow("client-a"))
}

func TestLimiterIsolatesClients(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	require.True(t, limiter.Allow("client-a"))
	require.False(t, limiter.Allow("client-a"))
	require.True(t, limiter.Allow("client-b"))
}

func TestLimiterRefills(t *testing.T) {
	limiter := NewLimiter(10, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		limiter.Allow("client-a")
	}
	require.False(t, limiter.Allow("client-a"))

	time.Sleep(150 * time.Millisecond)
	require.True(t, limiter.Allow("client-a"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client address is budgeted separately.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	require.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	require.Equal(t, "203.0.113.9", clientIP(req))
}
