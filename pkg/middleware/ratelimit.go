package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// limiterEntry tracks the token-bucket state for a single client.
type limiterEntry struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter implements an in-memory token-bucket rate limiter keyed by client
// IP. Tokens refill at a rate of (limit / window) per second. Every model
// call is expensive, so the chat endpoint sits behind this.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	window  time.Duration
	limit   int
}

// NewLimiter creates a rate limiter allowing `limit` requests per window for
// each client, refilled continuously.
func NewLimiter(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]*limiterEntry),
		window:  window,
		limit:   limit,
	}
	go l.cleanup()
	return l
}

// Allow checks whether the given key has remaining capacity. It consumes one
// token on success.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, exists := l.entries[key]
	if !exists {
		l.entries[key] = &limiterEntry{
			tokens:    float64(l.limit - 1),
			lastCheck: now,
		}
		return true
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now

	// Refill tokens proportionally to elapsed time.
	rate := float64(l.limit) / l.window.Seconds()
	e.tokens += elapsed.Seconds() * rate
	if e.tokens > float64(l.limit) {
		e.tokens = float64(l.limit)
	}

	if e.tokens < 1 {
		return false
	}

	e.tokens--
	return true
}

// cleanup periodically removes stale entries to prevent unbounded growth.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-2 * l.window)
		for key, e := range l.entries {
			if e.lastCheck.Before(cutoff) {
				delete(l.entries, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit returns middleware that rejects requests over the per-client
// budget with 429.
func RateLimit(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
