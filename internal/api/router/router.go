// Package router wires HTTP routes to handlers and applies the middleware
// chain.
package router

import (
	"net/http"

	"github.com/regwatch/regwatch/internal/analytics"
	"github.com/regwatch/regwatch/internal/api/handler"
	"github.com/regwatch/regwatch/pkg/config"
	"github.com/regwatch/regwatch/pkg/health"
	"github.com/regwatch/regwatch/pkg/metrics"
	"github.com/regwatch/regwatch/pkg/middleware"
)

// New builds the API routing table. stats may be nil when the analytics
// consumer is not running; the route is simply not registered.
func New(h *handler.Handler, stats *analytics.Handler, checker *health.Checker, m *metrics.Metrics, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat", h.Chat)
	mux.HandleFunc("GET /api/v1/documents/recent", h.RecentDocuments)
	mux.HandleFunc("GET /api/v1/system-info", h.SystemInfo)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.InvalidateCache)
	if stats != nil {
		mux.HandleFunc("GET /api/v1/analytics", stats.Stats)
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	limiter := middleware.NewLimiter(cfg.RateLimit, cfg.RateLimitWindow)

	// Innermost first: the request passes RequestID, CORS, RateLimit,
	// Metrics, then Timeout before reaching the mux.
	var chained http.Handler = mux
	chained = middleware.Timeout(cfg.WriteTimeout)(chained)
	chained = middleware.Metrics(m)(chained)
	chained = middleware.RateLimit(limiter)(chained)
	chained = middleware.CORS(middleware.DefaultCORSConfig())(chained)
	chained = middleware.RequestID(chained)
	return chained
}
