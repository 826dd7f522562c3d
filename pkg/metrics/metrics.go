// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ChatRequestsTotal    *prometheus.CounterVec
	ChatLatency          *prometheus.HistogramVec
	ContextDocsIncluded  prometheus.Histogram
	ModelAttemptsTotal   *prometheus.CounterVec
	ModelLatency         prometheus.Histogram
	DocsFetchedTotal     prometheus.Counter
	DocsUpsertedTotal    *prometheus.CounterVec
	IngestRunsTotal      *prometheus.CounterVec
	AnswerCacheHitsTotal prometheus.Counter
	AnswerCacheMissTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ChatRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total chat requests by outcome (answered, timeout, error).",
			},
			[]string{"outcome"},
		),
		ChatLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_latency_seconds",
				Help:    "End-to-end chat latency in seconds.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			},
			[]string{"cache_status"},
		),
		ContextDocsIncluded: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "context_docs_included",
				Help:    "Number of documents rendered into the prompt context.",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		ModelAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_attempts_total",
				Help: "Model call attempts by result (success, timeout, transport_error).",
			},
			[]string{"result"},
		),
		ModelLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "model_latency_seconds",
				Help:    "Latency of successful model calls in seconds.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
		),
		DocsFetchedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feed_documents_fetched_total",
				Help: "Total documents returned by the publication feed.",
			},
		),
		DocsUpsertedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_upserted_total",
				Help: "Documents written to the store by result (inserted, updated).",
			},
			[]string{"result"},
		),
		IngestRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Ingestion pipeline runs by status (ok, degraded).",
			},
			[]string{"status"},
		),
		AnswerCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_cache_hits_total",
				Help: "Total number of answer cache hits.",
			},
		),
		AnswerCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "answer_cache_misses_total",
				Help: "Total number of answer cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ChatRequestsTotal,
		m.ChatLatency,
		m.ContextDocsIncluded,
		m.ModelAttemptsTotal,
		m.ModelLatency,
		m.DocsFetchedTotal,
		m.DocsUpsertedTotal,
		m.IngestRunsTotal,
		m.AnswerCacheHitsTotal,
		m.AnswerCacheMissTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
