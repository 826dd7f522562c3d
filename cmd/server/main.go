// Command server starts the RegWatch API service.
//
// The server answers questions about recent Federal Register documents: it
// retrieves the most recently published documents from PostgreSQL, assembles
// a bounded context block, and prompts an Ollama-compatible model. Answers
// are cached in Redis, usage events flow through Kafka into aggregated
// statistics, and Prometheus metrics are exposed on a separate port.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/regwatch/regwatch/internal/analytics"
	"github.com/regwatch/regwatch/internal/api/handler"
	"github.com/regwatch/regwatch/internal/api/router"
	"github.com/regwatch/regwatch/internal/llm"
	"github.com/regwatch/regwatch/internal/rag"
	"github.com/regwatch/regwatch/internal/rag/cache"
	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
	"github.com/regwatch/regwatch/pkg/health"
	"github.com/regwatch/regwatch/pkg/kafka"
	"github.com/regwatch/regwatch/pkg/logger"
	"github.com/regwatch/regwatch/pkg/metrics"
	"github.com/regwatch/regwatch/pkg/postgres"
	"github.com/regwatch/regwatch/pkg/redis"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting regwatch server",
		"port", cfg.Server.Port,
		"model", cfg.Model.Name,
		"model_url", cfg.Model.BaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// PostgreSQL — required; it is the document store and snapshot backend.
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	docs := store.New(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure document schema", "error", err)
		os.Exit(1)
	}

	// Redis — optional. Without it the server answers every question fresh.
	var answerCache *cache.AnswerCache
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, running without answer cache", "error", err)
	} else {
		defer redisClient.Close()
		answerCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("connected to redis", "cache_ttl", cfg.Redis.CacheTTL)
	}

	// Kafka — usage events out, aggregated statistics back in.
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 1024)
	collector.Start(ctx)
	defer collector.Close()

	aggregator := analytics.NewAggregator(cfg.Kafka)
	go func() {
		if err := aggregator.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("analytics aggregator stopped", "error", err)
		}
	}()

	snapshots := analytics.NewSnapshotStore(db)
	if err := snapshots.EnsureSchema(ctx); err != nil {
		slog.Warn("failed to ensure snapshot schema, snapshots disabled", "error", err)
	} else {
		if prev, err := snapshots.Latest(ctx); err != nil {
			slog.Warn("failed to load previous usage snapshot", "error", err)
		} else if prev != nil {
			slog.Info("previous usage snapshot",
				"total_chats", prev.TotalChats,
				"docs_ingested", prev.DocsIngested,
			)
		}
		snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)
	}

	// Model client and the chat flow.
	model := llm.NewClient(cfg.Model, m)
	builder := rag.NewContextBuilder(docs, cfg.Query, m)

	var cacheForOrchestrator rag.AnswerCache
	if answerCache != nil {
		cacheForOrchestrator = answerCache
	}
	orchestrator := rag.NewOrchestrator(builder, model, cacheForOrchestrator, collector, m)

	// Health checks.
	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	checker.Register("model", func(ctx context.Context) health.ComponentHealth {
		if err := model.LiveProbe(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	// Metrics server on its own port.
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	h := handler.New(orchestrator, docs, answerCache, cfg.Model, cfg.Query)
	chain := router.New(h, analytics.NewHandler(aggregator), checker, m, cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("regwatch server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("regwatch server stopped")
}
