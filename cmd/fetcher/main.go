// Command fetcher ingests Federal Register documents into PostgreSQL.
//
// Each run fetches documents published in the configured window, cleans and
// bounds their text, and upserts them by document number, so reruns are
// idempotent. When new documents land, cached answers are invalidated. With
// -once the fetcher performs a single run and exits; otherwise it runs on the
// configured interval until interrupted.
//
// Usage:
//
//	go run ./cmd/fetcher [-config configs/development.yaml] [-once]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/regwatch/regwatch/internal/analytics"
	"github.com/regwatch/regwatch/internal/feed"
	"github.com/regwatch/regwatch/internal/ingest"
	"github.com/regwatch/regwatch/internal/rag/cache"
	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
	"github.com/regwatch/regwatch/pkg/kafka"
	"github.com/regwatch/regwatch/pkg/logger"
	"github.com/regwatch/regwatch/pkg/metrics"
	"github.com/regwatch/regwatch/pkg/postgres"
	"github.com/regwatch/regwatch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single ingest and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting regwatch fetcher",
		"feed_url", cfg.Feed.BaseURL,
		"window_days", cfg.Feed.WindowDays,
		"interval", cfg.Feed.Interval,
		"once", *once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	// Redis — optional. Used only to invalidate stale cached answers after
	// new documents are stored.
	var answerCache *cache.AnswerCache
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, skipping cache invalidation", "error", err)
	} else {
		defer redisClient.Close()
		answerCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 256)
	collector.Start(ctx)
	defer collector.Close()

	pipeline := ingest.New(
		feed.NewClient(cfg.Feed),
		store.New(db),
		collector,
		m,
		cfg.Feed,
		cfg.Query,
	)

	run := func() {
		result := pipeline.Run(ctx)
		if result.Saved > 0 && answerCache != nil {
			if _, err := answerCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after ingest failed", "error", err)
			}
		}
	}

	run()
	if *once {
		slog.Info("single ingest run complete")
		return
	}

	interval := cfg.Feed.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			slog.Info("regwatch fetcher stopped")
			return
		}
	}
}
