// Package cache stores computed answers in Redis, keyed by a hash of the
// question.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/regwatch/regwatch/pkg/metrics"
	"github.com/regwatch/regwatch/pkg/redis"
)

const keyPrefix = "answer:"

// AnswerCache caches chat answers. Every Redis failure is treated as a miss;
// the cache never blocks an answer from being computed.
type AnswerCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an answer cache. m may be nil.
func New(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *AnswerCache {
	return &AnswerCache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "answer-cache"),
	}
}

// Get returns the cached answer for question, reporting whether one was
// found.
func (c *AnswerCache) Get(ctx context.Context, question string) (string, bool) {
	answer, err := c.client.Get(ctx, c.key(question))
	if err != nil {
		if !redis.IsNilError(err) {
			c.logger.Warn("cache lookup failed", "error", err)
		}
		c.countHit(false)
		return "", false
	}
	c.countHit(true)
	return answer, true
}

// Store saves an answer under the question's key with the configured TTL.
func (c *AnswerCache) Store(ctx context.Context, question, answer string) {
	if err := c.client.Set(ctx, c.key(question), answer, c.ttl); err != nil {
		c.logger.Warn("cache store failed", "error", err)
	}
}

// Invalidate removes every cached answer, returning the number of entries
// deleted. Called after an ingest run lands new documents.
func (c *AnswerCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, err
	}
	c.logger.Info("answer cache invalidated", "deleted", deleted)
	return deleted, nil
}

func (c *AnswerCache) key(question string) string {
	sum := sha256.Sum256([]byte(question))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (c *AnswerCache) countHit(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.AnswerCacheHitsTotal.Inc()
	} else {
		c.metrics.AnswerCacheMissTotal.Inc()
	}
}
