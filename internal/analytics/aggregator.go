package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/regwatch/regwatch/pkg/config"
	"github.com/regwatch/regwatch/pkg/kafka"
)

// AggregatedStats is the running usage summary exposed by the analytics
// endpoint and snapshotted to PostgreSQL.
type AggregatedStats struct {
	TotalChats       int64           `json:"total_chats"`
	AnsweredCount    int64           `json:"answered_count"`
	TimeoutCount     int64           `json:"timeout_count"`
	ErrorCount       int64           `json:"error_count"`
	CacheHits        int64           `json:"cache_hits"`
	CacheMisses      int64           `json:"cache_misses"`
	DocsIngested     int64           `json:"docs_ingested"`
	DocsInserted     int64           `json:"docs_inserted"`
	AvgLatencyMs     float64         `json:"avg_latency_ms"`
	P50LatencyMs     int64           `json:"p50_latency_ms"`
	P95LatencyMs     int64           `json:"p95_latency_ms"`
	P99LatencyMs     int64           `json:"p99_latency_ms"`
	TopQuestions     []QuestionCount `json:"top_questions"`
	ChatsPerMinute   float64         `json:"chats_per_minute"`
}

// QuestionCount pairs a question with how often it was asked.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int64  `json:"count"`
}

// Aggregator consumes usage events from Kafka and maintains running
// statistics in memory.
type Aggregator struct {
	mu             sync.RWMutex
	totalChats     atomic.Int64
	answered       atomic.Int64
	timeouts       atomic.Int64
	errors         atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	docsIngested   atomic.Int64
	docsInserted   atomic.Int64
	latencies      []int64
	questionCounts map[string]int64
	startTime      time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator that consumes the usage-events topic.
func NewAggregator(cfg config.KafkaConfig) *Aggregator {
	a := &Aggregator{
		latencies:      make([]int64, 0, 10000),
		questionCounts: make(map[string]int64),
		startTime:      time.Now(),
		logger:         slog.Default().With("component", "usage-aggregator"),
	}
	a.consumer = kafka.NewConsumer(cfg, cfg.Topics.UsageEvents, HandleEvent(a))
	return a
}

// Start enters the consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("usage aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns the Kafka handler that dispatches decoded events into
// the aggregator. Undecodable events are logged and dropped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var probe struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &probe); err != nil {
			agg.logger.Error("failed to decode usage event", "error", err)
			return nil
		}
		switch probe.Type {
		case EventChat:
			event, err := kafka.DecodeJSON[ChatEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode chat event", "error", err)
				return nil
			}
			agg.recordChatEvent(event)
		case EventDocument:
			event, err := kafka.DecodeJSON[DocumentEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode document event", "error", err)
				return nil
			}
			agg.recordDocumentEvent(event)
		default:
			agg.logger.Warn("unknown usage event type", "type", probe.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordChatEvent(event ChatEvent) {
	a.totalChats.Add(1)
	switch event.Outcome {
	case OutcomeAnswered:
		a.answered.Add(1)
	case OutcomeTimeout:
		a.timeouts.Add(1)
	default:
		a.errors.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.questionCounts[event.Question]++
	a.mu.Unlock()
}

func (a *Aggregator) recordDocumentEvent(event DocumentEvent) {
	a.docsIngested.Add(1)
	if event.Inserted {
		a.docsInserted.Add(1)
	}
}

// Stats returns a snapshot of the current aggregated statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalChats:    a.totalChats.Load(),
		AnsweredCount: a.answered.Load(),
		TimeoutCount:  a.timeouts.Load(),
		ErrorCount:    a.errors.Load(),
		CacheHits:     a.cacheHits.Load(),
		CacheMisses:   a.cacheMisses.Load(),
		DocsIngested:  a.docsIngested.Load(),
		DocsInserted:  a.docsInserted.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQuestions = topN(a.questionCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.ChatsPerMinute = float64(stats.TotalChats) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QuestionCount {
	result := make([]QuestionCount, 0, len(counts))
	for question, count := range counts {
		result = append(result, QuestionCount{Question: question, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
