package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/regwatch/regwatch/internal/analytics"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
	"github.com/regwatch/regwatch/pkg/logger"
	"github.com/regwatch/regwatch/pkg/metrics"
	"github.com/regwatch/regwatch/pkg/tracing"
)

// ModelClient generates an answer for a prompt. FailureMessage renders a
// generate error as the user-facing answer text.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	FailureMessage(err error) string
}

// AnswerCache stores finished answers by question. Only successful answers
// are stored; synthesized failure messages must never be.
type AnswerCache interface {
	Get(ctx context.Context, question string) (answer string, ok bool)
	Store(ctx context.Context, question, answer string)
}

// Recorder receives usage events.
type Recorder interface {
	Track(event any)
}

// Orchestrator runs the full chat flow. Answer is total: every failure mode
// downstream of input validation becomes answer text, never an error.
type Orchestrator struct {
	builder  *ContextBuilder
	model    ModelClient
	cache    AnswerCache
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	group    singleflight.Group
}

// NewOrchestrator creates an orchestrator. cache and recorder may be nil.
func NewOrchestrator(builder *ContextBuilder, model ModelClient, cache AnswerCache, recorder Recorder, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		builder:  builder,
		model:    model,
		cache:    cache,
		recorder: recorder,
		metrics:  m,
		logger:   slog.Default().With("component", "orchestrator"),
	}
}

// chatResult is the complete outcome of one resolved question. Concurrent
// callers asking the same question share one of these, so follower requests
// report the same outcome and context count as the caller that did the work.
type chatResult struct {
	answer      string
	outcome     analytics.Outcome
	cacheHit    bool
	contextDocs int
}

// Answer produces the answer text for a user question.
func (o *Orchestrator) Answer(ctx context.Context, question string) string {
	ctx, span := tracing.StartChild(ctx, "chat.answer")
	defer span.End()

	start := time.Now()
	res := o.resolve(ctx, question)

	elapsed := time.Since(start)
	o.observe(res.outcome, res.cacheHit, elapsed)
	if o.recorder != nil {
		o.recorder.Track(analytics.NewChatEvent(question, res.outcome, res.cacheHit, res.contextDocs, elapsed, logger.RequestID(ctx)))
	}
	o.logger.Info("chat answered",
		"outcome", string(res.outcome),
		"cache_hit", res.cacheHit,
		"context_docs", res.contextDocs,
		"elapsed", elapsed.Round(time.Millisecond),
		"answer_chars", len(res.answer),
	)
	return res.answer
}

// resolve checks the cache and falls through to generation, collapsing
// concurrent identical questions into a single lookup-and-generate.
func (o *Orchestrator) resolve(ctx context.Context, question string) chatResult {
	v, _, _ := o.group.Do(question, func() (interface{}, error) {
		if o.cache != nil {
			if answer, ok := o.cache.Get(ctx, question); ok {
				return chatResult{answer: answer, outcome: analytics.OutcomeAnswered, cacheHit: true}, nil
			}
		}
		answer, outcome, docs := o.generate(ctx, question)
		if o.cache != nil && outcome == analytics.OutcomeAnswered {
			o.cache.Store(ctx, question, answer)
		}
		return chatResult{answer: answer, outcome: outcome, contextDocs: docs}, nil
	})
	return v.(chatResult)
}

// generate builds context, prompts the model, and classifies the outcome.
func (o *Orchestrator) generate(ctx context.Context, question string) (string, analytics.Outcome, int) {
	ctx, span := tracing.StartChild(ctx, "chat.generate")
	defer span.End()

	contextBlock, docs := o.builder.Build(ctx)
	span.SetAttr("context_docs", docs)

	prompt := buildPrompt(contextBlock, question)
	answer, err := o.model.Generate(ctx, prompt)
	if err != nil {
		outcome := analytics.OutcomeError
		if errors.Is(err, apperrors.ErrModelTimeout) {
			outcome = analytics.OutcomeTimeout
		}
		o.logger.Warn("model call failed", "outcome", string(outcome), "error", err)
		return o.model.FailureMessage(err), outcome, docs
	}
	return answer, analytics.OutcomeAnswered, docs
}

func buildPrompt(contextBlock, question string) string {
	var sb strings.Builder
	if contextBlock != "" {
		sb.WriteString(contextBlock)
	}
	fmt.Fprintf(&sb, "\nUser question: %s\n\nPlease provide a brief, helpful response:", question)
	return sb.String()
}

func (o *Orchestrator) observe(outcome analytics.Outcome, cacheHit bool, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.ChatRequestsTotal.WithLabelValues(string(outcome)).Inc()
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	o.metrics.ChatLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}
