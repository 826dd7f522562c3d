package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch/regwatch/internal/analytics"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
)

type stubModel struct {
	answer    string
	err       error
	gotPrompt string
}

func (s *stubModel) Generate(_ context.Context, prompt string) (string, error) {
	s.gotPrompt = prompt
	return s.answer, s.err
}

func (s *stubModel) FailureMessage(err error) string {
	return fmt.Sprintf("failure: %v", err)
}

type stubTracker struct {
	mu     sync.Mutex
	events []any
}

func (s *stubTracker) Track(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type mapCache struct {
	entries map[string]string
	hits    int
}

func (c *mapCache) Get(_ context.Context, question string) (string, bool) {
	answer, ok := c.entries[question]
	if ok {
		c.hits++
	}
	return answer, ok
}

func (c *mapCache) Store(_ context.Context, question, answer string) {
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[question] = answer
}

func newTestOrchestrator(model ModelClient, cache AnswerCache, tracker Recorder, docs int) *Orchestrator {
	builder := NewContextBuilder(&stubRetriever{docs: makeDocs(docs)}, testQueryConfig(), nil)
	return NewOrchestrator(builder, model, cache, tracker, nil)
}

func TestAnswerBuildsPromptWithContext(t *testing.T) {
	model := &stubModel{answer: "Here is what changed."}
	orch := newTestOrchestrator(model, nil, nil, 2)

	answer := orch.Answer(context.Background(), "What changed this week?")
	require.Equal(t, "Here is what changed.", answer)

	require.Contains(t, model.gotPrompt, "Here's some recent information that might be helpful:")
	require.Contains(t, model.gotPrompt, "Document Title 0")
	require.Contains(t, model.gotPrompt, "User question: What changed this week?")
	require.True(t, strings.HasSuffix(model.gotPrompt, "Please provide a brief, helpful response:"))
}

func TestAnswerWithoutDocuments(t *testing.T) {
	model := &stubModel{answer: "General answer."}
	orch := newTestOrchestrator(model, nil, nil, 0)

	answer := orch.Answer(context.Background(), "Anything new?")
	require.Equal(t, "General answer.", answer)
	require.NotContains(t, model.gotPrompt, "Here's some recent information")
	require.Contains(t, model.gotPrompt, "User question: Anything new?")
}

func TestAnswerSurfacesModelFailureAsText(t *testing.T) {
	model := &stubModel{err: fmt.Errorf("%w: boom", apperrors.ErrModelTransport)}
	tracker := &stubTracker{}
	orch := newTestOrchestrator(model, nil, tracker, 1)

	answer := orch.Answer(context.Background(), "question")
	require.Contains(t, answer, "failure:")

	require.Len(t, tracker.events, 1)
	event := tracker.events[0].(analytics.ChatEvent)
	require.Equal(t, analytics.OutcomeError, event.Outcome)
}

func TestAnswerClassifiesTimeouts(t *testing.T) {
	model := &stubModel{err: fmt.Errorf("%w: slow", apperrors.ErrModelTimeout)}
	tracker := &stubTracker{}
	orch := newTestOrchestrator(model, nil, tracker, 1)

	orch.Answer(context.Background(), "question")

	require.Len(t, tracker.events, 1)
	event := tracker.events[0].(analytics.ChatEvent)
	require.Equal(t, analytics.OutcomeTimeout, event.Outcome)
}

func TestAnswerUsesCache(t *testing.T) {
	model := &stubModel{answer: "cached answer"}
	cache := &mapCache{}
	tracker := &stubTracker{}
	orch := newTestOrchestrator(model, cache, tracker, 1)

	first := orch.Answer(context.Background(), "repeat question")
	second := orch.Answer(context.Background(), "repeat question")
	require.Equal(t, first, second)
	require.Equal(t, 1, cache.hits)

	require.Len(t, tracker.events, 2)
	require.False(t, tracker.events[0].(analytics.ChatEvent).CacheHit)
	require.True(t, tracker.events[1].(analytics.ChatEvent).CacheHit)
}

func TestAnswerDoesNotCacheFailures(t *testing.T) {
	model := &stubModel{err: fmt.Errorf("%w: boom", apperrors.ErrModelTransport)}
	cache := &mapCache{}
	orch := newTestOrchestrator(model, cache, nil, 1)

	orch.Answer(context.Background(), "failing question")
	require.Empty(t, cache.entries)
}

type blockingModel struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	err     error
}

func (m *blockingModel) Generate(context.Context, string) (string, error) {
	m.calls.Add(1)
	m.entered <- struct{}{}
	<-m.release
	return "", m.err
}

func (m *blockingModel) FailureMessage(err error) string {
	return fmt.Sprintf("failure: %v", err)
}

func TestAnswerCollapsesConcurrentDuplicates(t *testing.T) {
	model := &blockingModel{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		err:     fmt.Errorf("%w: boom", apperrors.ErrModelTransport),
	}
	tracker := &stubTracker{}
	orch := newTestOrchestrator(model, &mapCache{}, tracker, 2)

	var wg sync.WaitGroup
	answers := make([]string, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		answers[0] = orch.Answer(context.Background(), "duplicate question")
	}()
	<-model.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		answers[1] = orch.Answer(context.Background(), "duplicate question")
	}()
	// Give the second call time to join the in-flight computation before
	// releasing the model.
	time.Sleep(50 * time.Millisecond)
	close(model.release)
	wg.Wait()

	require.EqualValues(t, 1, model.calls.Load())
	require.Equal(t, answers[0], answers[1])

	// Both requests share the computed result, so neither reports a cache
	// hit and both carry the real outcome and context count.
	require.Len(t, tracker.events, 2)
	for _, raw := range tracker.events {
		event := raw.(analytics.ChatEvent)
		require.Equal(t, analytics.OutcomeError, event.Outcome)
		require.False(t, event.CacheHit)
		require.Equal(t, 2, event.ContextDocs)
	}
}

func TestAnswerRecordsContextDocCount(t *testing.T) {
	model := &stubModel{answer: "ok"}
	tracker := &stubTracker{}
	orch := newTestOrchestrator(model, nil, tracker, 5)

	orch.Answer(context.Background(), "question")

	event := tracker.events[0].(analytics.ChatEvent)
	require.Equal(t, 3, event.ContextDocs)
}
