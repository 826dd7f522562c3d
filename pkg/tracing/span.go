// Package tracing provides lightweight span timing propagated through Go
// contexts. Spans form parent-child trees and are logged as structured
// records via slog once the root span finishes.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span represents a timed operation within a trace.
type Span struct {
	name     string
	traceID  string
	started  time.Time
	elapsed  time.Duration
	children []*Span
	attrs    map[string]any
	mu       sync.Mutex
}

// StartSpan creates a new root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{
		name:    name,
		traceID: traceID,
		started: time.Now(),
		attrs:   make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChild creates a child span linked to the parent in ctx. When ctx
// carries no span, the child behaves as a detached root.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{
		name:    name,
		started: time.Now(),
		attrs:   make(map[string]any),
	}
	if parent := FromContext(ctx); parent != nil {
		child.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// End records the span's elapsed time.
func (s *Span) End() {
	s.elapsed = time.Since(s.started)
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// FromContext extracts the current Span from ctx, or nil if none.
func FromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the span tree to slog, one record per span.
func (s *Span) Log() {
	s.logRecursive(0)
}

func (s *Span) logRecursive(depth int) {
	attrs := []any{
		"trace_id", s.traceID,
		"span", s.name,
		"duration_ms", s.elapsed.Milliseconds(),
		"depth", depth,
	}
	s.mu.Lock()
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	children := s.children
	s.mu.Unlock()
	slog.Debug("span", attrs...)

	for _, child := range children {
		child.logRecursive(depth + 1)
	}
}
