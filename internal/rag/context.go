// Package rag assembles context from recently ingested documents and
// orchestrates the answer flow: retrieve, build a bounded context block,
// prompt the model, record the outcome.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/regwatch/regwatch/internal/normalize"
	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
	"github.com/regwatch/regwatch/pkg/metrics"
)

const contextLeadIn = "Here's some recent information that might be helpful:"

// Retriever fetches the most recent documents from the store.
type Retriever interface {
	MostRecent(ctx context.Context, limit int) ([]store.Document, error)
}

// ContextBuilder turns retrieved documents into the context block prepended
// to the model prompt. Retrieval failures degrade to an empty block; a chat
// without context still beats a chat that errors.
type ContextBuilder struct {
	retriever Retriever
	cfg       config.QueryConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewContextBuilder(r Retriever, cfg config.QueryConfig, m *metrics.Metrics) *ContextBuilder {
	return &ContextBuilder{
		retriever: r,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "context-builder"),
	}
}

// Build retrieves up to RetrieveLimit documents and formats the first
// ContextDocs of them. It returns the context block and the number of
// documents included; on any retrieval failure both are zero.
func (b *ContextBuilder) Build(ctx context.Context) (string, int) {
	docs, err := b.retriever.MostRecent(ctx, b.cfg.RetrieveLimit)
	if err != nil {
		b.logger.Warn("document retrieval failed, answering without context", "error", err)
		b.observeDocs(0)
		return "", 0
	}
	if len(docs) == 0 {
		b.observeDocs(0)
		return "", 0
	}
	if len(docs) > b.cfg.ContextDocs {
		docs = docs[:b.cfg.ContextDocs]
	}

	var sb strings.Builder
	sb.WriteString(contextLeadIn)
	sb.WriteString("\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&sb, "Document %d:\n", i+1)
		fmt.Fprintf(&sb, "Title: %s\n", doc.Title)
		fmt.Fprintf(&sb, "Date: %s\n", doc.PublicationDate.Format("2006-01-02"))
		fmt.Fprintf(&sb, "Summary: %s\n\n", normalize.Cap(doc.Summary, b.cfg.SnippetChars))
	}

	b.observeDocs(len(docs))
	return sb.String(), len(docs)
}

func (b *ContextBuilder) observeDocs(n int) {
	if b.metrics != nil {
		b.metrics.ContextDocsIncluded.Observe(float64(n))
	}
}
