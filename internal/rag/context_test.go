package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
)

type stubRetriever struct {
	docs     []store.Document
	err      error
	gotLimit int
}

func (s *stubRetriever) MostRecent(_ context.Context, limit int) ([]store.Document, error) {
	s.gotLimit = limit
	return s.docs, s.err
}

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{
		RetrieveLimit:   5,
		ContextDocs:     3,
		SnippetChars:    300,
		SummaryMaxChars: 2000,
	}
}

func makeDocs(n int) []store.Document {
	docs := make([]store.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, store.Document{
			ExternalID:      fmt.Sprintf("2026-%03d", i),
			Title:           fmt.Sprintf("Document Title %d", i),
			PublicationDate: time.Date(2026, 8, 28-i, 0, 0, 0, 0, time.UTC),
			Summary:         fmt.Sprintf("Summary %d", i),
			Agency:          "EPA",
		})
	}
	return docs
}

func TestBuildFormatsContext(t *testing.T) {
	retriever := &stubRetriever{docs: makeDocs(2)}
	builder := NewContextBuilder(retriever, testQueryConfig(), nil)

	block, count := builder.Build(context.Background())
	require.Equal(t, 2, count)
	require.Equal(t, 5, retriever.gotLimit)

	require.True(t, strings.HasPrefix(block, "Here's some recent information that might be helpful:"))
	require.Contains(t, block, "Document 1:\nTitle: Document Title 0\nDate: 2026-08-28\nSummary: Summary 0\n")
	require.Contains(t, block, "Document 2:\nTitle: Document Title 1\nDate: 2026-08-27\nSummary: Summary 1\n")
}

func TestBuildIncludesAtMostContextDocs(t *testing.T) {
	retriever := &stubRetriever{docs: makeDocs(5)}
	builder := NewContextBuilder(retriever, testQueryConfig(), nil)

	block, count := builder.Build(context.Background())
	require.Equal(t, 3, count)
	require.Contains(t, block, "Document 3:")
	require.NotContains(t, block, "Document 4:")
}

func TestBuildCapsSummarySnippets(t *testing.T) {
	docs := makeDocs(1)
	docs[0].Summary = strings.Repeat("s", 1000)
	retriever := &stubRetriever{docs: docs}
	builder := NewContextBuilder(retriever, testQueryConfig(), nil)

	block, _ := builder.Build(context.Background())
	require.Contains(t, block, strings.Repeat("s", 300)+"...")
	require.NotContains(t, block, strings.Repeat("s", 301))
}

func TestBuildEmptyStore(t *testing.T) {
	builder := NewContextBuilder(&stubRetriever{}, testQueryConfig(), nil)

	block, count := builder.Build(context.Background())
	require.Equal(t, "", block)
	require.Equal(t, 0, count)
}

func TestBuildDegradesOnRetrievalFailure(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("connection refused")}
	builder := NewContextBuilder(retriever, testQueryConfig(), nil)

	block, count := builder.Build(context.Background())
	require.Equal(t, "", block)
	require.Equal(t, 0, count)
}
