package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
)

type stubAnswerer struct {
	answer      string
	gotQuestion string
}

func (s *stubAnswerer) Answer(_ context.Context, question string) string {
	s.gotQuestion = question
	return s.answer
}

type stubReader struct {
	docs     []store.Document
	docsErr  error
	summary  *store.UpdateSummary
	sumErr   error
	gotLimit int
}

func (s *stubReader) MostRecent(_ context.Context, limit int) ([]store.Document, error) {
	s.gotLimit = limit
	return s.docs, s.docsErr
}

func (s *stubReader) LastUpdateSummary(_ context.Context) (*store.UpdateSummary, error) {
	return s.summary, s.sumErr
}

func testConfigs() (config.ModelConfig, config.QueryConfig) {
	return config.ModelConfig{
			Name:        "mistral:latest",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			MaxTokens:   1000,
		}, config.QueryConfig{
			RetrieveLimit: 5,
			ContextDocs:   3,
			SnippetChars:  300,
		}
}

func TestChat(t *testing.T) {
	answerer := &stubAnswerer{answer: "Here is the answer."}
	modelCfg, queryCfg := testConfigs()
	h := New(answerer, &stubReader{}, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message": "  What changed?  "}`))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Here is the answer.", body.Response)
	require.Equal(t, "What changed?", answerer.gotQuestion)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, &stubReader{}, nil, modelCfg, queryCfg)

	for _, payload := range []string{`{"message": ""}`, `{"message": "   "}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.Chat(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "payload: %s", payload)
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, &stubReader{}, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{message`))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentDocuments(t *testing.T) {
	reader := &stubReader{docs: []store.Document{
		{
			ExternalID:      "2026-100",
			Title:           "Air Quality Standards",
			PublicationDate: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
			Summary:         "Proposed revision.",
			Agency:          "EPA",
		},
	}}
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, reader, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/recent", nil)
	rec := httptest.NewRecorder()
	h.RecentDocuments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, reader.gotLimit)

	var body documentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, "2026-100", body.Documents[0].ExternalID)
	require.Equal(t, "2026-08-28", body.Documents[0].PublicationDate)
}

func TestRecentDocumentsLimitParam(t *testing.T) {
	reader := &stubReader{}
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, reader, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/recent?limit=2", nil)
	rec := httptest.NewRecorder()
	h.RecentDocuments(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, reader.gotLimit)

	// The retrieval limit is an upper bound.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/recent?limit=50", nil)
	rec = httptest.NewRecorder()
	h.RecentDocuments(rec, req)
	require.Equal(t, 5, reader.gotLimit)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/recent?limit=abc", nil)
	rec = httptest.NewRecorder()
	h.RecentDocuments(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentDocumentsStoreFailure(t *testing.T) {
	reader := &stubReader{docsErr: fmt.Errorf("%w: connection refused", apperrors.ErrStoreUnavailable)}
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, reader, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/recent", nil)
	rec := httptest.NewRecorder()
	h.RecentDocuments(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSystemInfo(t *testing.T) {
	latest := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	reader := &stubReader{summary: &store.UpdateSummary{
		LastDocumentDate: latest,
		TotalDocuments:   42,
	}}
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, reader, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/system-info", nil)
	rec := httptest.NewRecorder()
	h.SystemInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body systemInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "mistral:latest", body.Model.Name)
	require.Equal(t, 3, body.Model.MaxAttempts)
	require.Equal(t, 5, body.Query.RetrieveLimit)
	require.NotNil(t, body.LastUpdate)
	require.Equal(t, int64(42), body.LastUpdate.TotalDocuments)
}

func TestSystemInfoDegradesOnStoreFailure(t *testing.T) {
	reader := &stubReader{sumErr: errors.New("connection refused")}
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, reader, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/system-info", nil)
	rec := httptest.NewRecorder()
	h.SystemInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body systemInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Nil(t, body.LastUpdate)
}

func TestInvalidateCacheWithoutCache(t *testing.T) {
	modelCfg, queryCfg := testConfigs()
	h := New(&stubAnswerer{}, &stubReader{}, nil, modelCfg, queryCfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil)
	rec := httptest.NewRecorder()
	h.InvalidateCache(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
