// Package handler implements the HTTP API: chat, recent documents, system
// info, analytics, and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/regwatch/regwatch/internal/rag/cache"
	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
	"github.com/regwatch/regwatch/pkg/logger"
	"github.com/regwatch/regwatch/pkg/tracing"
)

// Answerer produces an answer for a question. It never fails; degraded
// conditions surface as answer text.
type Answerer interface {
	Answer(ctx context.Context, question string) string
}

// DocumentReader serves document listings and store metadata.
type DocumentReader interface {
	MostRecent(ctx context.Context, limit int) ([]store.Document, error)
	LastUpdateSummary(ctx context.Context) (*store.UpdateSummary, error)
}

// Handler holds the dependencies of the API endpoints. cache may be nil when
// Redis is not configured.
type Handler struct {
	answerer Answerer
	docs     DocumentReader
	cache    *cache.AnswerCache
	modelCfg config.ModelConfig
	queryCfg config.QueryConfig
}

func New(answerer Answerer, docs DocumentReader, answerCache *cache.AnswerCache, modelCfg config.ModelConfig, queryCfg config.QueryConfig) *Handler {
	return &Handler{
		answerer: answerer,
		docs:     docs,
		cache:    answerCache,
		modelCfg: modelCfg,
		queryCfg: queryCfg,
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat handles POST /api/v1/chat. The message must be non-empty; everything
// past validation returns 200 with answer text, including model failures.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "http.chat", logger.RequestID(r.Context()))
	defer func() {
		span.End()
		span.Log()
	}()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	span.SetAttr("question_chars", len(question))

	answer := h.answerer.Answer(ctx, question)
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
}

type documentView struct {
	ExternalID      string `json:"external_id"`
	Title           string `json:"title"`
	PublicationDate string `json:"publication_date"`
	Summary         string `json:"summary"`
	Agency          string `json:"agency"`
}

type documentsResponse struct {
	Documents []documentView `json:"documents"`
	Count     int            `json:"count"`
}

// RecentDocuments handles GET /api/v1/documents/recent. An optional limit
// query parameter caps the listing, bounded by the retrieval limit.
func (h *Handler) RecentDocuments(w http.ResponseWriter, r *http.Request) {
	limit := h.queryCfg.RetrieveLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	docs, err := h.docs.MostRecent(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("listing recent documents failed", "error", err)
		writeError(w, apperrors.HTTPStatusCode(err), "document store unavailable")
		return
	}

	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, documentView{
			ExternalID:      doc.ExternalID,
			Title:           doc.Title,
			PublicationDate: doc.PublicationDate.Format("2006-01-02"),
			Summary:         doc.Summary,
			Agency:          doc.Agency,
		})
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: views, Count: len(views)})
}

type systemInfoResponse struct {
	Model      modelInfo            `json:"model"`
	Query      queryInfo            `json:"query"`
	LastUpdate *store.UpdateSummary `json:"last_update"`
	Time       time.Time            `json:"time"`
}

type modelInfo struct {
	Name        string `json:"name"`
	Timeout     string `json:"timeout"`
	MaxAttempts int    `json:"max_attempts"`
	MaxTokens   int    `json:"max_tokens"`
}

type queryInfo struct {
	RetrieveLimit int `json:"retrieve_limit"`
	ContextDocs   int `json:"context_docs"`
	SnippetChars  int `json:"snippet_chars"`
}

// SystemInfo handles GET /api/v1/system-info. A store failure degrades to a
// null last_update rather than an error; the endpoint reports configuration
// regardless of backend health.
func (h *Handler) SystemInfo(w http.ResponseWriter, r *http.Request) {
	summary, err := h.docs.LastUpdateSummary(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Warn("reading update summary failed", "error", err)
		summary = nil
	}
	writeJSON(w, http.StatusOK, systemInfoResponse{
		Model: modelInfo{
			Name:        h.modelCfg.Name,
			Timeout:     h.modelCfg.Timeout.String(),
			MaxAttempts: h.modelCfg.MaxAttempts,
			MaxTokens:   h.modelCfg.MaxTokens,
		},
		Query: queryInfo{
			RetrieveLimit: h.queryCfg.RetrieveLimit,
			ContextDocs:   h.queryCfg.ContextDocs,
			SnippetChars:  h.queryCfg.SnippetChars,
		},
		LastUpdate: summary,
		Time:       time.Now().UTC(),
	})
}

// InvalidateCache handles POST /api/v1/cache/invalidate.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "answer cache not configured")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
