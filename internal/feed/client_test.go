package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch/regwatch/pkg/config"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
)

func testFeedConfig(baseURL string) config.FeedConfig {
	return config.FeedConfig{
		BaseURL:    baseURL,
		WindowDays: 7,
		PerPage:    15,
		Timeout:    2 * time.Second,
	}
}

func TestFetchWindowParsesDocuments(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents.json", r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"per_page": q.Get("per_page"),
			"order":    q.Get("order"),
			"gte":      q.Get("conditions[publication_date][gte]"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{
					"document_number": "2026-12345",
					"title": "Air Quality Standards",
					"abstract": "Proposed revision of standards.",
					"publication_date": "2026-08-28",
					"agencies": [{"name": "Environmental Protection Agency"}]
				},
				{
					"document_number": "2026-12346",
					"title": "Fishery Notice",
					"description": "Catch limits updated.",
					"publication_date": "2026-08-27"
				}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(testFeedConfig(server.URL))
	docs, err := client.FetchWindow(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	require.Equal(t, "15", gotQuery["per_page"])
	require.Equal(t, "newest", gotQuery["order"])
	wantSince := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
	require.Equal(t, wantSince, gotQuery["gte"])

	require.Equal(t, "2026-12345", docs[0].DocumentNumber)
	require.Equal(t, "Proposed revision of standards.", docs[0].Summary())
	require.Equal(t, "Environmental Protection Agency", docs[0].Agencies[0].Name)
	require.Equal(t, "Catch limits updated.", docs[1].Summary())
}

func TestFetchWindowServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testFeedConfig(server.URL))
	_, err := client.FetchWindow(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrFeedUnavailable)
}

func TestFetchWindowTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(testFeedConfig(server.URL))
	_, err := client.FetchWindow(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrFeedUnavailable)
}

func TestFetchWindowMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [`))
	}))
	defer server.Close()

	client := NewClient(testFeedConfig(server.URL))
	_, err := client.FetchWindow(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrFeedUnavailable)
}

func TestSummaryPrefersAbstract(t *testing.T) {
	doc := RawDocument{Abstract: "abstract text", Description: "description text"}
	require.Equal(t, "abstract text", doc.Summary())

	doc = RawDocument{Description: "description text"}
	require.Equal(t, "description text", doc.Summary())

	require.Equal(t, "", RawDocument{}.Summary())
}
