// Package feed fetches recently published documents from the Federal
// Register API. Transport failures and non-2xx responses surface as errors
// wrapping apperrors.ErrFeedUnavailable; there is no retry at this layer,
// since a failed window fetch self-heals on the next scheduled run.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/regwatch/regwatch/pkg/config"
	apperrors "github.com/regwatch/regwatch/pkg/errors"
)

// Client calls the publication feed.
type Client struct {
	baseURL string
	perPage int
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a feed client. The HTTP client carries the configured
// timeout so a stalled feed cannot hang an ingestion run.
func NewClient(cfg config.FeedConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		perPage: cfg.PerPage,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  slog.Default().With("component", "feed-client"),
	}
}

// FetchWindow requests documents published within the trailing window of the
// given number of days, newest first, bounded by the configured page size.
func (c *Client) FetchWindow(ctx context.Context, days int) ([]RawDocument, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")

	params := url.Values{}
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("order", "newest")
	params.Set("conditions[publication_date][gte]", since)
	endpoint := c.baseURL + "/documents.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", apperrors.ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Info("fetching feed window", "since", since, "per_page", c.perPage)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: feed returned status %d", apperrors.ErrFeedUnavailable, resp.StatusCode)
	}

	var body documentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", apperrors.ErrFeedUnavailable, err)
	}

	c.logger.Info("feed window fetched", "documents", len(body.Results))
	return body.Results, nil
}
