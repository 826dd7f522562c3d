// Package ingest orchestrates the fetch → normalize → upsert cycle that
// keeps the document store consistent under repeated runs. The pipeline is
// designed to run unattended on a schedule: a total failure (feed or store
// unreachable) is logged and degraded, never propagated, and one malformed
// item never aborts the batch.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/regwatch/regwatch/internal/analytics"
	"github.com/regwatch/regwatch/internal/feed"
	"github.com/regwatch/regwatch/internal/normalize"
	"github.com/regwatch/regwatch/internal/store"
	"github.com/regwatch/regwatch/pkg/config"
	"github.com/regwatch/regwatch/pkg/metrics"
)

// Placeholders used when the feed omits a field. Downstream consumers rely on
// these never being empty.
const (
	placeholderTitle   = "Untitled Document"
	placeholderSummary = "No summary available"
	placeholderAgency  = "Unknown Agency"
)

// Fetcher supplies the raw window of recently published documents.
type Fetcher interface {
	FetchWindow(ctx context.Context, days int) ([]feed.RawDocument, error)
}

// Store is the subset of the document store the pipeline writes through.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, doc store.Document) (store.UpsertResult, error)
}

// Recorder receives usage events for asynchronous aggregation. It must never
// block.
type Recorder interface {
	Track(event any)
}

// Result reports a single pipeline run. Saved counts newly inserted rows
// only; re-ingested documents that already existed are updates and do not
// count.
type Result struct {
	Saved int `json:"saved"`
}

// Pipeline wires Fetcher → normalize → Store.
type Pipeline struct {
	fetcher    Fetcher
	store      Store
	recorder   Recorder
	metrics    *metrics.Metrics
	windowDays int
	maxSummary int
	logger     *slog.Logger
}

// New creates a Pipeline. recorder and m may be nil when the host process
// runs without analytics or metrics.
func New(fetcher Fetcher, st Store, recorder Recorder, m *metrics.Metrics, feedCfg config.FeedConfig, queryCfg config.QueryConfig) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		store:      st,
		recorder:   recorder,
		metrics:    m,
		windowDays: feedCfg.WindowDays,
		maxSummary: queryCfg.SummaryMaxChars,
		logger:     slog.Default().With("component", "ingest-pipeline"),
	}
}

// Run executes one full ingestion cycle. It never returns an error: an
// unreachable feed or store degrades to a zero-saved run so the scheduler
// that hosts it keeps running.
func (p *Pipeline) Run(ctx context.Context) Result {
	start := time.Now()
	p.logger.Info("ingestion run starting", "window_days", p.windowDays)

	if err := p.store.EnsureSchema(ctx); err != nil {
		p.logger.Error("schema check failed, skipping run", "error", err)
		p.countRun("degraded")
		return Result{}
	}

	raw, err := p.fetcher.FetchWindow(ctx, p.windowDays)
	if err != nil {
		p.logger.Error("feed fetch failed, skipping run", "error", err)
		p.countRun("degraded")
		return Result{}
	}
	if p.metrics != nil {
		p.metrics.DocsFetchedTotal.Add(float64(len(raw)))
	}

	saved := 0
	skipped := 0
	for _, item := range raw {
		doc, ok := p.prepare(item)
		if !ok {
			skipped++
			continue
		}
		result, err := p.store.Upsert(ctx, doc)
		if err != nil {
			p.logger.Warn("upsert failed, skipping document",
				"external_id", doc.ExternalID,
				"error", err,
			)
			skipped++
			continue
		}
		if result.Inserted {
			saved++
		}
		p.countUpsert(result.Inserted)
		if p.recorder != nil {
			p.recorder.Track(analytics.NewDocumentEvent(doc.ExternalID, result.Inserted))
		}
	}

	p.countRun("ok")
	p.logger.Info("ingestion run complete",
		"fetched", len(raw),
		"saved", saved,
		"skipped", skipped,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return Result{Saved: saved}
}

// prepare normalizes one raw feed item into a storable document. It returns
// ok=false for items missing the external identifier or carrying an
// unparsable publication date.
func (p *Pipeline) prepare(item feed.RawDocument) (store.Document, bool) {
	if item.DocumentNumber == "" {
		p.logger.Warn("skipping document without document_number")
		return store.Document{}, false
	}

	pubDate, err := time.Parse("2006-01-02", item.PublicationDate)
	if err != nil {
		p.logger.Warn("skipping document with bad publication_date",
			"external_id", item.DocumentNumber,
			"publication_date", item.PublicationDate,
		)
		return store.Document{}, false
	}

	agency := placeholderAgency
	if len(item.Agencies) > 0 && item.Agencies[0].Name != "" {
		agency = item.Agencies[0].Name
	}

	return store.Document{
		ExternalID:      item.DocumentNumber,
		Title:           normalize.Clean(item.Title, placeholderTitle, p.maxSummary),
		PublicationDate: pubDate,
		Summary:         normalize.Clean(item.Summary(), placeholderSummary, p.maxSummary),
		Agency:          agency,
		FetchedAt:       time.Now().UTC(),
	}, true
}

func (p *Pipeline) countRun(status string) {
	if p.metrics != nil {
		p.metrics.IngestRunsTotal.WithLabelValues(status).Inc()
	}
}

func (p *Pipeline) countUpsert(inserted bool) {
	if p.metrics == nil {
		return
	}
	if inserted {
		p.metrics.DocsUpsertedTotal.WithLabelValues("inserted").Inc()
	} else {
		p.metrics.DocsUpsertedTotal.WithLabelValues("updated").Inc()
	}
}
