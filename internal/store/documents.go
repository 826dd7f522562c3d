// Package store persists ingested Federal Register documents in PostgreSQL.
// Every failure at this boundary is wrapped in apperrors.ErrStoreUnavailable;
// the ingestion and query paths opt into degrading that to an empty result so
// a briefly unreachable database never takes either pipeline down.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/regwatch/regwatch/pkg/errors"
	"github.com/regwatch/regwatch/pkg/postgres"
)

// Document is a single ingested publication, keyed by the stable identifier
// assigned by the source feed.
type Document struct {
	ID              int64     `json:"-"`
	ExternalID      string    `json:"external_id"`
	Title           string    `json:"title"`
	PublicationDate time.Time `json:"publication_date"`
	Summary         string    `json:"summary"`
	Agency          string    `json:"agency"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// UpsertResult reports whether an upsert created a new row.
type UpsertResult struct {
	Inserted bool
}

// UpdateSummary describes the freshness of the stored corpus. LastFetch is
// the wall-clock moment of this query, not a stored value.
type UpdateSummary struct {
	LastDocumentDate time.Time `json:"last_document_date"`
	TotalDocuments   int64     `json:"total_documents"`
	LastFetch        time.Time `json:"last_fetch"`
}

// DocumentStore reads and writes the federal_documents table.
type DocumentStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a DocumentStore on top of an existing connection pool.
func New(db *postgres.Client) *DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

// EnsureSchema idempotently creates the backing table. The uniqueness
// constraint on external_id is the only schema invariant upsert relies on.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS federal_documents (
			id               BIGSERIAL PRIMARY KEY,
			external_id      VARCHAR(255) NOT NULL UNIQUE,
			title            TEXT NOT NULL,
			publication_date DATE NOT NULL,
			summary          TEXT NOT NULL,
			agency           TEXT NOT NULL,
			fetched_at       TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("%w: creating schema: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Upsert inserts the document or, when external_id already exists, overwrites
// all mutable fields. The write is a single atomic statement, so repeated
// ingestion of the same external_id converges on the latest values without a
// read-modify-write race. fetched_at never moves backwards.
func (s *DocumentStore) Upsert(ctx context.Context, doc Document) (UpsertResult, error) {
	var inserted bool
	err := s.db.DB.QueryRowContext(ctx, `
		INSERT INTO federal_documents
			(external_id, title, publication_date, summary, agency, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			title            = EXCLUDED.title,
			publication_date = EXCLUDED.publication_date,
			summary          = EXCLUDED.summary,
			agency           = EXCLUDED.agency,
			fetched_at       = GREATEST(federal_documents.fetched_at, EXCLUDED.fetched_at)
		RETURNING (xmax = 0)`,
		doc.ExternalID, doc.Title, doc.PublicationDate, doc.Summary, doc.Agency, doc.FetchedAt,
	).Scan(&inserted)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%w: upserting %s: %v", apperrors.ErrStoreUnavailable, doc.ExternalID, err)
	}
	return UpsertResult{Inserted: inserted}, nil
}

// MostRecent returns up to limit documents ordered by publication date
// descending, newest insertions first within a date.
func (s *DocumentStore) MostRecent(ctx context.Context, limit int) ([]Document, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, external_id, title, publication_date, summary, agency, fetched_at
		FROM federal_documents
		ORDER BY publication_date DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying recent documents: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ExternalID, &d.Title, &d.PublicationDate, &d.Summary, &d.Agency, &d.FetchedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning document row: %v", apperrors.ErrStoreUnavailable, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating document rows: %v", apperrors.ErrStoreUnavailable, err)
	}
	return docs, nil
}

// LastUpdateSummary reports the corpus freshness, or nil when the table does
// not exist yet or holds no rows.
func (s *DocumentStore) LastUpdateSummary(ctx context.Context) (*UpdateSummary, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_name = 'federal_documents'
		)`).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: checking table existence: %v", apperrors.ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, nil
	}

	var lastDate sql.NullTime
	var total int64
	err = s.db.DB.QueryRowContext(ctx, `
		SELECT MAX(publication_date), COUNT(*) FROM federal_documents`,
	).Scan(&lastDate, &total)
	if err != nil {
		return nil, fmt.Errorf("%w: querying update summary: %v", apperrors.ErrStoreUnavailable, err)
	}
	if !lastDate.Valid || total == 0 {
		return nil, nil
	}
	return &UpdateSummary{
		LastDocumentDate: lastDate.Time,
		TotalDocuments:   total,
		LastFetch:        time.Now().UTC(),
	}, nil
}
