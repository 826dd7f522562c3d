// Package analytics collects usage events (chat requests, document
// ingestions) onto Kafka, aggregates them into running statistics, and
// snapshots those statistics to PostgreSQL.
package analytics

import "time"

type EventType string

const (
	EventChat     EventType = "chat"
	EventDocument EventType = "document_ingested"
)

// Outcome classifies how a chat request resolved.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// ChatEvent records a single question/answer round trip.
type ChatEvent struct {
	Type        EventType `json:"type"`
	Question    string    `json:"question"`
	Outcome     Outcome   `json:"outcome"`
	CacheHit    bool      `json:"cache_hit"`
	ContextDocs int       `json:"context_docs"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

// DocumentEvent records one document upsert during ingestion.
type DocumentEvent struct {
	Type       EventType `json:"type"`
	ExternalID string    `json:"external_id"`
	Inserted   bool      `json:"inserted"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChatEvent stamps a ChatEvent with its type and time.
func NewChatEvent(question string, outcome Outcome, cacheHit bool, contextDocs int, latency time.Duration, requestID string) ChatEvent {
	return ChatEvent{
		Type:        EventChat,
		Question:    question,
		Outcome:     outcome,
		CacheHit:    cacheHit,
		ContextDocs: contextDocs,
		LatencyMs:   latency.Milliseconds(),
		Timestamp:   time.Now().UTC(),
		RequestID:   requestID,
	}
}

// NewDocumentEvent stamps a DocumentEvent with its type and time.
func NewDocumentEvent(externalID string, inserted bool) DocumentEvent {
	return DocumentEvent{
		Type:       EventDocument,
		ExternalID: externalID,
		Inserted:   inserted,
		Timestamp:  time.Now().UTC(),
	}
}
