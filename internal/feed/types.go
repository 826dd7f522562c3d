package feed

// RawDocument is one item as returned by the Federal Register API. The feed
// is untrusted; any field may be missing or malformed, and the ingestion
// pipeline normalizes every value before it reaches the store.
type RawDocument struct {
	DocumentNumber  string      `json:"document_number"`
	Title           string      `json:"title"`
	Abstract        string      `json:"abstract"`
	Description     string      `json:"description"`
	PublicationDate string      `json:"publication_date"`
	Agencies        []RawAgency `json:"agencies"`
}

// RawAgency is the originating organization as listed by the feed.
type RawAgency struct {
	Name string `json:"name"`
}

// Summary returns the best available summary text, preferring abstract over
// description.
func (d RawDocument) Summary() string {
	if d.Abstract != "" {
		return d.Abstract
	}
	return d.Description
}

type documentsResponse struct {
	Results []RawDocument `json:"results"`
}
