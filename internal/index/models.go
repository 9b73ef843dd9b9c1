package index

import "time"

// Meta describes where a document came from.
type Meta struct {
	Type      string `json:"type,omitempty"`       // "text", "audio", "video", "markdown"
	Source    string `json:"source,omitempty"`     // transcript origin or fetched URL
	SourceURL string `json:"source_url,omitempty"` // original reference kept for review
}

// Document is the indexer's input: plain text plus provenance.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Meta  *Meta  `json:"meta,omitempty"`
}

// IndexedDocument is a Document with its term statistics.
type IndexedDocument struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Text          string         `json:"text"`
	Meta          *Meta          `json:"meta,omitempty"`
	TermFrequency map[string]int `json:"termFrequency"`
	TermCount     int            `json:"termCount"`
}

// Index is the unit of persistence. It is rebuilt wholesale on every ingestion.
type Index struct {
	Version                  int64              `json:"version"`
	UpdatedAt                time.Time          `json:"updatedAt"`
	Documents                []IndexedDocument  `json:"documents"`
	DocumentFrequency        map[string]int     `json:"documentFrequency"`
	InverseDocumentFrequency map[string]float64 `json:"inverseDocumentFrequency"`
	CorpusSize               int                `json:"corpusSize"`
}
