package ingest

import (
	"errors"

	"github.com/bull/lexrag/internal/index"
)

var (
	ErrInvalidRequest = errors.New("docs array required")
	ErrInvalidMode    = errors.New("mode must be \"append\" or \"replace\"")
)

// Mode selects how new documents combine with the existing corpus.
type Mode string

const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
)

// ParseMode maps the wire value to a Mode. Empty means append.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", ErrInvalidMode
	}
}

// DedupePolicy decides what happens to documents sharing an id.
type DedupePolicy string

const (
	// DedupeKeep indexes every occurrence.
	DedupeKeep DedupePolicy = "keep"
	// DedupeLastWriteWins replaces the earlier occurrence in place.
	DedupeLastWriteWins DedupePolicy = "last-write-wins"
)

// RawDocument is a document as submitted by a client. Only one of Text,
// AudioBase64, AudioURL or VideoURL is normally set.
type RawDocument struct {
	ID          string      `json:"id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Text        string      `json:"text,omitempty"`
	AudioBase64 string      `json:"audioBase64,omitempty"`
	AudioURL    string      `json:"audioUrl,omitempty"`
	VideoURL    string      `json:"videoUrl,omitempty"`
	URL         string      `json:"url,omitempty"`
	Source      string      `json:"source,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
	Type        string      `json:"type,omitempty"`
	Meta        *index.Meta `json:"meta,omitempty"`
}

// Request is one ingestion call. A nil Docs slice is malformed; an empty one
// is valid and only rebuilds the index.
type Request struct {
	Docs []RawDocument `json:"docs"`
	Mode string        `json:"mode,omitempty"`
}

// Result reports what an ingestion did.
type Result struct {
	Indexed int   `json:"indexed"`
	Total   int   `json:"total"`
	Mode    Mode  `json:"mode"`
	Version int64 `json:"version"`
}
