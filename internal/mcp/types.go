// Package mcp exposes the document index as Model Context Protocol tools.
package mcp

import "github.com/bull/lexrag/internal/ingest"

// SearchDocsInput defines the input parameters for the search_docs tool.
type SearchDocsInput struct {
	// Query is the free-text search query.
	Query string `json:"query" jsonschema:"The search query. Stop words are ignored."`
	// TopK is the maximum number of documents to return.
	TopK int `json:"top_k,omitempty" jsonschema:"Maximum number of documents to return (default 5, max 50)"`
}

// SearchDocsOutput contains the search results.
type SearchDocsOutput struct {
	// Results is the ranked list of matching documents.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching documents found").
	Message string `json:"message,omitempty"`
}

// SearchResult represents a single ranked document.
type SearchResult struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
	// Snippet is the start of the document text. Use fetch_doc for the rest.
	Snippet string `json:"snippet"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Query string `json:"query" jsonschema:"The question to answer from the indexed documents"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Number of documents to retrieve before answering (default 5)"`
}

// AskOutput contains the answer and the documents it was drawn from.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Mode    string         `json:"mode"`
	Sources []SearchResult `json:"sources"`
}

// IngestDocsInput defines the input parameters for the ingest_docs tool.
type IngestDocsInput struct {
	Docs []ingest.RawDocument `json:"docs" jsonschema:"Documents to index. Each needs text or an audio/video reference."`
	Mode string               `json:"mode,omitempty" jsonschema:"append (default) keeps existing documents, replace discards them"`
}

// IngestDocsOutput reports the rebuilt index.
type IngestDocsOutput struct {
	Indexed int    `json:"indexed"`
	Total   int    `json:"total"`
	Mode    string `json:"mode"`
	Version int64  `json:"version"`
}

// FetchDocInput defines the input parameters for the fetch_doc tool.
type FetchDocInput struct {
	ID string `json:"id" jsonschema:"The document id as returned by search_docs or list_docs"`
}

// FetchDocOutput contains the retrieved document.
type FetchDocOutput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	Source  string `json:"source,omitempty"`
	// Found indicates whether the document exists.
	Found bool `json:"found"`
}

// ListDocsInput takes no parameters.
type ListDocsInput struct{}

// ListDocsOutput contains every indexed document.
type ListDocsOutput struct {
	Documents []DocEntry `json:"documents"`
	Count     int        `json:"count"`
}

// DocEntry is one list_docs row.
type DocEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the index.
type StatusOutput struct {
	Exists    bool   `json:"exists"`
	Version   int64  `json:"version"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Documents int    `json:"documents"`
	Terms     int    `json:"terms"`
	Remote    string `json:"remote"`
	// RemoteVersion trails Version while the mirror misses recent saves.
	RemoteVersion int64 `json:"remote_version,omitempty"`
	// SourceCommit is the GitHub commit of the last sync, if any.
	SourceCommit string `json:"source_commit,omitempty"`
	// CommitsBehind is nil when staleness could not be determined.
	CommitsBehind *int   `json:"commits_behind,omitempty"`
	StaleWarning  string `json:"stale_warning,omitempty"`
}
