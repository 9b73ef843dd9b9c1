package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/service"
)

// Backend is the retrieval service the tools call. *service.Service
// implements it.
type Backend interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	Search(ctx context.Context, query string, topK int) ([]retriever.ScoredDocument, error)
	Ask(ctx context.Context, query string, topK int) (*service.Answer, error)
	Status(ctx context.Context) (*service.Status, error)
	ListDocuments(ctx context.Context) ([]service.DocumentSummary, error)
	GetDocument(ctx context.Context, id string) (*index.Document, error)
}

// StalenessChecker compares a synced commit with a branch head.
type StalenessChecker interface {
	CommitsBehind(ctx context.Context, owner, repo, base, head string) (int, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server  *mcp.Server
	backend Backend
}

// Config holds server dependencies.
type Config struct {
	Backend Backend
	// GitHub is optional; without it get_index_status skips the staleness check.
	GitHub StalenessChecker
	// Branch is compared against the synced commit. Defaults to "main".
	Branch  string
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Version == "" {
		cfg.Version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "lexrag",
		Version: cfg.Version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_docs",
		Description: "Search the indexed documents by keyword relevance (TF-IDF). Returns ranked documents with a snippet. Use fetch_doc to get full content.",
	}, makeSearchHandler(cfg.Backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed documents. Returns the answer and the documents it was drawn from.",
	}, makeAskHandler(cfg.Backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_docs",
		Description: "Add documents to the index (mode append) or replace the whole corpus (mode replace). Audio and video references are transcribed when transcription is enabled.",
	}, makeIngestHandler(cfg.Backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_doc",
		Description: "Retrieve one indexed document by id. Returns its full text.",
	}, makeFetchHandler(cfg.Backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_docs",
		Description: "List all indexed documents with their ids and titles.",
	}, makeListHandler(cfg.Backend))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the index including document and term counts, version, last update time, and staleness against GitHub for synced repositories.",
	}, makeStatusHandler(cfg.Backend, cfg.GitHub, cfg.Branch))

	return &Server{
		server:  server,
		backend: cfg.Backend,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
