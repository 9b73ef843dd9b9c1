// Package api serves the JSON HTTP API over the retrieval service.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bull/lexrag/internal/index"
	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/service"
)

// maxBodyBytes bounds request bodies; inline base64 audio is the large case.
const maxBodyBytes = 32 << 20

// Backend is the set of operations the API exposes. *service.Service
// implements it.
type Backend interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	Search(ctx context.Context, query string, topK int) ([]retriever.ScoredDocument, error)
	Ask(ctx context.Context, query string, topK int) (*service.Answer, error)
	Status(ctx context.Context) (*service.Status, error)
	ListDocuments(ctx context.Context) ([]service.DocumentSummary, error)
	GetDocument(ctx context.Context, id string) (*index.Document, error)
}

// Server routes API requests to a Backend.
type Server struct {
	router  *http.ServeMux
	backend Backend
	logger  *slog.Logger
}

// NewServer returns a Server with all API routes registered.
func NewServer(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  http.NewServeMux(),
		backend: backend,
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

// Register mounts the API routes on mux, wrapped in recovery and request
// logging.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("/api/", s.Handler())
}

// Handler returns the API with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.logRequests(s.router))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/ingest", s.handleIngest)
	s.router.HandleFunc("POST /api/search", s.handleSearch)
	s.router.HandleFunc("POST /api/ask", s.handleAsk)
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /api/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
}
