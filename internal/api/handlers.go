package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/retriever"
	"github.com/bull/lexrag/internal/service"
)

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

type searchResponse struct {
	Results []retriever.ScoredDocument `json:"results"`
}

type documentsResponse struct {
	Documents []service.DocumentSummary `json:"documents"`
	Count     int                       `json:"count"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ingest.ErrInvalidRequest.Error())
		return
	}

	result, err := s.backend.Ingest(r.Context(), req)
	switch {
	case errors.Is(err, ingest.ErrInvalidRequest), errors.Is(err, ingest.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("Ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed: index not updated")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.backend.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("Search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.backend.Ask(r.Context(), req.Query, req.TopK)
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("Ask failed", "error", err)
		writeError(w, http.StatusInternalServerError, "answer failed")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.backend.Status(r.Context())
	if err != nil {
		s.logger.Error("Status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read index")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.backend.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("List documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read index")
		return
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: docs, Count: len(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.backend.GetDocument(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
		return
	case err != nil:
		s.logger.Error("Get document failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read index")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
