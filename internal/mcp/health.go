package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Index  string `json:"index"`
	// Remote is "none" without a mirror, otherwise "connected" or "disconnected".
	Remote    string `json:"remote"`
	Backend   string `json:"backend,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// The index store implements this.
type HealthChecker interface {
	Health(ctx context.Context) error
	MirrorHealth(ctx context.Context) error
	MirrorName() string
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// An unusable local index directory is unhealthy (503). An unreachable mirror
// only degrades the service since reads and writes fall back to local.
func NewHealthHandler(store HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Index:     "ok",
			Remote:    "none",
			Backend:   store.MirrorName(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK

		if response.Backend != "" {
			response.Remote = "connected"
			if err := store.MirrorHealth(ctx); err != nil {
				response.Status = "degraded"
				response.Remote = "disconnected"
			}
		}

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Index = "unavailable"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
	}
}
