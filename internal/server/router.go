package server

import (
	"net/http"

	"github.com/reflectcal/mailerd/internal/handlers"
)

// NewRouter constructs a ServeMux with the daemon's observability routes.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/healthz", h.HealthCheck)

	// Scheduler status
	mux.HandleFunc("/api/v1/status", h.Status)

	return mux
}
