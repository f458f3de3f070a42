package handlers

import (
	"net/http"

	"github.com/reflectcal/mailerd/internal/httputil"
)

// MetricsSource exposes a point-in-time scheduler metrics snapshot.
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

type Handler struct {
	metrics MetricsSource
}

func NewHandler(metrics MetricsSource) *Handler {
	return &Handler{metrics: metrics}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Status handles GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.metrics.GetMetrics())
}
