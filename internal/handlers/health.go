package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
)

// HealthChecker reports whether the backing store answers
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	store   HealthChecker
	timeout time.Duration
}

func NewHealthHandler(store HealthChecker) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second}
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.HealthCheck(ctx); err != nil {
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Store: "down"})
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "up"})
}
