package handler

import (
	"net/http"
	"time"

	"github.com/stableloop/auctiond/internal/domain"
)

// HeightSource reports the bidding engine's current height.
type HeightSource interface {
	Now() domain.Height
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	heights HeightSource
}

// NewHealthHandler creates a HealthHandler reporting the given engine's
// height.
func NewHealthHandler(heights HeightSource) *HealthHandler {
	return &HealthHandler{heights: heights}
}

// HealthCheck responds with a simple JSON status indicating the server is
// alive, plus the engine's current height.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"height":    h.heights.Now(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
