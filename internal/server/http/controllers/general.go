package controllers

import (
	"context"
	"net/http"

	"github.com/eigenein/myiot/internal/store"
)

// HealthChecker reports whether the backing storage is usable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
	Store() *store.Store
}

// GeneralController handles health and channel listing.
type GeneralController struct {
	rt HealthChecker
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt HealthChecker) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Known channels (/v1/channels)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/healthz", c.handleHealth)
	mux.HandleFunc("GET /v1/channels", c.handleChannels)
}

// handleHealth returns 200 OK with {"status": "ok"} if healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (c *GeneralController) handleChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"channels": c.rt.Store().Channels()})
}
