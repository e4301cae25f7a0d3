package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"neuraslide/internal/core"
)

// Pinger checks datastore liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint used by deploy probes.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates the handler. db may be nil, in which case only
// process liveness is reported.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// RegisterRoutes mounts the health endpoint.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Check)
}

// Check reports 200 when the process and its datastore are reachable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "skipped"
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			dbStatus = "ok"
		}
	}

	core.JSON(w, r, code, map[string]string{
		"status":   status,
		"database": dbStatus,
	})
}
