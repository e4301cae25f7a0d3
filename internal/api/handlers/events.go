package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"neuraslide/internal/core"
	"neuraslide/internal/types"
)

// EventLister is the ledger query surface the events endpoint depends on.
type EventLister interface {
	List(ctx context.Context, provider types.Provider, limit int) ([]types.ProcessedEvent, error)
}

// EventsHandler exposes the processed-event ledger to operators.
type EventsHandler struct {
	events EventLister
	logger *slog.Logger
}

// NewEventsHandler creates the handler with its dependencies.
func NewEventsHandler(events EventLister, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{events: events, logger: logger}
}

// RegisterRoutes mounts the events query endpoint.
func (h *EventsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/events", h.List)
}

// processedEventView is the JSON shape of one ledger row.
type processedEventView struct {
	ID        string         `json:"id"`
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	Provider  string         `json:"provider"`
	Success   bool           `json:"success"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

// List returns the most recent ledger rows, newest first. Query params:
// provider (instagram|stripe) and limit (default 50, max 200).
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	provider := types.Provider(r.URL.Query().Get("provider"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidJSON,
				"limit must be an integer",
				err,
			))
			return
		}
		limit = n
	}

	events, err := h.events.List(r.Context(), provider, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list processed events",
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	views := make([]processedEventView, 0, len(events))
	for _, ev := range events {
		views = append(views, processedEventView{
			ID:        ev.ID,
			EventID:   ev.EventID,
			EventType: string(ev.EventType),
			Provider:  string(ev.Provider),
			Success:   ev.Success,
			Action:    ev.Action,
			Details:   ev.Details,
			Error:     ev.Error,
			CreatedAt: ev.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	core.OK(w, r, "", map[string]any{
		"events": views,
		"count":  len(views),
	})
}
