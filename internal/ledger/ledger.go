// Package ledger records webhook processing outcomes in the append-only
// processed-event ledger and manages its archival.
package ledger

import (
	"context"
	"log/slog"

	"neuraslide/internal/types"
)

// EventStore is the persistence surface the recorder writes to.
type EventStore interface {
	Insert(ctx context.Context, ev *types.ProcessedEvent) (string, error)
}

// Recorder appends one ledger row per processing attempt. Ledger failures
// are logged and swallowed: the outcome has already been produced, and the
// provider response must not depend on bookkeeping.
type Recorder struct {
	store  EventStore
	logger *slog.Logger
}

// NewRecorder wires the recorder to its store.
func NewRecorder(store EventStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record appends the outcome of one processed event. Returns the ledger row
// id, or empty string when the write failed.
func (r *Recorder) Record(
	ctx context.Context,
	provider types.Provider,
	eventID string,
	eventType types.EventKind,
	result types.ProcessingResult,
) string {
	id, err := r.store.Insert(ctx, &types.ProcessedEvent{
		EventID:   eventID,
		EventType: eventType,
		Provider:  provider,
		Success:   result.Success,
		Action:    result.Action,
		Details:   result.Details,
		Error:     result.Error,
	})
	if err != nil {
		r.logger.Error("failed to record processed event",
			slog.String("provider", string(provider)),
			slog.String("event_id", eventID),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return id
}
