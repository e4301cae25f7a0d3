package db

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"neuraslide/internal/types"
)

// ProcessedEventRepo is the persistence layer for the processed-event
// ledger. Rows are append-only; each processing attempt writes exactly one
// row.
type ProcessedEventRepo struct {
	db DBTX
}

// NewProcessedEventRepo creates a repo backed by the given connection.
func NewProcessedEventRepo(db DBTX) *ProcessedEventRepo {
	return &ProcessedEventRepo{db: db}
}

// Insert appends a ledger row and returns its id.
func (r *ProcessedEventRepo) Insert(ctx context.Context, ev *types.ProcessedEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO processed_events
		   (id, event_id, event_type, provider, success, action, details, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		ev.ID, ev.EventID, ev.EventType, ev.Provider,
		ev.Success, ev.Action, types.DetailsMap(ev.Details), ev.Error,
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to record processed event", err)
	}
	return ev.ID, nil
}

// List returns the most recent ledger rows, optionally filtered by provider.
// limit is clamped to [1, 200].
func (r *ProcessedEventRepo) List(ctx context.Context, provider types.Provider, limit int) ([]types.ProcessedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `SELECT id, event_id, event_type, provider, success, action, details, error, created_at
	          FROM processed_events`
	args := []any{}
	if provider != "" {
		query += ` WHERE provider = $1`
		args = append(args, provider)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query processed events", err)
	}
	defer rows.Close()

	var events []types.ProcessedEvent
	for rows.Next() {
		var ev types.ProcessedEvent
		var details types.DetailsMap
		if err := rows.Scan(
			&ev.ID, &ev.EventID, &ev.EventType, &ev.Provider,
			&ev.Success, &ev.Action, &details, &ev.Error, &ev.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan processed event row", err)
		}
		ev.Details = details
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating processed event rows", err)
	}

	return events, nil
}

// ListOlderThan streams ledger rows older than the cutoff, oldest first,
// for archival export.
func (r *ProcessedEventRepo) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]types.ProcessedEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, event_type, provider, success, action, details, error, created_at
		 FROM processed_events
		 WHERE created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query archivable events", err)
	}
	defer rows.Close()

	var events []types.ProcessedEvent
	for rows.Next() {
		var ev types.ProcessedEvent
		var details types.DetailsMap
		if err := rows.Scan(
			&ev.ID, &ev.EventID, &ev.EventType, &ev.Provider,
			&ev.Success, &ev.Action, &details, &ev.Error, &ev.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan archivable event row", err)
		}
		ev.Details = details
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating archivable event rows", err)
	}
	return events, nil
}

// DeleteByIDs removes exported ledger rows after a successful archive write.
func (r *ProcessedEventRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM processed_events WHERE id = ANY($1)`, ids)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete archived events", err)
	}
	return nil
}
