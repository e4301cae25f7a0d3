package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"neuraslide/internal/types"
)

// ArchiveStore is the persistence surface the archiver drains.
type ArchiveStore interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]types.ProcessedEvent, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// archiveBatchSize bounds memory per export round trip.
const archiveBatchSize = 1000

// Archiver exports aged ledger rows as zstd-compressed NDJSON and deletes
// them only after the compressed stream has been flushed. The ledger is
// append-only in the hot path; the archiver is the single component allowed
// to remove rows.
type Archiver struct {
	store  ArchiveStore
	logger *slog.Logger
}

// NewArchiver wires the archiver to its store.
func NewArchiver(store ArchiveStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, logger: logger}
}

// archivedEvent is the NDJSON line shape of one exported ledger row.
type archivedEvent struct {
	ID        string         `json:"id"`
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	Provider  string         `json:"provider"`
	Success   bool           `json:"success"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Run archives every ledger row older than the cutoff into out, one JSON
// object per line, zstd-compressed. Rows are deleted batch by batch after
// each batch is written; a failure mid-run leaves later rows untouched for
// the next run. Returns the number of rows archived.
func (a *Archiver) Run(ctx context.Context, cutoff time.Time, out io.Writer) (int, error) {
	enc, err := zstd.NewWriter(out)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	total := 0
	for {
		batch, err := a.store.ListOlderThan(ctx, cutoff, archiveBatchSize)
		if err != nil {
			enc.Close()
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		ids := make([]string, 0, len(batch))
		for _, ev := range batch {
			line, err := json.Marshal(archivedEvent{
				ID:        ev.ID,
				EventID:   ev.EventID,
				EventType: string(ev.EventType),
				Provider:  string(ev.Provider),
				Success:   ev.Success,
				Action:    ev.Action,
				Details:   ev.Details,
				Error:     ev.Error,
				CreatedAt: ev.CreatedAt.UTC(),
			})
			if err != nil {
				enc.Close()
				return total, fmt.Errorf("marshal ledger row %s: %w", ev.ID, err)
			}
			if _, err := enc.Write(append(line, '\n')); err != nil {
				enc.Close()
				return total, fmt.Errorf("write archive line: %w", err)
			}
			ids = append(ids, ev.ID)
		}

		// Flush before deleting so a crash never loses rows.
		if err := enc.Flush(); err != nil {
			enc.Close()
			return total, fmt.Errorf("flush archive: %w", err)
		}
		if err := a.store.DeleteByIDs(ctx, ids); err != nil {
			enc.Close()
			return total, err
		}

		total += len(batch)
		a.logger.Info("archived ledger batch",
			slog.Int("rows", len(batch)),
			slog.Int("total", total),
		)
	}

	if err := enc.Close(); err != nil {
		return total, fmt.Errorf("close zstd writer: %w", err)
	}
	return total, nil
}
