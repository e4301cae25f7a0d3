package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuraslide/internal/types"
)

type fakeArchiveStore struct {
	rows    []types.ProcessedEvent
	deleted [][]string
	listErr error
}

func (f *fakeArchiveStore) ListOlderThan(_ context.Context, cutoff time.Time, limit int) ([]types.ProcessedEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []types.ProcessedEvent
	for _, row := range f.rows {
		if row.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeArchiveStore) DeleteByIDs(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids)
	remaining := f.rows[:0]
	for _, row := range f.rows {
		keep := true
		for _, id := range ids {
			if row.ID == id {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, row)
		}
	}
	f.rows = remaining
	return nil
}

func ledgerRow(id string, age time.Duration) types.ProcessedEvent {
	return types.ProcessedEvent{
		ID: id, EventID: "evt-" + id, EventType: types.EventCommentCreated,
		Provider: types.ProviderInstagram, Success: true, Action: "comment_reply",
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestArchiver_ExportsAndDeletes(t *testing.T) {
	store := &fakeArchiveStore{rows: []types.ProcessedEvent{
		ledgerRow("a", 100*24*time.Hour),
		ledgerRow("b", 95*24*time.Hour),
		ledgerRow("c", time.Hour), // inside retention, stays
	}}
	var buf bytes.Buffer

	a := NewArchiver(store, nil)
	n, err := a.Run(context.Background(), time.Now().UTC().Add(-90*24*time.Hour), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The recent row survives, the exported rows are gone.
	require.Len(t, store.rows, 1)
	assert.Equal(t, "c", store.rows[0].ID)

	// The output decompresses to one JSON object per line.
	dec, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer dec.Close()

	var lines []archivedEvent
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var ev archivedEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		lines = append(lines, ev)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].ID)
	assert.Equal(t, "evt-a", lines[0].EventID)
	assert.Equal(t, "instagram", lines[0].Provider)
}

func TestArchiver_NothingToArchive(t *testing.T) {
	store := &fakeArchiveStore{rows: []types.ProcessedEvent{ledgerRow("c", time.Hour)}}
	var buf bytes.Buffer

	a := NewArchiver(store, nil)
	n, err := a.Run(context.Background(), time.Now().UTC().Add(-90*24*time.Hour), &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.deleted)
}

func TestArchiver_ListFailureLeavesRows(t *testing.T) {
	store := &fakeArchiveStore{listErr: errors.New("db down")}
	var buf bytes.Buffer

	a := NewArchiver(store, nil)
	_, err := a.Run(context.Background(), time.Now().UTC(), &buf)
	require.Error(t, err)
	assert.Empty(t, store.deleted)
}
