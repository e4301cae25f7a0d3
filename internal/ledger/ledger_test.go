package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"neuraslide/internal/types"
)

type fakeEventStore struct {
	inserted  []*types.ProcessedEvent
	insertErr error
}

func (f *fakeEventStore) Insert(_ context.Context, ev *types.ProcessedEvent) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, ev)
	return "row-1", nil
}

func TestRecorder_Record(t *testing.T) {
	store := &fakeEventStore{}
	rec := NewRecorder(store, nil)

	id := rec.Record(context.Background(), types.ProviderInstagram, "mid-1",
		types.EventMessageReceived,
		types.ProcessingResult{Success: true, Action: "message_received"})

	assert.Equal(t, "row-1", id)
	if assert.Len(t, store.inserted, 1) {
		row := store.inserted[0]
		assert.Equal(t, "mid-1", row.EventID)
		assert.Equal(t, types.EventMessageReceived, row.EventType)
		assert.Equal(t, types.ProviderInstagram, row.Provider)
		assert.True(t, row.Success)
	}
}

func TestRecorder_SwallowsStoreFailure(t *testing.T) {
	store := &fakeEventStore{insertErr: errors.New("db down")}
	rec := NewRecorder(store, nil)

	id := rec.Record(context.Background(), types.ProviderStripe, "evt_1",
		types.EventInvoicePaid,
		types.ProcessingResult{Success: true, Action: "invoice_paid"})

	// A ledger failure never surfaces to the caller.
	assert.Empty(t, id)
}
