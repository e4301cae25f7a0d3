package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"neuraslide/internal/types"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from types.SubscriptionStatus
		to   types.SubscriptionStatus
		want bool
	}{
		{types.SubStatusIncomplete, types.SubStatusTrialing, true},
		{types.SubStatusIncomplete, types.SubStatusActive, true},
		{types.SubStatusIncomplete, types.SubStatusIncompleteExpired, true},
		{types.SubStatusTrialing, types.SubStatusActive, true},
		{types.SubStatusTrialing, types.SubStatusPastDue, true},
		{types.SubStatusActive, types.SubStatusPastDue, true},
		{types.SubStatusPastDue, types.SubStatusActive, true},
		{types.SubStatusPastDue, types.SubStatusUnpaid, true},
		{types.SubStatusUnpaid, types.SubStatusCanceled, true},

		// Same-state redeliveries are valid.
		{types.SubStatusActive, types.SubStatusActive, true},
		{types.SubStatusCanceled, types.SubStatusCanceled, true},

		// Terminal states.
		{types.SubStatusCanceled, types.SubStatusActive, false},
		{types.SubStatusIncompleteExpired, types.SubStatusActive, false},

		// Backwards jumps.
		{types.SubStatusActive, types.SubStatusIncomplete, false},
		{types.SubStatusActive, types.SubStatusTrialing, false},
		{types.SubStatusUnpaid, types.SubStatusActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestKnownStatus(t *testing.T) {
	assert.True(t, KnownStatus("active"))
	assert.True(t, KnownStatus("incomplete_expired"))
	assert.False(t, KnownStatus("paused"))
	assert.False(t, KnownStatus(""))
}
