// Package billing reconciles Stripe webhook events against local
// subscription, invoice, and usage state.
package billing

import "neuraslide/internal/types"

// validTransitions encodes the subscription lifecycle, mirroring Stripe's
// own state machine. CANCELED and INCOMPLETE_EXPIRED are terminal.
var validTransitions = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubStatusIncomplete: {
		types.SubStatusTrialing,
		types.SubStatusActive,
		types.SubStatusIncompleteExpired,
		types.SubStatusCanceled,
	},
	types.SubStatusTrialing: {
		types.SubStatusActive,
		types.SubStatusPastDue,
		types.SubStatusCanceled,
		types.SubStatusUnpaid,
	},
	types.SubStatusActive: {
		types.SubStatusPastDue,
		types.SubStatusCanceled,
		types.SubStatusUnpaid,
	},
	types.SubStatusPastDue: {
		types.SubStatusActive,
		types.SubStatusCanceled,
		types.SubStatusUnpaid,
	},
	types.SubStatusUnpaid: {
		types.SubStatusCanceled,
	},
	types.SubStatusCanceled:          {},
	types.SubStatusIncompleteExpired: {},
}

// ValidTransition reports whether moving from one subscription status to
// another follows the lifecycle. Re-applying the current status counts as
// valid: redelivered events are normal.
//
// Stripe is the source of truth, so an invalid transition is flagged for
// operators but still applied by the caller. Local state must converge on
// what Stripe says even when events arrive out of order.
func ValidTransition(from, to types.SubscriptionStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// KnownStatus reports whether the raw Stripe status string is a recognized
// lifecycle state. Unknown values are stored as-is so new Stripe states are
// kept rather than lost, but operators get a log line.
func KnownStatus(raw string) bool {
	switch types.SubscriptionStatus(raw) {
	case types.SubStatusActive, types.SubStatusTrialing, types.SubStatusPastDue,
		types.SubStatusCanceled, types.SubStatusIncomplete,
		types.SubStatusIncompleteExpired, types.SubStatusUnpaid:
		return true
	}
	return false
}
