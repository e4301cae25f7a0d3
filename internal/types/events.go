package types

import "time"

// NormalizedEvent is the internal representation of a single provider
// webhook sub-event. One inbound delivery flat-maps into zero or more
// normalized events; each normalized event derives from exactly one
// provider entry sub-record.
//
// The struct is a tagged union: Kind selects which of the variant payloads
// (Messaging, Change, Billing) is populated. Unrecognized or malformed
// sub-events carry Kind=EventUnknown with whatever fields could be salvaged,
// so that one bad entry never aborts its siblings.
type NormalizedEvent struct {
	Kind     EventKind
	Provider Provider

	// EventID is the provider's own identifier where available (Stripe event
	// id, Instagram message mid or comment id), else a generated UUID. It is
	// the dedup key and the ledger key.
	EventID string

	Timestamp time.Time

	Messaging *MessagingEvent
	Change    *ChangeEvent
	Billing   *BillingEvent
}

// MessagingEvent carries the fields of an Instagram direct-message sub-event.
type MessagingEvent struct {
	AccountExternalID string // the Instagram business account the entry belongs to
	SenderID          string
	RecipientID       string
	MessageID         string
	Text              string
	IsEcho            bool
	Watermark         int64    // delivery/read watermark (unix ms)
	MessageIDs        []string // mids acknowledged by a delivery receipt
}

// ChangeEvent carries the fields of an Instagram change sub-event
// (comments, mentions, story mentions, media).
type ChangeEvent struct {
	AccountExternalID string
	Field             string
	CommentID         string
	MediaID           string
	Text              string
	FromUserID        string
	FromUsername      string
}

// BillingEvent carries the fields of a Stripe billing sub-event.
type BillingEvent struct {
	ObjectID       string // subscription id, invoice id, or checkout session id
	CustomerID     string
	SubscriptionID string
	InvoiceID      string
	PriceID        string
	Status         string // raw Stripe status string; mapped by the reconciler
	PeriodStart    int64  // unix seconds
	PeriodEnd      int64
	AmountDue      int64
	PaidAt         int64
}

// ProcessingResult is the uniform outcome shape every event handler returns
// and the Processed-Event Ledger stores.
//
// An unhandled event type yields {Success: true, Action: "ignored"}: a
// successful no-op, distinct from a failure.
type ProcessingResult struct {
	Success bool           `json:"success"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Standard ProcessingResult actions.
const (
	ActionIgnored   = "ignored"
	ActionDuplicate = "duplicate"
)

// IgnoredResult returns the successful no-op result for event types outside
// the handled set.
func IgnoredResult() ProcessingResult {
	return ProcessingResult{Success: true, Action: ActionIgnored}
}

// DuplicateResult returns the successful no-op result for an event the dedup
// guard has already seen.
func DuplicateResult(eventID string) ProcessingResult {
	return ProcessingResult{
		Success: true,
		Action:  ActionDuplicate,
		Details: map[string]any{"event_id": eventID},
	}
}

// FailedResult wraps an error into a per-event failure outcome.
func FailedResult(action string, err error) ProcessingResult {
	return ProcessingResult{Success: false, Action: action, Error: err.Error()}
}
