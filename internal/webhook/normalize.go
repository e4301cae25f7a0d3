package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"neuraslide/internal/types"
)

// ---------------------------------------------------------------------------
// Instagram envelope
// ---------------------------------------------------------------------------

// InstagramDelivery is the top-level webhook POST body from Meta.
type InstagramDelivery struct {
	Object string           `json:"object"`
	Entry  []InstagramEntry `json:"entry"`
}

// InstagramEntry is one account-scoped entry within a delivery. A single
// delivery may contain multiple entries, each with independent messaging
// and change sub-events.
type InstagramEntry struct {
	ID        string             `json:"id"`
	Time      int64              `json:"time"` // unix ms
	Messaging []messagingPayload `json:"messaging"`
	Changes   []changePayload    `json:"changes"`
}

type messagingPayload struct {
	Sender    idRef            `json:"sender"`
	Recipient idRef            `json:"recipient"`
	Timestamp int64            `json:"timestamp"` // unix ms
	Message   *messagePayload  `json:"message"`
	Delivery  *deliveryPayload `json:"delivery"`
	Read      *readPayload     `json:"read"`
}

type idRef struct {
	ID string `json:"id"`
}

type messagePayload struct {
	Mid    string `json:"mid"`
	Text   string `json:"text"`
	IsEcho bool   `json:"is_echo"`
}

type deliveryPayload struct {
	Mids      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

type readPayload struct {
	Watermark int64 `json:"watermark"`
}

type changePayload struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	CommentID string `json:"comment_id"`
	ID        string `json:"id"`
	MediaID   string `json:"media_id"`
	Text      string `json:"text"`
	From      *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
}

// Change event field names as Meta sends them.
const (
	fieldComments      = "comments"
	fieldMentions      = "mentions"
	fieldStoryMentions = "story_mentions"
	fieldMediaPublish  = "media_publish"
)

// NormalizeInstagram flat-maps an Instagram delivery into normalized events.
// Each entry's messaging and change arrays are iterated independently and in
// order; a malformed sub-event normalizes to an UNKNOWN variant rather than
// aborting its siblings.
func NormalizeInstagram(delivery *InstagramDelivery) []types.NormalizedEvent {
	var events []types.NormalizedEvent
	for _, entry := range delivery.Entry {
		for _, m := range entry.Messaging {
			events = append(events, normalizeMessaging(entry.ID, m))
		}
		for _, c := range entry.Changes {
			events = append(events, normalizeChange(entry.ID, entry.Time, c))
		}
	}
	return events
}

// normalizeMessaging classifies one messaging sub-event by field presence.
// First-match order is message, then delivery, then read; the three are
// mutually exclusive in practice.
func normalizeMessaging(accountID string, m messagingPayload) types.NormalizedEvent {
	base := types.MessagingEvent{
		AccountExternalID: accountID,
		SenderID:          m.Sender.ID,
		RecipientID:       m.Recipient.ID,
	}
	ts := msTime(m.Timestamp)

	switch {
	case m.Message != nil:
		if m.Sender.ID == "" || m.Recipient.ID == "" || m.Message.Mid == "" {
			return unknownEvent(types.ProviderInstagram, ts, &base, nil)
		}
		base.MessageID = m.Message.Mid
		base.Text = m.Message.Text
		base.IsEcho = m.Message.IsEcho
		return types.NormalizedEvent{
			Kind:      types.EventMessageReceived,
			Provider:  types.ProviderInstagram,
			EventID:   m.Message.Mid,
			Timestamp: ts,
			Messaging: &base,
		}

	case m.Delivery != nil:
		base.MessageIDs = m.Delivery.Mids
		base.Watermark = m.Delivery.Watermark
		return types.NormalizedEvent{
			Kind:      types.EventMessageDelivered,
			Provider:  types.ProviderInstagram,
			EventID:   uuid.NewString(),
			Timestamp: ts,
			Messaging: &base,
		}

	case m.Read != nil:
		base.Watermark = m.Read.Watermark
		return types.NormalizedEvent{
			Kind:      types.EventMessageRead,
			Provider:  types.ProviderInstagram,
			EventID:   uuid.NewString(),
			Timestamp: ts,
			Messaging: &base,
		}

	default:
		return unknownEvent(types.ProviderInstagram, ts, &base, nil)
	}
}

// normalizeChange classifies one change sub-event by its field string.
func normalizeChange(accountID string, entryTime int64, c changePayload) types.NormalizedEvent {
	change := types.ChangeEvent{
		AccountExternalID: accountID,
		Field:             c.Field,
		Text:              c.Value.Text,
		MediaID:           c.Value.MediaID,
	}
	if change.MediaID == "" {
		change.MediaID = c.Value.ID
	}
	if c.Value.From != nil {
		change.FromUserID = c.Value.From.ID
		change.FromUsername = c.Value.From.Username
	}
	ts := msTime(entryTime)

	var kind types.EventKind
	switch c.Field {
	case fieldComments:
		if c.Value.CommentID == "" {
			return unknownEvent(types.ProviderInstagram, ts, nil, &change)
		}
		change.CommentID = c.Value.CommentID
		kind = types.EventCommentCreated
	case fieldMentions:
		change.CommentID = c.Value.CommentID
		kind = types.EventMentionCreated
	case fieldStoryMentions:
		kind = types.EventStoryMention
	case fieldMediaPublish:
		kind = types.EventMediaPublished
	default:
		return unknownEvent(types.ProviderInstagram, ts, nil, &change)
	}

	eventID := change.CommentID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	return types.NormalizedEvent{
		Kind:      kind,
		Provider:  types.ProviderInstagram,
		EventID:   eventID,
		Timestamp: ts,
		Change:    &change,
	}
}

// ---------------------------------------------------------------------------
// Stripe envelope
// ---------------------------------------------------------------------------

// StripeEnvelope is a minimal representation of a Stripe webhook event,
// tailored to extract the fields needed for reconciliation. We avoid
// importing the full stripe.Event type to keep normalization decoupled from
// the SDK and make testing straightforward.
type StripeEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"` // unix seconds
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSubscriptionObj struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoiceObj struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	Status            string `json:"status"`
	AmountDue         int64  `json:"amount_due"`
	PeriodStart       int64  `json:"period_start"`
	PeriodEnd         int64  `json:"period_end"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

type stripeCheckoutObj struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// Handled Stripe event types.
const (
	stripeSubCreated        = "customer.subscription.created"
	stripeSubUpdated        = "customer.subscription.updated"
	stripeSubDeleted        = "customer.subscription.deleted"
	stripeInvoiceCreated    = "invoice.created"
	stripeInvoicePaid       = "invoice.paid"
	stripeInvoiceFailed     = "invoice.payment_failed"
	stripeCheckoutCompleted = "checkout.session.completed"
)

// NormalizeStripe maps a verified Stripe event envelope onto a normalized
// billing event. The envelope carries a single typed object, so this is a
// direct passthrough keyed by event type.
//
// The second return value is false for event types outside the handled set;
// the caller records an explicit ignored outcome, not an error.
func NormalizeStripe(env *StripeEnvelope) (types.NormalizedEvent, bool) {
	ts := time.Unix(env.Created, 0).UTC()

	switch env.Type {
	case stripeSubCreated, stripeSubUpdated, stripeSubDeleted:
		var sub stripeSubscriptionObj
		if err := json.Unmarshal(env.Data.Object, &sub); err != nil {
			return unknownEvent(types.ProviderStripe, ts, nil, nil), true
		}
		billing := &types.BillingEvent{
			ObjectID:       sub.ID,
			SubscriptionID: sub.ID,
			CustomerID:     sub.Customer,
			Status:         sub.Status,
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
		}
		if len(sub.Items.Data) > 0 {
			billing.PriceID = sub.Items.Data[0].Price.ID
		}
		kind := types.EventSubscriptionCreated
		switch env.Type {
		case stripeSubUpdated:
			kind = types.EventSubscriptionUpdated
		case stripeSubDeleted:
			kind = types.EventSubscriptionDeleted
		}
		return types.NormalizedEvent{
			Kind: kind, Provider: types.ProviderStripe,
			EventID: env.ID, Timestamp: ts, Billing: billing,
		}, true

	case stripeInvoiceCreated, stripeInvoicePaid, stripeInvoiceFailed:
		var inv stripeInvoiceObj
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return unknownEvent(types.ProviderStripe, ts, nil, nil), true
		}
		billing := &types.BillingEvent{
			ObjectID:       inv.ID,
			InvoiceID:      inv.ID,
			SubscriptionID: inv.Subscription,
			CustomerID:     inv.Customer,
			Status:         inv.Status,
			AmountDue:      inv.AmountDue,
			PeriodStart:    inv.PeriodStart,
			PeriodEnd:      inv.PeriodEnd,
			PaidAt:         inv.StatusTransitions.PaidAt,
		}
		kind := types.EventInvoiceCreated
		switch env.Type {
		case stripeInvoicePaid:
			kind = types.EventInvoicePaid
		case stripeInvoiceFailed:
			kind = types.EventInvoiceFailed
		}
		return types.NormalizedEvent{
			Kind: kind, Provider: types.ProviderStripe,
			EventID: env.ID, Timestamp: ts, Billing: billing,
		}, true

	case stripeCheckoutCompleted:
		var sess stripeCheckoutObj
		if err := json.Unmarshal(env.Data.Object, &sess); err != nil {
			return unknownEvent(types.ProviderStripe, ts, nil, nil), true
		}
		return types.NormalizedEvent{
			Kind:     types.EventCheckoutCompleted,
			Provider: types.ProviderStripe,
			EventID:  env.ID, Timestamp: ts,
			Billing: &types.BillingEvent{
				ObjectID:       sess.ID,
				SubscriptionID: sess.Subscription,
				CustomerID:     sess.Customer,
			},
		}, true

	default:
		return types.NormalizedEvent{}, false
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func unknownEvent(p types.Provider, ts time.Time, m *types.MessagingEvent, c *types.ChangeEvent) types.NormalizedEvent {
	return types.NormalizedEvent{
		Kind:      types.EventUnknown,
		Provider:  p,
		EventID:   uuid.NewString(),
		Timestamp: ts,
		Messaging: m,
		Change:    c,
	}
}

// msTime converts a unix-millisecond timestamp to time.Time, tolerating a
// zero value.
func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}
