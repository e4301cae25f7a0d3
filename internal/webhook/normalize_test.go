package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"neuraslide/internal/types"
)

func TestNormalizeInstagram_Message(t *testing.T) {
	delivery := &InstagramDelivery{
		Object: "instagram",
		Entry: []InstagramEntry{{
			ID:   "acct-1",
			Time: 1700000000000,
			Messaging: []messagingPayload{{
				Sender:    idRef{ID: "user-9"},
				Recipient: idRef{ID: "acct-1"},
				Timestamp: 1700000000000,
				Message:   &messagePayload{Mid: "mid-1", Text: "hello"},
			}},
		}},
	}

	events := NormalizeInstagram(delivery)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != types.EventMessageReceived {
		t.Errorf("Kind = %s, want %s", ev.Kind, types.EventMessageReceived)
	}
	if ev.EventID != "mid-1" {
		t.Errorf("EventID = %s, want mid-1", ev.EventID)
	}
	if ev.Messaging == nil || ev.Messaging.SenderID != "user-9" || ev.Messaging.Text != "hello" {
		t.Errorf("unexpected messaging payload: %+v", ev.Messaging)
	}
	want := time.UnixMilli(1700000000000).UTC()
	if !ev.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, want)
	}
}

func TestNormalizeInstagram_DeliveryAndRead(t *testing.T) {
	delivery := &InstagramDelivery{
		Object: "instagram",
		Entry: []InstagramEntry{{
			ID: "acct-1",
			Messaging: []messagingPayload{
				{
					Sender:    idRef{ID: "user-9"},
					Recipient: idRef{ID: "acct-1"},
					Delivery:  &deliveryPayload{Mids: []string{"mid-1"}, Watermark: 1700000001000},
				},
				{
					Sender:    idRef{ID: "user-9"},
					Recipient: idRef{ID: "acct-1"},
					Read:      &readPayload{Watermark: 1700000002000},
				},
			},
		}},
	}

	events := NormalizeInstagram(delivery)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != types.EventMessageDelivered {
		t.Errorf("events[0].Kind = %s, want %s", events[0].Kind, types.EventMessageDelivered)
	}
	if events[0].Messaging.Watermark != 1700000001000 {
		t.Errorf("delivery watermark = %d", events[0].Messaging.Watermark)
	}
	if len(events[0].Messaging.MessageIDs) != 1 || events[0].Messaging.MessageIDs[0] != "mid-1" {
		t.Errorf("delivery mids = %v", events[0].Messaging.MessageIDs)
	}
	if events[1].Kind != types.EventMessageRead {
		t.Errorf("events[1].Kind = %s, want %s", events[1].Kind, types.EventMessageRead)
	}
}

func TestNormalizeInstagram_MalformedMessageIsUnknown(t *testing.T) {
	// A message without a mid cannot be deduplicated or stored; it degrades
	// to UNKNOWN instead of being dropped.
	delivery := &InstagramDelivery{
		Object: "instagram",
		Entry: []InstagramEntry{{
			ID: "acct-1",
			Messaging: []messagingPayload{{
				Sender:    idRef{ID: "user-9"},
				Recipient: idRef{ID: "acct-1"},
				Message:   &messagePayload{Text: "no mid"},
			}},
		}},
	}

	events := NormalizeInstagram(delivery)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != types.EventUnknown {
		t.Errorf("Kind = %s, want %s", events[0].Kind, types.EventUnknown)
	}
	if events[0].EventID == "" {
		t.Error("unknown event must still carry a generated EventID")
	}
}

func TestNormalizeInstagram_Changes(t *testing.T) {
	raw := `{
		"object": "instagram",
		"entry": [{
			"id": "acct-1",
			"time": 1700000000000,
			"changes": [
				{"field": "comments", "value": {"comment_id": "c1", "media_id": "m1", "text": "How much?", "from": {"id": "user-9", "username": "niko"}}},
				{"field": "comments", "value": {"text": "no comment id"}},
				{"field": "mentions", "value": {"comment_id": "c2"}},
				{"field": "story_mentions", "value": {"id": "s1"}},
				{"field": "media_publish", "value": {"id": "m2"}},
				{"field": "something_new", "value": {}}
			]
		}]
	}`
	var delivery InstagramDelivery
	if err := json.Unmarshal([]byte(raw), &delivery); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	events := NormalizeInstagram(&delivery)
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6", len(events))
	}

	wantKinds := []types.EventKind{
		types.EventCommentCreated,
		types.EventUnknown,
		types.EventMentionCreated,
		types.EventStoryMention,
		types.EventMediaPublished,
		types.EventUnknown,
	}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Errorf("events[%d].Kind = %s, want %s", i, events[i].Kind, want)
		}
	}

	comment := events[0]
	if comment.EventID != "c1" {
		t.Errorf("comment EventID = %s, want c1", comment.EventID)
	}
	if comment.Change.FromUserID != "user-9" || comment.Change.FromUsername != "niko" {
		t.Errorf("comment from = %+v", comment.Change)
	}
	if comment.Change.Text != "How much?" {
		t.Errorf("comment text = %q", comment.Change.Text)
	}
}

func TestNormalizeStripe_Subscription(t *testing.T) {
	env := &StripeEnvelope{
		ID:      "evt_1",
		Type:    "customer.subscription.created",
		Created: 1700000000,
		Data: stripeEventData{Object: json.RawMessage(`{
			"id": "sub_1",
			"customer": "cus_1",
			"status": "trialing",
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"items": {"data": [{"price": {"id": "price_1"}}]}
		}`)},
	}

	ev, handled := NormalizeStripe(env)
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if ev.Kind != types.EventSubscriptionCreated {
		t.Errorf("Kind = %s", ev.Kind)
	}
	b := ev.Billing
	if b.ObjectID != "sub_1" || b.CustomerID != "cus_1" || b.PriceID != "price_1" {
		t.Errorf("billing = %+v", b)
	}
	if b.Status != "trialing" || b.PeriodEnd != 1702592000 {
		t.Errorf("billing = %+v", b)
	}
}

func TestNormalizeStripe_InvoicePaid(t *testing.T) {
	env := &StripeEnvelope{
		ID:      "evt_2",
		Type:    "invoice.paid",
		Created: 1700000000,
		Data: stripeEventData{Object: json.RawMessage(`{
			"id": "in_1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"status": "paid",
			"amount_due": 2900,
			"status_transitions": {"paid_at": 1700000100}
		}`)},
	}

	ev, handled := NormalizeStripe(env)
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if ev.Kind != types.EventInvoicePaid {
		t.Errorf("Kind = %s", ev.Kind)
	}
	if ev.Billing.InvoiceID != "in_1" || ev.Billing.AmountDue != 2900 || ev.Billing.PaidAt != 1700000100 {
		t.Errorf("billing = %+v", ev.Billing)
	}
}

func TestNormalizeStripe_Checkout(t *testing.T) {
	env := &StripeEnvelope{
		ID:   "evt_3",
		Type: "checkout.session.completed",
		Data: stripeEventData{Object: json.RawMessage(`{
			"id": "cs_1", "customer": "cus_1", "subscription": "sub_1"
		}`)},
	}

	ev, handled := NormalizeStripe(env)
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if ev.Kind != types.EventCheckoutCompleted || ev.Billing.SubscriptionID != "sub_1" {
		t.Errorf("event = %+v billing = %+v", ev, ev.Billing)
	}
}

func TestNormalizeStripe_UnhandledType(t *testing.T) {
	env := &StripeEnvelope{ID: "evt_4", Type: "payment_intent.succeeded"}
	if _, handled := NormalizeStripe(env); handled {
		t.Error("handled = true for unhandled type, want false")
	}
}

func TestNormalizeStripe_MalformedObjectIsUnknown(t *testing.T) {
	env := &StripeEnvelope{
		ID:   "evt_5",
		Type: "customer.subscription.updated",
		Data: stripeEventData{Object: json.RawMessage(`"not an object"`)},
	}
	ev, handled := NormalizeStripe(env)
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if ev.Kind != types.EventUnknown {
		t.Errorf("Kind = %s, want %s", ev.Kind, types.EventUnknown)
	}
}
