package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"neuraslide/internal/types"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockSigVerifier struct {
	err error
}

func (m *mockSigVerifier) Verify(_ []byte, _ string) error { return m.err }

type mockReconciler struct {
	event  *types.NormalizedEvent
	result types.ProcessingResult
}

func (m *mockReconciler) Process(_ context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	m.event = ev
	return m.result
}

func postStripe(h *StripeWebhookHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

type stripeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		EventID   string `json:"eventId"`
		EventType string `json:"eventType"`
		Processed bool   `json:"processed"`
		Action    string `json:"action"`
	} `json:"data"`
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestStripeWebhook_BadSignatureIs400(t *testing.T) {
	reconciler := &mockReconciler{}
	h := NewStripeWebhookHandler(&mockSigVerifier{err: errors.New("bad signature")}, reconciler, nil)

	rr := postStripe(h, `{"id":"evt_1","type":"invoice.paid"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if reconciler.event != nil {
		t.Error("reconciler must not run for bad signatures")
	}
}

func TestStripeWebhook_InvalidJSONIs400(t *testing.T) {
	h := NewStripeWebhookHandler(&mockSigVerifier{}, &mockReconciler{}, nil)

	rr := postStripe(h, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestStripeWebhook_HandledEvent(t *testing.T) {
	reconciler := &mockReconciler{result: types.ProcessingResult{Success: true, Action: "subscription_created"}}
	h := NewStripeWebhookHandler(&mockSigVerifier{}, reconciler, nil)

	rr := postStripe(h, `{
		"id": "evt_1",
		"type": "customer.subscription.created",
		"created": 1700000000,
		"data": {"object": {"id": "sub_1", "customer": "cus_1", "status": "active"}}
	}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if reconciler.event == nil || reconciler.event.Kind != types.EventSubscriptionCreated {
		t.Fatalf("reconciler event = %+v", reconciler.event)
	}

	var resp stripeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.EventID != "evt_1" || !resp.Data.Processed || resp.Data.Action != "subscription_created" {
		t.Errorf("response data = %+v", resp.Data)
	}
}

func TestStripeWebhook_UnhandledTypeIsIgnoredSuccess(t *testing.T) {
	reconciler := &mockReconciler{result: types.IgnoredResult()}
	h := NewStripeWebhookHandler(&mockSigVerifier{}, reconciler, nil)

	rr := postStripe(h, `{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{}}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	// The no-op still flows through the reconciler so it lands in the ledger.
	if reconciler.event == nil || reconciler.event.Kind != types.EventUnknown {
		t.Fatalf("reconciler event = %+v, want kind unknown", reconciler.event)
	}
	if reconciler.event.EventID != "evt_2" {
		t.Errorf("event id = %q, want evt_2", reconciler.event.EventID)
	}

	var resp stripeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	// A successful no-op, distinct from a failure.
	if !resp.Data.Processed || resp.Data.Action != types.ActionIgnored {
		t.Errorf("response data = %+v", resp.Data)
	}
}

func TestStripeWebhook_FailedReconciliationStill200(t *testing.T) {
	reconciler := &mockReconciler{result: types.ProcessingResult{
		Success: false, Action: "subscription_created", Error: "no user linked",
	}}
	h := NewStripeWebhookHandler(&mockSigVerifier{}, reconciler, nil)

	rr := postStripe(h, `{
		"id": "evt_3",
		"type": "customer.subscription.created",
		"data": {"object": {"id": "sub_1", "customer": "cus_ghost"}}
	}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: retrying unreconcilable events helps nobody", rr.Code)
	}
	var resp stripeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data.Processed {
		t.Error("processed = true, want false")
	}
}
