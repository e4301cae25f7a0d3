package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"neuraslide/internal/core"
	"neuraslide/internal/types"
	"neuraslide/internal/webhook"
)

// BillingProcessor applies one normalized Stripe event. It is the subset of
// the billing reconciler the handler depends on.
type BillingProcessor interface {
	Process(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult
}

// SignatureVerifier validates the Stripe-Signature header against the raw
// body.
type SignatureVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}

// StripeWebhookHandler handles asynchronous billing events from Stripe.
// It is unauthenticated but verifies the provider signature; per Stripe
// guidance a bad signature is HTTP 400, everything after that is HTTP 200.
type StripeWebhookHandler struct {
	verifier   SignatureVerifier
	reconciler BillingProcessor
	logger     *slog.Logger
}

// NewStripeWebhookHandler creates the handler with its dependencies.
func NewStripeWebhookHandler(verifier SignatureVerifier, reconciler BillingProcessor, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle processes an incoming Stripe webhook event.
//
// Reconciliation failures (missing user/plan/subscription linkage) still
// answer HTTP 200: retrying a permanently unreconcilable event forever helps
// nobody. The failure is recorded in the ledger and surfaced in the response
// body's processed flag.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationBodyTooLarge,
			"failed to read request body",
			err,
		))
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.WarnContext(r.Context(), "stripe signature verification failed",
			"error", err,
		)
		// Stripe expects 400 for signature failures, not 401.
		core.JSON(w, r, http.StatusBadRequest, core.APIErrorResponse{
			Error: core.ErrorDetail{
				Code:      string(types.ErrCodeSignatureInvalid),
				Message:   "webhook signature verification failed",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
		return
	}

	var envelope webhook.StripeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.logger.WarnContext(r.Context(), "failed to parse stripe event JSON",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", envelope.ID,
		"event_type", envelope.Type,
	)

	ev, handled := webhook.NormalizeStripe(&envelope)
	if !handled {
		// Unhandled types still flow through the reconciler so the no-op
		// lands in the ledger like every other outcome.
		ev = types.NormalizedEvent{
			Kind:     types.EventUnknown,
			Provider: types.ProviderStripe,
			EventID:  envelope.ID,
		}
	}
	result := h.reconciler.Process(r.Context(), &ev)

	core.OK(w, r, "Webhook processed", map[string]any{
		"eventId":   envelope.ID,
		"eventType": envelope.Type,
		"processed": result.Success,
		"action":    result.Action,
	})
}
