// Package handlers contains the HTTP handler implementations for the
// NeuraSlide webhook API.
//
// Webhook handlers are NOT behind auth middleware; they are called directly
// by the providers. Security is provided by signature verification against
// each provider's signing secret.
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

// maxWebhookBodySize is the maximum allowed size of a webhook payload (256 KB).
// Instagram batches multiple entries per delivery, so the limit is roomier
// than a single-event payload needs.
const maxWebhookBodySize = 256 * 1024

// InstagramProcessor handles a batch of normalized Instagram events. It is
// the subset of the messaging processor the handler depends on.
type InstagramProcessor interface {
	ProcessAll(ctx context.Context, events []types.NormalizedEvent) []types.ProcessingResult
}

// PayloadVerifier validates the X-Hub-Signature-256 header against the raw
// body.
type PayloadVerifier interface {
	Verify(payload []byte, signatureHeader string) bool
}

// InstagramWebhookHandler serves Meta's webhook surface: the GET
// subscription-verification handshake and the POST event delivery.
type InstagramWebhookHandler struct {
	verifier    PayloadVerifier
	processor   InstagramProcessor
	verifyToken types.SecretString
	logger      *slog.Logger
}

// NewInstagramWebhookHandler creates the handler with its dependencies.
func NewInstagramWebhookHandler(
	verifier PayloadVerifier,
	processor InstagramProcessor,
	verifyToken types.SecretString,
	logger *slog.Logger,
) *InstagramWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstagramWebhookHandler{
		verifier:    verifier,
		processor:   processor,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// RegisterRoutes mounts the Instagram webhook endpoints. Webhook routes are
// public; no auth middleware applies.
func (h *InstagramWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/webhooks/instagram", h.HandleVerify)
	r.Post("/webhooks/instagram", h.HandleDelivery)
}

// HandleVerify answers Meta's subscription handshake: when hub.mode is
// "subscribe" and hub.verify_token matches the configured token, the
// response body is the literal hub.challenge string with HTTP 200. Any
// mismatch is HTTP 403.
func (h *InstagramWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken.Unmask() {
		h.logger.WarnContext(r.Context(), "webhook verification handshake rejected",
			"mode", mode,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeVerifyTokenInvalid,
			"verification token mismatch",
			nil,
		))
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// HandleDelivery processes an Instagram webhook POST.
//
//  1. Reads the raw body with a size limit.
//  2. Verifies the X-Hub-Signature-256 header over the raw bytes.
//  3. Validates the envelope shape (object must be "instagram").
//  4. Normalizes every entry's sub-events and processes them in order.
//  5. Always returns HTTP 200 once signature and shape validation pass,
//     even when individual events failed; per-event outcomes are in the
//     response body and the ledger.
func (h *InstagramWebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
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

	sigHeader := r.Header.Get("X-Hub-Signature-256")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing X-Hub-Signature-256 header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeSignatureMissing,
			"missing X-Hub-Signature-256 header",
			nil,
		))
		return
	}
	if !h.verifier.Verify(payload, sigHeader) {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeSignatureInvalid,
			"webhook signature verification failed",
			nil,
		))
		return
	}

	var delivery webhook.InstagramDelivery
	if err := json.Unmarshal(payload, &delivery); err != nil {
		h.logger.WarnContext(r.Context(), "failed to parse webhook delivery JSON",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook delivery JSON",
			err,
		))
		return
	}
	if delivery.Object != "instagram" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidObject,
			"unexpected webhook object type",
			nil,
		))
		return
	}

	events := webhook.NormalizeInstagram(&delivery)
	h.logger.InfoContext(r.Context(), "processing instagram webhook delivery",
		"entries", len(delivery.Entry),
		"events", len(events),
	)

	results := h.processor.ProcessAll(r.Context(), events)

	core.OK(w, r, "Webhook processed", map[string]any{
		"eventsProcessed": len(results),
		"results":         results,
	})
}
