package external

import (
	"github.com/stripe/stripe-go/v82/webhook"

	"neuraslide/internal/types"
)

// StripeVerifier validates Stripe webhook signatures using the endpoint's
// signing secret. Verification covers both the HMAC and the timestamp
// tolerance window enforced by the SDK.
type StripeVerifier struct {
	secret types.SecretString
}

// NewStripeVerifier creates a verifier for the given webhook signing secret.
func NewStripeVerifier(secret types.SecretString) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

// Verify checks the Stripe-Signature header against the payload. It returns
// an AppError with an auth code on any mismatch so handlers map it to a
// client error.
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) error {
	if signatureHeader == "" {
		return types.NewAppError(types.ErrCodeSignatureMissing, "missing Stripe-Signature header", nil)
	}
	if err := webhook.ValidatePayload(payload, signatureHeader, v.secret.Unmask()); err != nil {
		return types.NewAppError(types.ErrCodeSignatureInvalid, "Stripe signature verification failed", err)
	}
	return nil
}
