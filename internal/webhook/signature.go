// Package webhook implements the trust boundary for inbound provider
// deliveries: signature verification, normalization of provider envelopes
// into typed internal events, and the duplicate-delivery guard.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"neuraslide/internal/types"
)

// signaturePrefix is the scheme prefix Meta puts on the
// X-Hub-Signature-256 header value.
const signaturePrefix = "sha256="

// InstagramVerifier validates that an inbound webhook body genuinely
// originated from Meta, by computing HMAC-SHA256 over the raw payload with
// the app secret and comparing against the signature header in constant
// time.
type InstagramVerifier struct {
	appSecret types.SecretString
}

// NewInstagramVerifier creates a verifier for the given app secret.
func NewInstagramVerifier(appSecret types.SecretString) *InstagramVerifier {
	return &InstagramVerifier{appSecret: appSecret}
}

// Verify reports whether the signature header matches the payload.
//
// An empty configured secret returns false, never "skip verification":
// callers must treat false as reject. The method never returns an error and
// never logs the secret.
func (v *InstagramVerifier) Verify(payload []byte, signatureHeader string) bool {
	secret := v.appSecret.Unmask()
	if secret == "" {
		return false
	}

	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	// hmac.Equal is constant time.
	return hmac.Equal(expected, mac.Sum(nil))
}
