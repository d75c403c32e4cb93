package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignatureField is the payload key carrying the signature. It is always
// excluded from the canonical form so signing is stable across sign/verify
// round trips.
const SignatureField = "hmac_signature"

// SignPayload computes the HMAC-SHA256 hex digest of the payload's canonical
// JSON form, excluding any existing hmac_signature field.
func SignPayload(payload any, secret string) (string, error) {
	canonical, err := Canonicalize(payload, SignatureField)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature recomputes the payload's signature and compares it in
// constant time against the embedded hmac_signature field. A missing or empty
// signature never verifies.
func VerifySignature(payload map[string]any, secret string) bool {
	expected, _ := payload[SignatureField].(string)
	if expected == "" {
		return false
	}
	computed, err := SignPayload(payload, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(computed), []byte(expected))
}
