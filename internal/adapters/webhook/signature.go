// Package webhook signs and delivers event payloads to subscribed endpoints.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonical renders a payload as deterministic JSON: stable key ordering,
// no extraneous whitespace. Signatures are computed over these bytes and the
// same bytes are sent as the request body, so receivers can verify without
// re-canonicalizing.
func Canonical(payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return body, nil
}

// Sign computes the HMAC-SHA256 signature header value for a body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the body under secret. Intended for
// receiver-side checks.
func Verify(secret string, body []byte, sig string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(sig))
}
