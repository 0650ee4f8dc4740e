package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks an inbound webhook's HMAC-SHA256 signature against
// the exact raw request bytes. Providers that prefix the header value with
// "sha256=" (e.g. GitHub-style signing) are handled by stripping the prefix
// before comparison. Comparison is constant-time via hmac.Equal so response
// timing can't be used to brute-force the secret.
func VerifySignature(secret []byte, rawBody []byte, signatureHeader string) bool {
	if len(secret) == 0 || signatureHeader == "" {
		return false
	}

	sig := strings.TrimPrefix(signatureHeader, "sha256=")

	h := hmac.New(sha256.New, secret)
	h.Write(rawBody)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}
