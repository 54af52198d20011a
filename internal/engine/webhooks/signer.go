package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the lowercase hex HMAC-SHA256 of payload. Callers must pass
// the exact bytes that go on (or came off) the wire: re-serializing a parsed
// payload can change the byte sequence and break verification.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches Sign(secret, payload). The
// comparison is constant time. Malformed hex input is a plain mismatch, not
// an error.
func Verify(secret string, payload []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), provided)
}
