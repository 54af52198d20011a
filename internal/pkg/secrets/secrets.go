package secrets

import (
	"crypto/rand"
	"encoding/hex"
)

// NewEndpointKey returns a 16-byte random key, hex encoded. The key is both
// the address and the bearer credential of an inbound endpoint, so it must
// come from a CSPRNG.
func NewEndpointKey() (string, error) {
	return randomHex(16)
}

// NewSigningSecret returns a 32-byte random secret, hex encoded, used for
// HMAC signing of inbound and outbound payloads.
func NewSigningSecret() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
