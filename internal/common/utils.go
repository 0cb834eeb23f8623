package common

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Base64 is the encoding used for every opaque token the service hands out:
// URL-safe, no padding, so values survive cookies, query strings and JSON.
var Base64 = base64.URLEncoding.WithPadding(base64.NoPadding)

// GenerateRandByteArray returns size bytes of cryptographically secure
// randomness.
func GenerateRandByteArray(size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := rand.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read entropy: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("short entropy read: got %d bytes, want %d bytes", n, size)
	}
	return buf, nil
}

// MakeRandToken returns a random opaque token of size source bytes,
// base64url-encoded.
func MakeRandToken(size int) (string, error) {
	buf, err := GenerateRandByteArray(size)
	if err != nil {
		return "", err
	}
	return Base64.EncodeToString(buf), nil
}
