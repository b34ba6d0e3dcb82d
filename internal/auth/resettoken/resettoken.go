// Package resettoken issues single-use password reset tokens. The plaintext
// token goes into the reset email; only its SHA-256 digest is persisted.
package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	TokenBytes = 20 // 40 hex chars
	Lifetime   = time.Hour
)

// Generate returns a fresh plaintext token and the digest to store.
func Generate() (token, digest string, err error) {
	b := make([]byte, TokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, Digest(token), nil
}

// Digest is the stored form of token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ExpiresAt is the expiry for a token issued at now.
func ExpiresAt(now time.Time) time.Time {
	return now.Add(Lifetime)
}

// Matches compares token against a stored digest in constant time.
func Matches(token, digest string) bool {
	if token == "" || digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Digest(token)), []byte(digest)) == 1
}
