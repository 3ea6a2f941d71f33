// Package pkce implements RFC 7636 Proof Key for Code Exchange generation
// using the S256 challenge method.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ChallengeMethod is the only challenge transform this package produces.
const ChallengeMethod = "S256"

// verifierBytes yields a 43-character base64url verifier, the RFC 7636 minimum.
const verifierBytes = 32

// Pair couples a PKCE verifier with its derived challenge. The verifier never
// leaves the client side of the flow; only the challenge travels to the
// identity provider.
type Pair struct {
	Verifier  string
	Challenge string
}

// Generate produces a fresh cryptographically random verifier and its S256
// challenge. It is pure apart from the random draw; two calls yield distinct
// verifiers with overwhelming probability.
func Generate() (Pair, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return Pair{}, fmt.Errorf("generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(b)

	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
	}, nil
}

// Challenge derives the S256 challenge for a verifier: base64url-encoded
// SHA-256, no padding. Deterministic; the verifier is not recoverable from
// the result.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState produces a random anti-CSRF token for the authorization
// round trip.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
