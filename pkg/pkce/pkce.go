package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierBytes is the number of random bytes for the code verifier.
	// 32 bytes provides 256 bits of entropy, which is recommended for security,
	// and encodes to 43 base64url characters (the RFC 7636 minimum).
	verifierBytes = 32

	// stateBytes is the number of random bytes for the CSRF state value.
	stateBytes = 32
)

// MethodS256 is the only code challenge method hallpass uses.
// Plain is not allowed in OAuth 2.1.
const MethodS256 = "S256"

// NewVerifier generates a new PKCE code verifier: 32 cryptographically
// random bytes, base64url-encoded without padding. The verifier must be
// kept secret and is only ever transmitted as its S256 challenge.
func NewVerifier() (string, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes for PKCE verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Challenge computes the S256 code challenge for a verifier:
// base64url(SHA256(verifier)), no padding. Deterministic for a given verifier.
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// NewState generates a random CSRF state value for an authorization request.
// The state links the provider's callback to the original request; it is
// valid for exactly one callback.
func NewState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Pair is a verifier/challenge pair ready for use in an authorization request.
type Pair struct {
	// Verifier is the secret half, consumed at token exchange.
	Verifier string

	// Challenge is SHA256(Verifier), base64url-encoded, sent in the
	// authorization request.
	Challenge string

	// Method is always "S256".
	Method string
}

// NewPair generates a fresh verifier and its S256 challenge.
func NewPair() (*Pair, error) {
	verifier, err := NewVerifier()
	if err != nil {
		return nil, err
	}
	return &Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}, nil
}
