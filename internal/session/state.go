package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// State is the session's authentication state. Exactly one instance exists
// per Manager; it is mutated only by the Manager's own transitions.
type State int

const (
	// StateUnauthenticated means no session exists.
	StateUnauthenticated State = iota

	// StateAuthenticating means an authorization round-trip is in flight.
	StateAuthenticating

	// StateAuthenticated means a valid token set is held.
	StateAuthenticated

	// StateError means the last login attempt failed. Terminal only for
	// that attempt; a new login returns to StateAuthenticating.
	StateError
)

// String returns the string representation of the session state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// loginState is the structured payload optionally embedded in the CSRF state
// value: a random nonce plus a post-login redirect target. The provider
// echoes the encoded form back unmodified, so the full encoded string is
// still compared byte-for-byte against the stored attempt.
type loginState struct {
	Nonce    string `json:"nonce"`
	Redirect string `json:"redirect,omitempty"`
}

func encodeLoginState(nonce, redirect string) (string, error) {
	data, err := json.Marshal(loginState{Nonce: nonce, Redirect: redirect})
	if err != nil {
		return "", fmt.Errorf("failed to encode login state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeLoginState(encoded string) (*loginState, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode login state: %w", err)
	}

	var ls loginState
	if err := json.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("failed to parse login state: %w", err)
	}

	return &ls, nil
}
