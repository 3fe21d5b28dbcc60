package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hallpass/pkg/logging"
)

// attemptFileName holds the in-flight login attempt (the two short-lived
// logical keys: PKCE verifier and CSRF state).
const attemptFileName = "login_attempt.json"

// AttemptTTL bounds how long a stored login attempt stays usable. A callback
// arriving later than this finds no attempt and is classified as an expired
// session.
const AttemptTTL = 10 * time.Minute

// Attempt is the ephemeral state of one authorization round-trip. It is
// created at login, consumed by exactly one callback, and never reused.
type Attempt struct {
	// Verifier is the PKCE code verifier for this attempt.
	Verifier string `json:"verifier"`

	// State is the CSRF state value the provider must echo back.
	State string `json:"state"`

	// RedirectTarget is an optional post-login destination.
	RedirectTarget string `json:"redirect_target,omitempty"`

	// CreatedAt is when the attempt was initiated.
	CreatedAt time.Time `json:"created_at"`
}

// ExchangeStore holds at most one in-flight login attempt for the duration
// of an authorization round-trip. File-backed so the attempt survives the
// navigation away to the provider.
type ExchangeStore struct {
	mu  sync.Mutex
	dir string
}

// NewExchangeStore creates an exchange store rooted at dir.
func NewExchangeStore(dir string) (*ExchangeStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exchange storage directory: %w", err)
	}
	return &ExchangeStore{dir: dir}, nil
}

// Put stores a new login attempt, replacing any previous one. Only one
// authorization round-trip can be in flight at a time.
func (s *ExchangeStore) Put(attempt *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal login attempt: %w", err)
	}

	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write login attempt: %w", err)
	}

	logging.Debug("ExchangeStore", "Stored login attempt")
	return nil
}

// Take returns the stored login attempt and removes it, enforcing one-shot
// consumption. Returns nil if no attempt is stored, the file is unreadable
// or corrupt, or the attempt has outlived AttemptTTL.
func (s *ExchangeStore) Take() *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("ExchangeStore", "Login attempt unreadable: %v", err)
		}
		return nil
	}

	// One callback per attempt, valid or not.
	_ = os.Remove(s.path())

	var attempt Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		logging.Warn("ExchangeStore", "Login attempt corrupt: %v", err)
		return nil
	}

	if time.Since(attempt.CreatedAt) > AttemptTTL {
		logging.Warn("ExchangeStore", "Login attempt expired (age=%v)", time.Since(attempt.CreatedAt))
		return nil
	}

	return &attempt
}

// Clear removes any stored login attempt.
func (s *ExchangeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path())
}

func (s *ExchangeStore) path() string {
	return filepath.Join(s.dir, attemptFileName)
}
