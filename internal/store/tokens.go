package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hallpass/internal/idp"
	"hallpass/pkg/logging"
)

// tokenFileName is the durable key holding the serialized token set.
const tokenFileName = "tokens.json"

// TokenStore provides durable storage for the current token set.
//
// SECURITY: This store handles OAuth credentials. The token file is created
// with 0600 permissions, the storage directory with 0700, and token values
// are never logged (only expiry times and event names).
//
// The persisted copy is a cache of the session manager's in-memory state,
// not a second source of truth. Concurrent writers from multiple processes
// are not coordinated; last writer wins.
type TokenStore struct {
	mu  sync.Mutex
	dir string
}

// NewTokenStore creates a token store rooted at dir, creating the directory
// if needed.
func NewTokenStore(dir string) (*TokenStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}
	return &TokenStore{dir: dir}, nil
}

// Save persists the token set.
func (s *TokenStore) Save(tokens *idp.TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token set: %w", err)
	}

	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		logging.Warn("TokenStore", "SECURITY_AUDIT: token persistence failed: %v", err)
		return fmt.Errorf("failed to write token file: %w", err)
	}

	logging.Info("TokenStore", "SECURITY_AUDIT: token set stored (expiry=%s, has_refresh_token=%t)",
		tokens.Expiry.Format(time.RFC3339), tokens.RefreshToken != "")
	return nil
}

// Load returns the persisted token set, or nil if none exists. A read or
// parse failure is treated identically to "no token set found" and is never
// propagated; the session manager decides what to do with expired tokens,
// so Load performs no validity filtering.
func (s *TokenStore) Load() *idp.TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("TokenStore", "Token file unreadable, treating as no session: %v", err)
		}
		return nil
	}

	var tokens idp.TokenSet
	if err := json.Unmarshal(data, &tokens); err != nil {
		logging.Warn("TokenStore", "Token file corrupt, treating as no session: %v", err)
		return nil
	}

	if tokens.AccessToken == "" {
		return nil
	}

	return &tokens
}

// Clear removes the persisted token set. Clearing an already-empty store is
// not an error.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		logging.Warn("TokenStore", "SECURITY_AUDIT: token deletion failed: %v", err)
		return err
	}

	logging.Info("TokenStore", "SECURITY_AUDIT: token set cleared")
	return nil
}

// Path returns the token file path. Used by the watcher to identify
// relevant filesystem events.
func (s *TokenStore) Path() string {
	return s.path()
}

func (s *TokenStore) path() string {
	return filepath.Join(s.dir, tokenFileName)
}
