package session

import (
	"errors"

	"hallpass/internal/callback"
)

var (
	// ErrNotAuthenticated is returned by operations that require an
	// authenticated session when there is none.
	ErrNotAuthenticated = errors.New("no authenticated session")

	// ErrRefreshRejected is returned when the provider rejected a refresh
	// grant. The session has been terminated and persisted tokens cleared.
	ErrRefreshRejected = errors.New("session refresh was rejected by the provider")
)

// CallbackError reports a provider callback that did not authorize the login
// attempt. The outcome carries the classification and user-facing message.
type CallbackError struct {
	Outcome *callback.Outcome
}

func (e *CallbackError) Error() string {
	return e.Outcome.Message()
}
