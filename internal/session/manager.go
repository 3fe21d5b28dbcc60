package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"hallpass/internal/callback"
	"hallpass/internal/idp"
	"hallpass/internal/store"
	"hallpass/pkg/logging"
	"hallpass/pkg/pkce"
)

// Config configures a session Manager.
type Config struct {
	// Client speaks the provider's token and discovery endpoints.
	Client *idp.Client

	// Metadata holds the provider's resolved endpoints.
	Metadata *idp.Metadata

	// ClientID is the OAuth2 client identifier.
	ClientID string

	// Scopes are the scopes requested at login.
	Scopes []string

	// TokenStore persists the token set across process restarts.
	TokenStore *store.TokenStore

	// ExchangeStore holds the in-flight login attempt.
	ExchangeStore *store.ExchangeStore

	// LogoutRedirectURI is the post-logout redirect target sent to the
	// provider's logout endpoint.
	LogoutRedirectURI string

	// AutoRefresh starts the refresh scheduler whenever the session enters
	// the authenticated state.
	AutoRefresh bool

	// RefreshInterval overrides the scheduler poll interval. Zero means
	// DefaultRefreshInterval.
	RefreshInterval time.Duration

	// RefreshMargin overrides the expiry safety margin. Zero means
	// DefaultRefreshMargin.
	RefreshMargin time.Duration
}

// Manager is the authoritative owner of the session state and the token set.
// All transitions go through its methods; observers read the derived surface
// (State, IsAuthenticated, Claims, LastError) and never mutate token state
// directly.
//
// The persisted token set is a cache of the in-memory one. On conflict the
// in-memory state wins and is rewritten to storage.
type Manager struct {
	client   *idp.Client
	metadata *idp.Metadata
	clientID string
	scopes   []string

	tokens   *store.TokenStore
	attempts *store.ExchangeStore

	logoutRedirectURI string
	autoRefresh       bool
	refreshInterval   time.Duration
	refreshMargin     time.Duration

	refreshGroup singleflight.Group

	mu          sync.Mutex
	state       State
	tokenSet    *idp.TokenSet
	generation  string
	lastError   string
	loading     bool
	redirectURI string
	sched       *scheduler
}

// NewManager creates a session manager. The initial state is
// StateUnauthenticated; call Resume to pick up a persisted session.
func NewManager(cfg Config) *Manager {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	margin := cfg.RefreshMargin
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}

	return &Manager{
		client:            cfg.Client,
		metadata:          cfg.Metadata,
		clientID:          cfg.ClientID,
		scopes:            cfg.Scopes,
		tokens:            cfg.TokenStore,
		attempts:          cfg.ExchangeStore,
		logoutRedirectURI: cfg.LogoutRedirectURI,
		autoRefresh:       cfg.AutoRefresh,
		refreshInterval:   interval,
		refreshMargin:     margin,
		state:             StateUnauthenticated,
	}
}

// Resume restores a persisted session at startup. Unexpired tokens establish
// the session directly without a network round trip. Expired tokens get
// exactly one refresh attempt; if it fails for any reason the stored tokens
// are cleared and the session stays unauthenticated.
func (m *Manager) Resume(ctx context.Context) {
	persisted := m.tokens.Load()
	if persisted == nil {
		return
	}

	if !persisted.Expired() {
		m.mu.Lock()
		m.applyTokensLocked(persisted, false)
		m.mu.Unlock()
		logging.Debug("Session", "Resumed persisted session (expiry=%s)",
			persisted.Expiry.Format(time.RFC3339))
		return
	}

	m.setLoading(true)
	defer m.setLoading(false)

	if persisted.RefreshToken == "" {
		logging.Info("Session", "Persisted tokens expired with no refresh token, clearing")
		_ = m.tokens.Clear()
		return
	}

	refreshed, err := m.client.Refresh(ctx, m.metadata, persisted.RefreshToken)
	if err != nil || refreshed == nil {
		if err != nil {
			logging.Warn("Session", "Boot-time refresh failed: %v", err)
		}
		_ = m.tokens.Clear()
		return
	}

	m.mu.Lock()
	m.applyTokensLocked(refreshed, true)
	m.mu.Unlock()
	logging.Info("Session", "Resumed session via boot-time refresh")
}

// BeginLogin starts an authorization round-trip: generates the PKCE pair and
// CSRF state, persists them as the in-flight attempt, and returns the
// provider's authorization URL for the caller to navigate to. redirectTarget
// is an optional post-login destination embedded in the state value.
func (m *Manager) BeginLogin(redirectURI, redirectTarget string) (string, error) {
	pair, err := pkce.NewPair()
	if err != nil {
		return "", err
	}

	nonce, err := pkce.NewState()
	if err != nil {
		return "", err
	}

	state := nonce
	if redirectTarget != "" {
		state, err = encodeLoginState(nonce, redirectTarget)
		if err != nil {
			return "", err
		}
	}

	attempt := &store.Attempt{
		Verifier:       pair.Verifier,
		State:          state,
		RedirectTarget: redirectTarget,
	}
	if err := m.attempts.Put(attempt); err != nil {
		return "", err
	}

	authURL, err := idp.AuthCodeURL(m.metadata, m.clientID, redirectURI, m.scopes, state, pair)
	if err != nil {
		m.attempts.Clear()
		return "", err
	}

	m.mu.Lock()
	m.state = StateAuthenticating
	m.lastError = ""
	m.redirectURI = redirectURI
	m.mu.Unlock()

	logging.Debug("Session", "Login started, awaiting provider callback")
	return authURL, nil
}

// CompleteLogin consumes the provider's callback. The stored attempt is taken
// exactly once; whatever the outcome, it cannot be replayed. On success the
// token set is persisted and the session becomes authenticated; the returned
// string is the post-login redirect target, if one was requested. On any
// non-authorized outcome the session enters the error state and a
// *CallbackError is returned.
func (m *Manager) CompleteLogin(ctx context.Context, query url.Values) (string, error) {
	attempt := m.attempts.Take()
	outcome := callback.Interpret(query, attempt)

	if outcome.Kind != callback.KindAuthorized {
		m.mu.Lock()
		m.state = StateError
		m.lastError = outcome.Message()
		m.mu.Unlock()
		return "", &CallbackError{Outcome: outcome}
	}

	if outcome.RedirectTarget == "" {
		if ls, err := decodeLoginState(query.Get("state")); err == nil {
			outcome.RedirectTarget = ls.Redirect
		}
	}

	m.mu.Lock()
	redirectURI := m.redirectURI
	m.mu.Unlock()

	tokenSet, err := m.client.ExchangeCode(ctx, m.metadata, outcome.Code, outcome.Verifier, redirectURI)
	if err != nil {
		m.mu.Lock()
		m.state = StateError
		m.lastError = "token exchange failed"
		m.mu.Unlock()
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	m.mu.Lock()
	m.applyTokensLocked(tokenSet, true)
	m.mu.Unlock()

	logging.Info("Session", "SECURITY_AUDIT: session established via authorization code exchange")
	return outcome.RedirectTarget, nil
}

// Logout terminates the session: the refresh scheduler is stopped
// synchronously, in-memory and persisted tokens are cleared, and the
// provider's logout URL is returned for the caller to navigate to ("" if the
// provider has no logout endpoint). The local transition is complete when
// Logout returns, whatever happens to the subsequent navigation.
func (m *Manager) Logout() (string, error) {
	m.stopScheduler()

	m.mu.Lock()
	m.state = StateUnauthenticated
	m.tokenSet = nil
	m.generation = ""
	m.lastError = ""
	m.mu.Unlock()

	m.attempts.Clear()
	if err := m.tokens.Clear(); err != nil {
		logging.Warn("Session", "Failed to clear persisted tokens at logout: %v", err)
	}

	logging.Info("Session", "SECURITY_AUDIT: session terminated by logout")
	return idp.LogoutURL(m.metadata, m.clientID, m.logoutRedirectURI)
}

// Close stops the refresh scheduler without touching session state. For
// process shutdown.
func (m *Manager) Close() {
	m.stopScheduler()
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether a session is established.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// IsLoading reports whether a login round-trip or the boot-time refresh
// check is in progress.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticating || m.loading
}

// LastError returns the reason for the error state, or "".
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Claims returns the identity claims decoded from the current ID token.
func (m *Manager) Claims() (*IdentityClaims, error) {
	m.mu.Lock()
	tokenSet := m.tokenSet
	m.mu.Unlock()

	if tokenSet == nil || tokenSet.IDToken == "" {
		return nil, ErrNotAuthenticated
	}
	return ParseClaims(tokenSet.IDToken)
}

// TokenSet returns a copy of the current token set, or nil.
func (m *Manager) TokenSet() *idp.TokenSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokenSet == nil {
		return nil
	}
	copied := *m.tokenSet
	return &copied
}

// OAuth2Token exposes the current token set as an oauth2.Token, the interop
// point for clients built on golang.org/x/oauth2. Returns nil when
// unauthenticated.
func (m *Manager) OAuth2Token() *oauth2.Token {
	return m.TokenSet().ToOAuth2Token()
}

// AccessToken returns a usable access token. An expired token is never
// handed out: if the current one has expired, exactly one refresh is
// attempted first; if that fails the session is terminated and an error
// returned.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.tokenSet == nil {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	if !m.tokenSet.Expired() {
		token := m.tokenSet.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.tokenSet == nil {
		return "", ErrNotAuthenticated
	}
	return m.tokenSet.AccessToken, nil
}

// SyncFromStore reconciles in-memory state with the persisted token set
// after another process changed it. An externally removed token file ends
// this session; an externally written, newer token set is adopted. The
// persisted copy stays a cache: mid-flight state in this process is never
// overwritten by an older external write.
func (m *Manager) SyncFromStore() {
	persisted := m.tokens.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case persisted == nil && m.state == StateAuthenticated:
		if m.sched != nil {
			m.sched.signalStop()
			m.sched = nil
		}
		m.state = StateUnauthenticated
		m.tokenSet = nil
		m.generation = ""
		m.lastError = "signed out by another process"
		logging.Warn("Session", "SECURITY_AUDIT: token file removed externally, session ended")

	case persisted != nil && m.state != StateAuthenticated && !persisted.Expired():
		m.applyTokensLocked(persisted, false)
		logging.Info("Session", "Adopted session established by another process")

	case persisted != nil && m.state == StateAuthenticated &&
		persisted.ObtainedAt.After(m.tokenSet.ObtainedAt):
		m.applyTokensLocked(persisted, false)
		logging.Debug("Session", "Adopted newer token set written by another process")
	}
}

// WatchStore starts a filesystem watcher that keeps this manager in sync
// with external writes to the token file. onChange, if non-nil, runs after
// each reconciliation. The returned function stops the watcher.
func (m *Manager) WatchStore(onChange func()) (func(), error) {
	watcher := store.NewWatcher(m.tokens, func() {
		m.SyncFromStore()
		if onChange != nil {
			onChange()
		}
	})
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return watcher.Stop, nil
}

// refresh performs one refresh-grant exchange and applies the result if the
// session is still the one that initiated it. Concurrent callers for the
// same token generation are collapsed into a single provider request.
//
// A provider rejection terminates the session (ErrRefreshRejected); a
// transport failure leaves it untouched so a later attempt can succeed.
func (m *Manager) refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.tokenSet == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	generation := m.generation
	refreshToken := m.tokenSet.RefreshToken
	m.mu.Unlock()

	if refreshToken == "" {
		m.mu.Lock()
		if m.state == StateAuthenticated && m.generation == generation {
			m.forceLogoutLocked("access token expired with no refresh token")
		}
		m.mu.Unlock()
		return ErrRefreshRejected
	}

	result, err, _ := m.refreshGroup.Do(generation, func() (interface{}, error) {
		return m.client.Refresh(ctx, m.metadata, refreshToken)
	})
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	refreshed, _ := result.(*idp.TokenSet)

	m.mu.Lock()
	defer m.mu.Unlock()

	// A logout or a newer token set may have landed while the exchange was
	// in flight; its result must not reinstate or overwrite session state.
	if m.state != StateAuthenticated || m.generation != generation {
		logging.Debug("Session", "Discarding refresh result for a superseded token generation")
		return nil
	}

	if refreshed == nil {
		m.forceLogoutLocked("session refresh was rejected by the provider")
		return ErrRefreshRejected
	}

	m.applyTokensLocked(refreshed, true)
	logging.Debug("Session", "Token set refreshed (expiry=%s)", refreshed.Expiry.Format(time.RFC3339))
	return nil
}

// applyTokensLocked installs a token set as the current session, stamps a
// fresh generation ID, persists if asked, and ensures the scheduler runs.
// Callers hold m.mu.
func (m *Manager) applyTokensLocked(tokenSet *idp.TokenSet, persist bool) {
	m.tokenSet = tokenSet
	m.generation = uuid.NewString()
	m.state = StateAuthenticated
	m.lastError = ""

	if persist {
		if err := m.tokens.Save(tokenSet); err != nil {
			// Storage failures degrade the persisted cache, never the session.
			logging.Warn("Session", "Failed to persist token set: %v", err)
		}
	}

	m.startSchedulerLocked()
}

// forceLogoutLocked terminates the session from within a transition (an
// unrefreshable session must not linger presenting expired tokens). The
// scheduler is signalled to stop but not joined, because this path can run
// on the scheduler's own goroutine. Callers hold m.mu.
func (m *Manager) forceLogoutLocked(reason string) {
	if m.sched != nil {
		m.sched.signalStop()
		m.sched = nil
	}

	m.state = StateUnauthenticated
	m.tokenSet = nil
	m.generation = ""
	m.lastError = reason

	if err := m.tokens.Clear(); err != nil {
		logging.Warn("Session", "Failed to clear persisted tokens: %v", err)
	}

	logging.Warn("Session", "SECURITY_AUDIT: session terminated (%s)", reason)
}

func (m *Manager) startSchedulerLocked() {
	if !m.autoRefresh || m.sched != nil {
		return
	}
	m.sched = newScheduler(m, m.refreshInterval, m.refreshMargin)
	m.sched.start()
}

// stopScheduler detaches and joins the scheduler. Must not be called with
// m.mu held.
func (m *Manager) stopScheduler() {
	m.mu.Lock()
	sched := m.sched
	m.sched = nil
	m.mu.Unlock()

	if sched != nil {
		sched.stop()
	}
}

// tokenExpiresWithin reports whether the current token set expires within
// the margin. False when unauthenticated.
func (m *Manager) tokenExpiresWithin(margin time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.tokenSet == nil {
		return false
	}
	return m.tokenSet.ExpiresWithin(margin)
}

func (m *Manager) setLoading(loading bool) {
	m.mu.Lock()
	m.loading = loading
	m.mu.Unlock()
}
