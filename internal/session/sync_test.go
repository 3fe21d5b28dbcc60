package session

import (
	"net/http"
	"testing"
	"time"

	"hallpass/internal/idp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncFromStore_ExternalLogoutEndsSession(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	m.mu.Lock()
	m.applyTokensLocked(&idp.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
		ObtainedAt:   time.Now(),
	}, true)
	m.mu.Unlock()
	require.True(t, m.IsAuthenticated())

	// Another process clears the token file.
	require.NoError(t, m.tokens.Clear())
	m.SyncFromStore()

	assert.Equal(t, StateUnauthenticated, m.State())
	assert.Nil(t, m.TokenSet())
	assert.Equal(t, "signed out by another process", m.LastError())
}

func TestSyncFromStore_AdoptsExternalLogin(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())
	require.False(t, m.IsAuthenticated())

	// Another process logs in and persists a fresh token set.
	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken: "external-access",
		Expiry:      time.Now().Add(time.Hour),
		ObtainedAt:  time.Now(),
	}))
	m.SyncFromStore()

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "external-access", m.TokenSet().AccessToken)
}

func TestSyncFromStore_IgnoresExpiredExternalTokens(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken: "stale-access",
		Expiry:      time.Now().Add(-time.Hour),
		ObtainedAt:  time.Now().Add(-2 * time.Hour),
	}))
	m.SyncFromStore()

	assert.Equal(t, StateUnauthenticated, m.State())
}

func TestSyncFromStore_AdoptsNewerExternalTokens(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	m.mu.Lock()
	m.applyTokensLocked(&idp.TokenSet{
		AccessToken: "old-access",
		Expiry:      time.Now().Add(10 * time.Minute),
		ObtainedAt:  time.Now().Add(-time.Minute),
	}, false)
	m.mu.Unlock()

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken: "newer-access",
		Expiry:      time.Now().Add(time.Hour),
		ObtainedAt:  time.Now(),
	}))
	m.SyncFromStore()

	assert.Equal(t, "newer-access", m.TokenSet().AccessToken)
}

func TestSyncFromStore_KeepsInMemoryStateOnOlderWrite(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	m.mu.Lock()
	m.applyTokensLocked(&idp.TokenSet{
		AccessToken: "current-access",
		Expiry:      time.Now().Add(time.Hour),
		ObtainedAt:  time.Now(),
	}, false)
	m.mu.Unlock()

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken: "older-access",
		Expiry:      time.Now().Add(30 * time.Minute),
		ObtainedAt:  time.Now().Add(-time.Hour),
	}))
	m.SyncFromStore()

	assert.Equal(t, "current-access", m.TokenSet().AccessToken,
		"in-memory state wins over an older persisted copy")
}

func TestWatchStore_ReactsToExternalChanges(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())

	changed := make(chan struct{}, 4)
	stop, err := m.WatchStore(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken: "external-access",
		Expiry:      time.Now().Add(time.Hour),
		ObtainedAt:  time.Now(),
	}))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the external write")
	}

	assert.Eventually(t, m.IsAuthenticated, 2*time.Second, 20*time.Millisecond)
}
