package session

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"hallpass/internal/idp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RefreshesTokenNearExpiry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeTokenResponse(w, "scheduled-access", "", "scheduled-refresh", 3600)
	})

	m := newTestManager(t, mux, func(cfg *Config) {
		cfg.AutoRefresh = true
		cfg.RefreshInterval = 10 * time.Millisecond
	})

	// Token inside the 5-minute safety margin, triggering a refresh on the
	// next tick.
	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(3 * time.Minute),
	}))
	m.Resume(context.Background())
	require.True(t, m.IsAuthenticated())

	assert.Eventually(t, func() bool {
		ts := m.TokenSet()
		return ts != nil && ts.AccessToken == "scheduled-access"
	}, 2*time.Second, 10*time.Millisecond)

	persisted := m.tokens.Load()
	require.NotNil(t, persisted)
	assert.Equal(t, "scheduled-access", persisted.AccessToken)
}

func TestScheduler_RefreshesImmediatelyWhenStartedInsideMargin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeTokenResponse(w, "startup-access", "", "startup-refresh", 3600)
	})

	// Interval long enough that only the startup check can explain a refresh.
	m := newTestManager(t, mux, func(cfg *Config) {
		cfg.AutoRefresh = true
		cfg.RefreshInterval = time.Hour
	})

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(3 * time.Minute),
	}))
	m.Resume(context.Background())
	require.True(t, m.IsAuthenticated())

	assert.Eventually(t, func() bool {
		ts := m.TokenSet()
		return ts != nil && ts.AccessToken == "startup-access"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_ForcesLogoutOnRejectedRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})

	m := newTestManager(t, mux, func(cfg *Config) {
		cfg.AutoRefresh = true
		cfg.RefreshInterval = 10 * time.Millisecond
	})

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(3 * time.Minute),
	}))
	m.Resume(context.Background())
	require.True(t, m.IsAuthenticated())

	assert.Eventually(t, func() bool {
		return m.State() == StateUnauthenticated
	}, 2*time.Second, 10*time.Millisecond)

	assert.Nil(t, m.tokens.Load(), "persisted tokens must be cleared on forced logout")
	assert.NotEmpty(t, m.LastError())
}

func TestScheduler_IdleOutsideExpiryMargin(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		writeTokenResponse(w, "unexpected", "", "", 3600)
	})

	m := newTestManager(t, mux, func(cfg *Config) {
		cfg.AutoRefresh = true
		cfg.RefreshInterval = 10 * time.Millisecond
	})

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}))
	m.Resume(context.Background())
	require.True(t, m.IsAuthenticated())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), tokenCalls.Load(), "no refresh while outside the expiry margin")
	assert.Equal(t, "access-1", m.TokenSet().AccessToken)
}

func TestScheduler_StoppedByLogout(t *testing.T) {
	m := newTestManager(t, http.NewServeMux(), func(cfg *Config) {
		cfg.AutoRefresh = true
		cfg.RefreshInterval = 10 * time.Millisecond
	})

	require.NoError(t, m.tokens.Save(&idp.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}))
	m.Resume(context.Background())

	m.mu.Lock()
	sched := m.sched
	m.mu.Unlock()
	require.NotNil(t, sched)

	_, err := m.Logout()
	require.NoError(t, err)

	// Logout joins the scheduler goroutine before returning.
	select {
	case <-sched.doneCh:
	default:
		t.Fatal("scheduler still running after logout")
	}

	m.mu.Lock()
	assert.Nil(t, m.sched)
	m.mu.Unlock()
}

func TestSchedulerStopIdempotent(t *testing.T) {
	m := newTestManager(t, http.NewServeMux())
	sched := newScheduler(m, time.Minute, DefaultRefreshMargin)
	sched.start()

	sched.stop()
	sched.stop()
	sched.signalStop()
}
