package session

import (
	"context"
	"sync"
	"time"

	"hallpass/internal/idp"
	"hallpass/pkg/logging"
)

const (
	// DefaultRefreshInterval is how often the scheduler checks token expiry.
	DefaultRefreshInterval = 60 * time.Second

	// DefaultRefreshMargin is how far before expiry a refresh is triggered.
	DefaultRefreshMargin = 5 * time.Minute
)

// scheduler proactively refreshes the token set while the session is
// authenticated. Its lifetime is bound to the authenticated state: the
// manager starts it on entering and stops it on leaving, so no timer
// outlives the session it serves.
type scheduler struct {
	manager  *Manager
	interval time.Duration
	margin   time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newScheduler(m *Manager, interval, margin time.Duration) *scheduler {
	return &scheduler{
		manager:  m,
		interval: interval,
		margin:   margin,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *scheduler) start() {
	go s.run()
}

func (s *scheduler) run() {
	defer close(s.doneCh)

	logging.Debug("Scheduler", "Refresh scheduler started (interval=%v, margin=%v)",
		s.interval, s.margin)

	// A token can already be inside the margin when a persisted session is
	// resumed; check once up front instead of waiting out the first interval.
	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			logging.Debug("Scheduler", "Refresh scheduler stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick refreshes if the token is within the expiry margin. A provider
// rejection has already terminated the session by the time refresh returns;
// a transport failure is logged and retried on the next tick.
func (s *scheduler) tick() {
	if !s.manager.tokenExpiresWithin(s.margin) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), idp.DefaultHTTPTimeout)
	defer cancel()

	if err := s.manager.refresh(ctx); err != nil {
		logging.Warn("Scheduler", "Scheduled refresh failed: %v", err)
	}
}

// signalStop requests shutdown without waiting. Safe to call from the
// scheduler's own goroutine.
func (s *scheduler) signalStop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// stop shuts the scheduler down and waits for its loop to exit.
func (s *scheduler) stop() {
	s.signalStop()
	<-s.doneCh
}
