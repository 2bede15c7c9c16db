package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
)

type scriptedRefresher struct {
	mu      sync.Mutex
	results []error
	calls   int

	authFailed atomic.Bool
}

func (s *scriptedRefresher) AuthFailed() bool {
	return s.authFailed.Load()
}

func (s *scriptedRefresher) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func (s *scriptedRefresher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startPoller(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestPollerRunsEagerlyThenOnInterval(t *testing.T) {
	refresher := &scriptedRefresher{}
	startPoller(t, New(refresher, 20*time.Millisecond, discardLogger()))

	require.Eventually(t, func() bool { return refresher.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPollerKeepsPollingAfterConnectionFailure(t *testing.T) {
	refresher := &scriptedRefresher{results: []error{
		&bookstack.ConnectionError{Endpoint: "system", Err: errors.New("refused")},
		&bookstack.StatusError{Status: 500},
	}}
	startPoller(t, New(refresher, 10*time.Millisecond, discardLogger()))

	require.Eventually(t, func() bool { return refresher.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPollerPausesAfterAuthFailureUntilTriggered(t *testing.T) {
	refresher := &scriptedRefresher{results: []error{&bookstack.AuthError{Endpoint: "system"}}}
	p := New(refresher, 10*time.Millisecond, discardLogger())
	startPoller(t, p)

	require.Eventually(t, func() bool { return refresher.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, refresher.count())

	p.TriggerRefresh()
	require.Eventually(t, func() bool { return refresher.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPollerPausesWhenAnotherRefreshHitAuthFailure(t *testing.T) {
	refresher := &scriptedRefresher{}
	p := New(refresher, 10*time.Millisecond, discardLogger())
	startPoller(t, p)
	require.Eventually(t, func() bool { return refresher.count() >= 1 }, time.Second, time.Millisecond)

	refresher.authFailed.Store(true)
	time.Sleep(30 * time.Millisecond)
	paused := refresher.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, paused, refresher.count(), "no cycles while credentials are rejected")

	refresher.authFailed.Store(false)
	p.TriggerRefresh()
	require.Eventually(t, func() bool { return refresher.count() >= paused+2 }, time.Second, 5*time.Millisecond)
}

func TestTriggerRefreshCoalesces(t *testing.T) {
	p := New(&scriptedRefresher{}, time.Hour, discardLogger())
	p.TriggerRefresh()
	p.TriggerRefresh()
	assert.Len(t, p.refreshCh, 1)
}
