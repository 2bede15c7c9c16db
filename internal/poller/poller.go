package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
)

type Refresher interface {
	Refresh(ctx context.Context) error
	// AuthFailed reports a credential rejection from any refresh, including
	// ones the poller did not start.
	AuthFailed() bool
}

// Poller schedules refresh cycles for one session: once at start, then on a
// fixed interval. After an auth failure the timer stops and only a manual
// trigger resumes polling.
type Poller struct {
	refresher Refresher
	interval  time.Duration
	refreshCh chan struct{}
	logger    *slog.Logger
}

func New(refresher Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		refresher: refresher,
		interval:  interval,
		refreshCh: make(chan struct{}, 1),
		logger:    logger.With("component", "poller"),
	}
}

func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Run(ctx context.Context) {
	paused := p.poll(ctx)
	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if !paused {
			timer = time.NewTimer(p.interval)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-p.refreshCh:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			if p.refresher.AuthFailed() {
				p.logger.Warn("polling paused until credentials are updated")
				paused = true
				continue
			}
		}
		paused = p.poll(ctx)
	}
}

// poll runs one cycle and reports whether polling must pause.
func (p *Poller) poll(ctx context.Context) bool {
	err := p.refresher.Refresh(ctx)
	if err == nil || ctx.Err() != nil {
		return false
	}
	if bookstack.IsAuthError(err) {
		p.logger.Warn("polling paused until credentials are updated")
		return true
	}
	p.logger.Debug("poll failed; retrying at the normal interval", "err", err, "interval", p.interval)
	return false
}
