package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

// API is the subset of the BookStack client the coordinator drives.
type API interface {
	System(ctx context.Context) (bookstack.SystemInfo, error)
	Count(ctx context.Context, resource string) (int, error)
	ListShelves(ctx context.Context, count, offset int) (bookstack.Listing[bookstack.ShelfSummary], error)
	Shelf(ctx context.Context, id int) (bookstack.Shelf, error)
	Book(ctx context.Context, id int) (bookstack.Book, error)
	LatestPages(ctx context.Context) ([]bookstack.PageSummary, error)
	Page(ctx context.Context, id int) (bookstack.Page, error)
	CreateBook(ctx context.Context, in bookstack.NewBook) (bookstack.Book, error)
	SetShelfBooks(ctx context.Context, shelfID int, bookIDs []int) (bookstack.Shelf, error)
	CreatePage(ctx context.Context, in bookstack.NewPage) (bookstack.Page, error)
	UpdatePage(ctx context.Context, id int, in bookstack.PageUpdate) (bookstack.Page, error)
}

// ErrClosed is returned by Refresh once the coordinator has been closed.
var ErrClosed = errors.New("coordinator closed")

// Recorder keeps an audit trail of cycles and orphaned books.
type Recorder interface {
	RecordCycle(ctx context.Context, record model.CycleRecord) error
	RecordOrphan(ctx context.Context, orphan model.OrphanedBook) error
}

// Coordinator owns one BookStack session: the published state, the
// availability flag and the write actions. Only the refresh cycle writes
// the state.
type Coordinator struct {
	api      API
	opts     model.Options
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	state        atomic.Pointer[State]
	availability Availability
	authFailed   atomic.Bool
	refreshes    singleflight.Group

	// lifetime is cancelled by Close and aborts the in-flight cycle.
	lifetime context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	closed   bool
	cycles   sync.WaitGroup
}

func New(api API, opts model.Options, recorder Recorder, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	lifetime, stop := context.WithCancel(context.Background())
	return &Coordinator{
		api:      api,
		opts:     opts,
		recorder: recorder,
		logger:   logger.With("component", "coordinator", "instance", opts.ID),
		now:      time.Now,
		lifetime: lifetime,
		stop:     stop,
	}
}

func (c *Coordinator) Options() model.Options {
	return c.opts
}

// State returns the last published state, or nil before the first
// successful cycle.
func (c *Coordinator) State() *State {
	return c.state.Load()
}

func (c *Coordinator) Available() bool {
	return c.availability.Available()
}

// AuthFailed reports whether the last cycle was rejected for bad
// credentials. It clears on the next successful cycle.
func (c *Coordinator) AuthFailed() bool {
	return c.authFailed.Load()
}

// Refresh runs one cycle. A call made while a cycle is in flight waits for
// that cycle instead of starting another one. The cycle itself is detached
// from ctx so a caller giving up does not abort it for the other waiters;
// only Close cancels it.
func (c *Coordinator) Refresh(ctx context.Context) error {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		if !c.beginCycle() {
			return nil, ErrClosed
		}
		defer c.cycles.Done()

		cycleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		defer context.AfterFunc(c.lifetime, cancel)()
		return nil, c.runCycle(cycleCtx)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Close cancels the in-flight cycle, waits for it to return and refuses
// further refreshes. It is safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stop()
	c.cycles.Wait()
}

func (c *Coordinator) beginCycle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.cycles.Add(1)
	return true
}
