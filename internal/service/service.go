package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/configsync"
	"github.com/mattfryer/bookstack-addon/internal/coordinator"
	"github.com/mattfryer/bookstack-addon/internal/diagnostics"
	"github.com/mattfryer/bookstack-addon/internal/model"
	"github.com/mattfryer/bookstack-addon/internal/poller"
	"github.com/mattfryer/bookstack-addon/internal/storage"
)

var (
	ErrNotConfigured    = errors.New("bookstack not configured")
	ErrSessionNotFound  = errors.New("bookstack instance not found")
	ErrSessionAmbiguous = errors.New("config_entry_id is required when several instances are configured")
)

// ClientFactory builds the API client for one instance.
type ClientFactory func(opts model.Options) (coordinator.API, error)

// Session is one running instance: its coordinator and the poller that
// drives it.
type Session struct {
	Options     model.Options
	Coordinator *coordinator.Coordinator

	poller *poller.Poller
	cancel context.CancelFunc
	done   chan struct{}
}

// stop ends the poller, then cancels and waits for any cycle still running
// so a restarted session never overlaps the old one.
func (s *Session) stop() {
	s.cancel()
	<-s.done
	s.Coordinator.Close()
}

type Service struct {
	repo      *storage.Repository
	config    *configsync.Manager
	newClient ClientFactory
	base      *slog.Logger
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(repo *storage.Repository, cfg *configsync.Manager, newClient ClientFactory, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		config:    cfg,
		newClient: newClient,
		base:      logger,
		logger:    logger.With("component", "service"),
		sessions:  map[string]*Session{},
	}
}

// Reconcile brings the running sessions in line with the current options.
// Unchanged sessions keep running; changed or removed ones are stopped and
// new ones start polling under ctx.
func (s *Service) Reconcile(ctx context.Context) error {
	desired := map[string]model.Options{}
	if instances, ok := s.config.Get(); ok {
		for _, opts := range instances {
			desired[opts.ID] = opts
		}
	}

	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if opts, keep := desired[id]; keep && opts == sess.Options {
			delete(desired, id)
			continue
		}
		stale = append(stale, sess)
		delete(s.sessions, id)
	}

	var errs []error
	for _, id := range sortedKeys(desired) {
		sess, err := s.startSession(ctx, desired[id])
		if err != nil {
			errs = append(errs, fmt.Errorf("start %s: %w", id, err))
			continue
		}
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.stop()
		s.logger.Info("session stopped", "instance", sess.Options.ID)
	}
	return errors.Join(errs...)
}

func (s *Service) startSession(ctx context.Context, opts model.Options) (*Session, error) {
	client, err := s.newClient(opts)
	if err != nil {
		return nil, err
	}
	coord := coordinator.New(client, opts, s.repo, s.base)
	p := poller.New(coord, opts.PollInterval(), s.base.With("instance", opts.ID))

	runCtx, cancel := context.WithCancel(ctx)
	sess := &Session{
		Options:     opts,
		Coordinator: coord,
		poller:      p,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go func() {
		defer close(sess.done)
		p.Run(runCtx)
	}()
	s.logger.Info("session started", "instance", opts.ID, "url", opts.BaseURL(), "interval", opts.PollInterval())
	return sess, nil
}

// Stop ends every session and waits for the pollers to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[string]*Session{}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.stop()
	}
}

// Sessions returns the running sessions ordered by id.
func (s *Service) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, id := range sortedKeys(s.sessions) {
		out = append(out, s.sessions[id])
	}
	return out
}

// Session resolves a target instance. An empty id selects the only session
// when exactly one is running.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return nil, ErrNotConfigured
	}
	if id == "" {
		if len(s.sessions) > 1 {
			return nil, ErrSessionAmbiguous
		}
		for _, sess := range s.sessions {
			return sess, nil
		}
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return sess, nil
}

// TriggerRefresh wakes the session's poller, which also resumes polling
// after an auth failure.
func (s *Service) TriggerRefresh(id string) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	sess.poller.TriggerRefresh()
	return nil
}

// InstanceStatus is the summary row for one session.
type InstanceStatus struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Available   bool       `json:"available"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

func (s *Service) ListInstances() []InstanceStatus {
	sessions := s.Sessions()
	out := make([]InstanceStatus, 0, len(sessions))
	for _, sess := range sessions {
		status := InstanceStatus{
			ID:        sess.Options.ID,
			URL:       sess.Options.BaseURL(),
			Available: sess.Coordinator.Available(),
		}
		if state := sess.Coordinator.State(); state != nil {
			refreshed := state.RefreshedAt
			status.RefreshedAt = &refreshed
		}
		out = append(out, status)
	}
	return out
}

// InstanceState is the published snapshot of one session. State is nil
// until the first successful cycle.
type InstanceState struct {
	ID        string             `json:"id"`
	Available bool               `json:"available"`
	State     *coordinator.State `json:"state"`
}

func (s *Service) State(id string) (InstanceState, error) {
	sess, err := s.Session(id)
	if err != nil {
		return InstanceState{}, err
	}
	return InstanceState{
		ID:        sess.Options.ID,
		Available: sess.Coordinator.Available(),
		State:     sess.Coordinator.State(),
	}, nil
}

func (s *Service) Diagnostics(ctx context.Context, id string) (diagnostics.Report, error) {
	sess, err := s.Session(id)
	if err != nil {
		return diagnostics.Report{}, err
	}
	return diagnostics.Build(ctx, sess.Coordinator, s.repo)
}

func (s *Service) ResolveOrphan(ctx context.Context, id string, bookID int) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	return s.repo.ResolveOrphan(ctx, sess.Options.ID, bookID)
}

// actionTarget resolves the session for a write action and refuses it while
// BookStack is unreachable.
func (s *Service) actionTarget(id string) (*coordinator.Coordinator, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	if !sess.Coordinator.Available() {
		return nil, bookstack.NewValidationError(
			"BookStack instance %q is currently unavailable; check the server before retrying", sess.Options.ID)
	}
	return sess.Coordinator, nil
}

func (s *Service) CreateBook(ctx context.Context, id string, in coordinator.CreateBookInput) (bookstack.Book, error) {
	c, err := s.actionTarget(id)
	if err != nil {
		return bookstack.Book{}, err
	}
	return c.CreateBook(ctx, in)
}

func (s *Service) CreatePage(ctx context.Context, id string, in coordinator.CreatePageInput) (bookstack.Page, error) {
	c, err := s.actionTarget(id)
	if err != nil {
		return bookstack.Page{}, err
	}
	return c.CreatePage(ctx, in)
}

func (s *Service) AppendPage(ctx context.Context, id string, in coordinator.AppendPageInput) (bookstack.Page, error) {
	c, err := s.actionTarget(id)
	if err != nil {
		return bookstack.Page{}, err
	}
	return c.AppendPage(ctx, in)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
