package configsync

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/mattfryer/bookstack-addon/internal/model"
)

type Manager struct {
	client *Client
	logger *slog.Logger

	mu         sync.RWMutex
	configured bool
	instances  []model.Options
}

func NewManager(client *Client, logger *slog.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// Refresh reloads the options and reports whether anything changed.
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	res, err := m.client.FetchConfig(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !res.Configured {
		changed := m.configured
		m.configured = false
		m.instances = nil
		return changed, nil
	}

	changed := !m.configured || !slices.Equal(m.instances, res.Instances)
	m.configured = true
	m.instances = res.Instances
	if changed && m.logger != nil {
		m.logger.Info("options loaded", "instances", len(res.Instances))
	}
	return changed, nil
}

// Get returns a copy of the current instance options.
func (m *Manager) Get() ([]model.Options, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.configured {
		return nil, false
	}
	return slices.Clone(m.instances), true
}

func (m *Manager) Configured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configured
}
