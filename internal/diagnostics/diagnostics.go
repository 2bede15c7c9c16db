package diagnostics

import (
	"context"
	"time"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/coordinator"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

const recentCycleLimit = 20

type History interface {
	RecentCycles(ctx context.Context, instanceID string, limit int) ([]model.CycleRecord, error)
	UnresolvedOrphans(ctx context.Context, instanceID string) ([]model.OrphanedBook, error)
}

// Source is the read side of a coordinator.
type Source interface {
	Options() model.Options
	State() *coordinator.State
	Available() bool
}

// Report is the downloadable diagnostics document for one instance.
// Credentials are always redacted.
type Report struct {
	Options         model.Options                `json:"options"`
	PollIntervalSec float64                      `json:"scan_interval_seconds"`
	Available       bool                         `json:"available"`
	System          bookstack.SystemInfo         `json:"system"`
	Counts          map[string]int               `json:"counts"`
	Shelves         []coordinator.ShelfAggregate `json:"shelves"`
	LastUpdatedPage coordinator.LastUpdatedPage  `json:"last_updated_page"`
	RefreshedAt     *time.Time                   `json:"refreshed_at,omitempty"`
	RecentCycles    []model.CycleRecord          `json:"recent_cycles"`
	OrphanedBooks   []model.OrphanedBook         `json:"orphaned_books"`
}

func Build(ctx context.Context, src Source, history History) (Report, error) {
	opts := src.Options()
	report := Report{
		Options:         opts.Redacted(),
		PollIntervalSec: opts.PollInterval().Seconds(),
		Available:       src.Available(),
		System:          bookstack.SystemInfo{},
		Counts:          map[string]int{},
		Shelves:         []coordinator.ShelfAggregate{},
		RecentCycles:    []model.CycleRecord{},
		OrphanedBooks:   []model.OrphanedBook{},
	}

	if state := src.State(); state != nil {
		if state.System != nil {
			report.System = state.System
		}
		report.Counts = state.Counts
		if state.Shelves != nil {
			report.Shelves = state.Shelves
		}
		report.LastUpdatedPage = state.LastUpdatedPage
		refreshed := state.RefreshedAt
		report.RefreshedAt = &refreshed
	}

	if history == nil {
		return report, nil
	}
	cycles, err := history.RecentCycles(ctx, opts.ID, recentCycleLimit)
	if err != nil {
		return Report{}, err
	}
	report.RecentCycles = cycles
	orphans, err := history.UnresolvedOrphans(ctx, opts.ID)
	if err != nil {
		return Report{}, err
	}
	report.OrphanedBooks = orphans
	return report, nil
}
