package diagnostics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/coordinator"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

type stubSource struct {
	opts      model.Options
	state     *coordinator.State
	available bool
}

func (s stubSource) Options() model.Options { return s.opts }
func (s stubSource) State() *coordinator.State { return s.state }
func (s stubSource) Available() bool { return s.available }

type stubHistory struct {
	cycles  []model.CycleRecord
	orphans []model.OrphanedBook
	err     error
}

func (h stubHistory) RecentCycles(context.Context, string, int) ([]model.CycleRecord, error) {
	return h.cycles, h.err
}

func (h stubHistory) UnresolvedOrphans(context.Context, string) ([]model.OrphanedBook, error) {
	return h.orphans, nil
}

func TestBuildRedactsCredentials(t *testing.T) {
	src := stubSource{opts: model.Options{ID: "main", URL: "https://x", TokenID: "id", TokenSecret: "secret", ScanIntervalSec: 60}}

	report, err := Build(context.Background(), src, nil)

	require.NoError(t, err)
	assert.Equal(t, "**REDACTED**", report.Options.TokenID)
	assert.Equal(t, "**REDACTED**", report.Options.TokenSecret)
	assert.Equal(t, "https://x", report.Options.URL)
	assert.Equal(t, 60.0, report.PollIntervalSec)
	assert.Empty(t, report.Shelves)
	assert.NotNil(t, report.Shelves)
	assert.Nil(t, report.RefreshedAt)
}

func TestBuildIncludesStateAndHistory(t *testing.T) {
	refreshed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := stubSource{
		opts:      model.Options{ID: "main"},
		available: true,
		state: &coordinator.State{
			Counts:      map[string]int{coordinator.MetricBooks: 4},
			System:      bookstack.SystemInfo{"version": "v24"},
			Shelves:     []coordinator.ShelfAggregate{{ID: 1, Name: "S", BookCount: 1}},
			RefreshedAt: refreshed,
		},
	}
	history := stubHistory{
		cycles:  []model.CycleRecord{{ID: "c1", Outcome: model.CycleOutcomeSuccess}},
		orphans: []model.OrphanedBook{{BookID: 9}},
	}

	report, err := Build(context.Background(), src, history)

	require.NoError(t, err)
	assert.True(t, report.Available)
	assert.Equal(t, 300.0, report.PollIntervalSec)
	assert.Equal(t, "v24", report.System.Version())
	assert.Equal(t, 4, report.Counts[coordinator.MetricBooks])
	assert.Len(t, report.Shelves, 1)
	assert.Equal(t, refreshed, *report.RefreshedAt)
	assert.Len(t, report.RecentCycles, 1)
	assert.Equal(t, 9, report.OrphanedBooks[0].BookID)
}

func TestBuildPropagatesHistoryError(t *testing.T) {
	_, err := Build(context.Background(), stubSource{}, stubHistory{err: errors.New("db closed")})
	assert.EqualError(t, err, "db closed")
}
