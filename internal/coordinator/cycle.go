package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

func (c *Coordinator) runCycle(ctx context.Context) error {
	record := model.CycleRecord{
		ID:         uuid.NewString(),
		InstanceID: c.opts.ID,
		StartedAt:  c.now().UTC(),
	}
	logger := c.logger.With("cycle_id", record.ID)

	next, err := c.collect(ctx)
	if err != nil && c.lifetime.Err() != nil {
		// Closed mid-cycle: the session is going away, nothing to record.
		return ErrClosed
	}
	record.FinishedAt = c.now().UTC()
	record.Outcome = outcomeOf(err)
	if err != nil {
		record.Error = err.Error()
	}
	c.recordCycle(ctx, logger, record)

	if err != nil {
		return c.fail(logger, err)
	}

	next.RefreshedAt = record.FinishedAt
	c.state.Store(next)
	c.authFailed.Store(false)
	if c.availability.MarkUp() {
		logger.Info("BookStack is back online", "url", c.opts.BaseURL())
	}
	logger.Debug("cycle finished", "duration", record.Duration(), "shelves", len(next.Shelves))
	return nil
}

// fail flips availability for auth and connection failures. Other failures
// leave it untouched so the next cycle is simply retried.
func (c *Coordinator) fail(logger *slog.Logger, err error) error {
	switch {
	case bookstack.IsAuthError(err):
		c.authFailed.Store(true)
		c.availability.MarkDown()
		logger.Error("BookStack rejected the API token; polling is paused until the credentials are updated", "err", err)
	case bookstack.IsConnectionError(err):
		if c.availability.MarkDown() {
			logger.Warn("BookStack is unavailable", "url", c.opts.BaseURL(), "err", err)
		}
	default:
		logger.Error("BookStack refresh failed", "err", err)
	}
	return fmt.Errorf("refresh %s: %w", c.opts.ID, err)
}

// collect runs every fetch of a cycle and builds the next state. Nothing is
// published here; a failure discards the partial result.
func (c *Coordinator) collect(ctx context.Context) (*State, error) {
	system, err := c.api.System(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(metrics))
	for _, m := range metrics {
		total, err := c.api.Count(ctx, m.resource)
		if err != nil {
			return nil, err
		}
		counts[m.key] = total
	}

	latest, err := c.lastUpdatedPage(ctx)
	if err != nil {
		return nil, err
	}

	var shelves []ShelfAggregate
	if c.opts.PerShelfEnabled {
		shelves, err = c.aggregateShelves(ctx)
		if err != nil {
			return nil, err
		}
	}

	deviceID := system.InstanceID()
	if deviceID == "" {
		deviceID = c.opts.BaseURL()
	}
	return &State{
		Counts:          counts,
		System:          system,
		Version:         system.Version(),
		DeviceID:        deviceID,
		LastUpdatedPage: latest,
		Shelves:         shelves,
	}, nil
}

func (c *Coordinator) lastUpdatedPage(ctx context.Context) (LastUpdatedPage, error) {
	pages, err := c.api.LatestPages(ctx)
	if err != nil || len(pages) == 0 {
		return LastUpdatedPage{}, err
	}

	page, err := c.api.Page(ctx, pages[0].ID)
	if err != nil {
		return LastUpdatedPage{}, err
	}

	latest := LastUpdatedPage{
		ID:        page.ID,
		Name:      page.Name,
		UpdatedAt: parseTimestamp(page.UpdatedAt),
		URL:       pageURL(c.opts.BaseURL(), page.BookID, page.Slug),
	}
	if page.UpdatedBy != nil {
		id := page.UpdatedBy.ID
		latest.UpdatedByID = &id
		latest.UpdatedByName = page.UpdatedBy.Name
	}
	return latest, nil
}

func pageURL(base string, bookID int, slug string) string {
	return base + "/books/" + strconv.Itoa(bookID) + "/page/" + url.PathEscape(slug)
}

func outcomeOf(err error) model.CycleOutcome {
	switch {
	case err == nil:
		return model.CycleOutcomeSuccess
	case bookstack.IsAuthError(err):
		return model.CycleOutcomeAuthFailed
	case bookstack.IsConnectionError(err):
		return model.CycleOutcomeConnectionFailed
	case bookstack.IsUnexpectedStatus(err):
		return model.CycleOutcomeUnexpected
	default:
		return model.CycleOutcomeFailed
	}
}

func (c *Coordinator) recordCycle(ctx context.Context, logger *slog.Logger, record model.CycleRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordCycle(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("failed to record cycle", "err", err)
	}
}
