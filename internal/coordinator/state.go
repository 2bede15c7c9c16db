package coordinator

import (
	"strings"
	"time"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
)

const (
	MetricShelves     = "shelves"
	MetricBooks       = "books"
	MetricChapters    = "chapters"
	MetricPages       = "pages"
	MetricUsers       = "users"
	MetricImages      = "images"
	MetricAttachments = "attachments"
)

type metric struct {
	key      string
	resource string
}

// metrics lists every aggregate count in fetch order.
var metrics = []metric{
	{MetricShelves, bookstack.ResourceShelves},
	{MetricBooks, bookstack.ResourceBooks},
	{MetricChapters, bookstack.ResourceChapters},
	{MetricPages, bookstack.ResourcePages},
	{MetricUsers, bookstack.ResourceUsers},
	{MetricImages, bookstack.ResourceImages},
	{MetricAttachments, bookstack.ResourceAttachments},
}

// MetricKeys returns the snapshot keys in display order.
func MetricKeys() []string {
	keys := make([]string, 0, len(metrics))
	for _, m := range metrics {
		keys = append(keys, m.key)
	}
	return keys
}

// State is the result of one successful cycle. A published State is never
// modified; the next successful cycle replaces it as a whole.
type State struct {
	Counts          map[string]int       `json:"counts"`
	System          bookstack.SystemInfo `json:"system"`
	Version         string               `json:"version"`
	DeviceID        string               `json:"device_id"`
	LastUpdatedPage LastUpdatedPage      `json:"last_updated_page"`
	Shelves         []ShelfAggregate     `json:"shelves"`
	RefreshedAt     time.Time            `json:"refreshed_at"`
}

// Count returns one aggregate count.
func (s *State) Count(key string) (int, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.Counts[key]
	return v, ok
}

// Shelf returns the aggregate for one shelf id.
func (s *State) Shelf(id int) (ShelfAggregate, bool) {
	if s == nil {
		return ShelfAggregate{}, false
	}
	for _, shelf := range s.Shelves {
		if shelf.ID == id {
			return shelf, true
		}
	}
	return ShelfAggregate{}, false
}

// LastUpdatedPage describes the most recently edited page. The zero value
// means the instance has no pages.
type LastUpdatedPage struct {
	ID            int        `json:"id,omitempty"`
	Name          string     `json:"name,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	UpdatedByName string     `json:"updated_by_name,omitempty"`
	UpdatedByID   *int       `json:"updated_by_id,omitempty"`
	URL           string     `json:"url,omitempty"`
}

func (p LastUpdatedPage) IsZero() bool {
	return p.ID == 0
}

type ShelfAggregate struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	BookCount    int    `json:"book_count"`
	ChapterCount int    `json:"chapter_count"`
	PageCount    int    `json:"page_count"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp reads an API timestamp as UTC. Values with a "Z" suffix,
// an explicit offset, or no zone at all (assumed UTC) are accepted.
func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}
