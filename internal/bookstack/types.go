package bookstack

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/segmentio/encoding/json"
)

const (
	ContentTypeChapter = "chapter"
	ContentTypePage    = "page"

	unknownVersion = "Unknown"
)

// Resource listing endpoints used for aggregate counts.
const (
	ResourceShelves     = "shelves"
	ResourceBooks       = "books"
	ResourceChapters    = "chapters"
	ResourcePages       = "pages"
	ResourceUsers       = "users"
	ResourceImages      = "image-gallery"
	ResourceAttachments = "attachments"
)

// SystemInfo is the free-form payload of GET /system.
type SystemInfo map[string]any

// Version returns the reported BookStack version or "Unknown".
func (s SystemInfo) Version() string {
	if v := stringValue(s["version"]); v != "" {
		return v
	}
	return unknownVersion
}

// InstanceID returns the stable instance identifier when the API exposes one.
func (s SystemInfo) InstanceID() string {
	return stringValue(s["instance_id"])
}

// Listing is the paginated envelope used by every list endpoint.
type Listing[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

type CountResponse struct {
	Total int `json:"total"`
}

type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UserRef is a user projection. The API returns either a bare id or an
// object depending on the endpoint, and null when the user was deleted.
type UserRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		var id int
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("decode user reference: %w", err)
		}
		u.ID = id
		return nil
	}
	type plain UserRef
	var out plain
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return fmt.Errorf("decode user reference: %w", err)
	}
	*u = UserRef(out)
	return nil
}

type ShelfSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Shelf struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Books       []BookSummary `json:"books"`
	Tags        []Tag         `json:"tags"`
}

// BookIDs returns the ids of the books currently on the shelf, in order.
func (s Shelf) BookIDs() []int {
	ids := make([]int, 0, len(s.Books))
	for _, book := range s.Books {
		ids = append(ids, book.ID)
	}
	return ids
}

type BookSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Book struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
	CreatedBy   *UserRef      `json:"created_by"`
	UpdatedBy   *UserRef      `json:"updated_by"`
	Tags        []Tag         `json:"tags"`
	Contents    []ContentItem `json:"contents,omitempty"`
}

// ContentItem is one top-level entry of a book: a chapter (with nested
// pages) or a page.
type ContentItem struct {
	ID    int           `json:"id"`
	Name  string        `json:"name"`
	Slug  string        `json:"slug"`
	Type  string        `json:"type"`
	Pages []PageSummary `json:"pages,omitempty"`
}

type PageSummary struct {
	ID        int    `json:"id"`
	BookID    int    `json:"book_id"`
	ChapterID int    `json:"chapter_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	UpdatedAt string `json:"updated_at"`
}

type Page struct {
	ID            int      `json:"id"`
	BookID        int      `json:"book_id"`
	ChapterID     int      `json:"chapter_id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	HTML          string   `json:"html"`
	Markdown      string   `json:"markdown"`
	Draft         bool     `json:"draft"`
	RevisionCount int      `json:"revision_count"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	CreatedBy     *UserRef `json:"created_by"`
	UpdatedBy     *UserRef `json:"updated_by"`
	Tags          []Tag    `json:"tags"`
}

// IsMarkdown reports whether the stored page is edited as Markdown.
func (p Page) IsMarkdown() bool {
	return p.Markdown != ""
}

// NewBook is the POST /books payload.
type NewBook struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tags        []Tag  `json:"tags"`
}

// NewPage is the POST /pages payload. Exactly one of HTML and Markdown is set.
type NewPage struct {
	BookID    int    `json:"book_id"`
	ChapterID int    `json:"chapter_id,omitempty"`
	Name      string `json:"name"`
	HTML      string `json:"html,omitempty"`
	Markdown  string `json:"markdown,omitempty"`
	Tags      []Tag  `json:"tags"`
}

// PageUpdate is the PUT /pages/{id} payload.
type PageUpdate struct {
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	Tags     []Tag  `json:"tags"`
}

type shelfBooksUpdate struct {
	Books []int `json:"books"`
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
