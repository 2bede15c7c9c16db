package bookstack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/mattfryer/bookstack-addon/internal/model"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "bookstack-addon/1.0"
	maxErrorBody     = 2048
)

// Client talks to the BookStack REST API of one instance. It never retries;
// every call either returns the decoded body or one of the typed errors in
// errors.go.
type Client struct {
	baseURL       *url.URL
	authorization string
	http          *http.Client
	userAgent     string
}

func NewClient(opts model.Options) (*Client, error) {
	return NewClientWithHTTPClient(opts, &http.Client{Timeout: defaultTimeout})
}

func NewClientWithHTTPClient(opts model.Options, httpClient *http.Client) (*Client, error) {
	base := opts.BaseURL()
	if base == "" {
		return nil, fmt.Errorf("bookstack url is required")
	}
	parsed, err := url.Parse(base + "/api/")
	if err != nil {
		return nil, fmt.Errorf("parse bookstack url %q: %w", opts.URL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:       parsed,
		authorization: opts.AuthorizationHeader(),
		http:          httpClient,
		userAgent:     defaultUserAgent,
	}, nil
}

// System returns GET /system.
func (c *Client) System(ctx context.Context) (SystemInfo, error) {
	var payload SystemInfo
	if err := c.get(ctx, "system", nil, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = SystemInfo{}
	}
	return payload, nil
}

// Count returns the total reported by a listing endpoint using count=1,
// which avoids transferring the items.
func (c *Client) Count(ctx context.Context, resource string) (int, error) {
	var payload CountResponse
	if err := c.get(ctx, resource, url.Values{"count": {"1"}}, &payload); err != nil {
		return 0, err
	}
	return payload.Total, nil
}

// ListShelves returns one page of the shelves listing.
func (c *Client) ListShelves(ctx context.Context, count, offset int) (Listing[ShelfSummary], error) {
	query := url.Values{
		"count":  {strconv.Itoa(count)},
		"offset": {strconv.Itoa(offset)},
	}
	var payload Listing[ShelfSummary]
	if err := c.get(ctx, ResourceShelves, query, &payload); err != nil {
		return Listing[ShelfSummary]{}, err
	}
	return payload, nil
}

func (c *Client) Shelf(ctx context.Context, id int) (Shelf, error) {
	var payload Shelf
	if err := c.get(ctx, "shelves/"+strconv.Itoa(id), nil, &payload); err != nil {
		return Shelf{}, err
	}
	return payload, nil
}

func (c *Client) Book(ctx context.Context, id int) (Book, error) {
	var payload Book
	if err := c.get(ctx, "books/"+strconv.Itoa(id), nil, &payload); err != nil {
		return Book{}, err
	}
	return payload, nil
}

// LatestPages returns the most recently updated page, if any.
func (c *Client) LatestPages(ctx context.Context) ([]PageSummary, error) {
	query := url.Values{"sort": {"-updated_at"}, "count": {"1"}}
	var payload Listing[PageSummary]
	if err := c.get(ctx, ResourcePages, query, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (c *Client) Page(ctx context.Context, id int) (Page, error) {
	var payload Page
	if err := c.get(ctx, "pages/"+strconv.Itoa(id), nil, &payload); err != nil {
		return Page{}, err
	}
	return payload, nil
}

func (c *Client) CreateBook(ctx context.Context, in NewBook) (Book, error) {
	in.Tags = nonNilTags(in.Tags)
	var payload Book
	if err := c.do(ctx, http.MethodPost, "books", nil, in, &payload); err != nil {
		return Book{}, err
	}
	return payload, nil
}

// SetShelfBooks replaces the shelf's book list. Callers pass the full list.
func (c *Client) SetShelfBooks(ctx context.Context, shelfID int, bookIDs []int) (Shelf, error) {
	if bookIDs == nil {
		bookIDs = []int{}
	}
	var payload Shelf
	path := "shelves/" + strconv.Itoa(shelfID)
	if err := c.do(ctx, http.MethodPut, path, nil, shelfBooksUpdate{Books: bookIDs}, &payload); err != nil {
		return Shelf{}, err
	}
	return payload, nil
}

func (c *Client) CreatePage(ctx context.Context, in NewPage) (Page, error) {
	in.Tags = nonNilTags(in.Tags)
	var payload Page
	if err := c.do(ctx, http.MethodPost, "pages", nil, in, &payload); err != nil {
		return Page{}, err
	}
	return payload, nil
}

func (c *Client) UpdatePage(ctx context.Context, id int, in PageUpdate) (Page, error) {
	in.Tags = nonNilTags(in.Tags)
	var payload Page
	if err := c.do(ctx, http.MethodPut, "pages/"+strconv.Itoa(id), nil, in, &payload); err != nil {
		return Page{}, err
	}
	return payload, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, dest)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, dest any) error {
	rel := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	endpoint := rel.String()
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.authorization)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Endpoint: endpoint}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnprocessableEntity && method != http.MethodGet:
		return &ValidationError{
			Message: fmt.Sprintf("BookStack rejected %s %s", method, endpoint),
			Body:    readBody(resp.Body),
		}
	default:
		return &StatusError{
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     readBody(resp.Body),
		}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &ConnectionError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func readBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(body))
}

func nonNilTags(tags []Tag) []Tag {
	if tags == nil {
		return []Tag{}
	}
	return tags
}
