package coordinator

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

type fakeAPI struct {
	mu sync.Mutex

	system  bookstack.SystemInfo
	counts  map[string]int
	shelves []bookstack.Shelf
	books   map[int]bookstack.Book
	pages   map[int]bookstack.Page
	latest  []bookstack.PageSummary
	nextID  int

	// errs fails a call by key: the method name, or "Count:<resource>".
	errs  map[string]error
	calls map[string]int

	// systemGate, when set, blocks System until it is closed or the call's
	// context ends.
	systemGate chan struct{}
	// onShelf runs inside Shelf before the context is checked.
	onShelf func()

	shelfUpdates map[int][]int
	newPages     []bookstack.NewPage
	pageUpdates  []bookstack.PageUpdate
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		system:       bookstack.SystemInfo{"version": "v24.05", "instance_id": "inst-1"},
		counts:       map[string]int{},
		books:        map[int]bookstack.Book{},
		pages:        map[int]bookstack.Page{},
		nextID:       100,
		errs:         map[string]error{},
		calls:        map[string]int{},
		shelfUpdates: map[int][]int{},
	}
}

func (f *fakeAPI) setErr(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, key)
		return
	}
	f.errs[key] = err
}

func (f *fakeAPI) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) hit(key string) error {
	f.calls[key]++
	return f.errs[key]
}

func (f *fakeAPI) System(ctx context.Context) (bookstack.SystemInfo, error) {
	f.mu.Lock()
	gate := f.systemGate
	err := f.hit("System")
	system := f.system
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &bookstack.ConnectionError{Endpoint: "system", Err: ctx.Err()}
		}
	}
	return system, err
}

func (f *fakeAPI) Count(_ context.Context, resource string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Count"); err != nil {
		return 0, err
	}
	if err := f.hit("Count:" + resource); err != nil {
		return 0, err
	}
	return f.counts[resource], nil
}

func (f *fakeAPI) ListShelves(_ context.Context, count, offset int) (bookstack.Listing[bookstack.ShelfSummary], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("ListShelves"); err != nil {
		return bookstack.Listing[bookstack.ShelfSummary]{}, err
	}
	listing := bookstack.Listing[bookstack.ShelfSummary]{Total: len(f.shelves)}
	for i := offset; i < offset+count && i < len(f.shelves); i++ {
		listing.Data = append(listing.Data, bookstack.ShelfSummary{ID: f.shelves[i].ID, Name: f.shelves[i].Name})
	}
	return listing, nil
}

func (f *fakeAPI) Shelf(ctx context.Context, id int) (bookstack.Shelf, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Shelf"); err != nil {
		return bookstack.Shelf{}, err
	}
	if f.onShelf != nil {
		f.onShelf()
	}
	if err := ctx.Err(); err != nil {
		return bookstack.Shelf{}, &bookstack.ConnectionError{Endpoint: "shelves", Err: err}
	}
	for _, shelf := range f.shelves {
		if shelf.ID == id {
			return shelf, nil
		}
	}
	return bookstack.Shelf{}, notFound("shelves", id)
}

func (f *fakeAPI) Book(_ context.Context, id int) (bookstack.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Book"); err != nil {
		return bookstack.Book{}, err
	}
	book, ok := f.books[id]
	if !ok {
		return bookstack.Book{}, notFound("books", id)
	}
	return book, nil
}

func (f *fakeAPI) LatestPages(context.Context) ([]bookstack.PageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("LatestPages"); err != nil {
		return nil, err
	}
	return f.latest, nil
}

func (f *fakeAPI) Page(_ context.Context, id int) (bookstack.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("Page"); err != nil {
		return bookstack.Page{}, err
	}
	page, ok := f.pages[id]
	if !ok {
		return bookstack.Page{}, notFound("pages", id)
	}
	return page, nil
}

func (f *fakeAPI) CreateBook(_ context.Context, in bookstack.NewBook) (bookstack.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("CreateBook"); err != nil {
		return bookstack.Book{}, err
	}
	f.nextID++
	book := bookstack.Book{ID: f.nextID, Name: in.Name, Description: in.Description, Tags: in.Tags}
	f.books[book.ID] = book
	return book, nil
}

func (f *fakeAPI) SetShelfBooks(_ context.Context, shelfID int, bookIDs []int) (bookstack.Shelf, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("SetShelfBooks"); err != nil {
		return bookstack.Shelf{}, err
	}
	f.shelfUpdates[shelfID] = append([]int(nil), bookIDs...)
	for i, shelf := range f.shelves {
		if shelf.ID != shelfID {
			continue
		}
		shelf.Books = shelf.Books[:0:0]
		for _, id := range bookIDs {
			shelf.Books = append(shelf.Books, bookstack.BookSummary{ID: id})
		}
		f.shelves[i] = shelf
		return shelf, nil
	}
	return bookstack.Shelf{}, notFound("shelves", shelfID)
}

func (f *fakeAPI) CreatePage(_ context.Context, in bookstack.NewPage) (bookstack.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("CreatePage"); err != nil {
		return bookstack.Page{}, err
	}
	f.newPages = append(f.newPages, in)
	f.nextID++
	page := bookstack.Page{
		ID: f.nextID, BookID: in.BookID, ChapterID: in.ChapterID, Name: in.Name,
		HTML: in.HTML, Markdown: in.Markdown, Tags: in.Tags,
	}
	f.pages[page.ID] = page
	return page, nil
}

func (f *fakeAPI) UpdatePage(_ context.Context, id int, in bookstack.PageUpdate) (bookstack.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("UpdatePage"); err != nil {
		return bookstack.Page{}, err
	}
	f.pageUpdates = append(f.pageUpdates, in)
	page, ok := f.pages[id]
	if !ok {
		return bookstack.Page{}, notFound("pages", id)
	}
	if in.Markdown != "" {
		page.Markdown = in.Markdown
	}
	if in.HTML != "" {
		page.HTML = in.HTML
	}
	page.Tags = in.Tags
	f.pages[id] = page
	return page, nil
}

func notFound(resource string, id int) error {
	return &bookstack.StatusError{Method: "GET", Endpoint: resource, Status: 404}
}

// fakeRecorder rejects cancelled contexts the way the sqlite store does.
type fakeRecorder struct {
	mu      sync.Mutex
	cycles  []model.CycleRecord
	orphans []model.OrphanedBook
}

func (r *fakeRecorder) RecordCycle(ctx context.Context, record model.CycleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, record)
	return nil
}

func (r *fakeRecorder) RecordOrphan(ctx context.Context, orphan model.OrphanedBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, orphan)
	return nil
}

func (r *fakeRecorder) cycleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cycles)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestCoordinator(api API, opts model.Options) (*Coordinator, *fakeRecorder, *lockedBuffer) {
	if opts.ID == "" {
		opts.ID = "test"
	}
	if opts.URL == "" {
		opts.URL = "https://x"
	}
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	recorder := &fakeRecorder{}
	return New(api, opts, recorder, logger), recorder, logs
}
