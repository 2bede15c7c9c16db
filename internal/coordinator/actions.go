package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

type TagInput struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CreateBookInput struct {
	ShelfID     int        `json:"shelf_id" validate:"required,min=1"`
	Name        string     `json:"name" mod:"trim" validate:"required"`
	Description string     `json:"description" mod:"trim"`
	Tags        []TagInput `json:"tags"`
}

type CreatePageInput struct {
	BookID    int        `json:"book_id" validate:"required,min=1"`
	ChapterID int        `json:"chapter_id" validate:"omitempty,min=1"`
	Name      string     `json:"name" mod:"trim" validate:"required"`
	HTML      string     `json:"html"`
	Markdown  string     `json:"markdown"`
	Tags      []TagInput `json:"tags"`
}

type AppendPageInput struct {
	PageID   int        `json:"page_id" validate:"required,min=1"`
	HTML     string     `json:"html"`
	Markdown string     `json:"markdown"`
	Tags     []TagInput `json:"tags"`
}

// CreateBook creates a book and appends it to an existing shelf. When the
// shelf step fails the book still exists; it is logged and recorded as
// orphaned and the call returns an error.
func (c *Coordinator) CreateBook(ctx context.Context, in CreateBookInput) (bookstack.Book, error) {
	if err := prepareInput(ctx, &in); err != nil {
		return bookstack.Book{}, err
	}

	book, err := c.api.CreateBook(ctx, bookstack.NewBook{
		Name:        in.Name,
		Description: in.Description,
		Tags:        normalizeTags(in.Tags),
	})
	if err != nil {
		return bookstack.Book{}, fmt.Errorf("create book %q: %w", in.Name, err)
	}

	logger := c.logger.With("book_id", book.ID, "shelf_id", in.ShelfID, "name", book.Name)

	shelf, err := c.api.Shelf(ctx, in.ShelfID)
	if err != nil {
		if bookstack.IsNotFound(err) {
			c.orphan(ctx, logger, book, in.ShelfID, "shelf not found")
			return bookstack.Book{}, bookstack.NewValidationError(
				"shelf %d was not found; book %q was still created with id %d but is not on any shelf",
				in.ShelfID, book.Name, book.ID)
		}
		c.orphan(ctx, logger, book, in.ShelfID, err.Error())
		return bookstack.Book{}, fmt.Errorf("book %d was created but shelf %d could not be read: %w", book.ID, in.ShelfID, err)
	}

	// The shelf update replaces the whole list, so send the current one.
	ids := appendBookID(shelf.BookIDs(), book.ID)
	if _, err := c.api.SetShelfBooks(ctx, in.ShelfID, ids); err != nil {
		c.orphan(ctx, logger, book, in.ShelfID, err.Error())
		return bookstack.Book{}, fmt.Errorf("book %d was created but could not be added to shelf %d: %w", book.ID, in.ShelfID, err)
	}

	logger.Info("book created")
	c.refreshAfterWrite(ctx, logger)
	return book, nil
}

// CreatePage creates a page in a book, or in a chapter when ChapterID is set.
func (c *Coordinator) CreatePage(ctx context.Context, in CreatePageInput) (bookstack.Page, error) {
	if err := prepareInput(ctx, &in); err != nil {
		return bookstack.Page{}, err
	}
	format, content, err := selectContent(in.HTML, in.Markdown)
	if err != nil {
		return bookstack.Page{}, err
	}

	payload := bookstack.NewPage{
		BookID:    in.BookID,
		ChapterID: in.ChapterID,
		Name:      in.Name,
		Tags:      normalizeTags(in.Tags),
	}
	if format == formatMarkdown {
		payload.Markdown = content
	} else {
		payload.HTML = content
	}

	page, err := c.api.CreatePage(ctx, payload)
	if err != nil {
		return bookstack.Page{}, fmt.Errorf("create page %q in book %d: %w", in.Name, in.BookID, err)
	}

	logger := c.logger.With("page_id", page.ID, "book_id", page.BookID)
	logger.Info("page created", "format", string(format))
	c.refreshAfterWrite(ctx, logger)
	return page, nil
}

// AppendPage adds content to the end of an existing page in the page's own
// format and merges tags. Counts do not change, so no refresh follows.
func (c *Coordinator) AppendPage(ctx context.Context, in AppendPageInput) (bookstack.Page, error) {
	if err := prepareInput(ctx, &in); err != nil {
		return bookstack.Page{}, err
	}
	format, content, err := selectContent(in.HTML, in.Markdown)
	if err != nil {
		return bookstack.Page{}, err
	}

	page, err := c.api.Page(ctx, in.PageID)
	if err != nil {
		if bookstack.IsNotFound(err) {
			return bookstack.Page{}, bookstack.NewValidationError("page %d was not found", in.PageID)
		}
		return bookstack.Page{}, fmt.Errorf("read page %d: %w", in.PageID, err)
	}

	expected := formatHTML
	if page.IsMarkdown() {
		expected = formatMarkdown
	}
	if format != expected {
		return bookstack.Page{}, bookstack.NewValidationError(
			"page %d is stored as %s; supply the content as %s", page.ID, expected, expected)
	}

	update := bookstack.PageUpdate{Tags: mergeTags(page.Tags, normalizeTags(in.Tags))}
	if expected == formatMarkdown {
		update.Markdown = mergeMarkdown(page.Markdown, content)
	} else {
		update.HTML = mergeHTML(page.HTML, content)
	}

	updated, err := c.api.UpdatePage(ctx, page.ID, update)
	if err != nil {
		return bookstack.Page{}, fmt.Errorf("update page %d: %w", page.ID, err)
	}
	c.logger.Info("page appended", "page_id", page.ID, "format", string(format))
	return updated, nil
}

func (c *Coordinator) orphan(ctx context.Context, logger *slog.Logger, book bookstack.Book, shelfID int, reason string) {
	logger.Error("book created but not shelved; add it to a shelf manually", "reason", reason)
	if c.recorder == nil {
		return
	}
	// The book already exists remotely, so the entry must outlive the caller.
	err := c.recorder.RecordOrphan(context.WithoutCancel(ctx), model.OrphanedBook{
		InstanceID: c.opts.ID,
		BookID:     book.ID,
		ShelfID:    shelfID,
		Name:       book.Name,
		Reason:     reason,
		CreatedAt:  c.now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to record orphaned book", "err", err)
	}
}

// refreshAfterWrite brings counts up to date. The write already succeeded,
// so a failed refresh is only logged.
func (c *Coordinator) refreshAfterWrite(ctx context.Context, logger *slog.Logger) {
	if err := c.Refresh(ctx); err != nil {
		logger.Warn("refresh after write failed", "err", err)
	}
}
