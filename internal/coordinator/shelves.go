package coordinator

import (
	"context"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
)

// aggregateShelves walks every shelf, then every book on it. Calls are
// issued one after another.
func (c *Coordinator) aggregateShelves(ctx context.Context) ([]ShelfAggregate, error) {
	summaries, err := bookstack.Paginate[bookstack.ShelfSummary](ctx, c.api.ListShelves)
	if err != nil {
		return nil, err
	}

	shelves := make([]ShelfAggregate, 0, len(summaries))
	for _, summary := range summaries {
		shelf, err := c.api.Shelf(ctx, summary.ID)
		if err != nil {
			return nil, err
		}
		agg := ShelfAggregate{
			ID:        summary.ID,
			Name:      summary.Name,
			BookCount: len(shelf.Books),
		}
		for _, ref := range shelf.Books {
			book, err := c.api.Book(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			chapters, pages := CountContents(book.Contents)
			agg.ChapterCount += chapters
			agg.PageCount += pages
		}
		shelves = append(shelves, agg)
	}
	return shelves, nil
}

// CountContents counts the chapters and pages of one book's content tree.
// Pages nested in a chapter count once, through their chapter.
func CountContents(items []bookstack.ContentItem) (chapters, pages int) {
	for _, item := range items {
		switch item.Type {
		case bookstack.ContentTypeChapter:
			chapters++
			pages += len(item.Pages)
		case bookstack.ContentTypePage:
			pages++
		}
	}
	return chapters, pages
}
