package bookstack

import "context"

// PageSize is the largest page the BookStack API serves.
const PageSize = 100

// PageFetcher fetches one page of a listing.
type PageFetcher[T any] func(ctx context.Context, count, offset int) (Listing[T], error)

// Paginate walks a listing with increasing offsets until the accumulated
// items reach the total reported by the first page, or a page comes back
// empty. The empty-page exit keeps the walk finite when the reported total
// never matches what the server actually returns.
func Paginate[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	var (
		items  []T
		total  int
		offset int
	)
	for first := true; ; first = false {
		page, err := fetch(ctx, PageSize, offset)
		if err != nil {
			return nil, err
		}
		if first {
			total = page.Total
		}
		items = append(items, page.Data...)
		if len(items) >= total || len(page.Data) == 0 {
			return items, nil
		}
		offset += PageSize
	}
}
