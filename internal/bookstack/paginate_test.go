package bookstack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeListing(total, served int) (PageFetcher[ShelfSummary], *[]int) {
	var offsets []int
	return func(_ context.Context, count, offset int) (Listing[ShelfSummary], error) {
		offsets = append(offsets, offset)
		var data []ShelfSummary
		for i := offset; i < offset+count && i < served; i++ {
			data = append(data, ShelfSummary{ID: i + 1})
		}
		return Listing[ShelfSummary]{Data: data, Total: total}, nil
	}, &offsets
}

func TestPaginateStopsAtReportedTotal(t *testing.T) {
	fetch, offsets := fakeListing(250, 250)

	items, err := Paginate(context.Background(), fetch)
	require.NoError(t, err)
	assert.Len(t, items, 250)
	assert.Equal(t, []int{0, 100, 200}, *offsets)
	assert.Equal(t, 250, items[249].ID)
}

func TestPaginateExactMultipleOfPageSize(t *testing.T) {
	fetch, offsets := fakeListing(200, 200)

	items, err := Paginate(context.Background(), fetch)
	require.NoError(t, err)
	assert.Len(t, items, 200)
	assert.Len(t, *offsets, 2)
}

func TestPaginateStopsOnEmptyPageWhenTotalIsInflated(t *testing.T) {
	fetch, offsets := fakeListing(1000, 120)

	items, err := Paginate(context.Background(), fetch)
	require.NoError(t, err)
	assert.Len(t, items, 120)
	assert.Equal(t, []int{0, 100, 200}, *offsets)
}

func TestPaginateEmptyListing(t *testing.T) {
	fetch, offsets := fakeListing(0, 0)

	items, err := Paginate(context.Background(), fetch)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Len(t, *offsets, 1)
}

func TestPaginatePropagatesFetchError(t *testing.T) {
	calls := 0
	var fetch PageFetcher[ShelfSummary] = func(_ context.Context, count, offset int) (Listing[ShelfSummary], error) {
		calls++
		if offset > 0 {
			return Listing[ShelfSummary]{}, &AuthError{Endpoint: "shelves"}
		}
		return Listing[ShelfSummary]{Data: make([]ShelfSummary, count), Total: 150}, nil
	}

	items, err := Paginate(context.Background(), fetch)
	assert.Nil(t, items)
	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, 2, calls)
}
