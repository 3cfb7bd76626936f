// Package pagination walks cursor-paginated MCP list results.
//
// A server answers tools/list one page at a time and hands back an opaque
// next cursor; an empty cursor ends the listing. All drives that loop and
// guards against servers that never stop paging.
package pagination

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxPages bounds a listing when the caller gives no limit.
const DefaultMaxPages = 100

var (
	// ErrTooManyPages is returned when a listing exceeds its page limit.
	ErrTooManyPages = errors.New("pagination page limit exceeded")

	// ErrCursorLoop is returned when a server hands back a cursor it has
	// already returned.
	ErrCursorLoop = errors.New("pagination cursor repeated")
)

// Fetch returns one page for cursor and the cursor of the next page.
type Fetch[T any] func(ctx context.Context, cursor string) (items []T, next string, err error)

// Collector tracks the state of a listing between pages.
type Collector struct {
	// NextCursor holds the cursor for the next page
	NextCursor string
	// HasMore is false once a page came back without a cursor
	HasMore bool
	// Pages is the number of pages seen so far
	Pages int
	// TotalItems is the number of items collected so far
	TotalItems int

	seen map[string]bool
}

// NewCollector creates a collector positioned before the first page.
func NewCollector() *Collector {
	return &Collector{HasMore: true, seen: map[string]bool{}}
}

// Update records a page of n items that ended with next.
func (c *Collector) Update(n int, next string) error {
	c.Pages++
	c.TotalItems += n
	c.NextCursor = next
	c.HasMore = next != ""
	if !c.HasMore {
		return nil
	}
	if c.seen[next] {
		return fmt.Errorf("%w: %q", ErrCursorLoop, next)
	}
	c.seen[next] = true
	return nil
}

// All fetches pages until the cursor runs out and returns every item in
// order. maxPages <= 0 means DefaultMaxPages.
func All[T any](ctx context.Context, maxPages int, fetch Fetch[T]) ([]T, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	c := NewCollector()
	var out []T
	for c.HasMore {
		if c.Pages >= maxPages {
			return out, fmt.Errorf("%w: %d pages", ErrTooManyPages, maxPages)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		items, next, err := fetch(ctx, c.NextCursor)
		if err != nil {
			return out, err
		}
		out = append(out, items...)
		if err := c.Update(len(items), next); err != nil {
			return out, err
		}
	}
	return out, nil
}
