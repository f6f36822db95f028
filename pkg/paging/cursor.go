// Package paging keeps one paginated collection in sync with the server.
//
// A Controller owns a Cursor and a Collection. Refresh replaces the
// collection with page 1; LoadMore appends the next page, de-duplicated by
// id. Both are guarded by loading tags so the same page is never fetched
// twice at once, and a refresh supersedes an in-flight load-more.
package paging

// DefaultPageSize is used when a controller is built without a page size.
const DefaultPageSize = 20

// Pagination is the server's view of a page.
type Pagination struct {
	Page       int
	Limit      int
	TotalCount int
	// HasTotal is false when the server did not report a total.
	HasTotal bool
}

// Cursor tracks page number, page size and total for one collection.
// Page is 0 until the first page has been applied.
type Cursor struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalKnown bool `json:"totalKnown"`
	Exhausted  bool `json:"exhausted"`
}

// NewCursor returns an empty cursor with the given page size.
func NewCursor(limit int) Cursor {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return Cursor{Limit: limit}
}

// Next returns the page number Advance would move to.
func (c *Cursor) Next() int {
	return c.Page + 1
}

// Advance moves onto the next page and returns its number.
func (c *Cursor) Advance() int {
	c.Page++
	return c.Page
}

// Reset clears the cursor for a fresh load, keeping the page size.
func (c *Cursor) Reset() {
	*c = NewCursor(c.Limit)
}

// HasMore reports whether another page may exist. Before the first response
// the total is unknown and HasMore is true.
func (c *Cursor) HasMore() bool {
	if c.Exhausted {
		return false
	}
	if c.TotalKnown && c.Page*c.Limit >= c.Total {
		return false
	}
	return true
}

// Record stores what the server said about the page just applied. n is the
// number of items the page carried.
func (c *Cursor) Record(p Pagination, n int) {
	if p.HasTotal {
		c.Total = p.TotalCount
		c.TotalKnown = true
	}
	if n < c.Limit {
		c.Exhausted = true
	}
}
