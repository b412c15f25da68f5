package view

import (
	"context"

	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/table"
)

// DefaultPad is the number of rows fetched beyond each edge of the
// requested range.
const DefaultPad = 200

// RenderCache holds one padded row window per view. A request inside the
// cached window is served without touching the source.
type RenderCache struct {
	pad int64

	valid bool
	start int64
	rows  *table.Table
	// eof is set when the cached window ends at the last row.
	eof bool

	fetches int
}

// NewRenderCache returns an empty cache padding each fetch by pad rows.
func NewRenderCache(pad int) *RenderCache {
	if pad <= 0 {
		pad = DefaultPad
	}
	return &RenderCache{pad: int64(pad)}
}

// Invalidate empties the cache.
func (c *RenderCache) Invalidate() {
	c.valid = false
	c.rows = nil
	c.eof = false
}

// Fetches returns how many times the cache went to the source.
func (c *RenderCache) Fetches() int { return c.fetches }

// Span returns the cached window [start, end).
func (c *RenderCache) Span() (start, end int64, ok bool) {
	if !c.valid {
		return 0, 0, false
	}
	return c.start, c.start + int64(c.rows.Len()), true
}

func (c *RenderCache) covers(lo, hi int64) bool {
	if !c.valid || lo < c.start {
		return false
	}
	end := c.start + int64(c.rows.Len())
	return hi <= end || (c.eof && lo <= end)
}

// Rows returns rows [lo, hi) of src, fetching a padded window when the
// range is not cached. The result may be shorter near the end of the
// source. incomplete is set when the source is still loading and the
// range reaches past its resident rows.
func (c *RenderCache) Rows(ctx context.Context, src *source.Source, lo, hi int64) (rows *table.Table, incomplete bool, err error) {
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	if !c.covers(lo, hi) {
		start := max(0, lo-c.pad)
		limit := hi - start + c.pad
		page, err := src.FetchWindow(ctx, "", start, limit)
		if err != nil {
			return nil, false, err
		}
		c.fetches++
		if page.Incomplete {
			// Rows may still arrive; serve this request but cache nothing.
			c.Invalidate()
			return page.Rows.Slice(int(lo-start), int(hi-start)), true, nil
		}
		c.valid = true
		c.start = start
		c.rows = page.Rows
		c.eof = int64(page.Rows.Len()) < limit
	}
	return c.rows.Slice(int(lo-c.start), int(hi-c.start)), false, nil
}
