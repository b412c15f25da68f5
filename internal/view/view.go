// Package view holds the navigation stack of open views and the per-view
// render window cache.
package view

import (
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/table"
)

// ID identifies a view for the life of the process. IDs are never reused
// and correlate background results with the view that requested them.
type ID int64

var lastID atomic.Int64

// NextID returns a fresh view ID.
func NextID() ID { return ID(lastID.Add(1)) }

// Derivation says what produced a view.
type Derivation int

const (
	Opened Derivation = iota
	Filtered
	Frequency
	Profile
	Pivot
)

func (d Derivation) String() string {
	switch d {
	case Opened:
		return "opened"
	case Filtered:
		return "filtered"
	case Frequency:
		return "frequency"
	case Profile:
		return "profile"
	case Pivot:
		return "pivot"
	}
	return fmt.Sprintf("derivation(%d)", int(d))
}

// Parent records where a derived view came from. It stores the parent's
// ID, never a pointer; resolve it through Stack.Find.
type Parent struct {
	ID   ID
	Rows int64
	Name string
}

// Cursor is the row/column position and scroll offsets.
type Cursor struct {
	Row, Col     int64
	TopRow, Left int64
}

type profileCache struct {
	gen   uint64
	table *table.Table
}

// View is one entry on the navigation stack.
type View struct {
	ID     ID
	Name   string
	Source *source.Source
	Parent *Parent
	Kind   Derivation
	// KeyCount marks the first KeyCount columns as key columns.
	KeyCount int
	// FreqColumn is the counted column of a frequency view.
	FreqColumn string
	// Placeholder is set while a background job fills this view.
	Placeholder bool

	Cursor       Cursor
	SelectedRows map[int64]bool
	SelectedCols map[string]bool

	gen       uint64
	profile   *profileCache
	summaries map[string]string
	cache     *RenderCache
}

// New returns a view bound to src with a fresh ID and an empty render
// cache padded by pad rows.
func New(name string, src *source.Source, pad int) *View {
	return &View{
		ID:           NextID(),
		Name:         name,
		Source:       src,
		SelectedRows: make(map[int64]bool),
		SelectedCols: make(map[string]bool),
		summaries:    make(map[string]string),
		cache:        NewRenderCache(pad),
	}
}

// Gen is the mutation generation. It changes on every filter, column-set
// or sort mutation.
func (v *View) Gen() uint64 { return v.gen }

// Cache returns the view's render window cache.
func (v *View) Cache() *RenderCache { return v.cache }

// Touch records a structural mutation: the render cache, profile cache
// and column summaries are dropped.
func (v *View) Touch() {
	v.gen++
	v.cache.Invalidate()
	v.profile = nil
	clear(v.summaries)
}

// SetSource replaces the binding after a column or sort operation.
func (v *View) SetSource(src *source.Source) {
	v.Source = src
	v.Touch()
	v.clampCursor()
}

// Keys returns the key column names.
func (v *View) Keys() []string {
	cols := v.Source.Columns()
	n := min(v.KeyCount, len(cols))
	return cols[:n]
}

// StoreProfile caches a profile table computed at generation gen. It is
// ignored if the view has been mutated since.
func (v *View) StoreProfile(gen uint64, t *table.Table) bool {
	if gen != v.gen {
		return false
	}
	v.profile = &profileCache{gen: gen, table: t}
	return true
}

// CachedProfile returns the cached profile if no mutation happened since
// it was computed.
func (v *View) CachedProfile() (*table.Table, bool) {
	if v.profile == nil || v.profile.gen != v.gen {
		return nil, false
	}
	return v.profile.table, true
}

// ColumnSummary returns a cached one-line summary for column.
func (v *View) ColumnSummary(column string) (string, bool) {
	s, ok := v.summaries[column]
	return s, ok
}

// SetColumnSummary caches a one-line summary for column.
func (v *View) SetColumnSummary(column, summary string) {
	v.summaries[column] = summary
}

// Clone returns a copy with a new ID. The copy shares the immutable
// source but gets its own render cache and no profile cache.
func (v *View) Clone() *View {
	c := *v
	c.ID = NextID()
	c.SelectedRows = maps.Clone(v.SelectedRows)
	c.SelectedCols = maps.Clone(v.SelectedCols)
	c.summaries = make(map[string]string)
	c.profile = nil
	c.cache = NewRenderCache(int(v.cache.pad))
	if v.Parent != nil {
		p := *v.Parent
		c.Parent = &p
	}
	return &c
}

// Rows returns the number of rows to navigate: the authoritative count,
// or the resident prefix of a streaming source.
func (v *View) Rows() int64 {
	return v.Source.Buffered()
}

// CurrentColumn returns the name of the column under the cursor.
func (v *View) CurrentColumn() string {
	cols := v.Source.Columns()
	if len(cols) == 0 {
		return ""
	}
	return cols[min(int(v.Cursor.Col), len(cols)-1)]
}

// MoveCursor moves by (dr, dc) and clamps to the table.
func (v *View) MoveCursor(dr, dc int64) {
	v.Cursor.Row += dr
	v.Cursor.Col += dc
	v.clampCursor()
}

func (v *View) clampCursor() {
	rows := v.Rows()
	cols := int64(len(v.Source.Columns()))
	v.Cursor.Row = max(0, min(v.Cursor.Row, rows-1))
	v.Cursor.Col = max(0, min(v.Cursor.Col, cols-1))
}

// Scroll adjusts the viewport so the cursor row is visible in a window
// of height rows and returns the visible range [lo, hi).
func (v *View) Scroll(height int64) (lo, hi int64) {
	if height < 1 {
		height = 1
	}
	if v.Cursor.Row < v.Cursor.TopRow {
		v.Cursor.TopRow = v.Cursor.Row
	}
	if v.Cursor.Row >= v.Cursor.TopRow+height {
		v.Cursor.TopRow = v.Cursor.Row - height + 1
	}
	return v.Window(height)
}

// Window returns the rows [lo, hi) shown from the current TopRow without
// moving it.
func (v *View) Window(height int64) (lo, hi int64) {
	if height < 1 {
		height = 1
	}
	lo = max(0, v.Cursor.TopRow)
	hi = min(lo+height, v.Rows())
	return lo, max(lo, hi)
}

// ToggleRow flips the selection of row.
func (v *View) ToggleRow(row int64) {
	if v.SelectedRows[row] {
		delete(v.SelectedRows, row)
		return
	}
	v.SelectedRows[row] = true
}

// ToggleColumn flips the selection of column.
func (v *View) ToggleColumn(name string) {
	if v.SelectedCols[name] {
		delete(v.SelectedCols, name)
		return
	}
	v.SelectedCols[name] = true
}

// SelectedColumns returns the selected columns in display order.
func (v *View) SelectedColumns() []string {
	var out []string
	for _, c := range v.Source.Columns() {
		if v.SelectedCols[c] {
			out = append(out, c)
		}
	}
	return out
}

// SelectedRowList returns the selected row indices in ascending order.
func (v *View) SelectedRowList() []int64 {
	rows := slices.Collect(maps.Keys(v.SelectedRows))
	slices.Sort(rows)
	return rows
}

// ClearSelection drops row and column selections.
func (v *View) ClearSelection() {
	clear(v.SelectedRows)
	clear(v.SelectedCols)
}
