// Package table provides the resident columnar table used for in-memory
// views, streamed buffers, fetched windows and computed aggregates.
package table

import (
	"fmt"
	"slices"
	"sort"
)

// Table is an ordered set of equal-length typed columns.
//
// Operations return new tables; a Table is never mutated after
// construction, so it can be handed across goroutines without locking.
type Table struct {
	cols []*Column
	rows int
}

// New builds a table from columns, which must all have the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{cols: cols}
	for i, c := range cols {
		if i == 0 {
			t.rows = c.Len()
			continue
		}
		if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
		}
	}
	return t, nil
}

// MustNew is New for statically correct inputs; it panics on error.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a zero-row table with the given schema.
func Empty(fields []Field) *Table {
	cols := make([]*Column, len(fields))
	for i, f := range fields {
		cols[i] = &Column{Name: f.Name, Type: f.Type}
	}
	return &Table{cols: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.cols)
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column {
	return t.cols
}

// Column returns column i.
func (t *Table) Column(i int) *Column {
	return t.cols[i]
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnByName returns the named column, or nil.
func (t *Table) ColumnByName(name string) *Column {
	if i := t.Index(name); i >= 0 {
		return t.cols[i]
	}
	return nil
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Schema returns the field list.
func (t *Table) Schema() []Field {
	fields := make([]Field, len(t.cols))
	for i, c := range t.cols {
		fields[i] = Field{Name: c.Name, Type: c.Type}
	}
	return fields
}

// Cell formats the value at (row, col).
func (t *Table) Cell(row, col, decimals int) string {
	return t.cols[col].Format(row, decimals)
}

// Slice returns rows [lo, hi), clamped to the table bounds.
func (t *Table) Slice(lo, hi int) *Table {
	lo = max(0, min(lo, t.rows))
	hi = max(lo, min(hi, t.rows))
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Slice(lo, hi)
	}
	return &Table{cols: cols, rows: hi - lo}
}

// Take returns the rows at idx, in order.
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Take(idx)
	}
	return &Table{cols: cols, rows: len(idx)}
}

// Select returns the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c := t.ColumnByName(n)
		if c == nil {
			return nil, fmt.Errorf("unknown column %q", n)
		}
		cols = append(cols, c)
	}
	return &Table{cols: cols, rows: t.rows}, nil
}

// Drop returns the table without the named columns. Unknown names are
// ignored.
func (t *Table) Drop(names ...string) *Table {
	cols := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !slices.Contains(names, c.Name) {
			cols = append(cols, c)
		}
	}
	return &Table{cols: cols, rows: t.rows}
}

// Rename returns the table with column old called name. The column data
// is shared.
func (t *Table) Rename(old, name string) (*Table, error) {
	i := t.Index(old)
	if i < 0 {
		return nil, fmt.Errorf("unknown column %q", old)
	}
	if name != old && t.Index(name) >= 0 {
		return nil, fmt.Errorf("column %q already exists", name)
	}
	cols := slices.Clone(t.cols)
	c := *cols[i]
	c.Name = name
	cols[i] = &c
	return &Table{cols: cols, rows: t.rows}, nil
}

// WithColumn returns the table with c appended, or replacing the column of
// the same name.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	if t.Width() > 0 && c.Len() != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
	}
	cols := slices.Clone(t.cols)
	if i := t.Index(c.Name); i >= 0 {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return &Table{cols: cols, rows: c.Len()}, nil
}

// Append returns t followed by the rows of o. Columns are matched by name;
// o must have the same column set. A column whose types differ is
// downgraded to text in the result and reported in warnings.
func (t *Table) Append(o *Table) (*Table, []string, error) {
	if t.Width() == 0 {
		return o, nil, nil
	}
	if o.Width() != t.Width() {
		return nil, nil, fmt.Errorf("append: %d columns, expected %d", o.Width(), t.Width())
	}
	var warnings []string
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		oc := o.ColumnByName(c.Name)
		if oc == nil {
			return nil, nil, fmt.Errorf("append: missing column %q", c.Name)
		}
		if oc.Type != c.Type {
			warnings = append(warnings, fmt.Sprintf("column %s: %s chunk does not match %s, kept as text", c.Name, oc.Type, c.Type))
			c, _ = c.CastTo(String)
			oc, _ = oc.CastTo(String)
		}
		merged, err := c.concat(oc)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = merged
	}
	return &Table{cols: cols, rows: t.rows + o.rows}, warnings, nil
}

// SortBy returns the table ordered by the named column. Ties keep their
// original order.
func (t *Table) SortBy(name string, desc bool) (*Table, error) {
	c := t.ColumnByName(name)
	if c == nil {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		r := c.Compare(idx[a], idx[b])
		if desc {
			return r > 0
		}
		return r < 0
	})
	return t.Take(idx), nil
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}
