package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the physical type of a column.
type Type int

const (
	String Type = iota
	Int64
	Float64
	Bool
)

func (t Type) String() string {
	switch t {
	case String:
		return "str"
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Numeric reports whether values of this type support min/max/sum.
func (t Type) Numeric() bool {
	return t == Int64 || t == Float64
}

// Field is a named, typed column descriptor.
type Field struct {
	Name string
	Type Type
	// Native is the engine's own type name when the field came from a query
	// (e.g. "DECIMAL(9,2)"). Empty for resident tables.
	Native string
}

// Column holds one typed column. Exactly one of the value slices is used,
// selected by Type. Nulls is nil when the column has no null values;
// otherwise it has the same length as the value slice.
//
// Columns are treated as immutable once they are part of a Table.
type Column struct {
	Name    string
	Type    Type
	Strings []string
	Ints    []int64
	Floats  []float64
	Bools   []bool
	Nulls   []bool
}

// NewStringColumn creates a text column. nulls may be nil.
func NewStringColumn(name string, vals []string, nulls []bool) *Column {
	return &Column{Name: name, Type: String, Strings: vals, Nulls: compactNulls(nulls)}
}

// NewIntColumn creates an int64 column. nulls may be nil.
func NewIntColumn(name string, vals []int64, nulls []bool) *Column {
	return &Column{Name: name, Type: Int64, Ints: vals, Nulls: compactNulls(nulls)}
}

// NewFloatColumn creates a float64 column. nulls may be nil.
func NewFloatColumn(name string, vals []float64, nulls []bool) *Column {
	return &Column{Name: name, Type: Float64, Floats: vals, Nulls: compactNulls(nulls)}
}

// NewBoolColumn creates a boolean column. nulls may be nil.
func NewBoolColumn(name string, vals []bool, nulls []bool) *Column {
	return &Column{Name: name, Type: Bool, Bools: vals, Nulls: compactNulls(nulls)}
}

// compactNulls drops a null mask that marks nothing.
func compactNulls(nulls []bool) []bool {
	for _, n := range nulls {
		if n {
			return nulls
		}
	}
	return nil
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.Type {
	case Int64:
		return len(c.Ints)
	case Float64:
		return len(c.Floats)
	case Bool:
		return len(c.Bools)
	default:
		return len(c.Strings)
	}
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Nulls != nil && c.Nulls[i]
}

// NullCount returns the number of null values.
func (c *Column) NullCount() int {
	n := 0
	for _, isNull := range c.Nulls {
		if isNull {
			n++
		}
	}
	return n
}

// Value returns row i as a Go value, or nil for null.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Type {
	case Int64:
		return c.Ints[i]
	case Float64:
		return c.Floats[i]
	case Bool:
		return c.Bools[i]
	default:
		return c.Strings[i]
	}
}

// Format renders row i as text. Nulls render as the empty string.
// decimals < 0 uses the shortest representation that round-trips.
func (c *Column) Format(i, decimals int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Type {
	case Int64:
		return strconv.FormatInt(c.Ints[i], 10)
	case Float64:
		return strconv.FormatFloat(c.Floats[i], 'f', decimals, 64)
	case Bool:
		return strconv.FormatBool(c.Bools[i])
	default:
		return c.Strings[i]
	}
}

// Float returns row i as float64 for numeric columns.
func (c *Column) Float(i int) (float64, bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch c.Type {
	case Int64:
		return float64(c.Ints[i]), true
	case Float64:
		return c.Floats[i], true
	}
	return 0, false
}

// Compare orders row i against row j. Nulls sort first.
func (c *Column) Compare(i, j int) int {
	ni, nj := c.IsNull(i), c.IsNull(j)
	switch {
	case ni && nj:
		return 0
	case ni:
		return -1
	case nj:
		return 1
	}
	switch c.Type {
	case Int64:
		return cmpOrdered(c.Ints[i], c.Ints[j])
	case Float64:
		return cmpOrdered(c.Floats[i], c.Floats[j])
	case Bool:
		bi, bj := 0, 0
		if c.Bools[i] {
			bi = 1
		}
		if c.Bools[j] {
			bj = 1
		}
		return cmpOrdered(bi, bj)
	default:
		return strings.Compare(c.Strings[i], c.Strings[j])
	}
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Key returns a comparable grouping key for row i. Values of different
// types never collide because the type tag is part of the key.
func (c *Column) Key(i int) string {
	if c.IsNull(i) {
		return "\x00null"
	}
	return c.Type.String() + ":" + c.Format(i, -1)
}

// Rename returns a shallow copy of the column with a new name.
func (c *Column) Rename(name string) *Column {
	cp := *c
	cp.Name = name
	return &cp
}

// Take returns a new column containing the rows at idx, in order.
func (c *Column) Take(idx []int) *Column {
	out := &Column{Name: c.Name, Type: c.Type}
	if c.Nulls != nil {
		out.Nulls = make([]bool, len(idx))
		for k, i := range idx {
			out.Nulls[k] = c.Nulls[i]
		}
		out.Nulls = compactNulls(out.Nulls)
	}
	switch c.Type {
	case Int64:
		out.Ints = make([]int64, len(idx))
		for k, i := range idx {
			out.Ints[k] = c.Ints[i]
		}
	case Float64:
		out.Floats = make([]float64, len(idx))
		for k, i := range idx {
			out.Floats[k] = c.Floats[i]
		}
	case Bool:
		out.Bools = make([]bool, len(idx))
		for k, i := range idx {
			out.Bools[k] = c.Bools[i]
		}
	default:
		out.Strings = make([]string, len(idx))
		for k, i := range idx {
			out.Strings[k] = c.Strings[i]
		}
	}
	return out
}

// Slice returns rows [lo, hi) sharing the underlying storage.
func (c *Column) Slice(lo, hi int) *Column {
	out := &Column{Name: c.Name, Type: c.Type}
	if c.Nulls != nil {
		out.Nulls = compactNulls(c.Nulls[lo:hi:hi])
	}
	switch c.Type {
	case Int64:
		out.Ints = c.Ints[lo:hi:hi]
	case Float64:
		out.Floats = c.Floats[lo:hi:hi]
	case Bool:
		out.Bools = c.Bools[lo:hi:hi]
	default:
		out.Strings = c.Strings[lo:hi:hi]
	}
	return out
}

// concat appends o to c. Both must have the same type. The result grows
// c's backing arrays in place, so c itself must not be appended to again;
// slices handed out earlier are capped and never see the new rows.
func (c *Column) concat(o *Column) (*Column, error) {
	if c.Type != o.Type {
		return nil, fmt.Errorf("column %q: cannot append %s to %s", c.Name, o.Type, c.Type)
	}
	n, m := c.Len(), o.Len()
	out := &Column{Name: c.Name, Type: c.Type}
	switch {
	case c.Nulls != nil && o.Nulls != nil:
		out.Nulls = append(c.Nulls, o.Nulls...)
	case c.Nulls != nil:
		out.Nulls = append(c.Nulls, make([]bool, m)...)
	case o.Nulls != nil:
		out.Nulls = make([]bool, n, n+m)
		out.Nulls = append(out.Nulls, o.Nulls...)
	}
	switch c.Type {
	case Int64:
		out.Ints = append(c.Ints, o.Ints...)
	case Float64:
		out.Floats = append(c.Floats, o.Floats...)
	case Bool:
		out.Bools = append(c.Bools, o.Bools...)
	default:
		out.Strings = append(c.Strings, o.Strings...)
	}
	return out, nil
}

// CastTo converts the column to type t. Values that cannot be converted
// become null; the number of such values is returned. Empty or
// whitespace-only text is treated as null and is not counted as a failure.
func (c *Column) CastTo(t Type) (*Column, int) {
	if c.Type == t {
		return c, 0
	}
	n := c.Len()
	nulls := make([]bool, n)
	failed := 0

	if t == String {
		vals := make([]string, n)
		for i := 0; i < n; i++ {
			if c.IsNull(i) {
				nulls[i] = true
				continue
			}
			vals[i] = c.Format(i, -1)
		}
		return NewStringColumn(c.Name, vals, nulls), 0
	}

	text := func(i int) (string, bool) {
		if c.IsNull(i) {
			return "", false
		}
		s := strings.TrimSpace(c.Format(i, -1))
		return s, s != ""
	}

	switch t {
	case Int64:
		vals := make([]int64, n)
		for i := 0; i < n; i++ {
			if c.Type == Float64 && !c.IsNull(i) {
				f := c.Floats[i]
				if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
					nulls[i] = true
					failed++
					continue
				}
				vals[i] = int64(f)
				continue
			}
			s, ok := text(i)
			if !ok {
				nulls[i] = true
				continue
			}
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				nulls[i] = true
				failed++
				continue
			}
			vals[i] = v
		}
		return NewIntColumn(c.Name, vals, nulls), failed
	case Float64:
		vals := make([]float64, n)
		for i := 0; i < n; i++ {
			if c.Type == Int64 && !c.IsNull(i) {
				vals[i] = float64(c.Ints[i])
				continue
			}
			s, ok := text(i)
			if !ok {
				nulls[i] = true
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				nulls[i] = true
				failed++
				continue
			}
			vals[i] = v
		}
		return NewFloatColumn(c.Name, vals, nulls), failed
	case Bool:
		vals := make([]bool, n)
		for i := 0; i < n; i++ {
			s, ok := text(i)
			if !ok {
				nulls[i] = true
				continue
			}
			v, err := strconv.ParseBool(s)
			if err != nil {
				nulls[i] = true
				failed++
				continue
			}
			vals[i] = v
		}
		return NewBoolColumn(c.Name, vals, nulls), failed
	}
	return c, 0
}
