package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wesm/tabview/internal/table"
)

// IsPureInt reports whether s is an optional '-' followed by digits only.
func IsPureInt(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IntRoundTrip reports whether s parses as int64 and, ignoring leading
// zeros, formats back to the same digits. "007" round-trips as 7.
func IntRoundTrip(s string) (int64, bool) {
	if !IsPureInt(s) {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimLeft(strings.TrimPrefix(s, "-"), "0")
	if digits == "" {
		digits = "0"
		neg = false
	}
	canon := digits
	if neg {
		canon = "-" + digits
	}
	return v, canon == strconv.FormatInt(v, 10)
}

// FloatRoundTrip reports whether s is a plain decimal or exponent literal
// whose value is finite and survives format and re-parse unchanged.
// Hex floats, "inf", "nan" and digit separators are rejected.
func FloatRoundTrip(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	back, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', -1, 64), 64)
	return v, err == nil && back == v
}

// Infer decides the type of an all-text column: Int64 when every non-null
// value is a pure integer that round-trips through int64, Float64 when
// every non-null value round-trips through float64, String otherwise.
// A column with no non-null values stays String.
func Infer(c *table.Column) table.Type {
	if c.Type != table.String {
		return c.Type
	}
	ints, floats, seen := true, true, false
	for i, s := range c.Strings {
		if c.IsNull(i) {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		seen = true
		if ints {
			if _, ok := IntRoundTrip(s); !ok {
				ints = false
			}
		}
		if !ints {
			if _, ok := FloatRoundTrip(s); !ok {
				floats = false
				break
			}
		}
	}
	switch {
	case !seen:
		return table.String
	case ints:
		return table.Int64
	case floats:
		return table.Float64
	}
	return table.String
}

// Cast converts a text column to t with the same round-trip rules Infer
// applies, so "inf", "0x1p3" or "+5" never become numbers after the
// schema is fixed. Blank values become null without counting as failures.
// Casts to String or from non-text columns defer to Column.CastTo.
func Cast(c *table.Column, t table.Type) (*table.Column, int) {
	if c.Type != table.String || (t != table.Int64 && t != table.Float64) {
		return c.CastTo(t)
	}
	n := c.Len()
	nulls := make([]bool, n)
	failed := 0
	var ints []int64
	var floats []float64
	if t == table.Int64 {
		ints = make([]int64, n)
	} else {
		floats = make([]float64, n)
	}
	for i, raw := range c.Strings {
		s := strings.TrimSpace(raw)
		if c.IsNull(i) || s == "" {
			nulls[i] = true
			continue
		}
		ok := false
		if t == table.Int64 {
			ints[i], ok = IntRoundTrip(s)
		} else {
			floats[i], ok = FloatRoundTrip(s)
		}
		if !ok {
			nulls[i] = true
			failed++
		}
	}
	if t == table.Int64 {
		return table.NewIntColumn(c.Name, ints, nulls), failed
	}
	return table.NewFloatColumn(c.Name, floats, nulls), failed
}

// Promote infers and converts every column of an all-text table. It
// returns the promoted table and its schema.
func Promote(t *table.Table) (*table.Table, []table.Field) {
	cols := make([]*table.Column, t.Width())
	for i, c := range t.Columns() {
		cols[i] = c
		if typ := Infer(c); typ != c.Type {
			// Infer guarantees every value converts.
			cols[i], _ = Cast(c, typ)
		}
	}
	out := table.MustNew(cols...)
	return out, out.Schema()
}

// ApplySchema casts an all-text chunk to the fixed schema. A column that
// does not cast cleanly is kept as text and its field in the returned
// schema is downgraded to String, so later chunks are not re-cast. One
// warning is returned per downgraded column.
func ApplySchema(t *table.Table, fields []table.Field, seq int) (*table.Table, []table.Field, []string) {
	next := make([]table.Field, len(fields))
	copy(next, fields)
	cols := make([]*table.Column, t.Width())
	var warnings []string
	for i, c := range t.Columns() {
		cols[i] = c
		if i >= len(fields) || fields[i].Type == table.String {
			continue
		}
		cast, failed := Cast(c, fields[i].Type)
		if failed > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"chunk %d: column %s has %d value(s) that are not %s, column kept as text",
				seq, c.Name, failed, fields[i].Type))
			next[i].Type = table.String
			continue
		}
		cols[i] = cast
	}
	return table.MustNew(cols...), next, warnings
}
