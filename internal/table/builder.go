package table

import (
	"fmt"
	"math/big"
	"time"
)

// Builder accumulates rows of scanned values into a typed table.
type Builder struct {
	fields []Field
	cols   []*Column
	nulls  [][]bool
	rows   int
}

// NewBuilder creates a builder for the given schema.
func NewBuilder(fields []Field) *Builder {
	b := &Builder{
		fields: fields,
		cols:   make([]*Column, len(fields)),
		nulls:  make([][]bool, len(fields)),
	}
	for i, f := range fields {
		b.cols[i] = &Column{Name: f.Name, Type: f.Type}
	}
	return b
}

// Append adds one row. vals must have one entry per field; nil is null.
func (b *Builder) Append(vals []any) error {
	if len(vals) != len(b.cols) {
		return fmt.Errorf("row has %d values, expected %d", len(vals), len(b.cols))
	}
	for i, v := range vals {
		c := b.cols[i]
		isNull := v == nil
		b.nulls[i] = append(b.nulls[i], isNull)
		switch c.Type {
		case Int64:
			var x int64
			if !isNull {
				var ok bool
				if x, ok = toInt64(v); !ok {
					return fmt.Errorf("column %q: cannot use %T as int", c.Name, v)
				}
			}
			c.Ints = append(c.Ints, x)
		case Float64:
			var x float64
			if !isNull {
				var ok bool
				if x, ok = toFloat64(v); !ok {
					return fmt.Errorf("column %q: cannot use %T as float", c.Name, v)
				}
			}
			c.Floats = append(c.Floats, x)
		case Bool:
			var x bool
			if !isNull {
				var ok bool
				if x, ok = v.(bool); !ok {
					return fmt.Errorf("column %q: cannot use %T as bool", c.Name, v)
				}
			}
			c.Bools = append(c.Bools, x)
		default:
			var s string
			if !isNull {
				s = toString(v)
			}
			c.Strings = append(c.Strings, s)
		}
	}
	b.rows++
	return nil
}

// Table finishes the build. The builder must not be used afterwards.
func (b *Builder) Table() *Table {
	for i, c := range b.cols {
		c.Nulls = compactNulls(b.nulls[i])
	}
	return &Table{cols: b.cols, rows: b.rows}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case int:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint64:
		return int64(x), true
	case *big.Int:
		return x.Int64(), x.IsInt64()
	}
	return 0, false
}

// floater covers driver decimal types that expose a float conversion.
type floater interface {
	Float64() float64
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case floater:
		return x.Float64(), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
