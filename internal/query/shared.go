package query

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/wesm/tabview/internal/table"
)

// QuoteIdent quotes a column or table name.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// And composes two predicates as text. Either side may be empty.
func And(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return "(" + a + ") AND (" + b + ")"
}

// In builds "col IN (v1, v2, ...)" over text literals. A nil-like empty
// value matches NULL.
func In(column string, values []string) string {
	var lits []string
	hasNull := false
	for _, v := range values {
		if v == "" {
			hasNull = true
			continue
		}
		lits = append(lits, QuoteLiteral(v))
	}
	col := "CAST(" + QuoteIdent(column) + " AS VARCHAR)"
	var parts []string
	if len(lits) > 0 {
		parts = append(parts, col+" IN ("+strings.Join(lits, ", ")+")")
	}
	if hasNull {
		parts = append(parts, QuoteIdent(column)+" IS NULL")
	}
	if len(parts) == 0 {
		return "FALSE"
	}
	return strings.Join(parts, " OR ")
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = QuoteIdent(n)
	}
	return strings.Join(q, ", ")
}

// selectSQL renders the window query over rel.
func selectSQL(rel Relation, w Window) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	switch {
	case len(w.Columns) == 0:
		sb.WriteString("*")
	case len(w.As) == 0:
		sb.WriteString(quoteAll(w.Columns))
	default:
		for i, c := range w.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(QuoteIdent(c))
			if i < len(w.As) && w.As[i] != "" && w.As[i] != c {
				sb.WriteString(" AS ")
				sb.WriteString(QuoteIdent(w.As[i]))
			}
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(rel.From())
	if w.Where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(w.Where)
	}
	if w.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(QuoteIdent(w.OrderBy))
		if w.Desc {
			sb.WriteString(" DESC NULLS LAST")
		} else {
			sb.WriteString(" ASC NULLS FIRST")
		}
	}
	if w.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", w.Limit)
	}
	if w.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", w.Offset)
	}
	return sb.String()
}

func whereSQL(where string) string {
	if where == "" {
		return ""
	}
	return " WHERE " + where
}

// TypeFor maps an engine type name to a column type.
func TypeFor(native string) table.Type {
	n := strings.ToUpper(native)
	switch {
	case n == "BIGINT", n == "INTEGER", n == "SMALLINT", n == "TINYINT",
		n == "UBIGINT", n == "UINTEGER", n == "USMALLINT", n == "UTINYINT",
		n == "HUGEINT", n == "INT", n == "INT8", n == "INT4", n == "INT2":
		return table.Int64
	case n == "DOUBLE", n == "FLOAT", n == "REAL", strings.HasPrefix(n, "DECIMAL"):
		return table.Float64
	case n == "BOOLEAN", n == "BOOL":
		return table.Bool
	}
	return table.String
}

// NativeFor maps a column type to the engine type used when registering.
func NativeFor(t table.Type) string {
	switch t {
	case table.Int64:
		return "BIGINT"
	case table.Float64:
		return "DOUBLE"
	case table.Bool:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// scanTable reads all rows into a resident table, typing each column from
// the driver's reported type.
func scanTable(rows *sql.Rows) (*table.Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	fields := make([]table.Field, len(types))
	for i, ct := range types {
		fields[i] = table.Field{Name: ct.Name(), Type: TypeFor(ct.DatabaseTypeName()), Native: ct.DatabaseTypeName()}
	}

	b := table.NewBuilder(fields)
	vals := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		if err := b.Append(vals); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Table(), nil
}

// normalize converts driver-specific values into types the table builder
// understands.
func normalize(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		return x.Float64()
	}
	return v
}
