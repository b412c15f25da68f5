package query

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"github.com/wesm/tabview/internal/stats"
	"github.com/wesm/tabview/internal/table"
)

// DuckDBEngine implements Engine with an in-process DuckDB database.
//
// File relations are scanned in place (read_parquet, read_csv_auto,
// read_json_auto) so counts, schemas and aggregates never pull the full row
// set into Go memory. Resident tables are copied in through the appender
// API when a query over them is needed (filters and saves on in-memory
// views).
type DuckDBEngine struct {
	db *sql.DB
}

// maxConns is the connection pool size. Background aggregates each hold a
// connection for their whole query, so the pool must leave room for the
// event loop's window fetches and counts.
const maxConns = 4

// NewDuckDBEngine opens an in-memory DuckDB database. memoryLimit caps
// DuckDB's own buffer pool in bytes; 0 keeps DuckDB's default.
//
// Every pooled connection comes from one connector and so shares the same
// in-memory database; registered tables are visible to all of them.
func NewDuckDBEngine(memoryLimit int64) (*DuckDBEngine, error) {
	// Use GOMAXPROCS(0) instead of NumCPU() to respect container CPU limits.
	threads := runtime.GOMAXPROCS(0)
	settings := []string{fmt.Sprintf("SET threads = %d", threads)}
	if memoryLimit > 0 {
		settings = append(settings, fmt.Sprintf("SET memory_limit = '%dB'", memoryLimit))
	}

	// Session settings do not propagate across pooled connections, so each
	// new connection applies them.
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		for _, q := range settings {
			if _, err := execer.ExecContext(context.Background(), q, nil); err != nil {
				return fmt.Errorf("%s: %w", q, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &DuckDBEngine{db: db}, nil
}

// Close releases DuckDB resources.
func (e *DuckDBEngine) Close() error {
	return e.db.Close()
}

// Schema runs DESCRIBE over the relation. No data rows are read.
func (e *DuckDBEngine) Schema(ctx context.Context, rel Relation) ([]table.Field, error) {
	rows, err := e.db.QueryContext(ctx, "DESCRIBE SELECT * FROM "+rel.From())
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	var fields []table.Field
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan describe: %w", err)
		}
		// column_name, column_type, null, key, default, extra
		name := fmt.Sprint(vals[0])
		native := fmt.Sprint(vals[1])
		fields = append(fields, table.Field{Name: name, Type: TypeFor(native), Native: native})
	}
	return fields, rows.Err()
}

// Count returns COUNT(*) under where.
func (e *DuckDBEngine) Count(ctx context.Context, rel Relation, where string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + rel.From() + whereSQL(where)
	if err := e.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Fetch returns one window of rows.
func (e *DuckDBEngine) Fetch(ctx context.Context, rel Relation, w Window) (*table.Table, error) {
	return e.queryTable(ctx, selectSQL(rel, w))
}

// Distinct returns the distinct values of column rendered as text.
// NULL is reported as the empty string.
func (e *DuckDBEngine) Distinct(ctx context.Context, rel Relation, column, where string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) AS v FROM %s%s ORDER BY v NULLS FIRST",
		QuoteIdent(column), rel.From(), whereSQL(where))
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("distinct: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct: %w", err)
		}
		out = append(out, v.String)
	}
	return out, rows.Err()
}

// Frequency groups by keys and column in a single pass.
func (e *DuckDBEngine) Frequency(ctx context.Context, rel Relation, opts FrequencyOptions) (*table.Table, error) {
	group := append(append([]string{}, opts.Keys...), opts.Column)

	var sel []string
	sel = append(sel, quoteAll(group), `COUNT(*) AS "Cnt"`)
	for _, n := range opts.Numeric {
		q := QuoteIdent(n)
		sel = append(sel,
			fmt.Sprintf("MIN(%s) AS %s", q, QuoteIdent("min_"+n)),
			fmt.Sprintf("MAX(%s) AS %s", q, QuoteIdent("max_"+n)),
			fmt.Sprintf("SUM(%s) AS %s", q, QuoteIdent("sum_"+n)),
		)
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s GROUP BY %s ORDER BY \"Cnt\" DESC, %s",
		strings.Join(sel, ", "), rel.From(), whereSQL(opts.Where), quoteAll(group), quoteAll(group))
	return e.queryTable(ctx, q)
}

// Profile aggregates every column in a single scan.
func (e *DuckDBEngine) Profile(ctx context.Context, rel Relation, where string) ([]stats.ColumnProfile, error) {
	fields, err := e.Schema(ctx, rel)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sel := []string{"COUNT(*)"}
	for _, f := range fields {
		q := QuoteIdent(f.Name)
		sel = append(sel,
			fmt.Sprintf("COUNT(%s)", q),
			fmt.Sprintf("COUNT(DISTINCT %s)", q),
			fmt.Sprintf("CAST(MIN(%s) AS VARCHAR)", q),
			fmt.Sprintf("CAST(MAX(%s) AS VARCHAR)", q),
		)
		if f.Type.Numeric() {
			sel = append(sel,
				fmt.Sprintf("AVG(%s)", q),
				fmt.Sprintf("STDDEV_SAMP(%s)", q),
			)
		}
	}
	q := "SELECT " + strings.Join(sel, ", ") + " FROM " + rel.From() + whereSQL(where)

	vals := make([]any, len(sel))
	ptrs := make([]any, len(sel))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := e.db.QueryRowContext(ctx, q).Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	total := asInt(vals[0])
	out := make([]stats.ColumnProfile, len(fields))
	k := 1
	for i, f := range fields {
		p := stats.ColumnProfile{
			Name:     f.Name,
			Type:     f.Type,
			Native:   f.Native,
			Rows:     total,
			Nulls:    total - asInt(vals[k]),
			Distinct: asInt(vals[k+1]),
			Min:      asString(vals[k+2]),
			Max:      asString(vals[k+3]),
		}
		k += 4
		if f.Type.Numeric() {
			p.Mean, p.HasMean = asFloat(vals[k])
			p.Sigma, p.HasSigma = asFloat(vals[k+1])
			k += 2
		}
		out[i] = p
	}
	return out, nil
}

// Pivot uses DuckDB's PIVOT statement.
func (e *DuckDBEngine) Pivot(ctx context.Context, rel Relation, opts PivotOptions) (*table.Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cols := append(append([]string{}, opts.Keys...), opts.Column)
	if opts.Value != "" && opts.Value != opts.Column {
		cols = append(cols, opts.Value)
	}

	var using string
	switch opts.Agg {
	case "count":
		using = "COUNT(*)"
	case "mean":
		using = "AVG(" + QuoteIdent(opts.Value) + ")"
	default:
		using = strings.ToUpper(opts.Agg) + "(" + QuoteIdent(opts.Value) + ")"
	}

	q := fmt.Sprintf("PIVOT (SELECT %s FROM %s%s) ON %s USING %s",
		quoteAll(cols), rel.From(), whereSQL(opts.Where), QuoteIdent(opts.Column), using)
	if len(opts.Keys) > 0 {
		q += " GROUP BY " + quoteAll(opts.Keys) + " ORDER BY " + quoteAll(opts.Keys)
	}
	return e.queryTable(ctx, q)
}

// Export writes the window with COPY ... TO.
func (e *DuckDBEngine) Export(ctx context.Context, rel Relation, w Window, path string) error {
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		format = "FORMAT parquet"
	case ".csv":
		format = "FORMAT csv, HEADER true"
	case ".tsv":
		format = "FORMAT csv, HEADER true, DELIMITER '\t'"
	default:
		return fmt.Errorf("export: unsupported output extension %q", filepath.Ext(path))
	}
	q := fmt.Sprintf("COPY (%s) TO %s (%s)", selectSQL(rel, w), QuoteLiteral(path), format)
	if _, err := e.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// Register creates (or replaces) a table and fills it through the appender.
func (e *DuckDBEngine) Register(ctx context.Context, name string, t *table.Table) (Relation, error) {
	if t.Width() == 0 {
		return Relation{}, fmt.Errorf("register %s: table has no columns", name)
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return Relation{}, fmt.Errorf("register %s: %w", name, err)
	}
	defer conn.Close()

	defs := make([]string, t.Width())
	for i, c := range t.Columns() {
		defs[i] = QuoteIdent(c.Name) + " " + NativeFor(c.Type)
	}
	ddl := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", QuoteIdent(name), strings.Join(defs, ", "))
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return Relation{}, fmt.Errorf("register %s: %w", name, err)
	}

	err = conn.Raw(func(dc any) error {
		appender, err := duckdb.NewAppenderFromConn(dc.(driver.Conn), "", name)
		if err != nil {
			return err
		}
		row := make([]driver.Value, t.Width())
		for r := 0; r < t.Len(); r++ {
			for c, col := range t.Columns() {
				row[c] = col.Value(r)
			}
			if err := appender.AppendRow(row...); err != nil {
				appender.Close()
				return err
			}
		}
		return appender.Close()
	})
	if err != nil {
		return Relation{}, fmt.Errorf("register %s: append: %w", name, err)
	}
	return TableRelation(name), nil
}

// Unregister drops a registered table.
func (e *DuckDBEngine) Unregister(ctx context.Context, name string) error {
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(name)); err != nil {
		return fmt.Errorf("unregister %s: %w", name, err)
	}
	return nil
}

func (e *DuckDBEngine) queryTable(ctx context.Context, q string) (*table.Table, error) {
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanTable(rows)
}

func asInt(v any) int64 {
	switch x := normalize(v).(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch x := normalize(v).(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}
