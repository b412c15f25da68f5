package query_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/query/querytest"
	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/testutil"
)

// newEngine creates an in-memory DuckDBEngine closed via t.Cleanup.
func newEngine(t *testing.T) *query.DuckDBEngine {
	t.Helper()
	engine, err := query.NewDuckDBEngine(0)
	if err != nil {
		t.Fatalf("NewDuckDBEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

// salesParquet writes a small fixture with text, int and float columns.
func salesParquet(t *testing.T) query.Relation {
	t.Helper()
	path := querytest.WriteParquet(t, t.TempDir(), "sales.parquet", "region, qty, price", `
		('east', 1::BIGINT, 1.5::DOUBLE),
		('west', 2::BIGINT, 2.5::DOUBLE),
		('east', 3::BIGINT, 3.5::DOUBLE),
		('east', NULL::BIGINT, 4.5::DOUBLE),
		('north', 5::BIGINT, NULL::DOUBLE)
	`)
	return query.FileRelation(query.KindParquet, path)
}

func TestDuckDBEngine_Schema(t *testing.T) {
	e := newEngine(t)
	fields, err := e.Schema(context.Background(), salesParquet(t))
	testutil.MustNoErr(t, err, "Schema")

	want := []table.Field{
		{Name: "region", Type: table.String, Native: "VARCHAR"},
		{Name: "qty", Type: table.Int64, Native: "BIGINT"},
		{Name: "price", Type: table.Float64, Native: "DOUBLE"},
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("Schema (-want +got):\n%s", diff)
	}
}

func TestDuckDBEngine_CountAndChainedFilter(t *testing.T) {
	e := newEngine(t)
	rel := salesParquet(t)
	ctx := context.Background()

	all, err := e.Count(ctx, rel, "")
	testutil.MustNoErr(t, err, "Count")
	if all != 5 {
		t.Errorf("Count = %d, want 5", all)
	}

	chained := query.And(query.And("", `region = 'east'`), "qty > 1")
	n, err := e.Count(ctx, rel, chained)
	testutil.MustNoErr(t, err, "Count chained")
	if n != 1 {
		t.Errorf("chained Count = %d, want 1", n)
	}
}

func TestDuckDBEngine_FetchWindow(t *testing.T) {
	e := newEngine(t)
	got, err := e.Fetch(context.Background(), salesParquet(t), query.Window{
		Columns: []string{"qty", "region"},
		Where:   "price IS NOT NULL",
		OrderBy: "price",
		Desc:    true,
		Offset:  1,
		Limit:   2,
	})
	testutil.MustNoErr(t, err, "Fetch")

	testutil.AssertStrings(t, got.Names(), "qty", "region")
	testutil.AssertStrings(t, testutil.Cells(t, got, "qty", -1), "3", "2")
	if got.Column(0).Type != table.Int64 {
		t.Errorf("qty type = %s", got.Column(0).Type)
	}
}

func TestDuckDBEngine_Distinct(t *testing.T) {
	e := newEngine(t)
	got, err := e.Distinct(context.Background(), salesParquet(t), "region", "")
	testutil.MustNoErr(t, err, "Distinct")
	testutil.AssertStrings(t, got, "east", "north", "west")
}

func TestDuckDBEngine_Frequency(t *testing.T) {
	e := newEngine(t)
	got, err := e.Frequency(context.Background(), salesParquet(t), query.FrequencyOptions{
		Column:  "region",
		Numeric: []string{"qty"},
	})
	testutil.MustNoErr(t, err, "Frequency")

	testutil.AssertStrings(t, got.Names(), "region", "Cnt", "min_qty", "max_qty", "sum_qty")
	testutil.AssertStrings(t, testutil.Cells(t, got, "region", -1), "east", "north", "west")
	testutil.AssertStrings(t, testutil.Cells(t, got, "Cnt", -1), "3", "1", "1")
	testutil.AssertStrings(t, testutil.Cells(t, got, "sum_qty", -1), "4", "5", "2")
}

func TestDuckDBEngine_Profile(t *testing.T) {
	e := newEngine(t)
	ps, err := e.Profile(context.Background(), salesParquet(t), "")
	testutil.MustNoErr(t, err, "Profile")
	if len(ps) != 3 {
		t.Fatalf("got %d profiles", len(ps))
	}
	qty := ps[1]
	if qty.Rows != 5 || qty.Nulls != 1 || qty.Distinct != 4 || qty.Min != "1" || qty.Max != "5" {
		t.Errorf("qty profile = %+v", qty)
	}
	if !qty.HasMean || qty.Mean != 2.75 {
		t.Errorf("qty mean = %v", qty.Mean)
	}
	if ps[0].HasMean {
		t.Error("text column should have no mean")
	}
}

func TestDuckDBEngine_Pivot(t *testing.T) {
	e := newEngine(t)
	path := querytest.WriteParquet(t, t.TempDir(), "p.parquet", "k, p, v", `
		('x', 'u', 1), ('x', 'v', 2), ('y', 'u', 3), ('x', 'u', 4)
	`)
	got, err := e.Pivot(context.Background(), query.FileRelation(query.KindParquet, path), query.PivotOptions{
		Keys: []string{"k"}, Column: "p", Value: "v", Agg: "sum",
	})
	testutil.MustNoErr(t, err, "Pivot")
	testutil.AssertStrings(t, got.Names(), "k", "u", "v")
	testutil.AssertStrings(t, testutil.Cells(t, got, "u", -1), "5", "3")

	if _, err := e.Pivot(context.Background(), query.FileRelation(query.KindParquet, path), query.PivotOptions{
		Column: "p", Value: "v", Agg: "median",
	}); err == nil {
		t.Error("expected error for unknown aggregation")
	}
}

func TestDuckDBEngine_RegisterAndExport(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tbl := table.MustNew(
		table.NewIntColumn("a", []int64{1, 6, 7}, nil),
		table.NewStringColumn("s", []string{"x", "", "z"}, []bool{false, true, false}),
	)
	rel, err := e.Register(ctx, "t_1", tbl)
	testutil.MustNoErr(t, err, "Register")

	n, err := e.Count(ctx, rel, "a > 5 AND s IS NULL")
	testutil.MustNoErr(t, err, "Count")
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	out := filepath.Join(t.TempDir(), "out.parquet")
	testutil.MustNoErr(t, e.Export(ctx, rel, query.Window{Where: "a > 5"}, out), "Export")
	back, err := e.Count(ctx, query.FileRelation(query.KindParquet, out), "")
	testutil.MustNoErr(t, err, "Count export")
	if back != 2 {
		t.Errorf("exported rows = %d, want 2", back)
	}

	testutil.MustNoErr(t, e.Unregister(ctx, "t_1"), "Unregister")
	if _, err := e.Count(ctx, rel, ""); err == nil {
		t.Error("expected error querying dropped table")
	}
}

func TestDuckDBEngine_CSVRelation(t *testing.T) {
	e := newEngine(t)
	path := testutil.WriteFile(t, t.TempDir(), "d.csv", []byte("id,name\n1,a\n2,b\n"))
	n, err := e.Count(context.Background(), query.FileRelation(query.KindCSV, path), "id > 1")
	testutil.MustNoErr(t, err, "Count csv")
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestCountingEngine_SchemaAndCountMaterializeNothing(t *testing.T) {
	dir := t.TempDir()
	path := querytest.WriteSeriesParquet(t, dir, "big.parquet", 100000)
	ce := querytest.NewCountingEngine(newEngine(t))
	rel := query.FileRelation(query.KindParquet, path)
	ctx := context.Background()

	if _, err := ce.Schema(ctx, rel); err != nil {
		t.Fatalf("Schema: %v", err)
	}
	n, err := ce.Count(ctx, rel, "a < 10")
	testutil.MustNoErr(t, err, "Count")
	if n != 10000 {
		t.Errorf("Count = %d, want 10000", n)
	}
	if got := ce.Materialized(); got != 0 {
		t.Errorf("materialized %d rows, want 0", got)
	}

	if _, err := ce.Fetch(ctx, rel, query.Window{Limit: 50}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := ce.Materialized(); got != 50 {
		t.Errorf("materialized %d rows after fetch, want 50", got)
	}
}

func TestIn(t *testing.T) {
	got := query.In("c", []string{"a'b", ""})
	want := `CAST("c" AS VARCHAR) IN ('a''b') OR "c" IS NULL`
	if got != want {
		t.Errorf("In = %s, want %s", got, want)
	}
	if query.In("c", nil) != "FALSE" {
		t.Error("empty In should be FALSE")
	}
}
