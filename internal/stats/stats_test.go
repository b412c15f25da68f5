package stats

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/testutil"
)

func fixture() *table.Table {
	return table.MustNew(
		table.NewStringColumn("region", []string{"east", "west", "east", "east", "west"}, nil),
		table.NewStringColumn("kind", []string{"a", "a", "b", "a", "b"}, nil),
		table.NewIntColumn("qty", []int64{1, 2, 3, 4, 0}, []bool{false, false, false, false, true}),
		table.NewFloatColumn("price", []float64{1.5, 2.5, 3.5, 4.5, 5.5}, nil),
	)
}

func TestProfileColumn(t *testing.T) {
	p := ProfileColumn(fixture().ColumnByName("qty"))
	if p.Rows != 5 || p.Nulls != 1 || p.Distinct != 4 {
		t.Errorf("rows/nulls/distinct = %d/%d/%d", p.Rows, p.Nulls, p.Distinct)
	}
	if p.Min != "1" || p.Max != "4" {
		t.Errorf("min/max = %q/%q", p.Min, p.Max)
	}
	if !p.HasMean || p.Mean != 2.5 {
		t.Errorf("mean = %v (%v)", p.Mean, p.HasMean)
	}
	if want := math.Sqrt(5.0 / 3.0); math.Abs(p.Sigma-want) > 1e-9 {
		t.Errorf("sigma = %v, want %v", p.Sigma, want)
	}
	if p.NullPct() != 20 {
		t.Errorf("NullPct = %v", p.NullPct())
	}
}

func TestProfile_TextHasNoMoments(t *testing.T) {
	ps, err := Profile(context.Background(), fixture())
	testutil.MustNoErr(t, err, "Profile")
	if len(ps) != 4 {
		t.Fatalf("got %d profiles", len(ps))
	}
	if ps[0].HasMean || ps[0].Min != "east" || ps[0].Max != "west" {
		t.Errorf("region profile = %+v", ps[0])
	}
	tbl := ProfileTable(ps)
	testutil.AssertStrings(t, tbl.Names(), ColColumn, ColType, ColNullPct, ColDistinct, ColMin, ColMax, ColMean, ColSigma)
	if !tbl.ColumnByName(ColMean).IsNull(0) {
		t.Error("mean of a text column should be null")
	}
}

func TestPlaceholder(t *testing.T) {
	ph := Placeholder(fixture().Schema())
	if ph.Len() != 4 {
		t.Fatalf("Len = %d", ph.Len())
	}
	testutil.AssertStrings(t, testutil.Cells(t, ph, ColDistinct, 2), Pending, Pending, Pending, Pending)
	testutil.AssertStrings(t, testutil.Cells(t, ph, ColType, 2), "str", "str", "i64", "f64")
}

func TestProfileGrouped(t *testing.T) {
	got, err := ProfileGrouped(context.Background(), fixture(), []string{"region"})
	testutil.MustNoErr(t, err, "ProfileGrouped")

	// two groups x three non-key columns
	if got.Len() != 6 {
		t.Fatalf("Len = %d, want 6", got.Len())
	}
	testutil.AssertStrings(t, testutil.Cells(t, got, "region", 2), "east", "east", "east", "west", "west", "west")
	testutil.AssertStrings(t, testutil.Cells(t, got, ColColumn, 2), "kind", "qty", "price", "kind", "qty", "price")
	// west qty is {2, null}
	if got.Cell(4, got.Index(ColNullPct), 0) != "50" {
		t.Errorf("west qty null%% = %s", got.Cell(4, got.Index(ColNullPct), 0))
	}
}

func TestFrequency(t *testing.T) {
	got, err := Frequency(fixture(), "kind", nil)
	testutil.MustNoErr(t, err, "Frequency")

	testutil.AssertStrings(t, got.Names(), "kind", ColCount, "min_qty", "max_qty", "sum_qty", "min_price", "max_price", "sum_price")
	testutil.AssertStrings(t, testutil.Cells(t, got, "kind", 2), "a", "b")
	testutil.AssertStrings(t, testutil.Cells(t, got, ColCount, 2), "3", "2")
	testutil.AssertStrings(t, testutil.Cells(t, got, "sum_qty", 2), "7", "3")
	testutil.AssertStrings(t, testutil.Cells(t, got, "max_price", 2), "4.50", "5.50")
}

func TestFrequency_WithKeys(t *testing.T) {
	got, err := Frequency(fixture(), "kind", []string{"region"})
	testutil.MustNoErr(t, err, "Frequency")

	rows := make([]string, got.Len())
	for i := range rows {
		rows[i] = got.Cell(i, 0, -1) + "/" + got.Cell(i, 1, -1) + "=" + got.Cell(i, 2, -1)
	}
	want := []string{"east/a=2", "east/b=1", "west/a=1", "west/b=1"}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("groups (-want +got):\n%s", diff)
	}
}

func TestFrequency_LargeIntegersStayExact(t *testing.T) {
	const big = int64(1)<<53 + 1
	tbl := table.MustNew(
		table.NewStringColumn("k", []string{"a", "a", "b"}, nil),
		table.NewIntColumn("id", []int64{big, big + 2, math.MaxInt64}, nil),
	)
	got, err := Frequency(tbl, "k", nil)
	testutil.MustNoErr(t, err, "Frequency")

	if diff := cmp.Diff([]int64{big, math.MaxInt64}, got.ColumnByName("min_id").Ints); diff != "" {
		t.Errorf("min_id (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{big + 2, math.MaxInt64}, got.ColumnByName("max_id").Ints); diff != "" {
		t.Errorf("max_id (-want +got):\n%s", diff)
	}
}

func TestFrequency_UnknownColumn(t *testing.T) {
	if _, err := Frequency(fixture(), "nope", nil); err == nil {
		t.Error("expected error")
	}
}

func TestWithShares(t *testing.T) {
	freq, err := Frequency(fixture(), "region", nil)
	testutil.MustNoErr(t, err, "Frequency")
	got, err := WithShares(freq)
	testutil.MustNoErr(t, err, "WithShares")

	testutil.AssertStrings(t, testutil.Cells(t, got, ColPct, 2), "60.00", "40.00")
	bars := testutil.Cells(t, got, ColBar, 2)
	if len(bars[0]) != 60 || len(bars[1]) != 40 {
		t.Errorf("bar lengths = %d, %d", len(bars[0]), len(bars[1]))
	}
}

func TestPivot(t *testing.T) {
	got, err := Pivot(fixture(), []string{"region"}, "kind", "price", "sum")
	testutil.MustNoErr(t, err, "Pivot")

	testutil.AssertStrings(t, got.Names(), "region", "a", "b")
	testutil.AssertStrings(t, testutil.Cells(t, got, "a", 2), "6.00", "2.50")
	testutil.AssertStrings(t, testutil.Cells(t, got, "b", 2), "3.50", "5.50")
}

func TestPivot_CountAndMissingCells(t *testing.T) {
	tbl := table.MustNew(
		table.NewStringColumn("k", []string{"x", "y"}, nil),
		table.NewStringColumn("p", []string{"u", "v"}, nil),
	)
	got, err := Pivot(tbl, []string{"k"}, "p", "", "count")
	testutil.MustNoErr(t, err, "Pivot count")
	testutil.AssertStrings(t, testutil.Cells(t, got, "u", 2), "1", "0")

	got, err = Pivot(tbl, []string{"k"}, "p", "k", "first")
	testutil.MustNoErr(t, err, "Pivot first")
	if !got.ColumnByName("v").IsNull(0) {
		t.Error("cell with no rows should be null")
	}
}

func TestPivot_SumOfText(t *testing.T) {
	if _, err := Pivot(fixture(), nil, "kind", "region", "sum"); err == nil {
		t.Error("expected error summing text")
	}
}
