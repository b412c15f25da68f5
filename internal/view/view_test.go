package view

import (
	"context"
	"testing"

	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/query/querytest"
	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/testutil"
)

// seriesEngine serves an n-row single-column relation and counts fetches.
func seriesEngine(n int64, fetched *[]query.Window) *querytest.MockEngine {
	return &querytest.MockEngine{
		Fields: []table.Field{{Name: "id", Type: table.Int64, Native: "BIGINT"}},
		Rows:   n,
		FetchFunc: func(_ context.Context, _ query.Relation, w query.Window) (*table.Table, error) {
			*fetched = append(*fetched, w)
			hi := min(n, w.Offset+w.Limit)
			vals := make([]int64, 0, max(0, hi-w.Offset))
			for i := w.Offset; i < hi; i++ {
				vals = append(vals, i)
			}
			return table.MustNew(table.NewIntColumn("id", vals, nil)), nil
		},
	}
}

func diskSource(t *testing.T, eng query.Engine) *source.Source {
	t.Helper()
	src, err := source.NewDisk(context.Background(), eng, query.FileRelation(query.KindParquet, "mock.parquet"))
	testutil.MustNoErr(t, err, "NewDisk")
	return src
}

func TestRenderCache_ServesContainedRanges(t *testing.T) {
	ctx := context.Background()
	var fetched []query.Window
	src := diskSource(t, seriesEngine(1_000_000, &fetched))
	c := NewRenderCache(100)

	rows, _, err := c.Rows(ctx, src, 0, 50)
	testutil.MustNoErr(t, err, "Rows [0,50)")
	if rows.Len() != 50 || rows.Column(0).Ints[0] != 0 {
		t.Fatalf("rows = %d", rows.Len())
	}
	start, end, ok := c.Span()
	if !ok || start > 0 || end < 50 {
		t.Errorf("span = [%d,%d)", start, end)
	}

	rows, _, err = c.Rows(ctx, src, 10, 40)
	testutil.MustNoErr(t, err, "Rows [10,40)")
	if c.Fetches() != 1 {
		t.Errorf("fetches after contained request = %d, want 1", c.Fetches())
	}
	if rows.Len() != 30 || rows.Column(0).Ints[0] != 10 {
		t.Errorf("rows = %d first = %d", rows.Len(), rows.Column(0).Ints[0])
	}

	rows, _, err = c.Rows(ctx, src, 10_000, 10_050)
	testutil.MustNoErr(t, err, "Rows [10000,10050)")
	if c.Fetches() != 2 || len(fetched) != 2 {
		t.Errorf("fetches after far request = %d, want 2", c.Fetches())
	}
	if rows.Column(0).Ints[0] != 10_000 || rows.Len() != 50 {
		t.Errorf("far window first = %d len = %d", rows.Column(0).Ints[0], rows.Len())
	}
	if w := fetched[1]; w.Limit > 50+2*100 {
		t.Errorf("fetch limit = %d, expected one padded window", w.Limit)
	}
}

func TestRenderCache_EndOfSource(t *testing.T) {
	ctx := context.Background()
	var fetched []query.Window
	src := diskSource(t, seriesEngine(120, &fetched))
	c := NewRenderCache(50)

	rows, _, err := c.Rows(ctx, src, 80, 130)
	testutil.MustNoErr(t, err, "Rows")
	if rows.Len() != 40 {
		t.Errorf("rows = %d, want 40", rows.Len())
	}
	// Past the end is served from the short window.
	if _, _, err := c.Rows(ctx, src, 90, 140); err != nil || c.Fetches() != 1 {
		t.Errorf("fetches = %d, err = %v", c.Fetches(), err)
	}
}

func TestRenderCache_InvalidatedByMutation(t *testing.T) {
	ctx := context.Background()
	var fetched []query.Window
	v := New("s", diskSource(t, seriesEngine(1000, &fetched)), 10)

	_, _, err := v.Cache().Rows(ctx, v.Source, 0, 20)
	testutil.MustNoErr(t, err, "Rows")
	sorted, err := v.Source.Sort("id", true)
	testutil.MustNoErr(t, err, "Sort")
	v.SetSource(sorted)
	if _, _, ok := v.Cache().Span(); ok {
		t.Fatal("cache still populated after sort")
	}
	_, _, err = v.Cache().Rows(ctx, v.Source, 0, 20)
	testutil.MustNoErr(t, err, "Rows after sort")
	if len(fetched) != 2 || fetched[1].OrderBy != "id" || !fetched[1].Desc {
		t.Errorf("fetches = %+v", fetched)
	}
}

func TestRenderCache_IncompleteStreamNotCached(t *testing.T) {
	ctx := context.Background()
	boot := table.MustNew(table.NewIntColumn("x", []int64{1, 2, 3}, nil))
	src := source.NewStream(nil, boot, true, false)
	c := NewRenderCache(10)

	rows, incomplete, err := c.Rows(ctx, src, 0, 5)
	testutil.MustNoErr(t, err, "Rows")
	if !incomplete || rows.Len() != 3 {
		t.Errorf("incomplete = %v rows = %d", incomplete, rows.Len())
	}
	if _, _, ok := c.Span(); ok {
		t.Error("incomplete window should not be cached")
	}
}

func TestStack_Operations(t *testing.T) {
	mem := source.NewMemory(nil, table.MustNew(table.NewIntColumn("x", []int64{1}, nil)))
	s := NewStack()
	if s.Pop() != nil || s.Swap() || s.Dup() != nil {
		t.Fatal("empty stack operations should be no-ops")
	}
	a, b := New("a", mem, 0), New("b", mem, 0)
	s.Push(a)
	s.Push(b)
	testutil.AssertStrings(t, s.Names(), "a", "b")

	if !s.Swap() || s.Top() != a {
		t.Error("swap did not exchange the top two")
	}
	d := s.Dup()
	if d.ID == a.ID || d.Name != "a" || s.Len() != 3 {
		t.Errorf("dup id = %d (orig %d), len = %d", d.ID, a.ID, s.Len())
	}
	if s.Find(b.ID) != b {
		t.Error("Find by id failed for buried view")
	}

	if s.Pop() != d || s.Find(d.ID) != nil {
		t.Error("popped view still findable")
	}
}

func TestView_ProfileCacheFollowsGeneration(t *testing.T) {
	mem := source.NewMemory(nil, table.MustNew(table.NewIntColumn("x", []int64{1, 2}, nil)))
	v := New("v", mem, 0)
	prof := table.MustNew(table.NewStringColumn("column", []string{"x"}, nil))

	gen := v.Gen()
	if !v.StoreProfile(gen, prof) {
		t.Fatal("StoreProfile rejected current generation")
	}
	if got, ok := v.CachedProfile(); !ok || got != prof {
		t.Error("cached profile missing")
	}
	v.Touch()
	if _, ok := v.CachedProfile(); ok {
		t.Error("profile survived mutation")
	}
	if v.StoreProfile(gen, prof) {
		t.Error("stale generation accepted")
	}

	c := v.Clone()
	if c.ID == v.ID || c.Cache() == v.Cache() {
		t.Error("clone shares bookkeeping with the original")
	}
}

func TestView_CursorAndSelection(t *testing.T) {
	mem := source.NewMemory(nil, table.MustNew(
		table.NewIntColumn("a", make([]int64, 100), nil),
		table.NewIntColumn("b", make([]int64, 100), nil),
	))
	v := New("v", mem, 0)
	v.MoveCursor(150, 5)
	if v.Cursor.Row != 99 || v.Cursor.Col != 1 || v.CurrentColumn() != "b" {
		t.Errorf("cursor = %+v", v.Cursor)
	}
	lo, hi := v.Scroll(20)
	if lo != 80 || hi != 100 {
		t.Errorf("scroll = [%d,%d)", lo, hi)
	}
	v.MoveCursor(-99, 0)
	if lo, hi := v.Window(20); lo != 80 || hi != 100 || v.Cursor.TopRow != 80 {
		t.Errorf("window = [%d,%d) top %d, want unchanged", lo, hi, v.Cursor.TopRow)
	}

	v.ToggleColumn("b")
	v.ToggleColumn("a")
	v.ToggleColumn("a")
	testutil.AssertStrings(t, v.SelectedColumns(), "b")
	v.ToggleRow(7)
	v.ToggleRow(3)
	testutil.AssertEqualSlices(t, v.SelectedRowList(), 3, 7)
}

func TestView_CloneGetsFreshCacheWithSamePadding(t *testing.T) {
	mem := source.NewMemory(nil, table.MustNew(table.NewIntColumn("x", []int64{1, 2, 3, 4, 5}, nil)))
	v := New("v", mem, 2)
	v.SelectedRows[1] = true
	if _, _, err := v.Cache().Rows(context.Background(), mem, 0, 1); err != nil {
		t.Fatal(err)
	}

	c := v.Clone()
	if c.Cache() == v.Cache() {
		t.Fatal("clone shares the render cache")
	}
	if c.Cache().pad != v.Cache().pad {
		t.Errorf("clone pad = %d, want %d", c.Cache().pad, v.Cache().pad)
	}
	if c.Cache().Fetches() != 0 {
		t.Errorf("clone cache reports %d fetches", c.Cache().Fetches())
	}
	c.SelectedRows[2] = true
	if v.SelectedRows[2] {
		t.Error("clone selection leaked into original")
	}
}
