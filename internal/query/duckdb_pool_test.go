package query

import (
	"context"
	"testing"
	"time"

	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/testutil"
)

// busyConns checks out n connections, each mid-query, the way background
// aggregates hold theirs until the query drains.
func busyConns(t *testing.T, e *DuckDBEngine, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		conn, err := e.db.Conn(ctx)
		testutil.MustNoErr(t, err, "Conn")
		rows, err := conn.QueryContext(ctx, "SELECT i FROM range(10) r(i)")
		testutil.MustNoErr(t, err, "busy query")
		t.Cleanup(func() {
			rows.Close()
			conn.Close()
		})
	}
}

func TestDuckDBEngine_FetchWhileWorkersHoldConnections(t *testing.T) {
	e, err := NewDuckDBEngine(0)
	testutil.MustNoErr(t, err, "NewDuckDBEngine")
	t.Cleanup(func() { e.Close() })

	rel, err := e.Register(context.Background(), "people", table.MustNew(
		table.NewStringColumn("name", []string{"ada", "grace"}, nil),
	))
	testutil.MustNoErr(t, err, "Register")

	busyConns(t, e, maxConns-1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := e.Fetch(ctx, rel, Window{Limit: 10})
	testutil.MustNoErr(t, err, "Fetch while connections are busy")
	if got.Len() != 2 {
		t.Errorf("fetched %d rows, want 2", got.Len())
	}
	n, err := e.Count(ctx, rel, "name = 'ada'")
	testutil.MustNoErr(t, err, "Count while connections are busy")
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestDuckDBEngine_RegisteredTableVisibleOnEveryConnection(t *testing.T) {
	e, err := NewDuckDBEngine(1 << 30)
	testutil.MustNoErr(t, err, "NewDuckDBEngine")
	t.Cleanup(func() { e.Close() })

	ctx := context.Background()
	_, err = e.Register(ctx, "shared", table.MustNew(
		table.NewIntColumn("v", []int64{1, 2, 3}, nil),
	))
	testutil.MustNoErr(t, err, "Register")

	conns := make([]int64, 0, maxConns)
	for i := 0; i < maxConns; i++ {
		conn, err := e.db.Conn(ctx)
		testutil.MustNoErr(t, err, "Conn")
		defer conn.Close()
		var n int64
		testutil.MustNoErr(t, conn.QueryRowContext(ctx, "SELECT count(*) FROM shared").Scan(&n), "count")
		conns = append(conns, n)
	}
	testutil.AssertEqualSlices(t, conns, 3, 3, 3, 3)
}
