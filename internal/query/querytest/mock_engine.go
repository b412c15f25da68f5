// Package querytest provides shared test doubles for the query.Engine interface.
package querytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/stats"
	"github.com/wesm/tabview/internal/table"
)

// MockEngine implements query.Engine for testing. Each method delegates to an
// optional function field; when the field is nil, a safe zero value is returned.
type MockEngine struct {
	Fields   []table.Field
	Rows     int64
	Window   *table.Table
	Profiles []stats.ColumnProfile

	// Optional per-test overrides.
	SchemaFunc    func(context.Context, query.Relation) ([]table.Field, error)
	CountFunc     func(context.Context, query.Relation, string) (int64, error)
	FetchFunc     func(context.Context, query.Relation, query.Window) (*table.Table, error)
	DistinctFunc  func(context.Context, query.Relation, string, string) ([]string, error)
	FrequencyFunc func(context.Context, query.Relation, query.FrequencyOptions) (*table.Table, error)
	ProfileFunc   func(context.Context, query.Relation, string) ([]stats.ColumnProfile, error)
	PivotFunc     func(context.Context, query.Relation, query.PivotOptions) (*table.Table, error)
	ExportFunc    func(context.Context, query.Relation, query.Window, string) error
}

// Compile-time check.
var _ query.Engine = (*MockEngine)(nil)

func (m *MockEngine) Schema(ctx context.Context, rel query.Relation) ([]table.Field, error) {
	if m.SchemaFunc != nil {
		return m.SchemaFunc(ctx, rel)
	}
	return m.Fields, nil
}

func (m *MockEngine) Count(ctx context.Context, rel query.Relation, where string) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, rel, where)
	}
	return m.Rows, nil
}

func (m *MockEngine) Fetch(ctx context.Context, rel query.Relation, w query.Window) (*table.Table, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, rel, w)
	}
	if m.Window != nil {
		return m.Window, nil
	}
	return table.Empty(m.Fields), nil
}

func (m *MockEngine) Distinct(ctx context.Context, rel query.Relation, column, where string) ([]string, error) {
	if m.DistinctFunc != nil {
		return m.DistinctFunc(ctx, rel, column, where)
	}
	return nil, nil
}

func (m *MockEngine) Frequency(ctx context.Context, rel query.Relation, opts query.FrequencyOptions) (*table.Table, error) {
	if m.FrequencyFunc != nil {
		return m.FrequencyFunc(ctx, rel, opts)
	}
	return table.MustNew(
		table.NewStringColumn(opts.Column, nil, nil),
		table.NewIntColumn(stats.ColCount, nil, nil),
	), nil
}

func (m *MockEngine) Profile(ctx context.Context, rel query.Relation, where string) ([]stats.ColumnProfile, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx, rel, where)
	}
	return m.Profiles, nil
}

func (m *MockEngine) Pivot(ctx context.Context, rel query.Relation, opts query.PivotOptions) (*table.Table, error) {
	if m.PivotFunc != nil {
		return m.PivotFunc(ctx, rel, opts)
	}
	return nil, fmt.Errorf("pivot not configured")
}

func (m *MockEngine) Export(ctx context.Context, rel query.Relation, w query.Window, path string) error {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, rel, w, path)
	}
	return nil
}

func (m *MockEngine) Register(_ context.Context, name string, _ *table.Table) (query.Relation, error) {
	return query.TableRelation(name), nil
}

func (m *MockEngine) Unregister(context.Context, string) error { return nil }

func (m *MockEngine) Close() error { return nil }

// CountingEngine wraps another engine and records how many result rows each
// call materialized. Schema and Count never materialize rows.
type CountingEngine struct {
	query.Engine

	mu    sync.Mutex
	rows  map[string]int64
	calls map[string]int
}

// NewCountingEngine wraps inner.
func NewCountingEngine(inner query.Engine) *CountingEngine {
	return &CountingEngine{Engine: inner, rows: make(map[string]int64), calls: make(map[string]int)}
}

func (c *CountingEngine) record(method string, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	c.rows[method] += int64(rows)
}

// Materialized returns the total rows materialized across all calls.
func (c *CountingEngine) Materialized() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, v := range c.rows {
		n += v
	}
	return n
}

// Calls returns how many times method was invoked.
func (c *CountingEngine) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *CountingEngine) Schema(ctx context.Context, rel query.Relation) ([]table.Field, error) {
	c.record("Schema", 0)
	return c.Engine.Schema(ctx, rel)
}

func (c *CountingEngine) Count(ctx context.Context, rel query.Relation, where string) (int64, error) {
	c.record("Count", 0)
	return c.Engine.Count(ctx, rel, where)
}

func (c *CountingEngine) Fetch(ctx context.Context, rel query.Relation, w query.Window) (*table.Table, error) {
	t, err := c.Engine.Fetch(ctx, rel, w)
	c.record("Fetch", t.Len())
	return t, err
}

func (c *CountingEngine) Distinct(ctx context.Context, rel query.Relation, column, where string) ([]string, error) {
	vals, err := c.Engine.Distinct(ctx, rel, column, where)
	c.record("Distinct", len(vals))
	return vals, err
}

func (c *CountingEngine) Frequency(ctx context.Context, rel query.Relation, opts query.FrequencyOptions) (*table.Table, error) {
	t, err := c.Engine.Frequency(ctx, rel, opts)
	c.record("Frequency", t.Len())
	return t, err
}

func (c *CountingEngine) Pivot(ctx context.Context, rel query.Relation, opts query.PivotOptions) (*table.Table, error) {
	t, err := c.Engine.Pivot(ctx, rel, opts)
	c.record("Pivot", t.Len())
	return t, err
}
