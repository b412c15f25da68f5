package query

import (
	"context"

	"github.com/wesm/tabview/internal/stats"
	"github.com/wesm/tabview/internal/table"
)

// Engine is the embedded data engine the data layer delegates scans,
// filters, aggregates and counts to. Callers build bounded predicate
// strings; the engine compiles and executes them.
//
// Implementations:
//   - DuckDBEngine: in-process DuckDB over Parquet/CSV/JSON files and
//     registered resident tables
//   - querytest.MockEngine / querytest.CountingEngine: test doubles
type Engine interface {
	// Schema describes the relation's columns without reading rows.
	Schema(ctx context.Context, rel Relation) ([]table.Field, error)

	// Count returns the number of rows matching where (empty = all rows).
	Count(ctx context.Context, rel Relation, where string) (int64, error)

	// Fetch returns one bounded window of rows.
	Fetch(ctx context.Context, rel Relation, w Window) (*table.Table, error)

	// Distinct returns the distinct values of column as text, nulls first.
	Distinct(ctx context.Context, rel Relation, column, where string) ([]string, error)

	// Frequency groups by opts.Keys plus opts.Column and counts rows,
	// ordered by count descending. The count column is named Cnt.
	Frequency(ctx context.Context, rel Relation, opts FrequencyOptions) (*table.Table, error)

	// Profile computes per-column summary statistics in one pass.
	Profile(ctx context.Context, rel Relation, where string) ([]stats.ColumnProfile, error)

	// Pivot spreads the values of opts.Column into columns, aggregating
	// opts.Value per opts.Keys group.
	Pivot(ctx context.Context, rel Relation, opts PivotOptions) (*table.Table, error)

	// Export writes the windowed relation to path. The format follows the
	// extension: .parquet or .csv/.tsv.
	Export(ctx context.Context, rel Relation, w Window, path string) error

	// Register loads a resident table into the engine under name so it can
	// be queried like a file relation.
	Register(ctx context.Context, name string, t *table.Table) (Relation, error)

	// Unregister drops a table previously registered under name.
	Unregister(ctx context.Context, name string) error

	// Close releases any resources held by the engine.
	Close() error
}
