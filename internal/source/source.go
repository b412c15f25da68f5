// Package source implements the uniform data-access layer over the three
// storage strategies a view can be bound to: a resident table, a lazy
// disk relation queried through the engine, and a streaming prefix still
// being filled by a background reader.
package source

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/stats"
	"github.com/wesm/tabview/internal/table"
)

// Kind is the storage strategy of a Source.
type Kind int

const (
	// Memory sources hold the complete table.
	Memory Kind = iota
	// Disk sources compile every read to an engine query over files.
	Disk
	// Stream sources hold a growing prefix filled by ingestion.
	Stream
)

func (k Kind) String() string {
	switch k {
	case Memory:
		return "memory"
	case Disk:
		return "disk"
	case Stream:
		return "stream"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Source is a data binding for one view. Transforming operations return a
// new Source and leave the receiver untouched, so a popped-to ancestor
// keeps its own predicate and column list. Stream sources are additionally
// grown in place by AppendChunk and Finish, called only from the event
// loop.
type Source struct {
	kind Kind
	eng  query.Engine
	// origin is the file set the source was opened from.
	origin []string

	// Memory and Stream.
	table *table.Table

	// Disk.
	rel     query.Relation
	fields  []table.Field
	where   string
	columns []string
	orderBy string
	desc    bool
	rows    int64

	// Stream.
	loading   bool
	truncated bool
}

// Page is one bounded window of rows.
type Page struct {
	Rows   *table.Table
	Offset int64
	// Incomplete is set when the window reaches past the resident prefix
	// of a source that is still loading.
	Incomplete bool
}

// NewMemory binds a complete resident table.
func NewMemory(eng query.Engine, t *table.Table, origin ...string) *Source {
	return &Source{kind: Memory, eng: eng, table: t, origin: origin}
}

// NewDisk binds a file relation. The schema and row count are queried
// once here; no rows are read.
func NewDisk(ctx context.Context, eng query.Engine, rel query.Relation) (*Source, error) {
	fields, err := eng.Schema(ctx, rel)
	if err != nil {
		return nil, queryErr("schema", err)
	}
	n, err := eng.Count(ctx, rel, "")
	if err != nil {
		return nil, queryErr("count", err)
	}
	return &Source{kind: Disk, eng: eng, rel: rel, fields: fields, rows: n, origin: rel.Paths}, nil
}

// NewStream binds the bootstrap prefix of a streaming source. loading is
// false when ingestion already finished synchronously.
func NewStream(eng query.Engine, bootstrap *table.Table, loading, truncated bool, origin ...string) *Source {
	s := &Source{kind: Stream, eng: eng, table: bootstrap, loading: loading, truncated: truncated, origin: origin}
	if !loading && !truncated {
		s.kind = Memory
	}
	return s
}

// Kind returns the storage strategy.
func (s *Source) Kind() Kind { return s.kind }

// Origin returns the files the source was opened from.
func (s *Source) Origin() []string { return s.origin }

// Where returns the accumulated predicate of a disk source.
func (s *Source) Where() string { return s.where }

// Partial reports whether the source holds only a prefix of its data.
func (s *Source) Partial() bool { return s.kind == Stream }

// Loading reports whether a background reader is still appending.
func (s *Source) Loading() bool { return s.kind == Stream && s.loading }

// Truncated reports whether ingestion stopped at the memory budget.
func (s *Source) Truncated() bool { return s.kind == Stream && s.truncated }

// Table returns the resident table of a memory or stream source, nil for
// disk sources.
func (s *Source) Table() *table.Table { return s.table }

// Buffered returns the number of resident rows; for disk sources it
// returns the queried row count.
func (s *Source) Buffered() int64 {
	if s.kind == Disk {
		return s.rows
	}
	return int64(s.table.Len())
}

func (s *Source) refuse(op string) error {
	if s.kind != Stream {
		return nil
	}
	return &PartialError{Op: op, Loading: s.loading, Truncated: s.truncated}
}

func (s *Source) clone() *Source {
	c := *s
	c.columns = slices.Clone(s.columns)
	return &c
}

// Schema returns the visible columns in display order. It never reads rows.
func (s *Source) Schema() []table.Field {
	switch s.kind {
	case Memory, Stream:
		return s.table.Schema()
	case Disk:
		if len(s.columns) == 0 {
			return slices.Clone(s.fields)
		}
		out := make([]table.Field, 0, len(s.columns))
		for _, name := range s.columns {
			for _, f := range s.fields {
				if f.Name == name {
					out = append(out, f)
					break
				}
			}
		}
		return out
	}
	panic("unreachable")
}

// Columns returns the visible column names in display order.
func (s *Source) Columns() []string {
	if s.kind == Disk && len(s.columns) > 0 {
		return slices.Clone(s.columns)
	}
	fields := s.Schema()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func (s *Source) hasColumn(name string) bool {
	return slices.Contains(s.Columns(), name)
}

// RowCount returns the authoritative number of rows. Disk counts come from
// a count query made when the source was created; stream sources refuse.
func (s *Source) RowCount() (int64, error) {
	switch s.kind {
	case Memory:
		return int64(s.table.Len()), nil
	case Disk:
		return s.rows, nil
	case Stream:
		return 0, s.refuse("count")
	}
	panic("unreachable")
}

// Distinct returns the distinct values of column as text under pred,
// nulls first as "".
func (s *Source) Distinct(ctx context.Context, column, pred string) ([]string, error) {
	if err := s.refuse("distinct"); err != nil {
		return nil, err
	}
	if !s.hasColumn(column) {
		return nil, fmt.Errorf("distinct: unknown column %q", column)
	}
	switch s.kind {
	case Memory:
		t, err := s.resident(ctx, pred)
		if err != nil {
			return nil, err
		}
		return distinctValues(t.ColumnByName(column)), nil
	case Disk:
		vals, err := s.eng.Distinct(ctx, s.rel, column, query.And(s.where, pred))
		if err != nil {
			return nil, queryErr("distinct", err)
		}
		return vals, nil
	}
	panic("unreachable")
}

func distinctValues(c *table.Column) []string {
	first := make(map[string]int)
	var idx []int
	for i := 0; i < c.Len(); i++ {
		k := c.Key(i)
		if _, ok := first[k]; !ok {
			first[k] = i
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return c.Compare(idx[a], idx[b]) < 0 })
	out := make([]string, len(idx))
	for i, r := range idx {
		if !c.IsNull(r) {
			out[i] = c.Format(r, -1)
		}
	}
	return out
}

// FetchWindow returns up to limit rows starting at offset under pred. Disk
// sources issue one bounded query; memory sources slice; stream sources
// slice the resident prefix and flag Incomplete when the window reaches
// past it while loading. A predicate on a stream source is refused.
func (s *Source) FetchWindow(ctx context.Context, pred string, offset, limit int64) (*Page, error) {
	if offset < 0 {
		offset = 0
	}
	switch s.kind {
	case Memory:
		t, err := s.resident(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &Page{Rows: t.Slice(int(offset), int(offset+limit)), Offset: offset}, nil
	case Stream:
		if pred != "" {
			return nil, s.refuse("filter")
		}
		n := int64(s.table.Len())
		return &Page{
			Rows:       s.table.Slice(int(offset), int(offset+limit)),
			Offset:     offset,
			Incomplete: s.loading && offset+limit > n,
		}, nil
	case Disk:
		t, err := s.eng.Fetch(ctx, s.rel, query.Window{
			Columns: s.columns,
			Where:   query.And(s.where, pred),
			OrderBy: s.orderBy,
			Desc:    s.desc,
			Offset:  offset,
			Limit:   limit,
		})
		if err != nil {
			return nil, queryErr("fetch", err)
		}
		return &Page{Rows: t, Offset: offset}, nil
	}
	panic("unreachable")
}

var tempSeq atomic.Int64

func tempName() string {
	return fmt.Sprintf("tabview_tmp_%d", tempSeq.Add(1))
}

// resident returns the memory table filtered by pred. Filtering registers
// the table with the engine under a temporary name.
func (s *Source) resident(ctx context.Context, pred string) (*table.Table, error) {
	if pred == "" {
		return s.table, nil
	}
	name := tempName()
	rel, err := s.eng.Register(ctx, name, s.table)
	if err != nil {
		return nil, queryErr("register", err)
	}
	defer s.eng.Unregister(context.WithoutCancel(ctx), name)
	t, err := s.eng.Fetch(ctx, rel, query.Window{Where: pred})
	if err != nil {
		return nil, queryErr("filter", err)
	}
	return t, nil
}

// Filter returns a source restricted to rows matching pred. A disk source
// composes the predicate with its own as text and re-counts; a memory
// source evaluates it through the engine and holds the result.
func (s *Source) Filter(ctx context.Context, pred string) (*Source, error) {
	if err := s.refuse("filter"); err != nil {
		return nil, err
	}
	switch s.kind {
	case Memory:
		t, err := s.resident(ctx, pred)
		if err != nil {
			return nil, err
		}
		out := s.clone()
		out.table = t
		return out, nil
	case Disk:
		where := query.And(s.where, pred)
		n, err := s.eng.Count(ctx, s.rel, where)
		if err != nil {
			return nil, queryErr("count", err)
		}
		out := s.clone()
		out.where = where
		out.rows = n
		return out, nil
	}
	panic("unreachable")
}

// Frequency groups rows matching pred by keys plus column, counting each
// group and adding min_, max_ and sum_ for the other numeric columns,
// plus Pct and Bar share columns.
func (s *Source) Frequency(ctx context.Context, column string, keys []string, pred string) (*table.Table, error) {
	if err := s.refuse("frequency"); err != nil {
		return nil, err
	}
	var freq *table.Table
	switch s.kind {
	case Memory:
		t, err := s.resident(ctx, pred)
		if err != nil {
			return nil, err
		}
		if freq, err = stats.Frequency(t, column, keys); err != nil {
			return nil, err
		}
	case Disk:
		if !s.hasColumn(column) {
			return nil, fmt.Errorf("frequency: unknown column %q", column)
		}
		exclude := append(slices.Clone(keys), column)
		var err error
		freq, err = s.eng.Frequency(ctx, s.rel, query.FrequencyOptions{
			Column:  column,
			Keys:    keys,
			Where:   query.And(s.where, pred),
			Numeric: stats.NumericColumns(s.Schema(), exclude...),
		})
		if err != nil {
			return nil, queryErr("frequency", err)
		}
	}
	return stats.WithShares(freq)
}

// Profile computes the per-column profile table. Memory sources with key
// columns are profiled per key group; disk sources are profiled in one
// engine pass and ignore keys.
func (s *Source) Profile(ctx context.Context, keys []string) (*table.Table, error) {
	if err := s.refuse("profile"); err != nil {
		return nil, err
	}
	switch s.kind {
	case Memory:
		if len(keys) > 0 {
			return stats.ProfileGrouped(ctx, s.table, keys)
		}
		ps, err := stats.Profile(ctx, s.table)
		if err != nil {
			return nil, err
		}
		return stats.ProfileTable(ps), nil
	case Disk:
		ps, err := s.eng.Profile(ctx, s.rel, s.where)
		if err != nil {
			return nil, queryErr("profile", err)
		}
		byName := make(map[string]stats.ColumnProfile, len(ps))
		for _, p := range ps {
			byName[p.Name] = p
		}
		visible := make([]stats.ColumnProfile, 0, len(ps))
		for _, name := range s.Columns() {
			if p, ok := byName[name]; ok {
				visible = append(visible, p)
			}
		}
		return stats.ProfileTable(visible), nil
	}
	panic("unreachable")
}

// Pivot spreads the values of column into new columns, aggregating value
// with agg per keys group.
func (s *Source) Pivot(ctx context.Context, opts query.PivotOptions) (*table.Table, error) {
	if err := s.refuse("pivot"); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch s.kind {
	case Memory:
		t, err := s.resident(ctx, opts.Where)
		if err != nil {
			return nil, err
		}
		return stats.Pivot(t, opts.Keys, opts.Column, opts.Value, opts.Agg)
	case Disk:
		opts.Where = query.And(s.where, opts.Where)
		t, err := s.eng.Pivot(ctx, s.rel, opts)
		if err != nil {
			return nil, queryErr("pivot", err)
		}
		return t, nil
	}
	panic("unreachable")
}

// Save writes the complete source to path (.parquet, .csv or .tsv).
// Stream sources return ErrNeedsEgest.
func (s *Source) Save(ctx context.Context, path string) error {
	switch s.kind {
	case Stream:
		return ErrNeedsEgest
	case Memory:
		name := tempName()
		rel, err := s.eng.Register(ctx, name, s.table)
		if err != nil {
			return queryErr("register", err)
		}
		defer s.eng.Unregister(context.WithoutCancel(ctx), name)
		if err := s.eng.Export(ctx, rel, query.Window{}, path); err != nil {
			return queryErr("save", err)
		}
		return nil
	case Disk:
		err := s.eng.Export(ctx, s.rel, query.Window{
			Columns: s.columns,
			Where:   s.where,
			OrderBy: s.orderBy,
			Desc:    s.desc,
		}, path)
		if err != nil {
			return queryErr("save", err)
		}
		return nil
	}
	panic("unreachable")
}

// Sort orders the source by column. Memory sources sort in place of a
// copy; disk sources add an ORDER BY to every window query.
func (s *Source) Sort(column string, desc bool) (*Source, error) {
	if err := s.refuse("sort"); err != nil {
		return nil, err
	}
	if !s.hasColumn(column) {
		return nil, fmt.Errorf("sort: unknown column %q", column)
	}
	out := s.clone()
	switch s.kind {
	case Memory:
		t, err := s.table.SortBy(column, desc)
		if err != nil {
			return nil, err
		}
		out.table = t
	case Disk:
		out.orderBy, out.desc = column, desc
	}
	return out, nil
}

// SelectColumns keeps names, in that order. Disk sources edit their
// column list; memory sources project the table.
func (s *Source) SelectColumns(names ...string) (*Source, error) {
	if err := s.refuse("select columns"); err != nil {
		return nil, err
	}
	for _, n := range names {
		if !s.hasColumn(n) {
			return nil, fmt.Errorf("select: unknown column %q", n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("select: no columns")
	}
	out := s.clone()
	switch s.kind {
	case Memory:
		t, err := s.table.Select(names...)
		if err != nil {
			return nil, err
		}
		out.table = t
	case Disk:
		out.columns = slices.Clone(names)
		if !slices.Contains(names, out.orderBy) {
			out.orderBy, out.desc = "", false
		}
	}
	return out, nil
}

// DropColumns removes names.
func (s *Source) DropColumns(names ...string) (*Source, error) {
	var keep []string
	for _, c := range s.Columns() {
		if !slices.Contains(names, c) {
			keep = append(keep, c)
		}
	}
	return s.SelectColumns(keep...)
}

// MoveColumn moves name to position to, clamped to the valid range.
func (s *Source) MoveColumn(name string, to int) (*Source, error) {
	cols := s.Columns()
	from := slices.Index(cols, name)
	if from < 0 {
		return nil, fmt.Errorf("move: unknown column %q", name)
	}
	cols = slices.Delete(cols, from, from+1)
	to = max(0, min(to, len(cols)))
	cols = slices.Insert(cols, to, name)
	return s.SelectColumns(cols...)
}

// Rename gives column old the name name. Disk sources fold their
// predicate into a derived relation so earlier filters keep applying.
func (s *Source) Rename(old, name string) (*Source, error) {
	if err := s.refuse("rename"); err != nil {
		return nil, err
	}
	if !s.hasColumn(old) {
		return nil, fmt.Errorf("rename: unknown column %q", old)
	}
	if name == "" {
		return nil, fmt.Errorf("rename: empty column name")
	}
	if name == old {
		return s, nil
	}
	out := s.clone()
	switch s.kind {
	case Memory:
		t, err := s.table.Rename(old, name)
		if err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}
		out.table = t
	case Disk:
		names := make([]string, len(s.fields))
		for i, f := range s.fields {
			if f.Name == name {
				return nil, fmt.Errorf("rename: column %q already exists", name)
			}
			names[i] = f.Name
		}
		as := slices.Clone(names)
		as[slices.Index(names, old)] = name
		out.rel = query.Derive(s.rel, query.Window{Columns: names, As: as, Where: s.where})
		out.where = ""
		out.fields = slices.Clone(s.fields)
		for i := range out.fields {
			out.fields[i].Name = as[i]
		}
		if i := slices.Index(out.columns, old); i >= 0 {
			out.columns[i] = name
		}
		if out.orderBy == old {
			out.orderBy = name
		}
	}
	return out, nil
}

// Take keeps the first n rows in the current order.
func (s *Source) Take(n int64) (*Source, error) {
	if err := s.refuse("take"); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("take: row count must be positive, got %d", n)
	}
	out := s.clone()
	switch s.kind {
	case Memory:
		out.table = s.table.Slice(0, int(min(n, int64(s.table.Len()))))
	case Disk:
		out.rel = query.Derive(s.rel, query.Window{
			Where:   s.where,
			OrderBy: s.orderBy,
			Desc:    s.desc,
			Limit:   n,
		})
		out.where = ""
		out.rows = min(s.rows, n)
	}
	return out, nil
}

// AppendChunk merges a background chunk into a stream source's resident
// prefix. It returns schema warnings from the merge.
func (s *Source) AppendChunk(t *table.Table) ([]string, error) {
	if s.kind != Stream {
		return nil, fmt.Errorf("append: %s source is not streaming", s.kind)
	}
	if t == nil || t.Width() == 0 {
		return nil, nil
	}
	merged, warnings, err := s.table.Append(t)
	if err != nil {
		return nil, err
	}
	s.table = merged
	return warnings, nil
}

// Finish marks ingestion over. A stream that read its whole input becomes
// a memory source; a truncated one keeps refusing complete-data
// operations.
func (s *Source) Finish(truncated bool) {
	if s.kind != Stream {
		return
	}
	s.loading = false
	s.truncated = truncated
	if !truncated {
		s.kind = Memory
	}
}
