package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/wesm/tabview/internal/egest"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/textutil"
	"github.com/wesm/tabview/internal/view"
)

// Open binds paths to a new view and pushes it. Compressed delimited
// text opens partial and keeps loading in the background.
func (s *Session) Open(paths ...string) error {
	// The stream reader outlives this call; it stops when the session
	// closes or the view is popped.
	readCtx, cancel := context.WithCancel(s.ctx)
	opened, err := source.Open(readCtx, s.eng, s.cfg.OpenOptions(s.budget), paths...)
	if err != nil {
		cancel()
		return s.fail(fmt.Errorf("open: %w", err))
	}

	v := view.New(opened.Name, opened.Source, s.cfg.View.RenderPad)
	s.stack.Push(v)
	for _, w := range opened.Warnings {
		s.warn(w)
	}

	if opened.Stream == nil {
		cancel()
		s.say("Opened %s: %s rows, %d columns (%s)", opened.Name,
			textutil.Commify(opened.Source.Buffered()), len(opened.Source.Columns()), opened.Source.Kind())
		return nil
	}
	s.jobs.AttachStream(v, opened.Stream, cancel)
	size := ""
	if info, err := os.Stat(opened.Stream.Path); err == nil {
		size = " of " + humanize.Bytes(uint64(info.Size()))
	}
	switch {
	case opened.Source.Loading():
		s.say("Opened %s: first %s rows%s, loading the rest", opened.Name,
			textutil.Commify(opened.Source.Buffered()), size)
	case opened.Source.Truncated():
		s.warn(fmt.Sprintf("%s: stopped at %s rows, memory budget reached", opened.Name,
			textutil.Commify(opened.Source.Buffered())))
	default:
		s.say("Opened %s: %s rows", opened.Name, textutil.Commify(opened.Source.Buffered()))
	}
	return nil
}

// Save writes the current view to path. Streamed sources are converted
// from their original file in the background, so the output is complete
// even when the view is not.
func (s *Session) Save(ctx context.Context, path string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	err = v.Source.Save(ctx, path)
	if err == nil {
		s.say("Saved %s rows to %s", textutil.Commify(v.Source.Buffered()), path)
		return nil
	}
	if !errors.Is(err, source.ErrNeedsEgest) {
		return s.fail(fmt.Errorf("save %s: %w", path, err))
	}

	origin := v.Source.Origin()
	if len(origin) == 0 {
		return s.fail(fmt.Errorf("save %s: %w", path, err))
	}
	if !strings.EqualFold(filepath.Ext(path), ".parquet") {
		return s.fail(fmt.Errorf("save %s: streamed sources can only be saved as .parquet", path))
	}
	opts := s.cfg.EgestOptions()
	opts.Logger = s.log
	s.jobs.AttachConversion(path, egest.Convert(s.ctx, origin[0], path, opts))
	s.say("Converting %s to %s in the background", filepath.Base(origin[0]), path)
	return nil
}

// Filter pushes a view of the current one narrowed by pred. On a disk
// view the predicate is ANDed with the existing clause and the row count
// is queried fresh.
func (s *Session) Filter(ctx context.Context, pred string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	return s.filterView(ctx, v, pred, pred)
}

func (s *Session) filterView(ctx context.Context, v *view.View, pred, label string) error {
	if strings.TrimSpace(pred) == "" {
		return s.fail(errors.New("filter: empty predicate"))
	}
	src, err := v.Source.Filter(ctx, pred)
	if err != nil {
		return s.fail(fmt.Errorf("filter: %w", err))
	}
	child := s.newView(v.Name+" | "+label, view.Filtered, v)
	child.Source = src
	child.KeyCount = v.KeyCount
	s.stack.Push(child)
	s.say("%s of %s rows", textutil.Commify(src.Buffered()), textutil.Commify(v.Source.Buffered()))
	return nil
}

// Take pushes a view of the first n rows of the current view in its
// current order.
func (s *Session) Take(n int64) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if v.Placeholder {
		return s.fail(errors.New("view is still being computed"))
	}
	src, err := v.Source.Take(n)
	if err != nil {
		return s.fail(err)
	}
	child := s.newView(fmt.Sprintf("%s | head %d", v.Name, n), view.Filtered, v)
	child.Source = src
	child.KeyCount = v.KeyCount
	s.stack.Push(child)
	s.say("%s of %s rows", textutil.Commify(src.Buffered()), textutil.Commify(v.Source.Buffered()))
	return nil
}

// FrequencyEnter pops a frequency view and filters its parent to the
// values of the selected rows, or the cursor row when none is selected.
func (s *Session) FrequencyEnter(ctx context.Context) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if v.Kind != view.Frequency || v.Parent == nil {
		return s.fail(errors.New("not a frequency view"))
	}
	if v.Placeholder {
		return s.fail(errors.New("frequency still running"))
	}
	parent := s.stack.Find(v.Parent.ID)
	if parent == nil {
		return s.fail(fmt.Errorf("source view %q is closed", v.Parent.Name))
	}

	rows := v.SelectedRowList()
	if len(rows) == 0 {
		rows = []int64{v.Cursor.Row}
	}
	cols := append(slices.Clone(v.Keys()), v.FreqColumn)
	pred, label, err := matchRows(v.Source, cols, rows)
	if err != nil {
		return s.fail(err)
	}
	s.stack.Pop()
	return s.filterView(ctx, parent, pred, label)
}

// matchRows builds a predicate selecting the parent rows whose cols equal
// those of the given frequency rows.
func matchRows(src *source.Source, cols []string, rows []int64) (pred, label string, err error) {
	t := src.Table()
	if t == nil {
		return "", "", errors.New("frequency view is not resident")
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		if idx[i] = t.Index(c); idx[i] < 0 {
			return "", "", fmt.Errorf("frequency view has no column %q", c)
		}
	}

	// One column: a single IN list. Several: OR of per-row conjunctions.
	if len(cols) == 1 {
		var vals []string
		for _, r := range rows {
			if r >= 0 && int(r) < t.Len() {
				vals = append(vals, t.Cell(int(r), idx[0], -1))
			}
		}
		if len(vals) == 0 {
			return "", "", errors.New("no rows selected")
		}
		return query.In(cols[0], vals), cols[0] + " in " + strings.Join(vals, ","), nil
	}
	var terms, labels []string
	for _, r := range rows {
		if r < 0 || int(r) >= t.Len() {
			continue
		}
		var conj string
		var parts []string
		for i, c := range cols {
			val := t.Cell(int(r), idx[i], -1)
			conj = query.And(conj, query.In(c, []string{val}))
			parts = append(parts, c+"="+val)
		}
		terms = append(terms, "("+conj+")")
		labels = append(labels, strings.Join(parts, ","))
	}
	if len(terms) == 0 {
		return "", "", errors.New("no rows selected")
	}
	return strings.Join(terms, " OR "), strings.Join(labels, " or "), nil
}

// Sort orders the current view by column.
func (s *Session) Sort(column string, desc bool) error {
	return s.mutate(func(src *source.Source) (*source.Source, error) {
		return src.Sort(column, desc)
	})
}

// SelectColumns keeps only names on the current view.
func (s *Session) SelectColumns(names ...string) error {
	return s.mutate(func(src *source.Source) (*source.Source, error) {
		return src.SelectColumns(names...)
	})
}

// DropColumns removes names from the current view.
func (s *Session) DropColumns(names ...string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	keys := v.Keys()
	if err := s.mutate(func(src *source.Source) (*source.Source, error) {
		return src.DropColumns(names...)
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if slices.Contains(names, k) {
			v.KeyCount--
		}
	}
	return nil
}

// MoveColumn moves name to position to on the current view.
func (s *Session) MoveColumn(name string, to int) error {
	return s.mutate(func(src *source.Source) (*source.Source, error) {
		return src.MoveColumn(name, to)
	})
}

// Rename renames column old on the current view. A selected column stays
// selected under its new name.
func (s *Session) Rename(old, name string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if err := s.mutate(func(src *source.Source) (*source.Source, error) {
		return src.Rename(old, name)
	}); err != nil {
		return err
	}
	if v.SelectedCols[old] {
		delete(v.SelectedCols, old)
		v.SelectedCols[name] = true
	}
	return nil
}

// ToggleKey makes column a key column by moving it to the end of the key
// prefix, or demotes it by moving it just past the prefix.
func (s *Session) ToggleKey(column string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	isKey := slices.Contains(v.Keys(), column)
	to := v.KeyCount
	if isKey {
		to = v.KeyCount - 1
	}
	if err := s.MoveColumn(column, to); err != nil {
		return err
	}
	if isKey {
		v.KeyCount--
	} else {
		v.KeyCount++
	}
	return nil
}

func (s *Session) mutate(op func(*source.Source) (*source.Source, error)) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if v.Placeholder {
		return s.fail(errors.New("view is still being computed"))
	}
	src, err := op(v.Source)
	if err != nil {
		return s.fail(err)
	}
	v.SetSource(src)
	return nil
}
