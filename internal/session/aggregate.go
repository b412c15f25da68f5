package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/wesm/tabview/internal/jobs"
	"github.com/wesm/tabview/internal/query"
	"github.com/wesm/tabview/internal/source"
	"github.com/wesm/tabview/internal/stats"
	"github.com/wesm/tabview/internal/table"
	"github.com/wesm/tabview/internal/view"
)

// ready refuses aggregate verbs on views that cannot answer them yet.
func ready(op string, v *view.View) error {
	if v.Placeholder {
		return fmt.Errorf("%s: view is still being computed", op)
	}
	if v.Source.Partial() {
		return &source.PartialError{Op: op, Loading: v.Source.Loading(), Truncated: v.Source.Truncated()}
	}
	return nil
}

// pending returns a one-row table of Pending cells shown while a job runs.
func pending(names ...string) *table.Table {
	cols := make([]*table.Column, len(names))
	for i, n := range names {
		cols[i] = table.NewStringColumn(n, []string{stats.Pending}, nil)
	}
	return table.MustNew(cols...)
}

// startDerived pushes a placeholder view and starts the job that fills it.
func (s *Session) startDerived(parent *view.View, name string, kind view.Derivation, jobKind jobs.Kind, placeholder *table.Table, cacheProfile bool, run jobs.Func) *view.View {
	ph := s.newView(name, kind, parent)
	ph.Source = source.NewMemory(s.eng, placeholder)
	ph.Placeholder = true
	s.stack.Push(ph)
	if owner, running := s.jobs.Running(jobKind); running {
		s.log.Debug("replacing running job", "kind", jobKind, "owner", owner)
	}
	s.jobs.Start(jobs.Spec{
		Kind:         jobKind,
		Owner:        ph.ID,
		Parent:       parent.ID,
		Gen:          parent.Gen(),
		CacheProfile: cacheProfile,
		Run:          run,
	})
	s.say("Computing %s of %s...", jobKind, parent.Name)
	return ph
}

// Frequency pushes a grouped count of column (the cursor column when
// empty) over the current view, grouped by its key columns as well.
func (s *Session) Frequency(column string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if err := ready("frequency", v); err != nil {
		return s.fail(err)
	}
	if column == "" {
		column = v.CurrentColumn()
	}
	if !slices.Contains(v.Source.Columns(), column) {
		return s.fail(fmt.Errorf("frequency: unknown column %q", column))
	}
	keys := slices.DeleteFunc(v.Keys(), func(k string) bool { return k == column })

	src := v.Source
	names := append(slices.Clone(keys), column, stats.ColCount)
	ph := s.startDerived(v, v.Name+" freq "+column, view.Frequency, jobs.KindFrequency, pending(names...), false,
		func(ctx context.Context) (*table.Table, error) {
			return src.Frequency(ctx, column, keys, "")
		})
	ph.FreqColumn = column
	ph.KeyCount = len(keys)
	return nil
}

// Profile pushes per-column statistics of the current view. An unchanged
// view reuses its cached profile; small resident views are profiled
// inline and everything else in the background.
func (s *Session) Profile(ctx context.Context) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if err := ready("profile", v); err != nil {
		return s.fail(err)
	}
	keys := v.Keys()
	name := v.Name + " profile"
	grouped := len(keys) > 0

	if !grouped {
		if t, ok := v.CachedProfile(); ok {
			s.pushProfile(v, name, t)
			s.say("Profile of %s (cached)", v.Name)
			return nil
		}
	}

	if v.Source.Kind() == source.Memory && v.Rows() <= int64(s.cfg.View.BackgroundThreshold) {
		t, err := v.Source.Profile(ctx, keys)
		if err != nil {
			return s.fail(fmt.Errorf("profile: %w", err))
		}
		if !grouped {
			v.StoreProfile(v.Gen(), t)
		}
		s.pushProfile(v, name, t)
		return nil
	}

	fields := v.Source.Schema()
	if grouped {
		fields = slices.DeleteFunc(fields, func(f table.Field) bool { return slices.Contains(keys, f.Name) })
	}
	src := v.Source
	ph := s.startDerived(v, name, view.Profile, jobs.KindProfile, stats.Placeholder(fields), !grouped,
		func(ctx context.Context) (*table.Table, error) {
			return src.Profile(ctx, keys)
		})
	if grouped {
		ph.KeyCount = len(keys)
	}
	return nil
}

func (s *Session) pushProfile(parent *view.View, name string, t *table.Table) {
	pv := s.newView(name, view.Profile, parent)
	pv.Source = source.NewMemory(s.eng, t)
	if len(parent.Keys()) > 0 {
		pv.KeyCount = len(parent.Keys())
	}
	s.stack.Push(pv)
}

// Pivot spreads the values of column into new columns, aggregating value
// with agg per key group. keys defaults to the view's key columns.
func (s *Session) Pivot(keys []string, column, value, agg string) error {
	v, err := s.top()
	if err != nil {
		return err
	}
	if err := ready("pivot", v); err != nil {
		return s.fail(err)
	}
	if len(keys) == 0 {
		keys = v.Keys()
	}
	if len(keys) == 0 {
		return s.fail(errors.New("pivot: no key columns"))
	}
	opts := query.PivotOptions{Keys: keys, Column: column, Value: value, Agg: agg}
	if err := opts.Validate(); err != nil {
		return s.fail(err)
	}

	src := v.Source
	ph := s.startDerived(v, v.Name+" pivot "+column, view.Pivot, jobs.KindPivot,
		pending(append(slices.Clone(keys), "...")...), false,
		func(ctx context.Context) (*table.Table, error) {
			return src.Pivot(ctx, opts)
		})
	ph.KeyCount = len(keys)
	return nil
}
