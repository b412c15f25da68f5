// Package stats computes the profile, frequency and pivot aggregates over
// resident tables. Disk-backed sources get the same result shapes from the
// query engine.
package stats

import (
	"context"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/tabview/internal/table"
)

// Profile output column names.
const (
	ColColumn   = "column"
	ColType     = "type"
	ColNullPct  = "null%"
	ColDistinct = "distinct"
	ColMin      = "min"
	ColMax      = "max"
	ColMean     = "mean"
	ColSigma    = "sigma"
)

// Pending marks a placeholder cell whose value is still being computed.
const Pending = "..."

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Name     string
	Type     table.Type
	Native   string
	Rows     int64
	Nulls    int64
	Distinct int64
	Min, Max string

	Mean, Sigma       float64
	HasMean, HasSigma bool
}

// NullPct returns the percentage of null values.
func (p ColumnProfile) NullPct() float64 {
	if p.Rows == 0 {
		return 0
	}
	return 100 * float64(p.Nulls) / float64(p.Rows)
}

// TypeName returns the engine type name when known, else the column type.
func (p ColumnProfile) TypeName() string {
	if p.Native != "" {
		return p.Native
	}
	return p.Type.String()
}

// ProfileColumn computes the profile of a single resident column.
func ProfileColumn(c *table.Column) ColumnProfile {
	n := c.Len()
	p := ColumnProfile{Name: c.Name, Type: c.Type, Rows: int64(n)}

	seen := make(map[string]struct{})
	minIdx, maxIdx := -1, -1
	var sum, sumSq float64
	var count int64
	for i := 0; i < n; i++ {
		if c.IsNull(i) {
			p.Nulls++
			continue
		}
		seen[c.Key(i)] = struct{}{}
		if minIdx < 0 || c.Compare(i, minIdx) < 0 {
			minIdx = i
		}
		if maxIdx < 0 || c.Compare(i, maxIdx) > 0 {
			maxIdx = i
		}
		if v, ok := c.Float(i); ok {
			sum += v
			sumSq += v * v
			count++
		}
	}
	p.Distinct = int64(len(seen))
	if minIdx >= 0 {
		p.Min = c.Format(minIdx, -1)
		p.Max = c.Format(maxIdx, -1)
	}
	if c.Type.Numeric() && count > 0 {
		p.Mean, p.HasMean = sum/float64(count), true
		if count > 1 {
			variance := (sumSq - sum*sum/float64(count)) / float64(count-1)
			p.Sigma, p.HasSigma = math.Sqrt(math.Max(variance, 0)), true
		}
	}
	return p
}

// Profile computes every column's profile, one goroutine per column.
func Profile(ctx context.Context, t *table.Table) ([]ColumnProfile, error) {
	out := make([]ColumnProfile, t.Width())
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range t.Columns() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = ProfileColumn(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ProfileTable renders profiles as a table with one row per column.
func ProfileTable(ps []ColumnProfile) *table.Table {
	return profileTable(nil, nil, ps)
}

func profileTable(keyNames []string, keyVals [][]string, ps []ColumnProfile) *table.Table {
	n := len(ps)
	names := make([]string, n)
	types := make([]string, n)
	nullPct := make([]float64, n)
	distinct := make([]int64, n)
	mins := make([]string, n)
	maxs := make([]string, n)
	means := make([]float64, n)
	meanNull := make([]bool, n)
	sigmas := make([]float64, n)
	sigmaNull := make([]bool, n)
	for i, p := range ps {
		names[i] = p.Name
		types[i] = p.TypeName()
		nullPct[i] = p.NullPct()
		distinct[i] = p.Distinct
		mins[i] = p.Min
		maxs[i] = p.Max
		means[i], meanNull[i] = p.Mean, !p.HasMean
		sigmas[i], sigmaNull[i] = p.Sigma, !p.HasSigma
	}

	var cols []*table.Column
	for k, name := range keyNames {
		cols = append(cols, table.NewStringColumn(name, keyVals[k], nil))
	}
	cols = append(cols,
		table.NewStringColumn(ColColumn, names, nil),
		table.NewStringColumn(ColType, types, nil),
		table.NewFloatColumn(ColNullPct, nullPct, nil),
		table.NewIntColumn(ColDistinct, distinct, nil),
		table.NewStringColumn(ColMin, mins, nil),
		table.NewStringColumn(ColMax, maxs, nil),
		table.NewFloatColumn(ColMean, means, meanNull),
		table.NewFloatColumn(ColSigma, sigmas, sigmaNull),
	)
	return table.MustNew(cols...)
}

// Placeholder returns a profile-shaped table for the given schema with
// every computed cell set to Pending.
func Placeholder(fields []table.Field) *table.Table {
	n := len(fields)
	names := make([]string, n)
	types := make([]string, n)
	pending := make([]string, n)
	for i, f := range fields {
		names[i] = f.Name
		types[i] = f.Type.String()
		if f.Native != "" {
			types[i] = f.Native
		}
		pending[i] = Pending
	}
	return table.MustNew(
		table.NewStringColumn(ColColumn, names, nil),
		table.NewStringColumn(ColType, types, nil),
		table.NewStringColumn(ColNullPct, pending, nil),
		table.NewStringColumn(ColDistinct, pending, nil),
		table.NewStringColumn(ColMin, pending, nil),
		table.NewStringColumn(ColMax, pending, nil),
		table.NewStringColumn(ColMean, pending, nil),
		table.NewStringColumn(ColSigma, pending, nil),
	)
}

// ProfileGrouped profiles the non-key columns separately for every
// distinct combination of key column values. Each group is materialized
// as its own subset, so the cost grows with groups times columns; it is
// only used for resident tables.
func ProfileGrouped(ctx context.Context, t *table.Table, keys []string) (*table.Table, error) {
	groups, order, err := groupRows(t, keys)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareRows(t, keys, groups[order[a]][0], groups[order[b]][0]) < 0
	})
	rest := t.Drop(keys...)

	keyVals := make([][]string, len(keys))
	var all []ColumnProfile
	for _, gk := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := groups[gk]
		ps, err := Profile(ctx, rest.Take(idx))
		if err != nil {
			return nil, err
		}
		for k, name := range keys {
			v := t.ColumnByName(name).Format(idx[0], -1)
			for range ps {
				keyVals[k] = append(keyVals[k], v)
			}
		}
		all = append(all, ps...)
	}
	return profileTable(keys, keyVals, all), nil
}

// groupRows buckets row indices by the values of cols. order lists the
// group keys in first-appearance order.
func groupRows(t *table.Table, cols []string) (map[string][]int, []string, error) {
	cs := make([]*table.Column, len(cols))
	for i, name := range cols {
		if cs[i] = t.ColumnByName(name); cs[i] == nil {
			return nil, nil, unknownColumn(name)
		}
	}
	groups := make(map[string][]int)
	var order []string
	var sb strings.Builder
	for r := 0; r < t.Len(); r++ {
		sb.Reset()
		for _, c := range cs {
			sb.WriteString(c.Key(r))
			sb.WriteByte(0x1f)
		}
		k := sb.String()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	return groups, order, nil
}

func compareRows(t *table.Table, cols []string, a, b int) int {
	for _, name := range cols {
		if r := t.ColumnByName(name).Compare(a, b); r != 0 {
			return r
		}
	}
	return 0
}
