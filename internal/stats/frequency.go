package stats

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/wesm/tabview/internal/table"
)

// Frequency output column names.
const (
	ColCount = "Cnt"
	ColPct   = "Pct"
	ColBar   = "Bar"
)

func unknownColumn(name string) error {
	return fmt.Errorf("unknown column %q", name)
}

// NumericColumns returns the numeric columns of fields that are not in
// exclude, in schema order.
func NumericColumns(fields []table.Field, exclude ...string) []string {
	var out []string
	for _, f := range fields {
		if f.Type.Numeric() && !slices.Contains(exclude, f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// numAcc accumulates one numeric column of one group. Integer columns
// use the i-fields so values past 2^53 stay exact.
type numAcc struct {
	min, max, sum    float64
	imin, imax, isum int64
	seen             bool
}

func (a *numAcc) addInt(v int64) {
	if !a.seen || v < a.imin {
		a.imin = v
	}
	if !a.seen || v > a.imax {
		a.imax = v
	}
	a.isum += v
	a.seen = true
}

func (a *numAcc) addFloat(v float64) {
	if !a.seen || v < a.min {
		a.min = v
	}
	if !a.seen || v > a.max {
		a.max = v
	}
	a.sum += v
	a.seen = true
}

// Frequency groups t by keys then column and counts rows, ordered by count
// descending then by group values. Numeric non-group columns get min_,
// max_ and sum_ per group.
func Frequency(t *table.Table, column string, keys []string) (*table.Table, error) {
	group := append(slices.Clone(keys), column)
	groups, order, err := groupRows(t, group)
	if err != nil {
		return nil, err
	}

	numeric := NumericColumns(t.Schema(), group...)
	accs := make(map[string][]numAcc, len(groups))
	for _, gk := range order {
		acc := make([]numAcc, len(numeric))
		for j, name := range numeric {
			c := t.ColumnByName(name)
			a := &acc[j]
			for _, r := range groups[gk] {
				if c.IsNull(r) {
					continue
				}
				if c.Type == table.Int64 {
					a.addInt(c.Ints[r])
				} else if v, ok := c.Float(r); ok {
					a.addFloat(v)
				}
			}
		}
		accs[gk] = acc
	}

	sort.SliceStable(order, func(a, b int) bool {
		na, nb := len(groups[order[a]]), len(groups[order[b]])
		if na != nb {
			return na > nb
		}
		return compareRows(t, group, groups[order[a]][0], groups[order[b]][0]) < 0
	})

	first := make([]int, len(order))
	counts := make([]int64, len(order))
	for i, gk := range order {
		first[i] = groups[gk][0]
		counts[i] = int64(len(groups[gk]))
	}
	head, err := t.Select(group...)
	if err != nil {
		return nil, err
	}
	cols := slices.Clone(head.Take(first).Columns())
	cols = append(cols, table.NewIntColumn(ColCount, counts, nil))

	for j, name := range numeric {
		isInt := t.ColumnByName(name).Type == table.Int64
		n := len(order)
		nulls := make([]bool, n)
		mins, maxs, sums := make([]float64, n), make([]float64, n), make([]float64, n)
		imins, imaxs, isums := make([]int64, n), make([]int64, n), make([]int64, n)
		for i, gk := range order {
			a := accs[gk][j]
			nulls[i] = !a.seen
			mins[i], maxs[i], sums[i] = a.min, a.max, a.sum
			imins[i], imaxs[i], isums[i] = a.imin, a.imax, a.isum
		}
		if isInt {
			cols = append(cols,
				table.NewIntColumn("min_"+name, imins, nulls),
				table.NewIntColumn("max_"+name, imaxs, nulls),
				table.NewIntColumn("sum_"+name, isums, nulls))
		} else {
			cols = append(cols,
				table.NewFloatColumn("min_"+name, mins, nulls),
				table.NewFloatColumn("max_"+name, maxs, nulls),
				table.NewFloatColumn("sum_"+name, sums, nulls))
		}
	}
	return table.New(cols...)
}

// WithShares appends Pct (percent of all counted rows) and Bar (one '#'
// per whole percent) columns to a frequency table.
func WithShares(freq *table.Table) (*table.Table, error) {
	cnt := freq.ColumnByName(ColCount)
	if cnt == nil {
		return nil, unknownColumn(ColCount)
	}
	var total float64
	for i := 0; i < cnt.Len(); i++ {
		if v, ok := cnt.Float(i); ok {
			total += v
		}
	}
	pct := make([]float64, cnt.Len())
	bar := make([]string, cnt.Len())
	for i := range pct {
		v, _ := cnt.Float(i)
		if total > 0 {
			pct[i] = math.Round(10000*v/total) / 100
		}
		bar[i] = strings.Repeat("#", int(math.Floor(pct[i])))
	}
	out, err := freq.WithColumn(table.NewFloatColumn(ColPct, pct, nil))
	if err != nil {
		return nil, err
	}
	return out.WithColumn(table.NewStringColumn(ColBar, bar, nil))
}
