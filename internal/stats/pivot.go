package stats

import (
	"fmt"
	"slices"
	"sort"

	"github.com/wesm/tabview/internal/table"
)

// Pivot spreads the distinct values of column into new columns, one row per
// combination of keys, with agg applied to value in each cell. Supported
// aggregations are count, sum, mean, min, max and first.
func Pivot(t *table.Table, keys []string, column, value, agg string) (*table.Table, error) {
	pc := t.ColumnByName(column)
	if pc == nil {
		return nil, unknownColumn(column)
	}
	var vc *table.Column
	if agg != "count" {
		if vc = t.ColumnByName(value); vc == nil {
			return nil, unknownColumn(value)
		}
		if (agg == "sum" || agg == "mean") && !vc.Type.Numeric() {
			return nil, fmt.Errorf("pivot: %s needs a numeric value column, %s is %s", agg, value, vc.Type)
		}
	}

	rowGroups, rowOrder, err := groupRows(t, keys)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rowOrder, func(a, b int) bool {
		return compareRows(t, keys, rowGroups[rowOrder[a]][0], rowGroups[rowOrder[b]][0]) < 0
	})

	// Pivot columns in value order.
	colGroups, colOrder, _ := groupRows(t, []string{column})
	sort.SliceStable(colOrder, func(a, b int) bool {
		return pc.Compare(colGroups[colOrder[a]][0], colGroups[colOrder[b]][0]) < 0
	})

	var first []int
	for _, rk := range rowOrder {
		first = append(first, rowGroups[rk][0])
	}
	var cols []*table.Column
	if len(keys) > 0 {
		head, err := t.Select(keys...)
		if err != nil {
			return nil, err
		}
		cols = slices.Clone(head.Take(first).Columns())
	}

	rowOf := make([]int, t.Len())
	for i, rk := range rowOrder {
		for _, r := range rowGroups[rk] {
			rowOf[r] = i
		}
	}

	for _, ck := range colOrder {
		members := colGroups[ck]
		name := pc.Format(members[0], -1)
		if pc.IsNull(members[0]) {
			name = "NULL"
		}
		cells := make([][]int, len(rowOrder))
		for _, r := range members {
			cells[rowOf[r]] = append(cells[rowOf[r]], r)
		}
		cols = append(cols, aggregate(name, vc, agg, cells))
	}
	return table.New(cols...)
}

func aggregate(name string, vc *table.Column, agg string, cells [][]int) *table.Column {
	n := len(cells)
	nulls := make([]bool, n)
	switch {
	case agg == "count":
		vals := make([]int64, n)
		for i, rows := range cells {
			vals[i] = int64(len(rows))
		}
		return table.NewIntColumn(name, vals, nil)
	case agg == "first" || !vc.Type.Numeric():
		// min/max over text, and first over anything, stay text
		vals := make([]string, n)
		for i, rows := range cells {
			pick := -1
			for _, r := range rows {
				if vc.IsNull(r) {
					continue
				}
				if pick < 0 {
					pick = r
					if agg == "first" {
						break
					}
					continue
				}
				c := vc.Compare(r, pick)
				if (agg == "min" && c < 0) || (agg == "max" && c > 0) {
					pick = r
				}
			}
			if pick < 0 {
				nulls[i] = true
				continue
			}
			vals[i] = vc.Format(pick, -1)
		}
		return table.NewStringColumn(name, vals, nulls)
	}

	vals := make([]float64, n)
	for i, rows := range cells {
		var acc float64
		seen := 0
		for _, r := range rows {
			v, ok := vc.Float(r)
			if !ok {
				continue
			}
			switch {
			case seen == 0:
				acc = v
			case agg == "min" && v < acc, agg == "max" && v > acc:
				acc = v
			case agg == "sum" || agg == "mean":
				acc += v
			}
			seen++
		}
		if seen == 0 {
			nulls[i] = true
			continue
		}
		if agg == "mean" {
			acc /= float64(seen)
		}
		vals[i] = acc
	}
	return table.NewFloatColumn(name, vals, nulls)
}
