package query

import (
	"fmt"
	"strings"
)

// Kind identifies how a relation is read.
type Kind int

const (
	KindParquet Kind = iota
	KindCSV
	KindJSON
	// KindTable is a table registered with Register.
	KindTable
	// KindQuery is a window over another relation, see Derive.
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindParquet:
		return "parquet"
	case KindCSV:
		return "csv"
	case KindJSON:
		return "json"
	case KindTable:
		return "table"
	case KindQuery:
		return "query"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Relation names something the engine can scan: one or more files of the
// same format, or a registered table.
type Relation struct {
	Kind  Kind
	Paths []string
	Name  string
	// Query is the SELECT of a KindQuery relation.
	Query string
}

// FileRelation returns a relation over paths read as kind.
func FileRelation(kind Kind, paths ...string) Relation {
	return Relation{Kind: kind, Paths: paths}
}

// TableRelation returns a relation over a registered table.
func TableRelation(name string) Relation {
	return Relation{Kind: KindTable, Name: name}
}

// Derive returns a relation reading the window w of base. Predicates,
// ordering and renames in w are fixed into the new relation, so later
// windows refer to its output column names. Paths carry over for display.
func Derive(base Relation, w Window) Relation {
	return Relation{Kind: KindQuery, Paths: base.Paths, Query: selectSQL(base, w)}
}

// From renders the relation as a FROM-clause item.
func (r Relation) From() string {
	switch r.Kind {
	case KindTable:
		return QuoteIdent(r.Name)
	case KindQuery:
		return "(" + r.Query + ")"
	}
	quoted := make([]string, len(r.Paths))
	for i, p := range r.Paths {
		quoted[i] = QuoteLiteral(p)
	}
	list := "[" + strings.Join(quoted, ", ") + "]"
	switch r.Kind {
	case KindCSV:
		return "read_csv_auto(" + list + ", header=true, union_by_name=false)"
	case KindJSON:
		return "read_json_auto(" + list + ")"
	default:
		return "read_parquet(" + list + ")"
	}
}

// Window is a bounded read: projection, predicate, order and range.
// Limit <= 0 means no limit.
type Window struct {
	Columns []string
	// As renames Columns in the output, by position. Empty entries keep
	// the source name.
	As      []string
	Where   string
	OrderBy string
	Desc    bool
	Offset  int64
	Limit   int64
}

// FrequencyOptions configures a grouped count.
type FrequencyOptions struct {
	Column string
	// Keys are grouped on before Column.
	Keys  []string
	Where string
	// Numeric columns get min_, max_ and sum_ aggregates per group.
	Numeric []string
}

// Aggregations accepted by Pivot.
var PivotAggs = []string{"count", "sum", "mean", "min", "max", "first"}

// PivotOptions configures a pivot.
type PivotOptions struct {
	Keys   []string
	Column string
	Value  string
	Agg    string
	Where  string
}

// Validate checks the aggregation name and required columns.
func (o PivotOptions) Validate() error {
	if o.Column == "" {
		return fmt.Errorf("pivot: no pivot column")
	}
	if o.Value == "" && o.Agg != "count" {
		return fmt.Errorf("pivot: no value column")
	}
	for _, a := range PivotAggs {
		if a == o.Agg {
			return nil
		}
	}
	return fmt.Errorf("pivot: unknown aggregation %q (want one of %s)", o.Agg, strings.Join(PivotAggs, ", "))
}
