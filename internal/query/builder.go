package query

import (
	"fmt"
	"slices"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
)

// Columns added by Reduce to number the rows of each group.
const (
	RowNumberColumn = "_rn"
	GroupSizeColumn = "_n"
)

// Builder is the statement-building Relation. Verbs record SQL instead of
// computing rows; Statement renders what has been recorded so far.
//
// A Builder reads from one table or CTE. Projection narrows the select list;
// join and reduce each add a CTE; sort and head apply to the final SELECT and
// are materialized into a CTE only when a later verb needs their result.
type Builder struct {
	ctes    []CTE
	from    string
	columns []string
	order   []relation.OrderKey
	limit   *int64
}

// NewBuilder starts a relation reading columns from table.
func NewBuilder(table string, columns ...string) *Builder {
	return &Builder{from: table, columns: slices.Clone(columns)}
}

func (b *Builder) clone() *Builder {
	c := *b
	c.ctes = slices.Clone(b.ctes)
	c.columns = slices.Clone(b.columns)
	c.order = slices.Clone(b.order)
	return &c
}

// Columns returns the column names in order.
func (b *Builder) Columns() []string {
	return slices.Clone(b.columns)
}

// Project keeps exactly the named columns.
func (b *Builder) Project(columns ...string) (relation.Relation, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, errors.NewInvalidInputError("Project", fmt.Sprintf("column %q listed twice", c))
		}
		seen[c] = true
		if !b.has(c) {
			return nil, errors.NewColumnNotFoundError("Project", c)
		}
	}
	next := b.materialized()
	next.columns = slices.Clone(columns)
	return next, nil
}

// Join joins b with another Builder in a new CTE.
func (b *Builder) Join(right relation.Relation, spec relation.JoinSpec) (relation.Relation, error) {
	other, ok := right.(*Builder)
	if !ok {
		return nil, errors.NewInvalidInputError("Join", "a statement builder joins only another statement builder")
	}
	if spec.Key == "" || !b.has(spec.Key) {
		return nil, errors.NewJoinKeyError("Join", spec.Key, "key is absent from left input")
	}
	if !other.has(spec.Key) {
		return nil, errors.NewJoinKeyError("Join", spec.Key, "key is absent from right input")
	}

	l, r := b.materialized(), other.materialized()
	next := &Builder{ctes: slices.Clone(l.ctes)}
	for _, cte := range r.ctes {
		i := slices.IndexFunc(next.ctes, func(c CTE) bool { return c.Name == cte.Name })
		switch {
		case i < 0:
			next.ctes = append(next.ctes, cte)
		case next.ctes[i].Query.String() != cte.Query.String():
			return nil, errors.NewInvalidInputError("Join", fmt.Sprintf("both inputs define a different %q", cte.Name))
		}
	}

	const leftAlias, rightAlias = "l", "r"
	names, leftNames, rightNames, err := spec.OutputColumns(l.columns, r.columns)
	if err != nil {
		return nil, err
	}
	items := make([]SelectItem, 0, len(names))
	for _, name := range names {
		if src, ok := leftNames[name]; ok {
			items = append(items, SelectItem{Expr: ColumnRef{Table: leftAlias, Name: src}, Alias: name})
		} else {
			items = append(items, SelectItem{Expr: ColumnRef{Table: rightAlias, Name: rightNames[name]}, Alias: name})
		}
	}

	stmt := &SelectStatement{
		SelectList: items,
		From:       TableRef{Name: l.from, Alias: leftAlias},
		Joins: []JoinClause{{
			Kind:   spec.Kind,
			Source: TableRef{Name: r.from, Alias: rightAlias},
			On: Comparison{
				Left:  ColumnRef{Table: leftAlias, Name: spec.Key},
				Op:    "=",
				Right: ColumnRef{Table: rightAlias, Name: spec.Key},
			},
		}},
	}
	next.from = next.addCTE("joined", stmt)
	next.columns = names
	return next, nil
}

// Sort records the ordering of the final SELECT.
func (b *Builder) Sort(keys ...relation.OrderKey) (relation.Relation, error) {
	if len(keys) == 0 {
		return nil, errors.NewInvalidInputError("Sort", "no sort keys")
	}
	for _, k := range keys {
		if !b.has(k.Column) {
			return nil, errors.NewColumnNotFoundError("Sort", k.Column)
		}
	}
	next := b.materialized()
	next.order = slices.Clone(keys)
	return next, nil
}

// GroupBy partitions by key. Rows are numbered in the recorded sort order
// when the groups are reduced.
func (b *Builder) GroupBy(key string) (relation.Grouped, error) {
	if key == "" {
		return nil, errors.NewInvalidInputError("GroupBy", "no group key")
	}
	if !b.has(key) {
		return nil, errors.NewColumnNotFoundError("GroupBy", key)
	}
	src := b.clone()
	if b.limit != nil {
		src = b.materialized()
		src.order = b.order
	}
	return &groupedBuilder{src: src, key: key}, nil
}

// Head limits the final SELECT to n rows.
func (b *Builder) Head(n int) (relation.Relation, error) {
	if n < 0 {
		return nil, errors.NewInvalidInputError("Head", fmt.Sprintf("negative row count %d", n))
	}
	next := b.clone()
	limit := int64(n)
	if b.limit != nil {
		limit = min(limit, *b.limit)
	}
	next.limit = &limit
	return next, nil
}

// Statement renders the recorded verbs as one SELECT.
func (b *Builder) Statement() *SelectStatement {
	stmt := b.selectCurrent()
	stmt.With = slices.Clone(b.ctes)
	return stmt
}

// selectCurrent selects the current columns from the current source with
// pending order and limit applied.
func (b *Builder) selectCurrent() *SelectStatement {
	items := make([]SelectItem, len(b.columns))
	for i, c := range b.columns {
		items[i] = SelectItem{Expr: Col(c)}
	}
	stmt := &SelectStatement{
		SelectList: items,
		From:       TableRef{Name: b.from},
		OrderBy:    orderItems(b.order),
	}
	if b.limit != nil {
		limit := *b.limit
		stmt.Limit = &limit
	}
	return stmt
}

// materialized returns a Builder whose source already reflects any pending
// limit, so later verbs see exactly the limited rows.
func (b *Builder) materialized() *Builder {
	if b.limit == nil {
		return b.clone()
	}
	next := b.clone()
	next.from = next.addCTE("head", b.selectCurrent())
	next.order = nil
	next.limit = nil
	return next
}

func (b *Builder) has(column string) bool {
	return slices.Contains(b.columns, column)
}

func (b *Builder) hasCTE(name string) bool {
	return slices.ContainsFunc(b.ctes, func(c CTE) bool { return c.Name == name })
}

// addCTE appends a CTE under a name not yet used and returns that name.
func (b *Builder) addCTE(base string, stmt *SelectStatement) string {
	name := base
	for i := 2; b.hasCTE(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	b.ctes = append(b.ctes, CTE{Name: name, Query: stmt})
	return name
}

type groupedBuilder struct {
	src *Builder
	key string
}

func (g *groupedBuilder) Key() string {
	return g.key
}

// Reduce aggregates each group. first and last read the row numbered 1 and
// the row numbered last by ROW_NUMBER over the recorded sort order.
func (g *groupedBuilder) Reduce(aggs ...relation.Aggregation) (relation.Relation, error) {
	outputs := map[string]bool{g.key: true}
	numbered := false
	for _, agg := range aggs {
		if agg.Output == "" {
			return nil, errors.NewInvalidInputError("Reduce", "aggregation without output name")
		}
		if outputs[agg.Output] {
			return nil, errors.NewInvalidInputError("Reduce", fmt.Sprintf("output column %q defined twice", agg.Output))
		}
		outputs[agg.Output] = true
		if !g.src.has(agg.Column) {
			return nil, errors.NewReducerMismatchError("Reduce", agg.Column,
				fmt.Sprintf("%s references a column absent from the input", agg.Reducer))
		}
		if agg.Reducer == relation.First || agg.Reducer == relation.Last {
			numbered = true
		}
	}

	next := &Builder{ctes: slices.Clone(g.src.ctes), from: g.src.from}
	if numbered {
		if g.src.has(RowNumberColumn) || g.src.has(GroupSizeColumn) {
			return nil, errors.NewInvalidInputError("Reduce",
				fmt.Sprintf("columns %s and %s are reserved for row numbering", RowNumberColumn, GroupSizeColumn))
		}
		order := g.src.order
		if len(order) == 0 {
			order = []relation.OrderKey{relation.Asc(g.key)}
		}
		next.from = next.addCTE("numbered", &SelectStatement{
			SelectList: []SelectItem{
				{Expr: Star{}},
				{Expr: rowNumber(g.key, order), Alias: RowNumberColumn},
				{Expr: WindowFunc{
					Func:        FuncCall{Name: CountFunction, Args: []Expr{Star{}}},
					PartitionBy: []Expr{Col(g.key)},
				}, Alias: GroupSizeColumn},
			},
			From: TableRef{Name: g.src.from},
		})
	}

	items := []SelectItem{{Expr: Col(g.key)}}
	columns := []string{g.key}
	for _, agg := range aggs {
		e, err := aggregate(agg)
		if err != nil {
			return nil, err
		}
		items = append(items, SelectItem{Expr: e, Alias: agg.Output})
		columns = append(columns, agg.Output)
	}

	next.from = next.addCTE("summary", &SelectStatement{
		SelectList: items,
		From:       TableRef{Name: next.from},
		GroupBy:    []Expr{Col(g.key)},
	})
	next.columns = columns
	next.order = []relation.OrderKey{relation.Asc(g.key)}
	return next, nil
}

func rowNumber(partition string, order []relation.OrderKey) WindowFunc {
	return WindowFunc{
		Func:        FuncCall{Name: RowNumberFunction},
		PartitionBy: []Expr{Col(partition)},
		OrderBy:     orderItems(order),
	}
}

// aggregate maps a reducer onto its SQL aggregate expression.
func aggregate(agg relation.Aggregation) (Expr, error) {
	col := Col(agg.Column)
	switch agg.Reducer {
	case relation.Max:
		return FuncCall{Name: MaxFunction, Args: []Expr{col}}, nil
	case relation.Min:
		return FuncCall{Name: MinFunction, Args: []Expr{col}}, nil
	case relation.Sum:
		return FuncCall{Name: SumFunction, Args: []Expr{col}}, nil
	case relation.Mean:
		return FuncCall{Name: AvgFunction, Args: []Expr{col}}, nil
	case relation.Count:
		return FuncCall{Name: CountFunction, Args: []Expr{col}}, nil
	case relation.First:
		return pick(Literal{Value: 1}, col), nil
	case relation.Last:
		return pick(Col(GroupSizeColumn), col), nil
	default:
		return nil, errors.NewInvalidInputError("Reduce", "unknown reducer "+agg.Reducer.String())
	}
}

// pick selects col from the row whose number equals at.
func pick(at Expr, col Expr) Expr {
	return FuncCall{Name: MaxFunction, Args: []Expr{CaseWhen{
		When: Comparison{Left: Col(RowNumberColumn), Op: "=", Right: at},
		Then: col,
	}}}
}
