// Package query builds SQL statements that express the join, sort, group,
// and reduce pipeline declaratively, for execution by a database.
package query

import (
	"strconv"
	"strings"

	"github.com/paveg/rollup/internal/relation"
)

// Statement is a renderable SQL statement.
type Statement interface {
	// SQL renders the statement for a dialect.
	SQL(d Dialect) string
	// String renders the statement for Postgres.
	String() string
}

// Expr is a SQL expression.
type Expr interface {
	SQL(d Dialect) string
}

// SelectStatement represents a SQL SELECT statement, optionally preceded by
// common table expressions.
type SelectStatement struct {
	With       []CTE
	SelectList []SelectItem
	From       FromItem
	Joins      []JoinClause
	Where      Expr
	GroupBy    []Expr
	OrderBy    []OrderItem
	Limit      *int64
}

func (s *SelectStatement) String() string {
	return s.SQL(Postgres)
}

// SQL renders the statement one clause per line.
func (s *SelectStatement) SQL(d Dialect) string {
	var parts []string

	if len(s.With) > 0 {
		ctes := make([]string, len(s.With))
		for i, cte := range s.With {
			ctes[i] = cte.SQL(d)
		}
		parts = append(parts, "WITH "+strings.Join(ctes, ",\n"))
	}

	items := make([]string, len(s.SelectList))
	for i, item := range s.SelectList {
		items[i] = item.SQL(d)
	}
	parts = append(parts, "SELECT "+strings.Join(items, ", "))

	if s.From != nil {
		parts = append(parts, "FROM "+s.From.SQL(d))
	}
	for _, join := range s.Joins {
		parts = append(parts, join.SQL(d))
	}
	if s.Where != nil {
		parts = append(parts, "WHERE "+s.Where.SQL(d))
	}
	if len(s.GroupBy) > 0 {
		parts = append(parts, "GROUP BY "+joinExprs(d, s.GroupBy))
	}
	if len(s.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+joinOrder(d, s.OrderBy))
	}
	if s.Limit != nil {
		parts = append(parts, "LIMIT "+strconv.FormatInt(*s.Limit, 10))
	}

	return strings.Join(parts, "\n")
}

// CTE is one named subquery of a WITH clause.
type CTE struct {
	Name  string
	Query *SelectStatement
}

func (c CTE) SQL(d Dialect) string {
	return d.QuoteIdent(c.Name) + " AS (\n" + indent(c.Query.SQL(d)) + "\n)"
}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Expr  Expr
	Alias string
}

func (s SelectItem) SQL(d Dialect) string {
	result := s.Expr.SQL(d)
	if s.Alias != "" {
		result += " AS " + d.QuoteIdent(s.Alias)
	}
	return result
}

// FromItem is anything a FROM or JOIN clause can name.
type FromItem interface {
	SQL(d Dialect) string
}

// TableRef names a table or CTE.
type TableRef struct {
	Name  string
	Alias string
}

func (t TableRef) SQL(d Dialect) string {
	result := d.QuoteIdent(t.Name)
	if t.Alias != "" {
		result += " AS " + d.QuoteIdent(t.Alias)
	}
	return result
}

// Subquery is a parenthesized SELECT used as a table.
type Subquery struct {
	Query *SelectStatement
	Alias string
}

func (s Subquery) SQL(d Dialect) string {
	return "(\n" + indent(s.Query.SQL(d)) + "\n) AS " + d.QuoteIdent(s.Alias)
}

// JoinClause represents a JOIN clause.
type JoinClause struct {
	Kind   relation.JoinKind
	Source FromItem
	On     Expr
}

func (j JoinClause) SQL(d Dialect) string {
	kw := "LEFT JOIN"
	if j.Kind == relation.InnerJoin {
		kw = "INNER JOIN"
	}
	result := kw + " " + j.Source.SQL(d)
	if j.On != nil {
		result += " ON " + j.On.SQL(d)
	}
	return result
}

// OrderItem represents an item in an ORDER BY list. Nulls always sort last.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

func (o OrderItem) SQL(d Dialect) string {
	dir := AscOrder
	if o.Descending {
		dir = DescOrder
	}
	return o.Expr.SQL(d) + " " + dir + " NULLS LAST"
}

// ColumnRef references a column, optionally qualified by a table alias.
type ColumnRef struct {
	Table string
	Name  string
}

// Col builds an unqualified column reference.
func Col(name string) ColumnRef {
	return ColumnRef{Name: name}
}

func (c ColumnRef) SQL(d Dialect) string {
	if c.Table == "" {
		return d.QuoteIdent(c.Name)
	}
	return d.QuoteIdent(c.Table) + "." + d.QuoteIdent(c.Name)
}

// Star selects every column.
type Star struct{}

func (Star) SQL(Dialect) string {
	return "*"
}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (l Literal) SQL(d Dialect) string {
	return d.Literal(l.Value)
}

// FuncCall represents a SQL function call.
type FuncCall struct {
	Name string
	Args []Expr
}

func (f FuncCall) SQL(d Dialect) string {
	return f.Name + "(" + joinExprs(d, f.Args) + ")"
}

// Comparison is a binary predicate such as a = b.
type Comparison struct {
	Left  Expr
	Op    string
	Right Expr
}

func (c Comparison) SQL(d Dialect) string {
	return c.Left.SQL(d) + " " + c.Op + " " + c.Right.SQL(d)
}

// CaseWhen is CASE WHEN cond THEN value [ELSE other] END.
type CaseWhen struct {
	When Expr
	Then Expr
	Else Expr
}

func (c CaseWhen) SQL(d Dialect) string {
	result := "CASE WHEN " + c.When.SQL(d) + " THEN " + c.Then.SQL(d)
	if c.Else != nil {
		result += " ELSE " + c.Else.SQL(d)
	}
	return result + " END"
}

// WindowFunc is a function evaluated OVER a partition.
type WindowFunc struct {
	Func        FuncCall
	PartitionBy []Expr
	OrderBy     []OrderItem
}

func (w WindowFunc) SQL(d Dialect) string {
	var over []string
	if len(w.PartitionBy) > 0 {
		over = append(over, "PARTITION BY "+joinExprs(d, w.PartitionBy))
	}
	if len(w.OrderBy) > 0 {
		over = append(over, "ORDER BY "+joinOrder(d, w.OrderBy))
	}
	return w.Func.SQL(d) + " OVER (" + strings.Join(over, " ") + ")"
}

// Sort directions.
const (
	AscOrder  = "ASC"
	DescOrder = "DESC"
)

// Functions emitted by the translator.
const (
	CountFunction     = "COUNT"
	SumFunction       = "SUM"
	AvgFunction       = "AVG"
	MinFunction       = "MIN"
	MaxFunction       = "MAX"
	RowNumberFunction = "ROW_NUMBER"
)

func joinExprs(d Dialect, exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.SQL(d)
	}
	return strings.Join(parts, ", ")
}

func joinOrder(d Dialect, items []OrderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.SQL(d)
	}
	return strings.Join(parts, ", ")
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func orderItems(keys []relation.OrderKey) []OrderItem {
	items := make([]OrderItem, len(keys))
	for i, k := range keys {
		items[i] = OrderItem{Expr: Col(k.Column), Descending: k.Descending}
	}
	return items
}
