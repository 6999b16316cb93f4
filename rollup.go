// Package rollup summarizes a table of loans against a table of their
// repayments: join on the loan key, order the joined rows, group by loan, and
// reduce each group to one summary row.
//
// The summary is computed either in memory (Summarize) or by a database from
// an equivalent SQL statement (Translate, Session.Summarize). Both produce the
// same rows in the same order.
//
// This package is the sole public API of the module.
package rollup

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/errors"
	rio "github.com/paveg/rollup/internal/io"
	"github.com/paveg/rollup/internal/pipeline"
	"github.com/paveg/rollup/internal/query"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/store"
	"github.com/paveg/rollup/internal/table"
	"github.com/sirupsen/logrus"
)

// ISeries provides a type-erased interface for a named column.
type ISeries interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	String() string
	Array() arrow.Array
	Release()
}

// Element lists the Go types a column can hold.
type Element = series.Element

// Plan vocabulary.
type (
	Plan        = relation.Plan
	JoinSpec    = relation.JoinSpec
	JoinKind    = relation.JoinKind
	OrderKey    = relation.OrderKey
	Reducer     = relation.Reducer
	Aggregation = relation.Aggregation
)

const (
	InnerJoin = relation.InnerJoin
	LeftJoin  = relation.LeftJoin
)

const (
	Max   = relation.Max
	Min   = relation.Min
	Sum   = relation.Sum
	Mean  = relation.Mean
	First = relation.First
	Last  = relation.Last
	Count = relation.Count
)

// Asc orders by column ascending, Desc descending. Nulls sort last either way.
func Asc(column string) OrderKey  { return relation.Asc(column) }
func Desc(column string) OrderKey { return relation.Desc(column) }

// Agg reduces column to output with reducer.
func Agg(output, column string, reducer Reducer) Aggregation {
	return relation.Agg(output, column, reducer)
}

// LoanRepaymentPlan returns the default loan summary plan.
func LoanRepaymentPlan() Plan {
	return relation.LoanRepaymentPlan()
}

// Table is the public table type. It wraps the internal table to hide
// implementation details.
type Table struct {
	t *table.Table
}

// NewSeries creates a column with every value present.
func NewSeries[T Element](name string, values []T, mem memory.Allocator) ISeries {
	return series.New(name, values, mem)
}

// NewNullableSeries creates a column where valid[i] == false marks values[i] as null.
func NewNullableSeries[T Element](name string, values []T, valid []bool, mem memory.Allocator) (ISeries, error) {
	s, err := series.NewNullable(name, values, valid, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewTable creates a table from columns built with NewSeries. The table takes
// ownership of the columns.
func NewTable(columns ...ISeries) (*Table, error) {
	internal := make([]table.ISeries, len(columns))
	for i, c := range columns {
		s, ok := c.(table.ISeries)
		if !ok {
			return nil, errors.NewUnsupportedTypeError("NewTable", fmt.Sprintf("%T", c))
		}
		internal[i] = s
	}
	t, err := table.NewSafe(internal...)
	if err != nil {
		return nil, err
	}
	return &Table{t: t}, nil
}

// ReadFile loads a CSV, TSV, or Parquet file. Text columns without any
// value take the type of the loan or repayment attribute of the same name.
func ReadFile(path string, mem memory.Allocator) (*Table, error) {
	opts := rio.DefaultCSVOptions()
	opts.ColumnTypes = relation.ColumnTypes
	t, err := rio.LoadFile(path, opts, mem)
	if err != nil {
		return nil, err
	}
	return &Table{t: t}, nil
}

// WriteFile writes the table as CSV, JSON, JSON lines, or Parquet, chosen by
// the extension of path.
func (t *Table) WriteFile(path string) error {
	return rio.WriteFile(path, t.t)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return t.t.Columns() }

// Len returns the number of rows.
func (t *Table) Len() int { return t.t.Len() }

// Width returns the number of columns.
func (t *Table) Width() int { return t.t.Width() }

// Schema returns the Arrow schema.
func (t *Table) Schema() *arrow.Schema { return t.t.Schema() }

// Column returns the column with the given name.
func (t *Table) Column(name string) (ISeries, bool) {
	return t.t.Column(name)
}

// Value returns one cell, nil when null.
func (t *Table) Value(column string, row int) (any, error) {
	return t.t.Value(column, row)
}

// Row returns row i keyed by column name.
func (t *Table) Row(i int) map[string]any {
	return t.t.Row(i)
}

// Head returns the first n rows.
func (t *Table) Head(n int) (*Table, error) {
	h, err := t.t.Head(n)
	if err != nil {
		return nil, err
	}
	return &Table{t: h}, nil
}

// String returns a string representation of the table.
func (t *Table) String() string { return t.t.String() }

// Release frees the table's memory.
func (t *Table) Release() { t.t.Release() }

// Option configures Summarize.
type Option = pipeline.Option

// WithLogger sets the logger that receives per-stage row counts at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return pipeline.WithLogger(log)
}

// Summarize runs plan over the two tables in memory.
func Summarize(left, right *Table, plan Plan, opts ...Option) (*Table, error) {
	out, err := pipeline.Run(left.t, right.t, plan, opts...)
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Rank numbers the rows of every partition 1..k in key order and keeps the
// rows numbered at most n. n == 0 keeps every row.
func Rank(t *Table, partition string, keys []OrderKey, alias string, n int) (*Table, error) {
	var (
		out *table.Table
		err error
	)
	if n == 0 {
		out, err = pipeline.RankWithinPartition(t.t, partition, keys, alias)
	} else {
		out, err = pipeline.TopNPerPartition(t.t, partition, keys, alias, n)
	}
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Translate renders plan as one SQL statement in dialect (postgres, sqlite,
// or duckdb).
func Translate(plan Plan, dialect string) (string, error) {
	d, err := query.ParseDialect(dialect)
	if err != nil {
		return "", err
	}
	stmt, err := query.Translate(plan)
	if err != nil {
		return "", err
	}
	return stmt.SQL(d), nil
}

// Session is an open database connection.
type Session struct {
	s *store.Session
}

// Open connects to a database. An empty dsn opens an in-memory database for
// sqlite and duckdb.
func Open(ctx context.Context, dialect, dsn string) (*Session, error) {
	d, err := query.ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, store.Options{Dialect: d, DSN: dsn})
	if err != nil {
		return nil, err
	}
	return &Session{s: s}, nil
}

// Summarize loads both tables into the database under the plan's table
// names and runs the translated plan there.
func (s *Session) Summarize(ctx context.Context, left, right *Table, plan Plan) (*Table, error) {
	out, err := s.s.Run(ctx, left.t, right.t, plan)
	if err != nil {
		return nil, err
	}
	return &Table{t: out}, nil
}

// Close closes the connection.
func (s *Session) Close() error {
	return s.s.Close()
}
