// Package table provides the immutable, column-oriented table used by the pipeline.
package table

import (
	"fmt"
	"iter"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
)

// Table represents a set of equal-length named columns with a fixed order.
// Operations never modify a table; they return a new one.
type Table struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// Row is a single row keyed by column name. Nulls are nil.
type Row map[string]any

// New creates a new Table from a slice of ISeries. Later duplicates replace earlier ones.
func New(series ...ISeries) *Table {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		if _, dup := columns[name]; !dup {
			order = append(order, name)
		}
		columns[name] = s
	}

	return &Table{
		columns: columns,
		order:   order,
	}
}

// NewSafe creates a new Table and rejects duplicate names and unequal column lengths.
func NewSafe(series ...ISeries) (*Table, error) {
	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if seen[s.Name()] {
			return nil, errors.NewInvalidInputError("New", fmt.Sprintf("duplicate column %q", s.Name()))
		}
		seen[s.Name()] = true
		if s.Len() != series[0].Len() {
			return nil, &errors.PipelineError{
				Op:      "New",
				Kind:    errors.KindInvalidInput,
				Column:  s.Name(),
				Message: fmt.Sprintf("length %d differs from %d", s.Len(), series[0].Len()),
			}
		}
	}
	return New(series...), nil
}

// Columns returns the names of all columns in order
func (t *Table) Columns() []string {
	return append([]string{}, t.order...)
}

// Len returns the number of rows
func (t *Table) Len() int {
	if len(t.order) == 0 {
		return 0
	}
	return t.columns[t.order[0]].Len()
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.order)
}

// Column returns the series for the given column name
func (t *Table) Column(name string) (ISeries, bool) {
	s, exists := t.columns[name]
	return s, exists
}

// HasColumn checks if a column exists
func (t *Table) HasColumn(name string) bool {
	_, exists := t.columns[name]
	return exists
}

// Schema returns the Arrow schema of the table.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(t.order))
	for _, name := range t.order {
		fields = append(fields, arrow.Field{Name: name, Type: t.columns[name].DataType(), Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// Require reports a SchemaError for the first listed column the table lacks.
func (t *Table) Require(names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return errors.NewSchemaError("Load", name).WithContext(map[string]string{
				"available_columns": strings.Join(t.order, ", "),
			})
		}
	}
	return nil
}

// Project returns a new Table holding exactly the named columns in the given order.
func (t *Table) Project(names ...string) (*Table, error) {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, errors.NewInvalidInputError("Project", fmt.Sprintf("column %q listed twice", name))
		}
		seen[name] = true
		if !t.HasColumn(name) {
			return nil, errors.NewColumnNotFoundError("Project", name).WithContext(map[string]string{
				"available_columns": strings.Join(t.order, ", "),
			})
		}
	}

	projected := make([]ISeries, 0, len(names))
	for _, name := range names {
		projected = append(projected, t.columns[name].Rename(name))
	}
	return New(projected...), nil
}

// Rename returns a new Table with columns renamed according to mapping.
func (t *Table) Rename(mapping map[string]string) *Table {
	renamed := make([]ISeries, 0, len(t.order))
	for _, name := range t.order {
		target := name
		if to, ok := mapping[name]; ok {
			target = to
		}
		renamed = append(renamed, t.columns[name].Rename(target))
	}
	return New(renamed...)
}

// Value returns the value of column at row, or nil when null.
func (t *Table) Value(column string, row int) (any, error) {
	s, ok := t.columns[column]
	if !ok {
		return nil, errors.NewColumnNotFoundError("Value", column)
	}
	if row < 0 || row >= s.Len() {
		return nil, errors.NewInvalidInputError("Value", fmt.Sprintf("row %d out of range [0,%d)", row, s.Len()))
	}
	return s.Any(row), nil
}

// Row materializes row i.
func (t *Table) Row(i int) Row {
	r := make(Row, len(t.order))
	for _, name := range t.order {
		r[name] = t.columns[name].Any(i)
	}
	return r
}

// Rows iterates over the rows in order.
func (t *Table) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i := range t.Len() {
			if !yield(i, t.Row(i)) {
				return
			}
		}
	}
}

// Head returns the first n rows.
func (t *Table) Head(n int) (*Table, error) {
	if n < 0 {
		return nil, errors.NewInvalidInputError("Head", fmt.Sprintf("negative row count %d", n))
	}
	n = min(n, t.Len())
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return t.Take(indices)
}

// String returns a string representation of the Table
func (t *Table) String() string {
	if len(t.order) == 0 {
		return "Table[empty]"
	}

	parts := []string{fmt.Sprintf("Table[%dx%d]", t.Len(), t.Width())}
	for _, name := range t.order {
		parts = append(parts, fmt.Sprintf("  %s: %s", name, t.columns[name].DataType().String()))
	}
	return strings.Join(parts, "\n")
}

// Release frees the memory held by every column.
func (t *Table) Release() {
	for _, s := range t.columns {
		s.Release()
	}
}
