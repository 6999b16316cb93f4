package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/series"
)

// ColumnBuilder accumulates values of one Arrow type into a new column.
type ColumnBuilder struct {
	name    string
	builder array.Builder
}

// NewColumnBuilder creates a builder for a column of the given type.
func NewColumnBuilder(name string, dt arrow.DataType, mem memory.Allocator) (*ColumnBuilder, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	//nolint:exhaustive // Only handling supported types
	switch dt.ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.STRING, arrow.BOOL, arrow.DATE32:
	default:
		return nil, errors.NewUnsupportedTypeError("build column "+name, dt.String())
	}
	return &ColumnBuilder{name: name, builder: array.NewBuilder(mem, dt)}, nil
}

// Append adds v, which must match the column type; nil appends a null.
func (b *ColumnBuilder) Append(v any) error {
	if v == nil {
		b.builder.AppendNull()
		return nil
	}

	ok := false
	switch bld := b.builder.(type) {
	case *array.Int64Builder:
		var x int64
		if x, ok = v.(int64); ok {
			bld.Append(x)
		}
	case *array.Float64Builder:
		var x float64
		if x, ok = v.(float64); ok {
			bld.Append(x)
		}
	case *array.StringBuilder:
		var x string
		if x, ok = v.(string); ok {
			bld.Append(x)
		}
	case *array.BooleanBuilder:
		var x bool
		if x, ok = v.(bool); ok {
			bld.Append(x)
		}
	case *array.Date32Builder:
		var x arrow.Date32
		if x, ok = v.(arrow.Date32); ok {
			bld.Append(x)
		}
	}
	if !ok {
		return errors.NewUnsupportedTypeError("build column "+b.name, fmt.Sprintf("%T", v))
	}
	return nil
}

// AppendNull adds a null.
func (b *ColumnBuilder) AppendNull() {
	b.builder.AppendNull()
}

// AppendFrom copies row i of src, which must share the builder's type.
func (b *ColumnBuilder) AppendFrom(src ISeries, i int) error {
	if i < 0 || src.IsNull(i) {
		b.builder.AppendNull()
		return nil
	}
	return b.Append(src.Any(i))
}

// Finish returns the built column and releases the builder.
func (b *ColumnBuilder) Finish() ISeries {
	defer b.builder.Release()
	arr := b.builder.NewArray()
	defer arr.Release()

	s, err := series.FromArray(b.name, arr)
	if err != nil {
		// NewColumnBuilder admits only types FromArray supports.
		panic(err)
	}
	return s
}

// Release discards the builder without producing a column.
func (b *ColumnBuilder) Release() {
	b.builder.Release()
}

// Take gathers rows by index into a new Table. Index -1 produces a null row.
func (t *Table) Take(indices []int) (*Table, error) {
	cols := make([]ISeries, 0, len(t.order))
	for _, name := range t.order {
		col, err := takeSeries(name, t.columns[name], indices)
		if err != nil {
			for _, c := range cols {
				c.Release()
			}
			return nil, err
		}
		cols = append(cols, col)
	}
	return New(cols...), nil
}

func takeSeries(name string, src ISeries, indices []int) (ISeries, error) {
	b, err := NewColumnBuilder(name, src.DataType(), nil)
	if err != nil {
		return nil, err
	}
	for _, idx := range indices {
		if idx >= src.Len() {
			b.Release()
			return nil, errors.NewInvalidInputError("Take", fmt.Sprintf("row %d out of range [0,%d)", idx, src.Len()))
		}
		if err := b.AppendFrom(src, idx); err != nil {
			b.Release()
			return nil, err
		}
	}
	return b.Finish(), nil
}
