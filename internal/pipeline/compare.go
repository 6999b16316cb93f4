package pipeline

import (
	"cmp"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/rollup/internal/errors"
)

// valueCompare orders two non-null slots of one array.
type valueCompare func(i, j int) int

// rowCompare orders two rows; nulls sort after every value.
type rowCompare func(i, j int) int

func newValueCompare(op, column string, arr arrow.Array) (valueCompare, error) {
	switch a := arr.(type) {
	case *array.Int64:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Float64:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.String:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Date32:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Boolean:
		return func(i, j int) int { return compareBool(a.Value(i), a.Value(j)) }, nil
	default:
		return nil, &errors.PipelineError{
			Op:      op,
			Kind:    errors.KindUnsupportedType,
			Column:  column,
			Message: "cannot order values of type " + arr.DataType().String(),
		}
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// newRowCompare wraps a value comparison with null handling and direction.
// Nulls are placed last in both directions.
func newRowCompare(op, column string, arr arrow.Array, descending bool) (rowCompare, error) {
	values, err := newValueCompare(op, column, arr)
	if err != nil {
		return nil, err
	}
	return func(i, j int) int {
		ni, nj := arr.IsNull(i), arr.IsNull(j)
		switch {
		case ni && nj:
			return 0
		case ni:
			return 1
		case nj:
			return -1
		}
		c := values(i, j)
		if descending {
			return -c
		}
		return c
	}, nil
}

// sameKey reports whether two rows carry equal keys; two nulls are equal.
func sameKey(arr arrow.Array, values valueCompare, i, j int) bool {
	ni, nj := arr.IsNull(i), arr.IsNull(j)
	if ni || nj {
		return ni && nj
	}
	return values(i, j) == 0
}
