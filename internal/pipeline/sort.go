package pipeline

import (
	"slices"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
)

// SortIndices returns the row order that sorts t by keys. The sort is stable:
// rows equal on every key keep their input order.
func SortIndices(t *table.Table, keys ...relation.OrderKey) ([]int, error) {
	if len(keys) == 0 {
		return nil, errors.NewInvalidInputError("Sort", "no sort keys")
	}

	compares := make([]rowCompare, 0, len(keys))
	for _, key := range keys {
		col, ok := t.Column(key.Column)
		if !ok {
			return nil, errors.NewColumnNotFoundError("Sort", key.Column)
		}
		arr := col.Array()
		defer arr.Release()

		c, err := newRowCompare("Sort", key.Column, arr, key.Descending)
		if err != nil {
			return nil, err
		}
		compares = append(compares, c)
	}

	indices := make([]int, t.Len())
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		for _, c := range compares {
			if r := c(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	return indices, nil
}

// Sort returns a new table ordered by keys.
func Sort(t *table.Table, keys ...relation.OrderKey) (*table.Table, error) {
	indices, err := SortIndices(t, keys...)
	if err != nil {
		return nil, err
	}
	return t.Take(indices)
}
