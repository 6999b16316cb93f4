package pipeline

import (
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/table"
)

// Group is a maximal run of rows [Start, End) sharing a key value.
type Group struct {
	Start int
	End   int
}

// Len returns the number of rows in the group. It is never zero.
func (g Group) Len() int {
	return g.End - g.Start
}

// Partition splits t into contiguous runs of equal key in one linear pass.
// t must already be ordered by key for each key to land in a single group.
func Partition(t *table.Table, key string) ([]Group, error) {
	col, ok := t.Column(key)
	if !ok {
		return nil, errors.NewColumnNotFoundError("GroupBy", key)
	}
	arr := col.Array()
	defer arr.Release()

	values, err := newValueCompare("GroupBy", key, arr)
	if err != nil {
		return nil, err
	}

	var groups []Group
	start := 0
	for i := 1; i <= t.Len(); i++ {
		if i == t.Len() || !sameKey(arr, values, start, i) {
			groups = append(groups, Group{Start: start, End: i})
			start = i
		}
	}
	return groups, nil
}

// isGroupedBy reports whether equal keys of t already sit in contiguous, ascending runs.
func isGroupedBy(t *table.Table, key string) (bool, error) {
	col, ok := t.Column(key)
	if !ok {
		return false, errors.NewColumnNotFoundError("GroupBy", key)
	}
	arr := col.Array()
	defer arr.Release()

	compare, err := newRowCompare("GroupBy", key, arr, false)
	if err != nil {
		return false, err
	}
	for i := 1; i < t.Len(); i++ {
		if compare(i-1, i) > 0 {
			return false, nil
		}
	}
	return true, nil
}
