package pipeline

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
)

// Join combines left and right rows with equal spec.Key values.
//
// Output rows follow left row order, and within one left row the matching
// right rows keep their input order. Null keys never match. Under a left
// join an unmatched left row appears once with null right columns.
func Join(left, right *table.Table, spec relation.JoinSpec) (*table.Table, error) {
	leftKey, ok := left.Column(spec.Key)
	if !ok || spec.Key == "" {
		return nil, errors.NewJoinKeyError("Join", spec.Key, "key is absent from left input")
	}
	rightKey, ok := right.Column(spec.Key)
	if !ok {
		return nil, errors.NewJoinKeyError("Join", spec.Key, "key is absent from right input")
	}
	if !arrow.TypeEqual(leftKey.DataType(), rightKey.DataType()) {
		return nil, errors.NewJoinKeyError("Join", spec.Key,
			fmt.Sprintf("key types differ: %s vs %s", leftKey.DataType(), rightKey.DataType()))
	}
	if spec.Kind != relation.LeftJoin && spec.Kind != relation.InnerJoin {
		return nil, errors.NewInvalidInputError("Join", "unsupported join kind "+spec.Kind.String())
	}

	if spec.UniqueLeft {
		if err := checkUnique(leftKey); err != nil {
			return nil, err
		}
	}

	index := newKeyIndex(right.Len())
	for i := range right.Len() {
		if !rightKey.IsNull(i) {
			index.Put(rightKey.GetAsString(i), i)
		}
	}

	leftRows := make([]int, 0, left.Len())
	rightRows := make([]int, 0, left.Len())
	for i := range left.Len() {
		var matches []int
		if !leftKey.IsNull(i) {
			matches, _ = index.Get(leftKey.GetAsString(i))
		}
		if len(matches) == 0 {
			if spec.Kind == relation.LeftJoin {
				leftRows = append(leftRows, i)
				rightRows = append(rightRows, -1)
			}
			continue
		}
		for _, j := range matches {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, j)
		}
	}

	return assembleJoin(left, right, spec, leftRows, rightRows)
}

// checkUnique rejects a key column with a repeated non-null value.
func checkUnique(key table.ISeries) error {
	seen := newKeyIndex(key.Len())
	for i := range key.Len() {
		if key.IsNull(i) {
			continue
		}
		k := key.GetAsString(i)
		if _, dup := seen.Get(k); dup {
			return errors.NewJoinKeyError("Join", key.Name(),
				fmt.Sprintf("value %s is not unique on the left side", k))
		}
		seen.Put(k, i)
	}
	return nil
}

func assembleJoin(left, right *table.Table, spec relation.JoinSpec, leftRows, rightRows []int) (*table.Table, error) {
	names, leftNames, rightNames, err := spec.OutputColumns(left.Columns(), right.Columns())
	if err != nil {
		return nil, err
	}

	leftTaken, err := left.Take(leftRows)
	if err != nil {
		return nil, err
	}
	defer leftTaken.Release()
	rightTaken, err := right.Take(rightRows)
	if err != nil {
		return nil, err
	}
	defer rightTaken.Release()

	cols := make([]table.ISeries, 0, len(names))
	for _, name := range names {
		var src table.ISeries
		if from, ok := leftNames[name]; ok {
			src, _ = leftTaken.Column(from)
		} else {
			src, _ = rightTaken.Column(rightNames[name])
		}
		cols = append(cols, src.Rename(name))
	}
	return table.New(cols...), nil
}
