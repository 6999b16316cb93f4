package pipeline

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
)

// RankWithinPartition numbers the rows of each partition 1..k in the order
// given by keys, ties broken by input order. The numbers are appended as
// column output; rows stay in input order.
func RankWithinPartition(t *table.Table, partition string, keys []relation.OrderKey, output string) (*table.Table, error) {
	ranks, err := rowNumbers(t, partition, keys)
	if err != nil {
		return nil, err
	}
	if t.HasColumn(output) {
		return nil, errors.NewInvalidInputError("Rank", fmt.Sprintf("column %q already exists", output))
	}

	b, err := table.NewColumnBuilder(output, arrow.PrimitiveTypes.Int64, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range ranks {
		if err := b.Append(r); err != nil {
			b.Release()
			return nil, err
		}
	}

	cols := make([]table.ISeries, 0, t.Width()+1)
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		cols = append(cols, col.Rename(name))
	}
	cols = append(cols, b.Finish())
	return table.New(cols...), nil
}

// TopNPerPartition keeps the first n rows of every partition in keys order.
// The result is ordered by partition value and then by rank, and carries
// the rank in column output.
func TopNPerPartition(t *table.Table, partition string, keys []relation.OrderKey, output string, n int) (*table.Table, error) {
	if n < 1 {
		return nil, errors.NewInvalidInputError("TopN", fmt.Sprintf("n must be positive, got %d", n))
	}
	ranked, err := RankWithinPartition(t, partition, keys, output)
	if err != nil {
		return nil, err
	}
	defer ranked.Release()

	order, err := SortIndices(ranked, relation.Asc(partition), relation.Asc(output))
	if err != nil {
		return nil, err
	}
	rankCol, _ := ranked.Column(output)
	kept := make([]int, 0, len(order))
	for _, i := range order {
		if v, _ := rankCol.Any(i).(int64); v <= int64(n) {
			kept = append(kept, i)
		}
	}
	return ranked.Take(kept)
}

func rowNumbers(t *table.Table, partition string, keys []relation.OrderKey) ([]int64, error) {
	col, ok := t.Column(partition)
	if !ok {
		return nil, errors.NewColumnNotFoundError("Rank", partition)
	}
	arr := col.Array()
	defer arr.Release()
	values, err := newValueCompare("Rank", partition, arr)
	if err != nil {
		return nil, err
	}

	order, err := SortIndices(t, append([]relation.OrderKey{relation.Asc(partition)}, keys...)...)
	if err != nil {
		return nil, err
	}

	ranks := make([]int64, t.Len())
	var rank int64
	for pos, row := range order {
		if pos == 0 || !sameKey(arr, values, order[pos-1], row) {
			rank = 0
		}
		rank++
		ranks[row] = rank
	}
	return ranks, nil
}
