package pipeline

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
	"github.com/shopspring/decimal"
)

// Reduce collapses each group of t into one row. The output holds the group
// key followed by one column per aggregation, in aggregation order.
func Reduce(t *table.Table, key string, groups []Group, aggs ...relation.Aggregation) (*table.Table, error) {
	keyCol, ok := t.Column(key)
	if !ok {
		return nil, errors.NewColumnNotFoundError("Reduce", key)
	}

	types := make(map[string]arrow.DataType, t.Width())
	for _, f := range t.Schema().Fields() {
		types[f.Name] = f.Type
	}
	outputs := map[string]bool{key: true}
	for _, agg := range aggs {
		if _, err := relation.CheckAggregation(agg, types); err != nil {
			return nil, err
		}
		if outputs[agg.Output] {
			return nil, errors.NewInvalidInputError("Reduce", "output column "+agg.Output+" defined twice")
		}
		outputs[agg.Output] = true
	}

	cols := make([]table.ISeries, 0, len(aggs)+1)
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}

	firsts := make([]int, len(groups))
	for i, g := range groups {
		firsts[i] = g.Start
	}
	keyOut, err := gather(key, keyCol, firsts)
	if err != nil {
		return nil, err
	}
	cols = append(cols, keyOut)

	for _, agg := range aggs {
		col, _ := t.Column(agg.Column)
		out, err := reduceColumn(agg, col, groups)
		if err != nil {
			release()
			return nil, err
		}
		cols = append(cols, out)
	}
	return table.New(cols...), nil
}

func reduceColumn(agg relation.Aggregation, col table.ISeries, groups []Group) (table.ISeries, error) {
	switch agg.Reducer {
	case relation.First, relation.Last:
		rows := make([]int, len(groups))
		for i, g := range groups {
			rows[i] = g.Start
			if agg.Reducer == relation.Last {
				rows[i] = g.End - 1
			}
		}
		return gather(agg.Output, col, rows)
	case relation.Max, relation.Min:
		return extreme(agg, col, groups)
	case relation.Sum:
		return sum(agg.Output, col, groups)
	case relation.Mean:
		return mean(agg.Output, col, groups)
	case relation.Count:
		return count(agg.Output, col, groups)
	default:
		return nil, errors.NewReducerMismatchError("Reduce", agg.Column, "unknown reducer "+agg.Reducer.String())
	}
}

// gather copies one row per group, nulls included.
func gather(name string, col table.ISeries, rows []int) (table.ISeries, error) {
	b, err := table.NewColumnBuilder(name, col.DataType(), nil)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := b.AppendFrom(col, r); err != nil {
			b.Release()
			return nil, err
		}
	}
	return b.Finish(), nil
}

// extreme keeps the largest (max) or smallest (min) non-null value of each group.
func extreme(agg relation.Aggregation, col table.ISeries, groups []Group) (table.ISeries, error) {
	arr := col.Array()
	defer arr.Release()
	values, err := newValueCompare("Reduce", agg.Column, arr)
	if err != nil {
		return nil, err
	}

	want := 1
	if agg.Reducer == relation.Min {
		want = -1
	}
	rows := make([]int, len(groups))
	for i, g := range groups {
		best := -1
		for r := g.Start; r < g.End; r++ {
			if arr.IsNull(r) {
				continue
			}
			if best < 0 || values(r, best) == want {
				best = r
			}
		}
		rows[i] = best
	}
	return gather(agg.Output, col, rows)
}

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

func sum(name string, col table.ISeries, groups []Group) (table.ISeries, error) {
	arr := col.Array()
	defer arr.Release()

	b, err := table.NewColumnBuilder(name, col.DataType(), nil)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		total, n := accumulate(arr, g)
		switch {
		case n == 0:
			b.AppendNull()
		case arr.DataType().ID() == arrow.INT64:
			if total.GreaterThan(maxInt64) || total.LessThan(minInt64) {
				err = errors.NewInvalidInputError("Reduce", "sum of "+name+" overflows int64: "+total.String())
				break
			}
			err = b.Append(total.IntPart())
		default:
			err = b.Append(total.InexactFloat64())
		}
		if err != nil {
			b.Release()
			return nil, err
		}
	}
	return b.Finish(), nil
}

func mean(name string, col table.ISeries, groups []Group) (table.ISeries, error) {
	arr := col.Array()
	defer arr.Release()

	b, err := table.NewColumnBuilder(name, arrow.PrimitiveTypes.Float64, nil)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		total, n := accumulate(arr, g)
		if n == 0 {
			b.AppendNull()
			continue
		}
		if err := b.Append(total.Div(decimal.NewFromInt(int64(n))).InexactFloat64()); err != nil {
			b.Release()
			return nil, err
		}
	}
	return b.Finish(), nil
}

// accumulate adds the non-null values of one group exactly and returns the
// total with the number of values added.
func accumulate(arr arrow.Array, g Group) (decimal.Decimal, int) {
	total := decimal.Zero
	n := 0
	for r := g.Start; r < g.End; r++ {
		if arr.IsNull(r) {
			continue
		}
		switch a := arr.(type) {
		case *array.Int64:
			total = total.Add(decimal.NewFromInt(a.Value(r)))
		case *array.Float64:
			total = total.Add(decimal.NewFromFloat(a.Value(r)))
		}
		n++
	}
	return total, n
}

func count(name string, col table.ISeries, groups []Group) (table.ISeries, error) {
	b, err := table.NewColumnBuilder(name, arrow.PrimitiveTypes.Int64, nil)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		var n int64
		for r := g.Start; r < g.End; r++ {
			if !col.IsNull(r) {
				n++
			}
		}
		if err := b.Append(n); err != nil {
			b.Release()
			return nil, err
		}
	}
	return b.Finish(), nil
}
