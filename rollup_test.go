package rollup_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) arrow.Date32 {
	return arrow.Date32FromTime(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func inputs(t *testing.T) (*rollup.Table, *rollup.Table) {
	t.Helper()
	mem := memory.NewGoAllocator()

	loans, err := rollup.NewTable(
		rollup.NewSeries("loanId", []int64{1, 2}, mem),
		rollup.NewSeries("loanAmount", []float64{100, 250}, mem),
	)
	require.NoError(t, err)
	t.Cleanup(loans.Release)

	repayments, err := rollup.NewTable(
		rollup.NewSeries("loanId", []int64{1, 1, 2}, mem),
		rollup.NewSeries("scheduleOrder", []int64{2, 1, 1}, mem),
		rollup.NewSeries("amount", []float64{30, 50, 100}, mem),
		rollup.NewSeries("repaidDate", []arrow.Date32{date(2021, 2, 1), date(2021, 1, 1), date(2021, 2, 15)}, mem),
	)
	require.NoError(t, err)
	t.Cleanup(repayments.Release)

	return loans, repayments
}

func plan() rollup.Plan {
	return rollup.Plan{
		LeftTable:    "loans",
		RightTable:   "repayments",
		LeftColumns:  []string{"loanId", "loanAmount"},
		RightColumns: []string{"loanId", "scheduleOrder", "amount", "repaidDate"},
		Join:         rollup.JoinSpec{Kind: rollup.LeftJoin, Key: "loanId", UniqueLeft: true},
		Order:        []rollup.OrderKey{rollup.Asc("loanId"), rollup.Asc("scheduleOrder")},
		GroupKey:     "loanId",
		Aggregations: []rollup.Aggregation{
			rollup.Agg("paid", "amount", rollup.Sum),
			rollup.Agg("lastSchedule", "scheduleOrder", rollup.Last),
			rollup.Agg("lastRepaid", "repaidDate", rollup.Max),
		},
	}
}

func TestSummarize(t *testing.T) {
	loans, repayments := inputs(t)

	summary, err := rollup.Summarize(loans, repayments, plan())
	require.NoError(t, err)
	defer summary.Release()

	assert.Equal(t, []string{"loanId", "paid", "lastSchedule", "lastRepaid"}, summary.Columns())
	require.Equal(t, 2, summary.Len())
	assert.Equal(t, map[string]any{
		"loanId": int64(1), "paid": 80.0, "lastSchedule": int64(2), "lastRepaid": date(2021, 2, 1),
	}, summary.Row(0))

	v, err := summary.Value("paid", 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestSessionMatchesSummarize(t *testing.T) {
	ctx := context.Background()
	loans, repayments := inputs(t)

	want, err := rollup.Summarize(loans, repayments, plan())
	require.NoError(t, err)
	defer want.Release()

	s, err := rollup.Open(ctx, "sqlite", "")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Summarize(ctx, loans, repayments, plan())
	require.NoError(t, err)
	defer got.Release()

	require.Equal(t, want.Len(), got.Len())
	for i := range want.Len() {
		assert.Equal(t, want.Row(i), got.Row(i))
	}
}

func TestRank(t *testing.T) {
	_, repayments := inputs(t)

	top, err := rollup.Rank(repayments, "loanId", []rollup.OrderKey{rollup.Desc("scheduleOrder")}, "rn", 1)
	require.NoError(t, err)
	defer top.Release()

	require.Equal(t, 2, top.Len())
	assert.Equal(t, int64(2), top.Row(0)["scheduleOrder"])

	all, err := rollup.Rank(repayments, "loanId", []rollup.OrderKey{rollup.Desc("scheduleOrder")}, "rn", 0)
	require.NoError(t, err)
	defer all.Release()
	assert.Equal(t, 3, all.Len())
}

func TestTranslate(t *testing.T) {
	sql, err := rollup.Translate(plan(), "duckdb")
	require.NoError(t, err)
	assert.Contains(t, sql, `LEFT JOIN "repayments"`)

	_, err = rollup.Translate(plan(), "oracle")
	assert.Error(t, err)
}

func TestReadWriteFile(t *testing.T) {
	loans, _ := inputs(t)
	path := filepath.Join(t.TempDir(), "loans.parquet")

	require.NoError(t, loans.WriteFile(path))

	read, err := rollup.ReadFile(path, memory.NewGoAllocator())
	require.NoError(t, err)
	defer read.Release()

	assert.Equal(t, loans.Columns(), read.Columns())
	assert.Equal(t, loans.Row(1), read.Row(1))
}

func TestNewTableRejectsUnequalLengths(t *testing.T) {
	mem := memory.NewGoAllocator()
	_, err := rollup.NewTable(
		rollup.NewSeries("a", []int64{1, 2}, mem),
		rollup.NewSeries("b", []int64{1}, mem),
	)
	assert.Error(t, err)
}

func ExampleTranslate() {
	p := rollup.LoanRepaymentPlan()
	p.Join.Kind = rollup.InnerJoin

	sql, err := rollup.Translate(p, "postgres")
	if err != nil {
		panic(err)
	}
	fmt.Println(sql[:len(`WITH "joined" AS (`)])
	// Output: WITH "joined" AS (
}
