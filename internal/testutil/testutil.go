// Package testutil provides loan and repayment fixtures shared by the
// pipeline, translator, and store tests.
//
// The fixtures are small enough to check by hand:
//
//	loans:      1 (amount 100), 2 (amount 250), 3 (amount 50, no repayments)
//	repayments: loan 1 has schedules 2 then 1 (out of order on purpose),
//	            loan 2 has one schedule, loan 9 has no loan.
package testutil

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator with automatic cleanup for tests.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewGoAllocator(),
		cleanup:   func() {},
	}
}

// FixtureOption configures fixture creation.
type FixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	nullAmount bool
}

// WithNullPayment blanks the payment amount of loan 2's only repayment.
func WithNullPayment() FixtureOption {
	return func(cfg *fixtureConfig) {
		cfg.nullAmount = true
	}
}

// Day returns the stored form of a calendar date.
func Day(year int, month time.Month, day int) arrow.Date32 {
	return series.Date(year, month, day)
}

// Loans returns the loan fixture with every column of relation.LoanColumns.
func Loans(allocator memory.Allocator) *table.Table {
	return table.New(
		series.New("loanId", []int64{1, 2, 3}, allocator),
		series.New("loanAmount", []float64{100, 250, 50}, allocator),
		series.New("loanType", []string{"personal", "auto", "personal"}, allocator),
		series.New("lateFees", []float64{0, 5, 0}, allocator),
		series.New("interestSavings", []float64{1.5, 0, 0}, allocator),
		series.New("addStatementFee", []float64{0, 0, 2}, allocator),
		series.New("disbursedOverpaidAmount", []float64{0, 0, 0}, allocator),
		series.New("repaymentDate", []arrow.Date32{
			Day(2021, time.March, 1), Day(2021, time.April, 1), Day(2021, time.May, 1),
		}, allocator),
		series.New("status", []string{"active", "closed", "active"}, allocator),
		series.New("disbursementDate", []arrow.Date32{
			Day(2020, time.December, 1), Day(2021, time.January, 15), Day(2021, time.February, 1),
		}, allocator),
		series.New("duration", []int64{3, 1, 2}, allocator),
		series.New("interestRate", []float64{0.1, 0.05, 0.2}, allocator),
		series.New("customerId", []int64{10, 20, 10}, allocator),
	)
}

// Repayments returns the repayment fixture.
func Repayments(allocator memory.Allocator, opts ...FixtureOption) *table.Table {
	cfg := &fixtureConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	amountValid := []bool{true, true, !cfg.nullAmount, true}
	amount, err := series.NewNullable("totalPaymentWithinSchedule", []float64{30, 50, 100, 10}, amountValid, allocator)
	if err != nil {
		panic(err)
	}

	return table.New(
		series.New("scheduleOrder", []int64{2, 1, 1, 1}, allocator),
		amount,
		series.New("repaidDate", []arrow.Date32{
			Day(2021, time.February, 1), Day(2021, time.January, 1),
			Day(2021, time.February, 15), Day(2021, time.June, 1),
		}, allocator),
		series.New("loanId", []int64{1, 1, 2, 9}, allocator),
		series.New("status", []string{"late", "paid", "paid", "paid"}, allocator),
	)
}

// Release registers t for release at the end of the test.
func Release(tb testing.TB, t *table.Table) *table.Table {
	tb.Helper()
	tb.Cleanup(t.Release)
	return t
}

// AssertTableEqual compares column names, types, and every row.
func AssertTableEqual(tb testing.TB, expected, actual *table.Table) {
	tb.Helper()

	require.NotNil(tb, expected, "expected table should not be nil")
	require.NotNil(tb, actual, "actual table should not be nil")

	require.Equal(tb, expected.Columns(), actual.Columns(), "table columns should match")
	require.Equal(tb, expected.Len(), actual.Len(), "table lengths should match")
	assert.True(tb, expected.Schema().Equal(actual.Schema()), "schemas should match: %s vs %s",
		expected.Schema(), actual.Schema())

	for i, row := range expected.Rows() {
		assert.Equal(tb, row, actual.Row(i), "row %d should match", i)
	}
}

// AssertColumn checks the values of one column; nil stands for null.
func AssertColumn(tb testing.TB, t *table.Table, column string, expected ...any) {
	tb.Helper()

	require.True(tb, t.HasColumn(column), "table should have column %s", column)
	require.Equal(tb, len(expected), t.Len(), "row count of %s", column)
	for i, want := range expected {
		got, err := t.Value(column, i)
		require.NoError(tb, err)
		assert.Equal(tb, want, got, "%s row %d", column, i)
	}
}
