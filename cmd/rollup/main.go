// Command rollup summarizes loans and their repayments: one row per loan,
// computed in memory or by a database from a translated statement.
//
// Usage:
//
//	rollup run --loans loans.csv --repayments repayments.csv
//	rollup sql --dialect sqlite --stage join
//	rollup exec --dialect duckdb --loans loans.parquet --repayments repayments.parquet -o summary.json
//	rollup rank --top 2 loans.csv
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
