package main

import (
	"errors"

	"github.com/paveg/rollup/internal/monitoring"
	"github.com/paveg/rollup/internal/pipeline"
	"github.com/spf13/cobra"
)

var errMissingInputs = errors.New("both --loans and --repayments are required")

// pipelineFlags registers the flags that select inputs, output, and join kind.
func pipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("loans", "", "Loans file (.csv, .tsv, .parquet)")
	cmd.Flags().String("repayments", "", "Repayments file (.csv, .tsv, .parquet)")
	cmd.Flags().StringP("output", "o", "", "Summary file (.csv, .json, .jsonl, .parquet); stdout as CSV when empty")
	cmd.Flags().String("join", "", "Join kind (left or inner)")
	cmd.Flags().Bool("stats", false, "Print the duration and row count of every stage to stderr")
}

// collector returns a metrics collector when --stats is set, nil otherwise.
func collector(cmd *cobra.Command) *monitoring.Collector {
	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		return monitoring.NewCollector()
	}
	return nil
}

func writeStats(cmd *cobra.Command, c *monitoring.Collector) error {
	if c == nil {
		return nil
	}
	return c.WriteTable(cmd.ErrOrStderr())
}

func (a *app) overridePipeline(cmd *cobra.Command) error {
	return a.override(cmd.Flags(), map[string]*string{
		"loans":      &a.cfg.Pipeline.Loans,
		"repayments": &a.cfg.Pipeline.Repayments,
		"output":     &a.cfg.Pipeline.Output,
		"join":       &a.cfg.Pipeline.JoinKind,
	})
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the loan summary in memory",
		Args:  cobra.NoArgs,
		RunE:  a.runPipeline,
	}
	pipelineFlags(cmd)
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, _ []string) error {
	if err := a.overridePipeline(cmd); err != nil {
		return err
	}
	plan, err := a.cfg.Pipeline.Plan()
	if err != nil {
		return err
	}

	loans, repayments, err := a.loadInputs()
	if err != nil {
		return err
	}
	defer loans.Release()
	defer repayments.Release()

	stats := collector(cmd)
	summary, err := pipeline.Run(loans, repayments, plan, pipeline.WithLogger(a.log), pipeline.WithMetrics(stats))
	if err != nil {
		return err
	}
	defer summary.Release()

	if err := a.writeResult(cmd, a.cfg.Pipeline.Output, summary); err != nil {
		return err
	}
	return writeStats(cmd, stats)
}
