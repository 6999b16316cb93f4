package main

import (
	"github.com/paveg/rollup/internal/store"
	"github.com/paveg/rollup/internal/table"
	"github.com/spf13/cobra"
)

func newExecCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Load the inputs into a database and compute the summary there",
		Long: `exec loads the loans and repayments files into the configured database,
replacing the loans and repayments tables, and runs the translated summary
statement. The result equals the output of "rollup run".`,
		Args: cobra.NoArgs,
		RunE: a.runExec,
	}
	pipelineFlags(cmd)
	databaseFlags(cmd)
	return cmd
}

func (a *app) runExec(cmd *cobra.Command, _ []string) error {
	if err := a.overridePipeline(cmd); err != nil {
		return err
	}
	if err := a.overrideDatabase(cmd); err != nil {
		return err
	}
	plan, err := a.cfg.Pipeline.Plan()
	if err != nil {
		return err
	}
	opts, err := a.cfg.Database.Options(a.log)
	if err != nil {
		return err
	}
	opts.Metrics = collector(cmd)

	loans, repayments, err := a.loadInputs()
	if err != nil {
		return err
	}
	defer loans.Release()
	defer repayments.Release()

	var summary *table.Table
	err = store.WithSession(cmd.Context(), opts, func(s *store.Session) error {
		var err error
		summary, err = s.Run(cmd.Context(), loans, repayments, plan)
		return err
	})
	if err != nil {
		return err
	}
	defer summary.Release()

	if err := a.writeResult(cmd, a.cfg.Pipeline.Output, summary); err != nil {
		return err
	}
	return writeStats(cmd, opts.Metrics)
}
