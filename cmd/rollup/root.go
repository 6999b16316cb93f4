package main

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/config"
	rio "github.com/paveg/rollup/internal/io"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// app holds what every command shares once the root has run.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
	log *logrus.Logger
	mem memory.Allocator
}

func newRootCmd() *cobra.Command {
	a := &app{mem: memory.NewGoAllocator()}

	root := &cobra.Command{
		Use:   "rollup",
		Short: "Summarize loans and repayments, in memory or in SQL",
		Long: `rollup joins loans with their repayments, orders the joined rows, groups
them by loan, and reduces every group to one summary row.

The same summary can be computed in memory (run), printed as a SQL
statement (sql), or executed on postgres, sqlite, or duckdb (exec).

Configuration is read from --config (.yaml, .json, or .ini) and then from
ROLLUP_* environment variables. Flags override both.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (text or json)")

	root.AddCommand(
		newRunCmd(a),
		newSQLCmd(a),
		newLoadCmd(a),
		newExecCmd(a),
		newRankCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// override copies every string flag the user set into its configuration
// field, then revalidates.
func (a *app) override(flags *pflag.FlagSet, fields map[string]*string) error {
	for name, dst := range fields {
		if flags.Changed(name) {
			v, err := flags.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}
	return a.cfg.Validate()
}

// csvOptions reads text inputs with the loan and repayment column types
// applied to columns that hold no values.
func csvOptions() rio.CSVOptions {
	opts := rio.DefaultCSVOptions()
	opts.ColumnTypes = relation.ColumnTypes
	return opts
}

// loadInputs reads the loans and repayments files configured for the run.
func (a *app) loadInputs() (loans, repayments *table.Table, err error) {
	p := a.cfg.Pipeline
	if p.Loans == "" || p.Repayments == "" {
		return nil, nil, errMissingInputs
	}

	loans, err = rio.LoadFile(p.Loans, csvOptions(), a.mem)
	if err != nil {
		return nil, nil, err
	}
	repayments, err = rio.LoadFile(p.Repayments, csvOptions(), a.mem)
	if err != nil {
		loans.Release()
		return nil, nil, err
	}
	a.log.WithFields(logrus.Fields{
		"loans":      loans.Len(),
		"repayments": repayments.Len(),
	}).Info("inputs loaded")
	return loans, repayments, nil
}

// writeResult writes t to path, or as CSV to the command output when path is empty.
func (a *app) writeResult(cmd *cobra.Command, path string, t *table.Table) error {
	if path == "" {
		return rio.NewCSVWriter(cmd.OutOrStdout(), rio.DefaultCSVOptions()).Write(t)
	}
	if err := rio.WriteFile(path, t); err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{"rows": t.Len(), "path": path}).Info("summary written")
	return nil
}
