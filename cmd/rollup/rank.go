package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	rio "github.com/paveg/rollup/internal/io"
	"github.com/paveg/rollup/internal/pipeline"
	"github.com/paveg/rollup/internal/query"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
	"github.com/spf13/cobra"
)

var errMissingRankInput = errors.New("rank needs a file unless --sql is given")

type rankOptions struct {
	partition string
	order     []string
	alias     string
	top       int
	sql       bool
	table     string
	output    string
}

func newRankCmd(a *app) *cobra.Command {
	var o rankOptions

	cmd := &cobra.Command{
		Use:   "rank [file]",
		Short: "Number rows within each partition and keep the top n",
		Long: `rank numbers the rows of every partition 1, 2, ... in the given order and
keeps the rows numbered at most --top. --top 0 keeps every row.

Order keys are column names; a leading "-" sorts that column descending.
With --sql the equivalent ROW_NUMBER statement is printed instead. Its
columns come from the file when one is given, otherwise from the loan
columns.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("top") {
				o.top = a.cfg.Pipeline.TopN
			}
			return a.runRank(cmd, args, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.partition, "partition", "loanId", "Partition column")
	flags.StringSliceVar(&o.order, "order", []string{"-loanAmount"}, "Ranking keys, - prefix for descending")
	flags.StringVar(&o.alias, "as", "rn", "Name of the rank column")
	flags.IntVar(&o.top, "top", 0, "Rows kept per partition, 0 for all (default from configuration)")
	flags.BoolVar(&o.sql, "sql", false, "Print the statement instead of ranking")
	flags.StringVar(&o.table, "table", "", "Table named in the statement (default: file name, or loans)")
	flags.StringVarP(&o.output, "output", "o", "", "Result file; stdout as CSV when empty")
	flags.String("dialect", "", "SQL dialect for --sql")
	return cmd
}

func parseOrderKeys(specs []string) []relation.OrderKey {
	keys := make([]relation.OrderKey, 0, len(specs))
	for _, s := range specs {
		if col, ok := strings.CutPrefix(s, "-"); ok {
			keys = append(keys, relation.Desc(col))
		} else {
			keys = append(keys, relation.Asc(s))
		}
	}
	return keys
}

func (a *app) runRank(cmd *cobra.Command, args []string, o rankOptions) error {
	if o.top < 0 {
		return fmt.Errorf("--top must not be negative, got %d", o.top)
	}
	keys := parseOrderKeys(o.order)

	var t *table.Table
	if len(args) == 1 {
		var err error
		if t, err = rio.LoadFile(args[0], csvOptions(), a.mem); err != nil {
			return err
		}
		defer t.Release()
	}

	if o.sql {
		return a.printRankSQL(cmd, args, t, keys, o)
	}
	if t == nil {
		return errMissingRankInput
	}

	var (
		ranked *table.Table
		err    error
	)
	if o.top == 0 {
		ranked, err = pipeline.RankWithinPartition(t, o.partition, keys, o.alias)
	} else {
		ranked, err = pipeline.TopNPerPartition(t, o.partition, keys, o.alias, o.top)
	}
	if err != nil {
		return err
	}
	defer ranked.Release()

	return a.writeResult(cmd, o.output, ranked)
}

func (a *app) printRankSQL(cmd *cobra.Command, args []string, t *table.Table, keys []relation.OrderKey, o rankOptions) error {
	if err := a.override(cmd.Flags(), map[string]*string{"dialect": &a.cfg.Database.Dialect}); err != nil {
		return err
	}
	dialect, err := query.ParseDialect(a.cfg.Database.Dialect)
	if err != nil {
		return err
	}

	name, columns := o.table, relation.LoanColumns
	if t != nil {
		columns = t.Columns()
		if name == "" {
			base := filepath.Base(args[0])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
	if name == "" {
		name = relation.LoanRepaymentPlan().LeftTable
	}

	var stmt *query.SelectStatement
	if o.top == 0 {
		stmt, err = query.RowNumber(name, columns, o.partition, keys, o.alias)
	} else {
		stmt, err = query.TopN(name, columns, o.partition, keys, o.alias, o.top)
	}
	if err != nil {
		return err
	}
	writeSQL(cmd, stmt.SQL(dialect))
	return nil
}
