package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/paveg/rollup/internal/query"
	"github.com/spf13/cobra"
)

func newSQLCmd(a *app) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the statement that computes the loan summary",
		Long: `Print the SQL statement equivalent to "rollup run".

--stage stops at an earlier step of the pipeline:

  select     the projected loans
  join       loans joined with repayments
  order      the joined rows in summary order
  group      one row per loan with its row count
  aggregate  the full summary (default)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printSQL(cmd, stage)
		},
	}
	cmd.Flags().StringVar(&stage, "stage", query.StageAggregate.String(), "Last pipeline stage to include")
	cmd.Flags().String("dialect", "", "SQL dialect (postgres, sqlite, duckdb)")
	cmd.Flags().String("join", "", "Join kind (left or inner)")
	return cmd
}

func (a *app) printSQL(cmd *cobra.Command, stageName string) error {
	if err := a.override(cmd.Flags(), map[string]*string{
		"dialect": &a.cfg.Database.Dialect,
		"join":    &a.cfg.Pipeline.JoinKind,
	}); err != nil {
		return err
	}
	dialect, err := query.ParseDialect(a.cfg.Database.Dialect)
	if err != nil {
		return err
	}
	stage, err := query.ParseStage(stageName)
	if err != nil {
		return err
	}
	plan, err := a.cfg.Pipeline.Plan()
	if err != nil {
		return err
	}

	stmt, err := query.StageStatement(plan, stage)
	if err != nil {
		return err
	}
	writeSQL(cmd, stmt.SQL(dialect))
	return nil
}

// writeSQL prints a statement, highlighted when stdout is a terminal.
func writeSQL(cmd *cobra.Command, sql string) {
	out := cmd.OutOrStdout()
	if out == os.Stdout && !color.NoColor {
		sql = highlight(sql)
	}
	fmt.Fprintln(out, sql+";")
}

var (
	sqlToken   = regexp.MustCompile(`"[^"]*"|'[^']*'|\b[A-Z_]+\b`)
	keywordCol = color.New(color.FgCyan, color.Bold)
	literalCol = color.New(color.FgGreen)
	identCol   = color.New(color.FgYellow)
)

var sqlKeywords = map[string]bool{
	"WITH": true, "AS": true, "SELECT": true, "FROM": true, "LEFT": true, "INNER": true,
	"JOIN": true, "ON": true, "WHERE": true, "GROUP": true, "BY": true, "ORDER": true,
	"LIMIT": true, "ASC": true, "DESC": true, "NULLS": true, "LAST": true, "CASE": true,
	"WHEN": true, "THEN": true, "END": true, "OVER": true, "PARTITION": true, "AND": true,
	"NULL": true, "DATE": true,
}

func highlight(sql string) string {
	return sqlToken.ReplaceAllStringFunc(sql, func(tok string) string {
		switch {
		case strings.HasPrefix(tok, `"`):
			return identCol.Sprint(tok)
		case strings.HasPrefix(tok, "'"):
			return literalCol.Sprint(tok)
		case sqlKeywords[tok]:
			return keywordCol.Sprint(tok)
		default:
			return tok
		}
	})
}
