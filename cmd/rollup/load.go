package main

import (
	"fmt"

	rio "github.com/paveg/rollup/internal/io"
	"github.com/paveg/rollup/internal/store"
	"github.com/spf13/cobra"
)

// databaseFlags registers the flags that select the database.
func databaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("dialect", "", "Database dialect (postgres, sqlite, duckdb)")
	cmd.Flags().String("dsn", "", "Data source name passed to the driver")
}

func (a *app) overrideDatabase(cmd *cobra.Command) error {
	return a.override(cmd.Flags(), map[string]*string{
		"dialect": &a.cfg.Database.Dialect,
		"dsn":     &a.cfg.Database.DSN,
	})
}

func newLoadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <table> <file>",
		Short: "Copy a data file into a database table, replacing it",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runLoad,
	}
	databaseFlags(cmd)
	return cmd
}

func (a *app) runLoad(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	if err := a.overrideDatabase(cmd); err != nil {
		return err
	}
	opts, err := a.cfg.Database.Options(a.log)
	if err != nil {
		return err
	}

	t, err := rio.LoadFile(path, csvOptions(), a.mem)
	if err != nil {
		return err
	}
	defer t.Release()

	err = store.WithSession(cmd.Context(), opts, func(s *store.Session) error {
		return s.LoadTable(cmd.Context(), name, t)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", t.Len(), name)
	return nil
}
