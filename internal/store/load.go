package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/table"
	"github.com/sirupsen/logrus"
)

// LoadTable replaces table name with the contents of t: the table is
// dropped if present, created with t's schema, and filled row by row, all
// in one transaction.
func (s *Session) LoadTable(ctx context.Context, name string, t *table.Table) (err error) {
	if name == "" {
		return errors.NewInvalidInputError("LoadTable", "table name is required")
	}
	if t.Width() == 0 {
		return errors.NewInvalidInputError("LoadTable", "table has no columns")
	}

	start := time.Now()
	columns := t.Columns()
	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		col, _ := t.Column(c)
		typ, err := s.dialect.ColumnType(col.DataType())
		if err != nil {
			return fmt.Errorf("loading %s: %w", name, err)
		}
		quoted[i] = s.dialect.QuoteIdent(c)
		defs[i] = quoted[i] + " " + typ
		marks[i] = s.dialect.Placeholder(i + 1)
	}
	ident := s.dialect.QuoteIdent(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("dropping %s: %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", name, err)
	}
	defer insert.Close()

	args := make([]any, len(columns))
	for i, row := range t.Rows() {
		for j, c := range columns {
			args[j] = s.dialect.BindValue(row[c])
		}
		if _, err = insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d into %s: %w", i, name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	s.metrics.Since("load "+name, t.Len(), start)
	s.log.WithFields(logrus.Fields{"table": name, "rows": t.Len()}).Debug("table loaded")
	return nil
}
