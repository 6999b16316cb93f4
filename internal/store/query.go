package store

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/query"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Query renders stmt for the session dialect, runs it, and reads the result
// into a table with the given schema. Result columns are matched by position.
func (s *Session) Query(ctx context.Context, stmt query.Statement, schema *arrow.Schema) (*table.Table, error) {
	start := time.Now()
	text := stmt.SQL(s.dialect)
	s.log.WithField("sql", text).Debug("running statement")

	rows, err := s.db.QueryContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("running statement: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	if len(names) != schema.NumFields() {
		return nil, &errors.PipelineError{
			Op:      "Query",
			Kind:    errors.KindSchema,
			Message: fmt.Sprintf("%d result columns for %d fields", len(names), schema.NumFields()),
		}
	}

	builders := make([]*table.ColumnBuilder, schema.NumFields())
	release := func() {
		for _, b := range builders {
			if b != nil {
				b.Release()
			}
		}
	}
	for i, f := range schema.Fields() {
		if builders[i], err = table.NewColumnBuilder(f.Name, f.Type, nil); err != nil {
			release()
			return nil, err
		}
	}

	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	n := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			release()
			return nil, fmt.Errorf("scanning row %d: %w", n, err)
		}
		for i, f := range schema.Fields() {
			v, err := convert(values[i], f.Type)
			if err != nil {
				release()
				return nil, fmt.Errorf("row %d column %s: %w", n, f.Name, err)
			}
			if err := builders[i].Append(v); err != nil {
				release()
				return nil, err
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		release()
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	cols := make([]table.ISeries, len(builders))
	for i, b := range builders {
		cols[i] = b.Finish()
	}
	s.metrics.Since("query", n, start)
	s.log.WithFields(logrus.Fields{"rows": n}).Debug("statement complete")
	return table.New(cols...), nil
}

// Run loads left and right under the plan's table names, translates the
// plan, and runs it on the database. The result matches pipeline.Run.
func (s *Session) Run(ctx context.Context, left, right *table.Table, plan relation.Plan) (*table.Table, error) {
	schema, err := plan.Validate(left.Schema(), right.Schema())
	if err != nil {
		return nil, fmt.Errorf("validating plan: %w", err)
	}
	if len(plan.LeftColumns) == 0 {
		plan.LeftColumns = left.Columns()
	}
	if len(plan.RightColumns) == 0 {
		plan.RightColumns = right.Columns()
	}

	if err := s.LoadTable(ctx, plan.LeftTable, left); err != nil {
		return nil, err
	}
	if err := s.LoadTable(ctx, plan.RightTable, right); err != nil {
		return nil, err
	}

	stmt, err := query.Translate(plan)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, stmt, schema)
}

// convert maps a scanned driver value onto the Go type stored for dt.
func convert(v any, dt arrow.DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	//nolint:exhaustive // Only handling supported types
	switch dt.ID() {
	case arrow.INT64:
		return toInt64(v)
	case arrow.FLOAT64:
		return toFloat64(v)
	case arrow.STRING:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case arrow.BOOL:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
	case arrow.DATE32:
		switch x := v.(type) {
		case time.Time:
			return arrow.Date32FromTime(x), nil
		case string:
			if d, ok := series.ParseDate(x); ok {
				return d, nil
			}
			return nil, errors.NewInvalidInputError("Query", fmt.Sprintf("unparseable date %q", x))
		}
	}
	return nil, errors.NewUnsupportedTypeError("Query", fmt.Sprintf("%T as %s", v, dt))
}

func toInt64(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return nil, errors.NewInvalidInputError("Query", fmt.Sprintf("%v is not an integer", x))
		}
		return int64(x), nil
	case *big.Int:
		if !x.IsInt64() {
			return nil, errors.NewInvalidInputError("Query", x.String()+" overflows int64")
		}
		return x.Int64(), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", x, err)
		}
		return d.IntPart(), nil
	}
	return nil, errors.NewUnsupportedTypeError("Query", fmt.Sprintf("%T as int64", v))
}

func toFloat64(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case interface{ Float64() float64 }:
		return x.Float64(), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", x, err)
		}
		return d.InexactFloat64(), nil
	}
	return nil, errors.NewUnsupportedTypeError("Query", fmt.Sprintf("%T as float64", v))
}
