package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/series"
)

// Dialect selects the SQL flavor a statement renders to.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
	DuckDB
)

var dialectNames = map[Dialect]string{
	Postgres: "postgres",
	SQLite:   "sqlite",
	DuckDB:   "duckdb",
}

func (d Dialect) String() string {
	if name, ok := dialectNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// ParseDialect maps a dialect or driver name onto a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	default:
		return 0, errors.NewInvalidInputError("ParseDialect", fmt.Sprintf("unknown dialect %q", s))
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	return d.String()
}

// QuoteIdent quotes an identifier, doubling embedded quotes.
func (d Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the bind parameter marker for the n-th argument, counting from 1.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// ColumnType returns the column type used to store values of dt.
func (d Dialect) ColumnType(dt arrow.DataType) (string, error) {
	//nolint:exhaustive // Only handling supported types
	switch dt.ID() {
	case arrow.INT64:
		if d == SQLite {
			return "INTEGER", nil
		}
		return "BIGINT", nil
	case arrow.FLOAT64:
		switch d {
		case Postgres:
			return "DOUBLE PRECISION", nil
		case SQLite:
			return "REAL", nil
		default:
			return "DOUBLE", nil
		}
	case arrow.STRING:
		if d == DuckDB {
			return "VARCHAR", nil
		}
		return "TEXT", nil
	case arrow.BOOL:
		if d == SQLite {
			return "INTEGER", nil
		}
		return "BOOLEAN", nil
	case arrow.DATE32:
		// SQLite stores dates as ISO text.
		if d == SQLite {
			return "TEXT", nil
		}
		return "DATE", nil
	default:
		return "", errors.NewUnsupportedTypeError("ColumnType", dt.String())
	}
}

// BindValue converts a table value into a driver argument for the dialect.
func (d Dialect) BindValue(v any) any {
	switch x := v.(type) {
	case arrow.Date32:
		if d == SQLite {
			return x.ToTime().Format(series.DateLayout)
		}
		return x.ToTime()
	case bool:
		if d == SQLite {
			if x {
				return int64(1)
			}
			return int64(0)
		}
		return x
	default:
		return v
	}
}

// Literal renders a constant.
func (d Dialect) Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case arrow.Date32:
		return d.dateLiteral(x.ToTime())
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}

func (d Dialect) dateLiteral(t time.Time) string {
	s := "'" + t.Format(series.DateLayout) + "'"
	if d == SQLite {
		return s
	}
	return "DATE " + s
}
