// Package store runs translated statements on a database.
//
// A Session is an explicit, scoped connection: callers open one, pass it to
// whatever needs it, and close it. There is no package-level connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/monitoring"
	"github.com/paveg/rollup/internal/query"
	"github.com/sirupsen/logrus"

	// Database drivers, selected by dialect.
	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"
)

const (
	defaultMaxOpenConns    = 4
	defaultConnMaxLifetime = time.Hour
)

// Options configures a Session.
type Options struct {
	Dialect query.Dialect
	// DSN is passed to the driver as given. Empty opens an in-memory
	// database for sqlite and duckdb.
	DSN          string
	MaxOpenConns int
	// ApplicationName is reported to postgres servers unless the DSN names one.
	ApplicationName string
	Logger          logrus.FieldLogger
	// Metrics, when set, receives one record per loaded table and per query.
	Metrics *monitoring.Collector
}

// Session is an open database connection pool bound to one dialect.
type Session struct {
	db      *sql.DB
	dialect query.Dialect
	log     logrus.FieldLogger
	metrics *monitoring.Collector
}

// Open connects and pings the database.
func Open(ctx context.Context, opts Options) (*Session, error) {
	dsn := opts.DSN
	if dsn == "" {
		switch opts.Dialect {
		case query.SQLite:
			dsn = ":memory:"
		case query.DuckDB:
		default:
			return nil, errors.NewInvalidInputError("Open", "a DSN is required for "+opts.Dialect.String())
		}
	}

	if opts.Dialect == query.Postgres && opts.ApplicationName != "" {
		dsn = withApplicationName(dsn, opts.ApplicationName)
	}

	db, err := sql.Open(opts.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", opts.Dialect, err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	if opts.Dialect == query.SQLite && strings.Contains(dsn, ":memory:") {
		// Every sqlite connection to :memory: is a separate database.
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", opts.Dialect, err)
	}

	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	log = log.WithField("dialect", opts.Dialect.String())
	log.Debug("session opened")

	return &Session{db: db, dialect: opts.Dialect, log: log, metrics: opts.Metrics}, nil
}

// withApplicationName adds application_name to a postgres DSN in either the
// URL or the key=value form.
func withApplicationName(dsn, name string) string {
	if strings.Contains(dsn, "application_name") {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		q.Set("application_name", name)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn + " application_name=" + name)
}

// WithSession opens a session, runs fn, and closes the session whatever fn returns.
func WithSession(ctx context.Context, opts Options, fn func(*Session) error) (err error) {
	s, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// Dialect returns the dialect statements are rendered in.
func (s *Session) Dialect() query.Dialect {
	return s.dialect
}

// Close releases the connection pool.
func (s *Session) Close() error {
	s.log.Debug("session closed")
	return s.db.Close()
}
