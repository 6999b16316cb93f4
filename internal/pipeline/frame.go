package pipeline

import (
	"io"
	"time"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/monitoring"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
	"github.com/sirupsen/logrus"
)

// Frame is the in-memory Relation. Every verb executes immediately and
// returns a new Frame over a new table. A Frame returned by a verb owns its
// table; Release frees it.
type Frame struct {
	table   *table.Table
	owned   bool
	log     logrus.FieldLogger
	metrics *monitoring.Collector
}

// Option configures a Frame.
type Option func(*Frame)

// WithLogger sets the logger that receives per-stage row counts at debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Frame) {
		if log != nil {
			f.log = log
		}
	}
}

// WithMetrics records the duration and row count of every stage in c.
func WithMetrics(c *monitoring.Collector) Option {
	return func(f *Frame) {
		f.metrics = c
	}
}

// NewFrame wraps t. The frame does not take ownership of t.
func NewFrame(t *table.Table, opts ...Option) *Frame {
	f := &Frame{table: t, log: discardLogger()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (f *Frame) derive(t *table.Table, stage string, start time.Time) *Frame {
	f.metrics.Since(stage, t.Len(), start)
	f.log.WithFields(logrus.Fields{
		"stage":   stage,
		"rows":    t.Len(),
		"columns": t.Width(),
	}).Debug("stage complete")
	return &Frame{table: t, owned: true, log: f.log, metrics: f.metrics}
}

// Release frees the table of a frame produced by a verb. Frames made by
// NewFrame leave their table to the caller.
func (f *Frame) Release() {
	if f.owned {
		f.table.Release()
	}
}

// Table returns the frame's table.
func (f *Frame) Table() *table.Table {
	return f.table
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return f.table.Columns()
}

// Project keeps exactly the named columns.
func (f *Frame) Project(columns ...string) (relation.Relation, error) {
	start := time.Now()
	t, err := f.table.Project(columns...)
	if err != nil {
		return nil, err
	}
	return f.derive(t, "project", start), nil
}

// Join joins f with another Frame.
func (f *Frame) Join(right relation.Relation, spec relation.JoinSpec) (relation.Relation, error) {
	start := time.Now()
	other, ok := right.(*Frame)
	if !ok {
		return nil, errors.NewInvalidInputError("Join", "an in-memory frame joins only another in-memory frame")
	}
	t, err := Join(f.table, other.table, spec)
	if err != nil {
		return nil, err
	}
	return f.derive(t, "join", start), nil
}

// Sort orders the rows by keys, stably.
func (f *Frame) Sort(keys ...relation.OrderKey) (relation.Relation, error) {
	start := time.Now()
	t, err := Sort(f.table, keys...)
	if err != nil {
		return nil, err
	}
	return f.derive(t, "sort", start), nil
}

// GroupBy partitions the rows by key. Input that is not already ordered by
// key is first sorted by key, stably, so every key forms exactly one group.
func (f *Frame) GroupBy(key string) (relation.Grouped, error) {
	start := time.Now()
	ordered, err := isGroupedBy(f.table, key)
	if err != nil {
		return nil, err
	}
	t := f.table
	if !ordered {
		if t, err = Sort(t, relation.Asc(key)); err != nil {
			return nil, err
		}
	}
	groups, err := Partition(t, key)
	if err != nil {
		if !ordered {
			t.Release()
		}
		return nil, err
	}
	f.metrics.Since("group", len(groups), start)
	f.log.WithFields(logrus.Fields{"stage": "group", "key": key, "groups": len(groups)}).Debug("stage complete")
	return &groupedFrame{frame: f, table: t, sorted: !ordered, key: key, groups: groups}, nil
}

// Head keeps the first n rows.
func (f *Frame) Head(n int) (relation.Relation, error) {
	start := time.Now()
	t, err := f.table.Head(n)
	if err != nil {
		return nil, err
	}
	return f.derive(t, "head", start), nil
}

type groupedFrame struct {
	frame  *Frame
	table  *table.Table
	sorted bool // table was sorted by GroupBy and belongs to the grouping
	key    string
	groups []Group
}

// Release frees the table GroupBy sorted, if any.
func (g *groupedFrame) Release() {
	if g.sorted {
		g.table.Release()
	}
}

func (g *groupedFrame) Key() string {
	return g.key
}

// Groups returns the contiguous row runs, one per distinct key.
func (g *groupedFrame) Groups() []Group {
	return g.groups
}

func (g *groupedFrame) Reduce(aggs ...relation.Aggregation) (relation.Relation, error) {
	start := time.Now()
	t, err := Reduce(g.table, g.key, g.groups, aggs...)
	if err != nil {
		return nil, err
	}
	return g.frame.derive(t, "reduce", start), nil
}
