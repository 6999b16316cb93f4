// Package relation defines the verbs shared by every table representation:
// project, join, sort, group, reduce, and head. A Relation is either an
// in-memory table or a statement under construction; callers choose which
// by constructing one or the other, and a Plan applies the same verbs to both.
package relation

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
)

// JoinKind selects which unmatched rows a join keeps.
type JoinKind int

const (
	// LeftJoin keeps every left row; unmatched right columns are null.
	LeftJoin JoinKind = iota
	// InnerJoin keeps only matched pairs.
	InnerJoin
)

func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "left"
	case InnerJoin:
		return "inner"
	default:
		return fmt.Sprintf("JoinKind(%d)", int(k))
	}
}

// ParseJoinKind maps "left" or "inner" onto a JoinKind.
func ParseJoinKind(s string) (JoinKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "left_join", "":
		return LeftJoin, nil
	case "inner", "inner_join":
		return InnerJoin, nil
	default:
		return 0, fmt.Errorf("unknown join kind %q", s)
	}
}

// Default suffixes for non-key columns present on both sides of a join.
const (
	DefaultLeftSuffix  = "_x"
	DefaultRightSuffix = "_y"
)

// JoinSpec describes an equi-join on a single key column.
type JoinSpec struct {
	Kind        JoinKind
	Key         string
	LeftSuffix  string
	RightSuffix string
	// UniqueLeft requires the key to be unique on the left side.
	UniqueLeft bool
}

// Suffixes returns the configured suffixes with defaults applied.
func (j JoinSpec) Suffixes() (string, string) {
	l, r := j.LeftSuffix, j.RightSuffix
	if l == "" {
		l = DefaultLeftSuffix
	}
	if r == "" {
		r = DefaultRightSuffix
	}
	return l, r
}

// OutputColumns returns the joined column names: left columns, then right
// columns without the key. Names present on both sides get suffixes.
// leftNames and rightNames map each output name back to its source column.
// A suffixed name that collides with another output column is an error.
func (j JoinSpec) OutputColumns(left, right []string) (out []string, leftNames, rightNames map[string]string, err error) {
	ls, rs := j.Suffixes()
	inLeft := make(map[string]bool, len(left))
	for _, c := range left {
		inLeft[c] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, c := range right {
		inRight[c] = true
	}

	leftNames = make(map[string]string, len(left))
	rightNames = make(map[string]string, len(right))
	add := func(name string) error {
		if _, dup := leftNames[name]; dup {
			return errors.NewInvalidInputError("Join", fmt.Sprintf("output column %q produced twice", name))
		}
		if _, dup := rightNames[name]; dup {
			return errors.NewInvalidInputError("Join", fmt.Sprintf("output column %q produced twice", name))
		}
		out = append(out, name)
		return nil
	}
	for _, c := range left {
		name := c
		if c != j.Key && inRight[c] {
			name = c + ls
		}
		if err := add(name); err != nil {
			return nil, nil, nil, err
		}
		leftNames[name] = c
	}
	for _, c := range right {
		if c == j.Key {
			continue
		}
		name := c
		if inLeft[c] {
			name = c + rs
		}
		if err := add(name); err != nil {
			return nil, nil, nil, err
		}
		rightNames[name] = c
	}
	return out, leftNames, rightNames, nil
}

// OrderKey is one sort key.
type OrderKey struct {
	Column     string
	Descending bool
}

// Asc and Desc build order keys.
func Asc(column string) OrderKey  { return OrderKey{Column: column} }
func Desc(column string) OrderKey { return OrderKey{Column: column, Descending: true} }

func (o OrderKey) String() string {
	if o.Descending {
		return o.Column + " desc"
	}
	return o.Column + " asc"
}

// Reducer collapses the values of one column within a group.
type Reducer int

const (
	Max Reducer = iota
	Min
	Sum
	Mean
	First
	Last
	Count
)

var reducerNames = map[Reducer]string{
	Max:   "max",
	Min:   "min",
	Sum:   "sum",
	Mean:  "mean",
	First: "first",
	Last:  "last",
	Count: "count",
}

func (r Reducer) String() string {
	if name, ok := reducerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reducer(%d)", int(r))
}

// ParseReducer maps a reducer name onto a Reducer.
func ParseReducer(s string) (Reducer, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range reducerNames {
		if name == s {
			return r, nil
		}
	}
	if s == "avg" {
		return Mean, nil
	}
	return 0, fmt.Errorf("unknown reducer %q", s)
}

// Accepts reports whether the reducer can be applied to a column of type dt.
func (r Reducer) Accepts(dt arrow.DataType) bool {
	switch r {
	case Sum, Mean:
		return dt.ID() == arrow.INT64 || dt.ID() == arrow.FLOAT64
	case Max, Min:
		switch dt.ID() {
		case arrow.INT64, arrow.FLOAT64, arrow.STRING, arrow.DATE32:
			return true
		}
		return false
	case First, Last, Count:
		return true
	default:
		return false
	}
}

// ResultType returns the type a reducer produces from an input of type dt.
func (r Reducer) ResultType(dt arrow.DataType) arrow.DataType {
	switch r {
	case Mean:
		return arrow.PrimitiveTypes.Float64
	case Count:
		return arrow.PrimitiveTypes.Int64
	default:
		return dt
	}
}

// Aggregation produces the output column Output by reducing Column.
type Aggregation struct {
	Output  string
	Column  string
	Reducer Reducer
}

// Agg builds an Aggregation.
func Agg(output, column string, reducer Reducer) Aggregation {
	return Aggregation{Output: output, Column: column, Reducer: reducer}
}

func (a Aggregation) String() string {
	return fmt.Sprintf("%s=%s(%s)", a.Output, a.Reducer, a.Column)
}

// Relation is the verb set both table representations implement.
// Every verb returns a new Relation and leaves the receiver unchanged.
type Relation interface {
	// Columns returns the column names in order.
	Columns() []string
	Project(columns ...string) (Relation, error)
	Join(right Relation, spec JoinSpec) (Relation, error)
	Sort(keys ...OrderKey) (Relation, error)
	GroupBy(key string) (Grouped, error)
	Head(n int) (Relation, error)
}

// Grouped is a Relation partitioned by a key, awaiting reduction.
type Grouped interface {
	Key() string
	Reduce(aggs ...Aggregation) (Relation, error)
}

// Releaser is implemented by relations that hold memory of their own.
type Releaser interface {
	Release()
}

func release(v any) {
	if r, ok := v.(Releaser); ok {
		r.Release()
	}
}
