// Package pipeline executes join, sort, group, and reduce over in-memory tables.
//
// Each stage is available as a function over *table.Table and through Frame,
// which implements relation.Relation so a relation.Plan can drive it.
package pipeline

import (
	"fmt"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/table"
)

// Run validates plan against both inputs and executes it, returning one
// summary row per distinct group key.
func Run(left, right *table.Table, plan relation.Plan, opts ...Option) (*table.Table, error) {
	if left == nil || right == nil {
		return nil, errors.NewInvalidInputError("Run", "nil input table")
	}
	if _, err := plan.Validate(left.Schema(), right.Schema()); err != nil {
		return nil, fmt.Errorf("validating plan: %w", err)
	}

	out, err := relation.Apply(NewFrame(left, opts...), NewFrame(right, opts...), plan)
	if err != nil {
		return nil, err
	}
	frame, ok := out.(*Frame)
	if !ok {
		return nil, errors.NewInternalError("Run", fmt.Errorf("unexpected relation %T", out))
	}
	return frame.Table(), nil
}
