package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/relation"
)

// Translate renders a plan as one statement whose result rows equal the
// in-memory pipeline's summary rows, ordered by the group key.
//
// The plan must list the columns of both tables; a statement cannot expand
// a wildcard without knowing the schema.
func Translate(plan relation.Plan) (*SelectStatement, error) {
	b, err := stage(plan, StageAggregate)
	if err != nil {
		return nil, err
	}
	return b.Statement(), nil
}

// Stage names one step of the pipeline statement.
type Stage int

const (
	StageSelect Stage = iota
	StageJoin
	StageOrder
	StageGroup
	StageAggregate
)

var stageNames = []string{"select", "join", "order", "group", "aggregate"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseStage maps a stage name onto a Stage.
func ParseStage(s string) (Stage, error) {
	i := slices.Index(stageNames, strings.ToLower(strings.TrimSpace(s)))
	if i < 0 {
		return 0, errors.NewInvalidInputError("ParseStage",
			fmt.Sprintf("unknown stage %q, want one of %s", s, strings.Join(stageNames, ", ")))
	}
	return Stage(i), nil
}

// StageStatement renders the plan up to and including stage. The group
// stage reports the row count of each group.
func StageStatement(plan relation.Plan, s Stage) (*SelectStatement, error) {
	b, err := stage(plan, s)
	if err != nil {
		return nil, err
	}
	return b.Statement(), nil
}

// GroupRowsColumn holds the row count of each group in the group stage.
const GroupRowsColumn = "groupRows"

func stage(plan relation.Plan, s Stage) (*Builder, error) {
	if err := checkPlan(plan); err != nil {
		return nil, err
	}

	var rel relation.Relation = NewBuilder(plan.LeftTable, plan.LeftColumns...)
	if s == StageSelect {
		return rel.(*Builder), nil
	}
	if s == StageAggregate {
		out, err := relation.Apply(rel, NewBuilder(plan.RightTable, plan.RightColumns...), plan)
		if err != nil {
			return nil, err
		}
		return out.(*Builder), nil
	}

	rel, err := rel.Join(NewBuilder(plan.RightTable, plan.RightColumns...), plan.Join)
	if err != nil {
		return nil, err
	}
	if s == StageJoin {
		return rel.(*Builder), nil
	}
	if len(plan.Order) > 0 {
		if rel, err = rel.Sort(plan.Order...); err != nil {
			return nil, err
		}
	}
	if s == StageOrder {
		return rel.(*Builder), nil
	}

	grouped, err := rel.GroupBy(plan.GroupKey)
	if err != nil {
		return nil, err
	}
	rel, err = grouped.Reduce(relation.Agg(GroupRowsColumn, plan.GroupKey, relation.Count))
	if err != nil {
		return nil, err
	}
	return rel.(*Builder), nil
}

func checkPlan(plan relation.Plan) error {
	switch {
	case plan.LeftTable == "" || plan.RightTable == "":
		return errors.NewInvalidInputError("Translate", "both table names are required")
	case len(plan.LeftColumns) == 0 || len(plan.RightColumns) == 0:
		return errors.NewInvalidInputError("Translate", "both column lists are required")
	case plan.GroupKey == "":
		return errors.NewInvalidInputError("Translate", "no group key")
	}
	for _, agg := range plan.Aggregations {
		if _, err := relation.ParseReducer(agg.Reducer.String()); err != nil {
			return errors.NewInvalidInputError("Translate", "unknown reducer "+agg.Reducer.String())
		}
	}
	return nil
}

// RowNumber numbers the rows of each partition of table in keys order:
//
//	SELECT columns..., ROW_NUMBER() OVER (PARTITION BY partition ORDER BY keys...) AS alias FROM table
func RowNumber(table string, columns []string, partition string, keys []relation.OrderKey, alias string) (*SelectStatement, error) {
	if table == "" || partition == "" || alias == "" {
		return nil, errors.NewInvalidInputError("RowNumber", "table, partition, and alias are required")
	}
	if slices.Contains(columns, alias) {
		return nil, errors.NewInvalidInputError("RowNumber", fmt.Sprintf("column %q already exists", alias))
	}

	items := make([]SelectItem, 0, len(columns)+1)
	for _, c := range columns {
		items = append(items, SelectItem{Expr: Col(c)})
	}
	items = append(items, SelectItem{Expr: rowNumber(partition, keys), Alias: alias})
	return &SelectStatement{
		SelectList: items,
		From:       TableRef{Name: table},
	}, nil
}

// TopN keeps the first n rows of every partition, ordered by partition and rank.
func TopN(table string, columns []string, partition string, keys []relation.OrderKey, alias string, n int) (*SelectStatement, error) {
	if n < 1 {
		return nil, errors.NewInvalidInputError("TopN", fmt.Sprintf("n must be positive, got %d", n))
	}
	ranked, err := RowNumber(table, columns, partition, keys, alias)
	if err != nil {
		return nil, err
	}

	items := make([]SelectItem, 0, len(columns)+1)
	for _, c := range append(slices.Clone(columns), alias) {
		items = append(items, SelectItem{Expr: Col(c)})
	}
	return &SelectStatement{
		With:       []CTE{{Name: "ranked", Query: ranked}},
		SelectList: items,
		From:       TableRef{Name: "ranked"},
		Where:      Comparison{Left: Col(alias), Op: "<=", Right: Literal{Value: n}},
		OrderBy:    orderItems([]relation.OrderKey{relation.Asc(partition), relation.Asc(alias)}),
	}, nil
}
