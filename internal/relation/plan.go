package relation

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/rollup/internal/errors"
)

// Plan is the full join-sort-group-reduce computation over two tables.
type Plan struct {
	LeftTable    string
	RightTable   string
	LeftColumns  []string
	RightColumns []string
	Join         JoinSpec
	Order        []OrderKey
	GroupKey     string
	Aggregations []Aggregation
}

// LoanColumns are the loan attributes the pipeline reads.
var LoanColumns = []string{
	"loanId",
	"loanAmount",
	"loanType",
	"lateFees",
	"interestSavings",
	"addStatementFee",
	"disbursedOverpaidAmount",
	"repaymentDate",
	"status",
	"disbursementDate",
	"duration",
	"interestRate",
	"customerId",
}

// RepaymentColumns are the repayment attributes the pipeline reads.
var RepaymentColumns = []string{"scheduleOrder", "totalPaymentWithinSchedule", "repaidDate", "loanId", "status"}

// ColumnTypes are the types of the loan and repayment attributes. Readers use
// them for columns that carry no value to infer a type from.
var ColumnTypes = map[string]arrow.DataType{
	"loanId":                     arrow.PrimitiveTypes.Int64,
	"loanAmount":                 arrow.PrimitiveTypes.Float64,
	"loanType":                   arrow.BinaryTypes.String,
	"lateFees":                   arrow.PrimitiveTypes.Float64,
	"interestSavings":            arrow.PrimitiveTypes.Float64,
	"addStatementFee":            arrow.PrimitiveTypes.Float64,
	"disbursedOverpaidAmount":    arrow.PrimitiveTypes.Float64,
	"repaymentDate":              arrow.FixedWidthTypes.Date32,
	"status":                     arrow.BinaryTypes.String,
	"disbursementDate":           arrow.FixedWidthTypes.Date32,
	"duration":                   arrow.PrimitiveTypes.Int64,
	"interestRate":               arrow.PrimitiveTypes.Float64,
	"customerId":                 arrow.PrimitiveTypes.Int64,
	"scheduleOrder":              arrow.PrimitiveTypes.Int64,
	"totalPaymentWithinSchedule": arrow.PrimitiveTypes.Float64,
	"repaidDate":                 arrow.FixedWidthTypes.Date32,
}

// LoanRepaymentPlan returns the loan/repayment summary: a left join on loanId,
// ordered by loanId then scheduleOrder, one row per loan.
func LoanRepaymentPlan() Plan {
	return Plan{
		LeftTable:    "loans",
		RightTable:   "repayments",
		LeftColumns:  append([]string{}, LoanColumns...),
		RightColumns: append([]string{}, RepaymentColumns...),
		Join: JoinSpec{
			Kind:       LeftJoin,
			Key:        "loanId",
			UniqueLeft: true,
		},
		Order:    []OrderKey{Asc("loanId"), Asc("scheduleOrder")},
		GroupKey: "loanId",
		Aggregations: []Aggregation{
			Agg("repaidDate", "repaidDate", Max),
			Agg("totalPaymentWithinSchedule", "totalPaymentWithinSchedule", Sum),
			Agg("loanAmount", "loanAmount", First),
			Agg("scheduleOrder", "scheduleOrder", Last),
			Agg("status", "status"+DefaultRightSuffix, Last),
		},
	}
}

// Validate checks the plan against the schemas of its two inputs and returns
// the schema of the summary it produces. Nothing is computed.
func (p Plan) Validate(left, right *arrow.Schema) (*arrow.Schema, error) {
	leftCols := p.LeftColumns
	if len(leftCols) == 0 {
		leftCols = fieldNames(left)
	}
	rightCols := p.RightColumns
	if len(rightCols) == 0 {
		rightCols = fieldNames(right)
	}

	types := make(map[string]arrow.DataType)
	if err := collectTypes(left, leftCols, types); err != nil {
		return nil, err
	}
	rightTypes := make(map[string]arrow.DataType)
	if err := collectTypes(right, rightCols, rightTypes); err != nil {
		return nil, err
	}

	if _, ok := types[p.Join.Key]; !ok || p.Join.Key == "" {
		return nil, errors.NewJoinKeyError("Join", p.Join.Key, "key is absent from left input")
	}
	if _, ok := rightTypes[p.Join.Key]; !ok {
		return nil, errors.NewJoinKeyError("Join", p.Join.Key, "key is absent from right input")
	}
	if !joinable(types[p.Join.Key]) {
		return nil, errors.NewJoinKeyError("Join", p.Join.Key, "key type "+types[p.Join.Key].String()+" is not joinable")
	}
	if !arrow.TypeEqual(types[p.Join.Key], rightTypes[p.Join.Key]) {
		return nil, errors.NewJoinKeyError("Join", p.Join.Key,
			fmt.Sprintf("key types differ: %s vs %s", types[p.Join.Key], rightTypes[p.Join.Key]))
	}

	joined, leftNames, rightNames, err := p.Join.OutputColumns(leftCols, rightCols)
	if err != nil {
		return nil, err
	}
	joinedTypes := make(map[string]arrow.DataType, len(joined))
	for _, name := range joined {
		if src, ok := leftNames[name]; ok {
			joinedTypes[name] = types[src]
		} else {
			joinedTypes[name] = rightTypes[rightNames[name]]
		}
	}

	for _, key := range p.Order {
		if _, ok := joinedTypes[key.Column]; !ok {
			return nil, errors.NewColumnNotFoundError("Sort", key.Column)
		}
	}
	keyType, ok := joinedTypes[p.GroupKey]
	if !ok {
		return nil, errors.NewColumnNotFoundError("GroupBy", p.GroupKey)
	}

	fields := []arrow.Field{{Name: p.GroupKey, Type: keyType, Nullable: true}}
	outputs := map[string]bool{p.GroupKey: true}
	for _, agg := range p.Aggregations {
		dt, err := CheckAggregation(agg, joinedTypes)
		if err != nil {
			return nil, err
		}
		if outputs[agg.Output] {
			return nil, errors.NewInvalidInputError("Reduce", fmt.Sprintf("output column %q defined twice", agg.Output))
		}
		outputs[agg.Output] = true
		fields = append(fields, arrow.Field{Name: agg.Output, Type: dt, Nullable: true})
	}

	return arrow.NewSchema(fields, nil), nil
}

// CheckAggregation validates one aggregation against column types and returns its result type.
func CheckAggregation(agg Aggregation, types map[string]arrow.DataType) (arrow.DataType, error) {
	if agg.Output == "" {
		return nil, errors.NewInvalidInputError("Reduce", "aggregation without output name")
	}
	if _, known := reducerNames[agg.Reducer]; !known {
		return nil, errors.NewReducerMismatchError("Reduce", agg.Column, "unknown reducer "+agg.Reducer.String())
	}
	dt, ok := types[agg.Column]
	if !ok {
		return nil, errors.NewReducerMismatchError("Reduce", agg.Column,
			fmt.Sprintf("%s references a column absent from the joined schema", agg.Reducer))
	}
	if !agg.Reducer.Accepts(dt) {
		return nil, errors.NewReducerMismatchError("Reduce", agg.Column,
			fmt.Sprintf("%s cannot reduce a %s column", agg.Reducer, dt))
	}
	return agg.Reducer.ResultType(dt), nil
}

// String renders the plan as a verb chain.
func (p Plan) String() string {
	order := make([]string, len(p.Order))
	for i, k := range p.Order {
		order[i] = k.String()
	}
	aggs := make([]string, len(p.Aggregations))
	for i, a := range p.Aggregations {
		aggs[i] = a.String()
	}
	return fmt.Sprintf("%s %s join %s on %s | sort %s | group %s | reduce %s",
		p.LeftTable, p.Join.Kind, p.RightTable, p.Join.Key,
		strings.Join(order, ", "), p.GroupKey, strings.Join(aggs, ", "))
}

// Apply runs the plan's verbs on two relations in fixed order:
// project, join, sort, group, reduce. An empty Order skips the sort; groups
// then keep the joined row order. Intermediate relations that implement
// Releaser are released before Apply returns; left and right are not.
func Apply(left, right Relation, p Plan) (Relation, error) {
	var err error
	if len(p.LeftColumns) > 0 {
		if left, err = left.Project(p.LeftColumns...); err != nil {
			return nil, fmt.Errorf("projecting %s: %w", p.LeftTable, err)
		}
		defer release(left)
	}
	if len(p.RightColumns) > 0 {
		if right, err = right.Project(p.RightColumns...); err != nil {
			return nil, fmt.Errorf("projecting %s: %w", p.RightTable, err)
		}
		defer release(right)
	}

	current, err := left.Join(right, p.Join)
	if err != nil {
		return nil, err
	}
	defer release(current)

	if len(p.Order) > 0 {
		if current, err = current.Sort(p.Order...); err != nil {
			return nil, err
		}
		defer release(current)
	}

	grouped, err := current.GroupBy(p.GroupKey)
	if err != nil {
		return nil, err
	}
	defer release(grouped)
	return grouped.Reduce(p.Aggregations...)
}

func fieldNames(s *arrow.Schema) []string {
	names := make([]string, 0, s.NumFields())
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	return names
}

func collectTypes(s *arrow.Schema, cols []string, into map[string]arrow.DataType) error {
	for _, c := range cols {
		idx := s.FieldIndices(c)
		if len(idx) == 0 {
			return errors.NewSchemaError("Validate", c)
		}
		into[c] = s.Field(idx[0]).Type
	}
	return nil
}

func joinable(dt arrow.DataType) bool {
	//nolint:exhaustive // Only key-capable types
	switch dt.ID() {
	case arrow.INT64, arrow.STRING, arrow.DATE32, arrow.BOOL:
		return true
	default:
		return false
	}
}
