package query_test

import (
	"testing"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/query"
	"github.com/paveg/rollup/internal/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallPlan() relation.Plan {
	return relation.Plan{
		LeftTable:    "loans",
		RightTable:   "repayments",
		LeftColumns:  []string{"loanId", "loanAmount"},
		RightColumns: []string{"loanId", "scheduleOrder", "status"},
		Join:         relation.JoinSpec{Key: "loanId"},
		Order:        []relation.OrderKey{relation.Asc("loanId"), relation.Asc("scheduleOrder")},
		GroupKey:     "loanId",
		Aggregations: []relation.Aggregation{
			relation.Agg("loanAmount", "loanAmount", relation.First),
			relation.Agg("scheduleOrder", "scheduleOrder", relation.Last),
			relation.Agg("payments", "scheduleOrder", relation.Count),
		},
	}
}

func TestTranslate(t *testing.T) {
	stmt, err := query.Translate(smallPlan())
	require.NoError(t, err)

	want := `WITH "joined" AS (
  SELECT "l"."loanId" AS "loanId", "l"."loanAmount" AS "loanAmount", "r"."scheduleOrder" AS "scheduleOrder", "r"."status" AS "status"
  FROM "loans" AS "l"
  LEFT JOIN "repayments" AS "r" ON "l"."loanId" = "r"."loanId"
),
"numbered" AS (
  SELECT *, ROW_NUMBER() OVER (PARTITION BY "loanId" ORDER BY "loanId" ASC NULLS LAST, "scheduleOrder" ASC NULLS LAST) AS "_rn", COUNT(*) OVER (PARTITION BY "loanId") AS "_n"
  FROM "joined"
),
"summary" AS (
  SELECT "loanId", MAX(CASE WHEN "_rn" = 1 THEN "loanAmount" END) AS "loanAmount", MAX(CASE WHEN "_rn" = "_n" THEN "scheduleOrder" END) AS "scheduleOrder", COUNT("scheduleOrder") AS "payments"
  FROM "numbered"
  GROUP BY "loanId"
)
SELECT "loanId", "loanAmount", "scheduleOrder", "payments"
FROM "summary"
ORDER BY "loanId" ASC NULLS LAST`
	assert.Equal(t, want, stmt.String())
}

func TestTranslateLoanRepaymentPlan(t *testing.T) {
	stmt, err := query.Translate(relation.LoanRepaymentPlan())
	require.NoError(t, err)
	sql := stmt.SQL(query.DuckDB)

	assert.Contains(t, sql, `LEFT JOIN "repayments" AS "r" ON "l"."loanId" = "r"."loanId"`)
	assert.Contains(t, sql, `"l"."status" AS "status_x"`)
	assert.Contains(t, sql, `"r"."status" AS "status_y"`)
	assert.Contains(t, sql, `MAX("repaidDate") AS "repaidDate"`)
	assert.Contains(t, sql, `SUM("totalPaymentWithinSchedule") AS "totalPaymentWithinSchedule"`)
	assert.Contains(t, sql, `MAX(CASE WHEN "_rn" = 1 THEN "loanAmount" END) AS "loanAmount"`)
	assert.Contains(t, sql, `MAX(CASE WHEN "_rn" = "_n" THEN "status_y" END) AS "status"`)
}

func TestTranslateInnerJoin(t *testing.T) {
	plan := smallPlan()
	plan.Join.Kind = relation.InnerJoin

	stmt, err := query.Translate(plan)
	require.NoError(t, err)
	assert.Contains(t, stmt.String(), `INNER JOIN "repayments" AS "r"`)
}

func TestTranslateWithoutFirstOrLast(t *testing.T) {
	plan := smallPlan()
	plan.Aggregations = []relation.Aggregation{relation.Agg("avgOrder", "scheduleOrder", relation.Mean)}

	stmt, err := query.Translate(plan)
	require.NoError(t, err)

	sql := stmt.String()
	assert.NotContains(t, sql, "ROW_NUMBER")
	assert.Contains(t, sql, `AVG("scheduleOrder") AS "avgOrder"`)
	assert.Contains(t, sql, `FROM "joined"`+"\n  GROUP BY")
}

func TestTranslateIsDeterministic(t *testing.T) {
	a, err := query.Translate(relation.LoanRepaymentPlan())
	require.NoError(t, err)
	b, err := query.Translate(relation.LoanRepaymentPlan())
	require.NoError(t, err)

	assert.Equal(t, a.String(), b.String())
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*relation.Plan)
		want   error
	}{
		{"no group key", func(p *relation.Plan) { p.GroupKey = "" }, errors.ErrInvalidInput},
		{"no columns", func(p *relation.Plan) { p.LeftColumns = nil }, errors.ErrInvalidInput},
		{"unknown reducer", func(p *relation.Plan) { p.Aggregations[0].Reducer = relation.Reducer(42) }, errors.ErrInvalidInput},
		{"absent join key", func(p *relation.Plan) { p.Join.Key = "status" }, errors.ErrJoinKey},
		{"absent order column", func(p *relation.Plan) { p.Order = []relation.OrderKey{relation.Asc("x")} }, errors.ErrColumnNotFound},
		{"absent reduced column", func(p *relation.Plan) { p.Aggregations[0].Column = "x" }, errors.ErrReducerMismatch},
		{"duplicate output", func(p *relation.Plan) { p.Aggregations[1].Output = "loanAmount" }, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := smallPlan()
			tt.modify(&plan)

			_, err := query.Translate(plan)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStageStatement(t *testing.T) {
	plan := smallPlan()

	tests := []struct {
		stage    string
		contains []string
		excludes []string
	}{
		{"select", []string{`SELECT "loanId", "loanAmount"` + "\n" + `FROM "loans"`}, []string{"JOIN"}},
		{"join", []string{"LEFT JOIN", `FROM "joined"`}, []string{"ORDER BY"}},
		{"order", []string{`ORDER BY "loanId" ASC NULLS LAST, "scheduleOrder" ASC NULLS LAST`}, []string{"GROUP BY"}},
		{"group", []string{`GROUP BY "loanId"`, `COUNT("loanId") AS "groupRows"`}, []string{"ROW_NUMBER"}},
		{"aggregate", []string{"ROW_NUMBER", `AS "payments"`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			s, err := query.ParseStage(tt.stage)
			require.NoError(t, err)
			assert.Equal(t, tt.stage, s.String())

			stmt, err := query.StageStatement(plan, s)
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.Contains(t, stmt.String(), c)
			}
			for _, c := range tt.excludes {
				assert.NotContains(t, stmt.String(), c)
			}
		})
	}

	_, err := query.ParseStage("having")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRowNumber(t *testing.T) {
	stmt, err := query.RowNumber("loans", []string{"loanId"}, "loanId",
		[]relation.OrderKey{relation.Desc("loanAmount")}, "rn")
	require.NoError(t, err)

	assert.Equal(t, `SELECT "loanId", ROW_NUMBER() OVER (PARTITION BY "loanId" ORDER BY "loanAmount" DESC NULLS LAST) AS "rn"`+
		"\n"+`FROM "loans"`, stmt.String())

	_, err = query.RowNumber("loans", []string{"rn"}, "loanId", nil, "rn")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestTopN(t *testing.T) {
	stmt, err := query.TopN("repayments", []string{"loanId", "scheduleOrder"}, "loanId",
		[]relation.OrderKey{relation.Desc("scheduleOrder")}, "rn", 2)
	require.NoError(t, err)

	sql := stmt.String()
	assert.Contains(t, sql, `WITH "ranked" AS (`)
	assert.Contains(t, sql, `WHERE "rn" <= 2`)
	assert.Contains(t, sql, `ORDER BY "loanId" ASC NULLS LAST, "rn" ASC NULLS LAST`)

	_, err = query.TopN("repayments", nil, "loanId", nil, "rn", 0)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
