package query_test

import (
	"testing"

	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/query"
	"github.com/paveg/rollup/internal/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderHead(t *testing.T) {
	rel, err := query.NewBuilder("loans", "loanId", "loanAmount").Head(2)
	require.NoError(t, err)

	assert.Equal(t, "SELECT \"loanId\", \"loanAmount\"\nFROM \"loans\"\nLIMIT 2", rel.(*query.Builder).Statement().String())

	rel, err = rel.Head(5)
	require.NoError(t, err)
	assert.Contains(t, rel.(*query.Builder).Statement().String(), "LIMIT 2")
}

func TestBuilderSortAfterHeadMaterializes(t *testing.T) {
	var rel relation.Relation = query.NewBuilder("loans", "loanId", "loanAmount")
	rel, err := rel.Head(2)
	require.NoError(t, err)
	rel, err = rel.Sort(relation.Desc("loanAmount"))
	require.NoError(t, err)

	want := `WITH "head" AS (
  SELECT "loanId", "loanAmount"
  FROM "loans"
  LIMIT 2
)
SELECT "loanId", "loanAmount"
FROM "head"
ORDER BY "loanAmount" DESC NULLS LAST`
	assert.Equal(t, want, rel.(*query.Builder).Statement().String())
}

func TestBuilderIsImmutable(t *testing.T) {
	base := query.NewBuilder("loans", "loanId", "loanAmount")
	before := base.Statement().String()

	_, err := base.Sort(relation.Asc("loanAmount"))
	require.NoError(t, err)
	_, err = base.Project("loanId")
	require.NoError(t, err)

	assert.Equal(t, before, base.Statement().String())
	assert.Equal(t, []string{"loanId", "loanAmount"}, base.Columns())
}

func TestBuilderErrors(t *testing.T) {
	b := query.NewBuilder("loans", "loanId", "loanAmount")

	_, err := b.Project("missing")
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)

	_, err = b.Project("loanId", "loanId")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = b.Sort()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = b.GroupBy("missing")
	assert.ErrorIs(t, err, errors.ErrColumnNotFound)

	_, err = b.Head(-1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = b.Join(notBuilder{}, relation.JoinSpec{Key: "loanId"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	grouped, err := query.NewBuilder("t", "k", "_rn").GroupBy("k")
	require.NoError(t, err)
	_, err = grouped.Reduce(relation.Agg("v", "_rn", relation.First))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestBuilderJoinRejectsSuffixCollision(t *testing.T) {
	left := query.NewBuilder("l", "id", "a", "a_y")
	right := query.NewBuilder("r", "id", "a")

	_, err := left.Join(right, relation.JoinSpec{Key: "id"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = query.Translate(relation.Plan{
		LeftTable: "l", RightTable: "r",
		LeftColumns: []string{"id", "a", "a_y"}, RightColumns: []string{"id", "a"},
		Join:     relation.JoinSpec{Key: "id"},
		Order:    []relation.OrderKey{relation.Asc("id")},
		GroupKey: "id",
	})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

// notBuilder is a Relation that is not a statement builder.
type notBuilder struct{ relation.Relation }

func TestDialects(t *testing.T) {
	for _, name := range []string{"postgres", "sqlite", "duckdb"} {
		d, err := query.ParseDialect(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.String())
		assert.Equal(t, name, d.DriverName())
	}

	_, err := query.ParseDialect("oracle")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	assert.Equal(t, "$2", query.Postgres.Placeholder(2))
	assert.Equal(t, "?", query.SQLite.Placeholder(2))
	assert.Equal(t, `"a""b"`, query.DuckDB.QuoteIdent(`a"b`))
	assert.Equal(t, "'it''s'", query.Postgres.Literal("it's"))
	assert.Equal(t, "NULL", query.SQLite.Literal(nil))
}
