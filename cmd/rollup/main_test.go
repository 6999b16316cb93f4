package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	rio "github.com/paveg/rollup/internal/io"
	"github.com/paveg/rollup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns what it wrote to stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeFixtures writes the loan and repayment fixtures as CSV files.
func writeFixtures(t *testing.T) (loans, repayments string) {
	t.Helper()
	dir := t.TempDir()
	mem := memory.NewGoAllocator()

	loans = filepath.Join(dir, "loans.csv")
	repayments = filepath.Join(dir, "repayments.csv")
	require.NoError(t, rio.WriteFile(loans, testutil.Release(t, testutil.Loans(mem))))
	require.NoError(t, rio.WriteFile(repayments, testutil.Release(t, testutil.Repayments(mem))))
	return loans, repayments
}

const leftSummary = `loanId,repaidDate,totalPaymentWithinSchedule,loanAmount,scheduleOrder,status
1,2021-02-01,80,100,2,late
2,2021-02-15,100,250,1,paid
3,,,50,,
`

func TestRunCommand(t *testing.T) {
	loans, repayments := writeFixtures(t)

	t.Run("left join to stdout", func(t *testing.T) {
		out, _, err := execute(t, "run", "--loans", loans, "--repayments", repayments)
		require.NoError(t, err)
		assert.Equal(t, leftSummary, out)
	})

	t.Run("inner join", func(t *testing.T) {
		out, _, err := execute(t, "run", "--loans", loans, "--repayments", repayments, "--join", "inner")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		assert.Len(t, lines, 3)
		assert.NotContains(t, out, "\n3,")
	})

	t.Run("output file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "summary.json")
		out, stderr, err := execute(t, "run", "--loans", loans, "--repayments", repayments, "-o", path, "--log-format", "json")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Contains(t, stderr, `"msg":"summary written"`)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"status":"late"`)
	})

	t.Run("inputs from environment", func(t *testing.T) {
		t.Setenv("ROLLUP_LOANS", loans)
		t.Setenv("ROLLUP_REPAYMENTS", repayments)
		out, _, err := execute(t, "run")
		require.NoError(t, err)
		assert.Equal(t, leftSummary, out)
	})

	t.Run("stats", func(t *testing.T) {
		out, stderr, err := execute(t, "run", "--loans", loans, "--repayments", repayments, "--stats", "--log-level", "error")
		require.NoError(t, err)
		assert.Equal(t, leftSummary, out)
		assert.Contains(t, stderr, "reduce")
		assert.Contains(t, stderr, "total")
	})

	t.Run("no repayments at all", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "repayments.csv")
		header := "scheduleOrder,totalPaymentWithinSchedule,repaidDate,loanId,status\n"
		require.NoError(t, os.WriteFile(empty, []byte(header), 0o600))

		out, _, err := execute(t, "run", "--loans", loans, "--repayments", empty)
		require.NoError(t, err)
		assert.Equal(t, `loanId,repaidDate,totalPaymentWithinSchedule,loanAmount,scheduleOrder,status
1,,,100,,
2,,,250,,
3,,,50,,
`, out)
	})

	t.Run("missing inputs", func(t *testing.T) {
		_, _, err := execute(t, "run", "--loans", loans)
		assert.ErrorIs(t, err, errMissingInputs)
	})

	t.Run("bad join kind", func(t *testing.T) {
		_, _, err := execute(t, "run", "--loans", loans, "--repayments", repayments, "--join", "outer")
		assert.Error(t, err)
	})
}

func TestExecMatchesRun(t *testing.T) {
	loans, repayments := writeFixtures(t)

	for _, join := range []string{"left", "inner"} {
		t.Run(join, func(t *testing.T) {
			want, _, err := execute(t, "run", "--loans", loans, "--repayments", repayments, "--join", join)
			require.NoError(t, err)

			got, _, err := execute(t, "exec", "--dialect", "sqlite",
				"--loans", loans, "--repayments", repayments, "--join", join)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSQLCommand(t *testing.T) {
	tests := []struct {
		args     []string
		contains []string
		excludes []string
	}{
		{
			args:     []string{"sql"},
			contains: []string{`WITH "joined" AS (`, "ROW_NUMBER()", `ORDER BY "loanId" ASC NULLS LAST;`},
		},
		{
			args:     []string{"sql", "--stage", "join", "--join", "inner"},
			contains: []string{`INNER JOIN "repayments" AS "r"`},
			excludes: []string{"ROW_NUMBER", "LEFT JOIN"},
		},
		{
			args:     []string{"sql", "--stage", "group", "--dialect", "duckdb"},
			contains: []string{`COUNT("loanId") AS "groupRows"`},
		},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}

	_, _, err := execute(t, "sql", "--stage", "having")
	assert.Error(t, err)
}

func TestHighlight(t *testing.T) {
	// Quoted identifiers that look like keywords are not keywords.
	sql := `SELECT "ORDER" FROM "t" WHERE "d" = 'LAST'`
	got := highlight(sql)

	assert.Contains(t, got, "SELECT")
	assert.Contains(t, got, `"ORDER"`)
	assert.Contains(t, got, `'LAST'`)
}

func TestLoadCommand(t *testing.T) {
	_, repayments := writeFixtures(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "rollup.db")

	out, _, err := execute(t, "load", "--dialect", "sqlite", "--dsn", dsn, "repayments", repayments)
	require.NoError(t, err)
	assert.Equal(t, "loaded 4 rows into repayments\n", out)

	_, _, err = execute(t, "load", "repayments")
	assert.Error(t, err)
}

func TestRankCommand(t *testing.T) {
	_, repayments := writeFixtures(t)

	t.Run("top 1 per loan", func(t *testing.T) {
		out, _, err := execute(t, "rank", "--order", "scheduleOrder", repayments)
		require.NoError(t, err)
		assert.Equal(t, `scheduleOrder,totalPaymentWithinSchedule,repaidDate,loanId,status,rn
1,50,2021-01-01,1,paid,1
1,100,2021-02-15,2,paid,1
1,10,2021-06-01,9,paid,1
`, out)
	})

	t.Run("all rows numbered", func(t *testing.T) {
		out, _, err := execute(t, "rank", "--order", "-scheduleOrder", "--top", "0", "--as", "n", repayments)
		require.NoError(t, err)
		assert.Equal(t, `scheduleOrder,totalPaymentWithinSchedule,repaidDate,loanId,status,n
2,30,2021-02-01,1,late,1
1,50,2021-01-01,1,paid,2
1,100,2021-02-15,2,paid,1
1,10,2021-06-01,9,paid,1
`, out)
	})

	t.Run("statement", func(t *testing.T) {
		out, _, err := execute(t, "rank", "--sql")
		require.NoError(t, err)
		assert.Contains(t, out, `ROW_NUMBER() OVER (PARTITION BY "loanId" ORDER BY "loanAmount" DESC NULLS LAST) AS "rn"`)
		assert.Contains(t, out, `FROM "loans"`)
		assert.Contains(t, out, `WHERE "rn" <= 1`)
	})

	t.Run("statement from file columns", func(t *testing.T) {
		out, _, err := execute(t, "rank", "--sql", "--top", "0", "--partition", "status", repayments)
		require.NoError(t, err)
		assert.Contains(t, out, `FROM "repayments"`)
		assert.NotContains(t, out, "WHERE")
	})

	t.Run("no input", func(t *testing.T) {
		_, _, err := execute(t, "rank")
		assert.ErrorIs(t, err, errMissingRankInput)
	})
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rollup")

	out, _, err = execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
}

func TestConfigFile(t *testing.T) {
	loans, repayments := writeFixtures(t)
	path := filepath.Join(t.TempDir(), "rollup.yaml")
	content := "pipeline:\n  join_kind: inner\n  loans: " + loans + "\n  repayments: " + repayments + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, _, err := execute(t, "run", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "\n3,")

	_, _, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
