package io

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/errors"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repaymentsCSV = `,scheduleOrder,totalPaymentWithinSchedule,repaidDate,loanId,status,autopay
0,1,50.0,2021-01-01,1,PAID,true
1,2,30.5,2021-02-01,1,PAID,false
2,1,,,2,DUE,
`

func TestCSVReader_InfersTypesAndNulls(t *testing.T) {
	mem := memory.NewGoAllocator()
	reader := NewCSVReader(strings.NewReader(repaymentsCSV), DefaultCSVOptions(), mem)

	tbl, err := reader.Read()
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t,
		[]string{"scheduleOrder", "totalPaymentWithinSchedule", "repaidDate", "loanId", "status", "autopay"},
		tbl.Columns(), "unnamed index column is dropped")
	assert.Equal(t, 3, tbl.Len())

	types := map[string]arrow.Type{}
	for _, f := range tbl.Schema().Fields() {
		types[f.Name] = f.Type.ID()
	}
	assert.Equal(t, arrow.INT64, types["scheduleOrder"])
	assert.Equal(t, arrow.FLOAT64, types["totalPaymentWithinSchedule"])
	assert.Equal(t, arrow.DATE32, types["repaidDate"])
	assert.Equal(t, arrow.STRING, types["status"])
	assert.Equal(t, arrow.BOOL, types["autopay"])

	row := tbl.Row(2)
	assert.Nil(t, row["totalPaymentWithinSchedule"])
	assert.Nil(t, row["repaidDate"])
	assert.Nil(t, row["autopay"])
	assert.Equal(t, series.Date(2021, 2, 1), tbl.Row(1)["repaidDate"])
}

func TestCSVReader_NoHeader(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.Header = false
	reader := NewCSVReader(strings.NewReader("1,a\n2,b\n"), opts, nil)

	tbl, err := reader.Read()
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, []string{"column_0", "column_1"}, tbl.Columns())
}

func TestCSVReader_EmptyAndHeaderOnly(t *testing.T) {
	tbl, err := NewCSVReader(strings.NewReader(""), DefaultCSVOptions(), nil).Read()
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Width())

	tbl, err = NewCSVReader(strings.NewReader("loanId,status\n"), DefaultCSVOptions(), nil).Read()
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, []string{"loanId", "status"}, tbl.Columns())
	assert.Equal(t, 0, tbl.Len())
}

func TestCSVReader_ColumnTypesForAllNullColumns(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.ColumnTypes = map[string]arrow.DataType{
		"loanId":     arrow.PrimitiveTypes.Int64,
		"amount":     arrow.PrimitiveTypes.Float64,
		"repaidDate": arrow.FixedWidthTypes.Date32,
		"status":     arrow.PrimitiveTypes.Int64,
	}

	tests := []struct {
		name  string
		input string
		rows  int
		want  map[string]arrow.Type
	}{
		{
			name:  "header only",
			input: "loanId,amount,repaidDate,note\n",
			want: map[string]arrow.Type{
				"loanId": arrow.INT64, "amount": arrow.FLOAT64, "repaidDate": arrow.DATE32, "note": arrow.STRING,
			},
		},
		{
			name:  "blank column",
			input: "loanId,amount,status\n1,,paid\n2,NA,due\n",
			rows:  2,
			want:  map[string]arrow.Type{"loanId": arrow.INT64, "amount": arrow.FLOAT64, "status": arrow.STRING},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := NewCSVReader(strings.NewReader(tt.input), opts, nil).Read()
			require.NoError(t, err)
			defer tbl.Release()

			assert.Equal(t, tt.rows, tbl.Len())
			got := map[string]arrow.Type{}
			for _, f := range tbl.Schema().Fields() {
				got[f.Name] = f.Type.ID()
			}
			assert.Equal(t, tt.want, got, "values win over declared types")
		})
	}
}

func TestLoad_SchemaError(t *testing.T) {
	reader := NewCSVReader(strings.NewReader(repaymentsCSV), DefaultCSVOptions(), nil)

	_, err := Load(reader, "loanId", "customerId")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSchema)
	assert.Contains(t, err.Error(), "customerId")
}

func TestCSVWriter_RoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	amount, err := series.NewNullable("amount", []float64{1.5, 0}, []bool{true, false}, mem)
	require.NoError(t, err)
	src := table.New(series.New("loanId", []int64{1, 2}, mem), amount)
	defer src.Release()

	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(&buf, DefaultCSVOptions()).Write(src))
	assert.Equal(t, "loanId,amount\n1,1.5\n2,\n", buf.String())

	back, err := NewCSVReader(&buf, DefaultCSVOptions(), mem).Read()
	require.NoError(t, err)
	defer back.Release()
	assert.Equal(t, table.Row{"loanId": int64(2), "amount": nil}, back.Row(1))
}
