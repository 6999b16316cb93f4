package io

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/series"
	"github.com/paveg/rollup/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	dates, err := series.NewNullable("repaidDate",
		[]arrow.Date32{series.Date(2021, 1, 1), 0}, []bool{true, false}, mem)
	require.NoError(t, err)

	src := table.New(
		series.New("loanId", []int64{1, 2}, mem),
		series.New("status", []string{"PAID", "DUE"}, mem),
		series.New("amount", []float64{50, 30.25}, mem),
		dates,
	)
	defer src.Release()

	var buf bytes.Buffer
	for _, compression := range []string{"snappy", "uncompressed"} {
		t.Run(compression, func(t *testing.T) {
			buf.Reset()
			opts := DefaultParquetOptions()
			opts.Compression = compression
			require.NoError(t, NewParquetWriter(&buf, opts).Write(src))

			back, err := NewParquetReader(bytes.NewReader(buf.Bytes()), DefaultParquetOptions(), mem).Read()
			require.NoError(t, err)
			defer back.Release()

			assert.Equal(t, src.Columns(), back.Columns())
			assert.Equal(t, 2, back.Len())
			for i := range src.Len() {
				assert.Equal(t, src.Row(i), back.Row(i))
			}
		})
	}
}
