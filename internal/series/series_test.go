package series

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("int64 series", func(t *testing.T) {
		s := New("loanId", []int64{1, 2, 3}, mem)
		defer s.Release()

		assert.Equal(t, "loanId", s.Name())
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, []int64{1, 2, 3}, s.Values())
		assert.Equal(t, arrow.PrimitiveTypes.Int64, s.DataType())
	})

	t.Run("string series", func(t *testing.T) {
		s := New("status", []string{"PAID", "DUE"}, mem)
		defer s.Release()

		assert.Equal(t, []string{"PAID", "DUE"}, s.Values())
		assert.Equal(t, "DUE", s.GetAsString(1))
	})

	t.Run("date series", func(t *testing.T) {
		s := New("repaidDate", []arrow.Date32{Date(2021, time.January, 1)}, mem)
		defer s.Release()

		assert.Equal(t, "2021-01-01", s.GetAsString(0))
		assert.Equal(t, arrow.FixedWidthTypes.Date32, s.DataType())
	})

	t.Run("empty series", func(t *testing.T) {
		s := New("empty", []float64{}, mem)
		defer s.Release()

		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.Values())
	})
}

func TestNewNullable(t *testing.T) {
	mem := memory.NewGoAllocator()

	s, err := NewNullable("amount", []float64{1.5, 0, 3}, []bool{true, false, true}, mem)
	require.NoError(t, err)
	defer s.Release()

	assert.False(t, s.IsNull(0))
	assert.True(t, s.IsNull(1))
	assert.Equal(t, 1, s.NullN())
	assert.Nil(t, s.Any(1))
	assert.Equal(t, 3.0, s.Any(2))
	assert.Equal(t, "", s.GetAsString(1))

	_, err = NewNullable("amount", []float64{1}, []bool{true, false}, mem)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestFromArrayAndRename(t *testing.T) {
	mem := memory.NewGoAllocator()

	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues([]int64{7, 8}, nil)
	arr := b.NewArray()
	defer arr.Release()

	s, err := FromArray("scheduleOrder", arr)
	require.NoError(t, err)
	defer s.Release()

	renamed := s.Rename("order")
	defer renamed.Release()

	assert.Equal(t, "order", renamed.Name())
	assert.Equal(t, "scheduleOrder", s.Name())
	assert.Equal(t, int64(8), renamed.Any(1))
}

func TestEmpty(t *testing.T) {
	s, err := Empty("d", arrow.FixedWidthTypes.Date32, nil)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, arrow.DATE32, s.DataType().ID())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2021-02-01", "2021-02-01", true},
		{"2021-02-01 13:45:00", "2021-02-01", true},
		{"2021-02-01T13:45:00Z", "2021-02-01", true},
		{"01/02/2021", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, FormatValue(d))
			}
		})
	}
}

func TestValueOutOfRange(t *testing.T) {
	s := New("x", []int64{1}, nil)
	defer s.Release()

	assert.Equal(t, int64(0), s.Value(5))
	assert.Nil(t, s.Any(-1))
}
