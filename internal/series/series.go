// Package series provides data structures for column operations
package series

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rollup/internal/errors"
)

// DateLayout is the textual form of date values.
const DateLayout = "2006-01-02"

// Element lists the Go types a Series can hold.
type Element interface {
	int64 | float64 | string | bool | arrow.Date32
}

// ISeries provides a type-erased interface for Series of any type
type ISeries interface {
	Name() string
	Len() int
	DataType() arrow.DataType
	IsNull(index int) bool
	String() string
	Array() arrow.Array
	Release()
	GetAsString(index int) string
	Any(index int) any
	Rename(name string) ISeries
}

// Series represents a typed data column with Apache Arrow backend
type Series[T Element] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values. All values are valid.
func New[T Element](name string, values []T, mem memory.Allocator) *Series[T] {
	s, err := NewNullable(name, values, nil, mem)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSafe creates a new Series and reports construction problems as errors.
func NewSafe[T Element](name string, values []T, mem memory.Allocator) (*Series[T], error) {
	return NewNullable(name, values, nil, mem)
}

// NewNullable creates a Series where valid[i] == false marks values[i] as null.
// A nil valid slice marks every value as present.
func NewNullable[T Element](name string, values []T, valid []bool, mem memory.Allocator) (*Series[T], error) {
	if valid != nil && len(valid) != len(values) {
		return nil, errors.NewInvalidInputError("series creation",
			fmt.Sprintf("validity length %d does not match %d values", len(valid), len(values)))
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	var arr arrow.Array

	switch v := any(values).(type) {
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []arrow.Date32:
		builder := array.NewDate32Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	default:
		return nil, errors.NewUnsupportedTypeError("series creation", fmt.Sprintf("%T", values))
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}, nil
}

// FromArray wraps an existing Arrow array. The array is retained.
func FromArray(name string, arr arrow.Array) (ISeries, error) {
	switch arr.(type) {
	case *array.String:
		return wrap[string](name, arr), nil
	case *array.Int64:
		return wrap[int64](name, arr), nil
	case *array.Float64:
		return wrap[float64](name, arr), nil
	case *array.Boolean:
		return wrap[bool](name, arr), nil
	case *array.Date32:
		return wrap[arrow.Date32](name, arr), nil
	default:
		return nil, errors.NewUnsupportedTypeError("series creation", arr.DataType().String())
	}
}

func wrap[T Element](name string, arr arrow.Array) *Series[T] {
	arr.Retain()
	return &Series[T]{name: name, array: arr}
}

// Empty creates a zero-length series of the given Arrow type.
func Empty(name string, dt arrow.DataType, mem memory.Allocator) (ISeries, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	builder := array.NewBuilder(mem, dt)
	defer builder.Release()
	arr := builder.NewArray()
	defer arr.Release()
	return FromArray(name, arr)
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// Values returns the data as a Go slice. Null slots hold the zero value.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())
	for i := range result {
		result[i] = s.Value(i)
	}
	return result
}

// Value returns the value at the given index, or the zero value when null or out of range.
func (s *Series[T]) Value(index int) T {
	var result T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return result
	}

	switch arr := s.array.(type) {
	case *array.String:
		if v, ok := any(&result).(*string); ok {
			*v = arr.Value(index)
		}
	case *array.Int64:
		if v, ok := any(&result).(*int64); ok {
			*v = arr.Value(index)
		}
	case *array.Float64:
		if v, ok := any(&result).(*float64); ok {
			*v = arr.Value(index)
		}
	case *array.Boolean:
		if v, ok := any(&result).(*bool); ok {
			*v = arr.Value(index)
		}
	case *array.Date32:
		if v, ok := any(&result).(*arrow.Date32); ok {
			*v = arr.Value(index)
		}
	}

	return result
}

// Any returns the value at index as an interface, or nil when null.
func (s *Series[T]) Any(index int) any {
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return nil
	}
	return s.Value(index)
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// NullN returns the number of null values.
func (s *Series[T]) NullN() int {
	return s.array.NullN()
}

// GetAsString renders the value at index as text. Nulls render as the empty string.
func (s *Series[T]) GetAsString(index int) string {
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return ""
	}
	return FormatValue(s.Value(index))
}

// FormatValue renders a single element value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case arrow.Date32:
		return x.ToTime().Format(DateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// Rename returns a series sharing this series' data under a new name.
func (s *Series[T]) Rename(name string) ISeries {
	return wrap[T](name, s.array)
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d)",
		reflect.TypeOf(new(T)).Elem().Name(),
		s.name,
		s.Len())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}

// Date converts a calendar date to its stored form.
func Date(year int, month time.Month, day int) arrow.Date32 {
	return arrow.Date32FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a date or timestamp string into its stored form.
// The time of day, if present, is discarded.
func ParseDate(s string) (arrow.Date32, bool) {
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return Date(y, m, d), true
		}
	}
	return 0, false
}
