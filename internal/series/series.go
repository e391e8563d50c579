// Package series provides typed, Arrow-backed data columns
package series

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/errors"
)

// TimestampLayout is the default rendering of timestamp values.
const TimestampLayout = "2006-01-02 15:04:05"

// TimestampType is the Arrow type used for every time.Time series.
var TimestampType = &arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"}

// Series represents a typed data column with Apache Arrow backend
type Series[T any] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values. It panics on unsupported
// element types; use NewSafe when the type is not known statically.
func New[T any](name string, values []T, mem memory.Allocator) *Series[T] {
	s, err := NewSafe(name, values, mem)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSafe creates a new Series from a slice of values and reports
// unsupported element types as an error.
func NewSafe[T any](name string, values []T, mem memory.Allocator) (*Series[T], error) {
	return NewWithValidity(name, values, nil, mem)
}

// NewWithValidity creates a Series where valid[i] == false marks row i as
// null. A nil valid slice means every row is valid.
func NewWithValidity[T any](name string, values []T, valid []bool, mem memory.Allocator) (*Series[T], error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if valid != nil && len(valid) != len(values) {
		return nil, errors.NewValidationError("NewSeries", name,
			fmt.Sprintf("validity length %d does not match %d values", len(valid), len(values)))
	}

	var arr arrow.Array
	switch v := any(values).(type) {
	case []uint8:
		arr = buildPrimitive(array.NewUint8Builder(mem), v, valid)
	case []uint16:
		arr = buildPrimitive(array.NewUint16Builder(mem), v, valid)
	case []uint32:
		arr = buildPrimitive(array.NewUint32Builder(mem), v, valid)
	case []uint64:
		arr = buildPrimitive(array.NewUint64Builder(mem), v, valid)
	case []int64:
		arr = buildPrimitive(array.NewInt64Builder(mem), v, valid)
	case []float64:
		arr = buildPrimitive(array.NewFloat64Builder(mem), v, valid)
	case []bool:
		arr = buildPrimitive(array.NewBooleanBuilder(mem), v, valid)
	case []string:
		arr = buildPrimitive(array.NewStringBuilder(mem), v, valid)
	case []time.Time:
		stamps := make([]arrow.Timestamp, len(v))
		for i, t := range v {
			stamps[i] = arrow.Timestamp(t.Unix())
		}
		arr = buildPrimitive(array.NewTimestampBuilder(mem, TimestampType), stamps, valid)
	default:
		return nil, errors.NewValidationError("NewSeries", name, fmt.Sprintf("unsupported type: %T", values))
	}

	return &Series[T]{name: name, array: arr}, nil
}

type primitiveBuilder[T any] interface {
	Append(v T)
	AppendNull()
	Reserve(n int)
	NewArray() arrow.Array
	Release()
}

func buildPrimitive[T any, B primitiveBuilder[T]](builder B, values []T, valid []bool) arrow.Array {
	defer builder.Release()
	builder.Reserve(len(values))
	for i, val := range values {
		if valid != nil && !valid[i] {
			builder.AppendNull()
			continue
		}
		builder.Append(val)
	}
	return builder.NewArray()
}

// Wrap adopts an existing Arrow array as a Series, retaining a reference.
// The array's Go element type must match T.
func Wrap[T any](name string, arr arrow.Array) (*Series[T], error) {
	var zero T
	if !matchesType(any(zero), arr) {
		return nil, errors.NewTypeMismatchError("Wrap", name, reflect.TypeOf(zero).String(), arr.DataType().String())
	}
	arr.Retain()
	return &Series[T]{name: name, array: arr}, nil
}

func matchesType(zero any, arr arrow.Array) bool {
	switch zero.(type) {
	case uint8:
		_, ok := arr.(*array.Uint8)
		return ok
	case uint16:
		_, ok := arr.(*array.Uint16)
		return ok
	case uint32:
		_, ok := arr.(*array.Uint32)
		return ok
	case uint64:
		_, ok := arr.(*array.Uint64)
		return ok
	case int64:
		_, ok := arr.(*array.Int64)
		return ok
	case float64:
		_, ok := arr.(*array.Float64)
		return ok
	case bool:
		_, ok := arr.(*array.Boolean)
		return ok
	case string:
		_, ok := arr.(*array.String)
		return ok
	case time.Time:
		_, ok := arr.(*array.Timestamp)
		return ok
	}
	return false
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// Value returns the value at the given index. Null and out-of-range
// positions yield the zero value.
func (s *Series[T]) Value(index int) T {
	var zero T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return zero
	}
	v, _ := ValueAt(s.array, index).(T)
	return v
}

// Values returns the data as a Go slice
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())
	for i := range result {
		result[i] = s.Value(i)
	}
	return result
}

// Validity returns the per-row validity mask, or nil when no row is null
func (s *Series[T]) Validity() []bool {
	if s.array.NullN() == 0 {
		return nil
	}
	valid := make([]bool, s.array.Len())
	for i := range valid {
		valid[i] = s.array.IsValid(i)
	}
	return valid
}

// Take gathers the rows at indices into a new, independent series
func (s *Series[T]) Take(indices []int, mem memory.Allocator) (*Series[T], error) {
	n := s.array.Len()
	values := make([]T, len(indices))
	var valid []bool
	hasNulls := s.array.NullN() > 0
	if hasNulls {
		valid = make([]bool, len(indices))
	}
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.NewValidationError("Take", s.name, fmt.Sprintf("index %d out of bounds [0, %d)", idx, n))
		}
		values[i] = s.Value(idx)
		if hasNulls {
			valid[i] = s.array.IsValid(idx)
		}
	}
	return NewWithValidity(s.name, values, valid, mem)
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// GetAsString renders the value at index, using TimestampLayout for times
func (s *Series[T]) GetAsString(index int) string {
	return FormatValue(s.array, index, TimestampLayout)
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

// ValueAt returns the Go value stored at index of a supported Arrow array,
// or nil for nulls and unsupported arrays.
func ValueAt(arr arrow.Array, index int) any {
	if arr.IsNull(index) {
		return nil
	}
	switch typed := arr.(type) {
	case *array.Uint8:
		return typed.Value(index)
	case *array.Uint16:
		return typed.Value(index)
	case *array.Uint32:
		return typed.Value(index)
	case *array.Uint64:
		return typed.Value(index)
	case *array.Int64:
		return typed.Value(index)
	case *array.Float64:
		return typed.Value(index)
	case *array.Boolean:
		return typed.Value(index)
	case *array.String:
		return typed.Value(index)
	case *array.Timestamp:
		unit := typed.DataType().(*arrow.TimestampType).Unit
		return typed.Value(index).ToTime(unit).UTC()
	default:
		return nil
	}
}

// FormatValue renders the value at index as CSV text. Nulls render empty.
func FormatValue(arr arrow.Array, index int, layout string) string {
	switch v := ValueAt(arr, index).(type) {
	case nil:
		return ""
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case time.Time:
		return v.Format(layout)
	default:
		return fmt.Sprint(v)
	}
}

// Retain adds a reference to the underlying Arrow memory
func (s *Series[T]) Retain() {
	if s.array != nil {
		s.array.Retain()
	}
}
