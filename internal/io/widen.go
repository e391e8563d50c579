package io

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/series"
	"golang.org/x/exp/constraints"
)

// unsignedBits returns the width of an unsigned Arrow integer type, or 0.
func unsignedBits(dt arrow.DataType) int {
	switch dt.ID() {
	case arrow.UINT8:
		return 8
	case arrow.UINT16:
		return 16
	case arrow.UINT32:
		return 32
	case arrow.UINT64:
		return 64
	default:
		return 0
	}
}

// widens reports whether a stored column of type got can be losslessly
// widened to the declared type. Decomposed files store calendar fields as
// uint8 while the reload schema declares them uint32.
func widens(got arrow.DataType, declared schema.Type) bool {
	bits := unsignedBits(got)
	return bits > 0 && declared.Bits() > bits
}

// textTimestamp reports whether a stored text column may stand in for a
// declared timestamp. The text stays a string column on load; the
// decomposer parses it.
func textTimestamp(got arrow.DataType, declared schema.Type) bool {
	return declared == schema.Timestamp && got.ID() == arrow.STRING
}

// widenSeries converts s to the declared unsigned type and releases s.
func widenSeries(s dataframe.ISeries, declared schema.Type, mem memory.Allocator) (dataframe.ISeries, error) {
	defer s.Release()

	arr := s.Array()
	defer arr.Release()

	switch declared {
	case schema.U16:
		return widenTo[uint16](s.Name(), arr, mem)
	case schema.U32:
		return widenTo[uint32](s.Name(), arr, mem)
	case schema.U64:
		return widenTo[uint64](s.Name(), arr, mem)
	default:
		return nil, errors.NewTypeMismatchError(opLoad, s.Name(), declared.String(), arr.DataType().String())
	}
}

func widenTo[T constraints.Unsigned](name string, arr arrow.Array, mem memory.Allocator) (dataframe.ISeries, error) {
	values := make([]T, arr.Len())
	var valid []bool
	if arr.NullN() > 0 {
		valid = make([]bool, arr.Len())
	}

	for i := range arr.Len() {
		if valid != nil {
			valid[i] = arr.IsValid(i)
		}
		switch a := arr.(type) {
		case *array.Uint8:
			values[i] = T(a.Value(i))
		case *array.Uint16:
			values[i] = T(a.Value(i))
		case *array.Uint32:
			values[i] = T(a.Value(i))
		case *array.Uint64:
			values[i] = T(a.Value(i))
		default:
			return nil, errors.NewTypeMismatchError(opLoad, name, "unsigned integer", arr.DataType().String())
		}
	}
	return series.NewWithValidity(name, values, valid, mem)
}
