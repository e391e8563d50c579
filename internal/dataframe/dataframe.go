// Package dataframe provides the in-memory table the pipeline stages operate on
package dataframe

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/series"
)

// DataFrame represents a table of data with typed columns.
//
// A DataFrame owns one reference to each of its series. New takes over the
// caller's reference; frames derived with Select, Drop or WithColumn retain
// the columns they share, so every frame must be released independently.
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		if _, exists := columns[name]; !exists {
			order = append(order, name)
		}
		columns[name] = s
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	if len(df.order) == 0 {
		return []string{}
	}
	return append([]string(nil), df.order...)
}

// Len returns the number of rows (all columns have the same length)
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.order)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	series, exists := df.columns[name]
	return series, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// Select returns a new DataFrame with only the specified columns
func (df *DataFrame) Select(names ...string) *DataFrame {
	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		if s, exists := df.columns[name]; exists {
			s.Retain()
			selected = append(selected, s)
		}
	}
	return New(selected...)
}

// Drop returns a new DataFrame without the specified columns. The receiver
// is left untouched; callers must use the returned frame.
func (df *DataFrame) Drop(names ...string) *DataFrame {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[name] = true
	}

	kept := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		if !dropSet[name] {
			s := df.columns[name]
			s.Retain()
			kept = append(kept, s)
		}
	}
	return New(kept...)
}

// WithColumn returns a new DataFrame with s appended, or replacing the
// column of the same name in place. The new frame takes ownership of s.
func (df *DataFrame) WithColumn(s ISeries) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, errors.NewValidationError("WithColumn", s.Name(),
			fmt.Sprintf("expected length %d, got %d", df.Len(), s.Len()))
	}

	result := make([]ISeries, 0, df.Width()+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			result = append(result, s)
			replaced = true
			continue
		}
		existing := df.columns[name]
		existing.Retain()
		result = append(result, existing)
	}
	if !replaced {
		result = append(result, s)
	}
	return New(result...), nil
}

// Take returns a new DataFrame holding the rows at indices, in that order
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	mem := memory.NewGoAllocator()
	taken := make([]ISeries, 0, df.Width())
	release := func() {
		for _, s := range taken {
			s.Release()
		}
	}

	for _, name := range df.order {
		s, err := takeSeries(df.columns[name], indices, mem)
		if err != nil {
			release()
			return nil, err
		}
		taken = append(taken, s)
	}
	return New(taken...), nil
}

func takeSeries(s ISeries, indices []int, mem memory.Allocator) (ISeries, error) {
	switch typed := s.(type) {
	case *series.Series[uint8]:
		return typed.Take(indices, mem)
	case *series.Series[uint16]:
		return typed.Take(indices, mem)
	case *series.Series[uint32]:
		return typed.Take(indices, mem)
	case *series.Series[uint64]:
		return typed.Take(indices, mem)
	case *series.Series[int64]:
		return typed.Take(indices, mem)
	case *series.Series[float64]:
		return typed.Take(indices, mem)
	case *series.Series[bool]:
		return typed.Take(indices, mem)
	case *series.Series[string]:
		return typed.Take(indices, mem)
	case *series.Series[time.Time]:
		return typed.Take(indices, mem)
	default:
		return nil, errors.NewValidationError("Take", s.Name(), fmt.Sprintf("unsupported series type: %T", s))
	}
}

// Row renders row i as strings in column order
func (df *DataFrame) Row(i int) []string {
	row := make([]string, len(df.order))
	for j, name := range df.order {
		row[j] = df.columns[name].GetAsString(i)
	}
	return row
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}

	for _, name := range df.order {
		series := df.columns[name]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, series.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, series := range df.columns {
		series.Release()
	}
}
