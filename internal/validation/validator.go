// Package validation provides reusable input checks for pipeline stages.
// Every validator reports failures as *errors.PipelineError so callers can
// match them with errors.Is against the package sentinels.
package validation

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/clickprep/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
	Len() int
	Width() int
}

// ColumnValidator validates column existence
type ColumnValidator struct {
	df      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for column operations
func NewColumnValidator(df ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{
		df:      df,
		columns: columns,
		op:      op,
	}
}

// Validate checks that every column exists, reporting the first missing one
// as a schema mismatch.
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return errors.NewMissingColumnError(v.op, column)
		}
	}
	return nil
}

// ColumnTypeValidator validates the Arrow type of a single column
type ColumnTypeValidator struct {
	column string
	got    arrow.DataType
	want   []arrow.Type
	op     string
}

// NewColumnTypeValidator creates a validator accepting any of want
func NewColumnTypeValidator(column string, got arrow.DataType, op string, want ...arrow.Type) *ColumnTypeValidator {
	return &ColumnTypeValidator{
		column: column,
		got:    got,
		want:   want,
		op:     op,
	}
}

// Validate checks the column type against the accepted set
func (v *ColumnTypeValidator) Validate() error {
	for _, id := range v.want {
		if v.got.ID() == id {
			return nil
		}
	}
	expected := "<none>"
	if len(v.want) > 0 {
		expected = v.want[0].String()
	}
	return errors.NewTypeMismatchError(v.op, v.column, expected, v.got.String())
}

// LengthValidator validates array length consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		message := fmt.Sprintf("%s: expected length %d, got %d", v.context, v.expected, v.actual)
		return errors.NewValidationError(v.op, "", message)
	}
	return nil
}

// FractionValidator validates that a ratio lies strictly between 0 and 1
type FractionValidator struct {
	name  string
	value float64
	op    string
}

// NewFractionValidator creates a validator for an open-interval ratio
func NewFractionValidator(name string, value float64, op string) *FractionValidator {
	return &FractionValidator{
		name:  name,
		value: value,
		op:    op,
	}
}

// Validate checks 0 < value < 1
func (v *FractionValidator) Validate() error {
	if !(v.value > 0 && v.value < 1) {
		message := fmt.Sprintf("%s must be in (0, 1), got %g", v.name, v.value)
		return errors.NewValidationError(v.op, "", message)
	}
	return nil
}

// NonEmptyValidator validates that a partition holds at least one row
type NonEmptyValidator struct {
	df        ColumnProvider
	partition string
	op        string
}

// NewNonEmptyValidator creates a validator for a named partition
func NewNonEmptyValidator(df ColumnProvider, partition, op string) *NonEmptyValidator {
	return &NonEmptyValidator{
		df:        df,
		partition: partition,
		op:        op,
	}
}

// Validate reports an advisory EmptyPartition error for zero rows
func (v *NonEmptyValidator) Validate() error {
	if v.df.Len() == 0 {
		return errors.NewEmptyPartitionError(v.op, v.partition)
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Convenience validation functions

// ValidateColumns is a convenience function for column validation
func ValidateColumns(df ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(df, op, columns...).Validate()
}

// ValidateColumnType is a convenience function for column type validation
func ValidateColumnType(column string, got arrow.DataType, op string, want ...arrow.Type) error {
	return NewColumnTypeValidator(column, got, op, want...).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}

// ValidateFraction is a convenience function for ratio validation
func ValidateFraction(name string, value float64, op string) error {
	return NewFractionValidator(name, value, op).Validate()
}

// ValidateNotEmpty is a convenience function for empty partition validation
func ValidateNotEmpty(df ColumnProvider, partition, op string) error {
	return NewNonEmptyValidator(df, partition, op).Validate()
}
