// Package errors provides standardized error types for pipeline operations.
// Every stage reports failures as a PipelineError carrying the failure kind,
// the operation, and where known the column, row and file involved.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindInternal is an unexpected failure inside a stage.
	KindInternal Kind = iota
	// KindFileNotFound means an input path does not resolve.
	KindFileNotFound
	// KindSchemaMismatch means a declared column is absent or un-coercible.
	KindSchemaMismatch
	// KindTimestampParse means a timestamp cell could not be parsed.
	KindTimestampParse
	// KindEmptyPartition is advisory: a partition has no rows.
	KindEmptyPartition
	// KindWrite means an output file could not be written.
	KindWrite
	// KindValidation means an operation received invalid options.
	KindValidation
)

// String returns the name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "FileNotFound"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindTimestampParse:
		return "TimestampParseError"
	case KindEmptyPartition:
		return "EmptyPartition"
	case KindWrite:
		return "WriteError"
	case KindValidation:
		return "ValidationError"
	default:
		return "InternalError"
	}
}

// NoRow marks a PipelineError that does not refer to a specific row.
const NoRow = -1

// PipelineError represents standardized errors across all pipeline stages
type PipelineError struct {
	Kind    Kind   // Failure class
	Op      string // Operation name (e.g., "Load", "Decompose", "Split")
	Path    string // File path if applicable
	Column  string // Column name if applicable
	Row     int    // Zero-based data row index, NoRow if not applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s operation failed", e.Kind, e.Op)
	if e.Path != "" {
		fmt.Fprintf(&sb, " for '%s'", e.Path)
	}
	if e.Column != "" {
		fmt.Fprintf(&sb, " on column '%s'", e.Column)
	}
	if e.Row >= 0 {
		fmt.Fprintf(&sb, " at row %d", e.Row)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Unwrap returns the underlying cause for error wrapping support
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError of the same kind.
// Sentinels carry only a Kind, so errors.Is(err, ErrSchemaMismatch) matches
// any schema mismatch regardless of column or row.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrFileNotFound   = &PipelineError{Kind: KindFileNotFound, Row: NoRow}
	ErrSchemaMismatch = &PipelineError{Kind: KindSchemaMismatch, Row: NoRow}
	ErrTimestampParse = &PipelineError{Kind: KindTimestampParse, Row: NoRow}
	ErrEmptyPartition = &PipelineError{Kind: KindEmptyPartition, Row: NoRow}
	ErrWrite          = &PipelineError{Kind: KindWrite, Row: NoRow}
	ErrValidation     = &PipelineError{Kind: KindValidation, Row: NoRow}
)

// NewFileNotFoundError creates an error for an input path that does not resolve
func NewFileNotFoundError(op, path string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindFileNotFound,
		Op:      op,
		Path:    path,
		Row:     NoRow,
		Message: "file does not exist",
		Cause:   cause,
	}
}

// NewMissingColumnError creates a schema mismatch for an absent declared column
func NewMissingColumnError(op, column string) *PipelineError {
	return &PipelineError{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Column:  column,
		Row:     NoRow,
		Message: "column does not exist",
	}
}

// NewCoercionError creates a schema mismatch for a value that cannot be
// converted to its declared type
func NewCoercionError(op, column string, row int, value, typeName string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Column:  column,
		Row:     row,
		Message: fmt.Sprintf("cannot coerce %q to %s", value, typeName),
		Cause:   cause,
	}
}

// NewMalformedInputError creates a schema mismatch for input that is not
// well-formed delimited text
func NewMalformedInputError(op, path string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Path:    path,
		Row:     NoRow,
		Message: "malformed delimited input",
		Cause:   cause,
	}
}

// NewFieldCountError creates an error for a record wider than the header
func NewFieldCountError(op string, row, expected, actual int) *PipelineError {
	return &PipelineError{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Row:     row,
		Message: fmt.Sprintf("expected %d fields, saw %d", expected, actual),
	}
}

// NewTypeMismatchError creates a schema mismatch for a column of the wrong type
func NewTypeMismatchError(op, column, expected, actual string) *PipelineError {
	return &PipelineError{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Column:  column,
		Row:     NoRow,
		Message: fmt.Sprintf("expected type %s, got %s", expected, actual),
	}
}

// NewTimestampParseError creates an error for an unparsable timestamp cell
func NewTimestampParseError(op, column string, row int, value string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindTimestampParse,
		Op:      op,
		Column:  column,
		Row:     row,
		Message: fmt.Sprintf("cannot parse %q as timestamp", value),
		Cause:   cause,
	}
}

// NewEmptyPartitionError creates the advisory error for a zero-row partition
func NewEmptyPartitionError(op, partition string) *PipelineError {
	return &PipelineError{
		Kind:    KindEmptyPartition,
		Op:      op,
		Row:     NoRow,
		Message: fmt.Sprintf("%s partition has no rows", partition),
	}
}

// NewPartitionMismatchError reports partitions that do not add up to their
// source table.
func NewPartitionMismatchError(op, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Row:     NoRow,
		Message: message,
	}
}

// NewWriteError creates an error for an output that could not be written
func NewWriteError(op, path string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindWrite,
		Op:      op,
		Path:    path,
		Row:     NoRow,
		Message: "write failed",
		Cause:   cause,
	}
}

// NewValidationError creates an error for invalid operation inputs
func NewValidationError(op, column, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindValidation,
		Op:      op,
		Column:  column,
		Row:     NoRow,
		Message: message,
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindInternal,
		Op:      op,
		Row:     NoRow,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

// IsAdvisory reports whether err only warns and should not stop the pipeline.
func IsAdvisory(err error) bool {
	var pe *PipelineError
	return stderrors.As(err, &pe) && pe.Kind == KindEmptyPartition
}
