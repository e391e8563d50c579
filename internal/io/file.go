package io

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/schema"
)

// Format is an on-disk table encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", errors.NewValidationError("ParseFormat", "", fmt.Sprintf("unknown output format %q", s))
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatParquet {
		return ".parquet"
	}
	return ".csv"
}

// FormatFromPath infers the format from a file extension. Unknown
// extensions are read as delimited text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatCSV
	}
}

// FileOptions bundles the per-format options used by LoadFile and WriteFile.
type FileOptions struct {
	CSV     CSVOptions
	Parquet ParquetOptions
}

// DefaultFileOptions returns default options for every format.
func DefaultFileOptions() FileOptions {
	return FileOptions{
		CSV:     DefaultCSVOptions(),
		Parquet: DefaultParquetOptions(),
	}
}

// LoadFile reads path, coercing the columns sch declares. A nil sch infers
// every column.
func LoadFile(path string, sch *schema.Schema, opts FileOptions, mem memory.Allocator) (*dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFoundError(opLoad, path, err)
		}
		return nil, &errors.PipelineError{
			Kind: errors.KindInternal, Op: opLoad, Path: path, Row: errors.NoRow,
			Message: "cannot open file", Cause: err,
		}
	}
	defer f.Close()

	var reader DataReader
	switch FormatFromPath(path) {
	case FormatParquet:
		popts := opts.Parquet
		popts.Schema = sch
		reader = NewParquetReader(f, popts, mem)
	default:
		copts := opts.CSV
		copts.Schema = sch
		reader = NewCSVReader(f, copts, mem)
	}

	df, err := reader.Read()
	if err != nil {
		var pe *errors.PipelineError
		if stderrors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
			return nil, pe
		}
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return df, nil
}

// WriteFile writes df to path in the format its extension names. Every
// failure is reported as a WriteError.
func WriteFile(path string, df *dataframe.DataFrame, opts FileOptions) (err error) {
	const op = "Write"

	f, err := os.Create(path)
	if err != nil {
		return errors.NewWriteError(op, path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.NewWriteError(op, path, closeErr)
		}
	}()

	var writer DataWriter
	switch FormatFromPath(path) {
	case FormatParquet:
		writer = NewParquetWriter(f, opts.Parquet)
	default:
		writer = NewCSVWriter(f, opts.CSV)
	}

	if err := writer.Write(df); err != nil {
		return errors.NewWriteError(op, path, err)
	}
	return nil
}
