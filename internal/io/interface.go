// Package io provides data input/output operations for DataFrames.
//
// Readers coerce declared columns to the types a schema.Schema names and
// infer the type of any other column. Writers serialize a DataFrame in its
// column order without an index column.
//
// Key components:
//   - DataReader/DataWriter interfaces for pluggable I/O backends
//   - CSVReader/CSVWriter for delimited text
//   - ParquetReader/ParquetWriter for columnar files
//   - LoadFile/WriteFile choosing a backend by file extension
//
// Memory management: All I/O operations integrate with Apache Arrow's
// memory management system and require proper cleanup with defer patterns.
package io

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/series"
)

const (
	// DefaultBatchSize is the default batch size for I/O operations
	DefaultBatchSize = 64 * 1024
)

// DefaultTimestampLayouts are tried in order when parsing timestamp cells.
var DefaultTimestampLayouts = []string{
	series.TimestampLayout,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DataReader defines the interface for reading data from various sources
type DataReader interface {
	// Read reads data from the source and returns a DataFrame
	Read() (*dataframe.DataFrame, error)
}

// DataWriter defines the interface for writing data to various destinations
type DataWriter interface {
	// Write writes the DataFrame to the destination
	Write(df *dataframe.DataFrame) error
}

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// Schema declares typed columns; nil infers every column
	Schema *schema.Schema
	// TimestampLayouts are tried in order for timestamp columns. The first
	// layout is also used when writing timestamps.
	TimestampLayouts []string
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:        ',',
		Comment:          0,
		Header:           true,
		SkipInitialSpace: false,
		TimestampLayouts: append([]string(nil), DefaultTimestampLayouts...),
	}
}

func (o CSVOptions) writeLayout() string {
	if len(o.TimestampLayouts) == 0 {
		return series.TimestampLayout
	}
	return o.TimestampLayouts[0]
}

// CSVReader reads CSV data and converts it to DataFrames
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVReader creates a new CSV reader with the specified options
func NewCSVReader(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVReader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &CSVReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// CSVWriter writes DataFrames to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize is the maximum row group length when writing
	BatchSize int
	// Schema declares typed columns the reader must find
	Schema *schema.Schema
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads Parquet data and converts it to DataFrames
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader creates a new Parquet reader with the specified options
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ParquetReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// ParquetWriter writes DataFrames to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}
