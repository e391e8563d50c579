package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/series"
)

// Read reads Parquet data and returns a DataFrame.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	// Read all data into memory for Parquet reading
	data, err := io.ReadAll(r.reader)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewMalformedInputError(opLoad, "", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return r.arrowTableToDataFrame(table)
}

// arrowTableToDataFrame converts an Arrow table to a DataFrame, checking
// declared columns against the configured schema.
func (r *ParquetReader) arrowTableToDataFrame(table arrow.Table) (*dataframe.DataFrame, error) {
	tableSchema := table.Schema()

	if declared := r.options.Schema; declared != nil {
		for _, col := range declared.Columns {
			idx := tableSchema.FieldIndices(col.Name)
			if len(idx) == 0 {
				if col.Optional {
					continue
				}
				return nil, errors.NewMissingColumnError(opLoad, col.Name)
			}
			got := tableSchema.Field(idx[0]).Type
			if got.ID() != col.Type.ArrowID() && !widens(got, col.Type) && !textTimestamp(got, col.Type) {
				return nil, errors.NewTypeMismatchError(opLoad, col.Name, col.Type.String(), got.String())
			}
		}
	}

	seriesList := make([]dataframe.ISeries, 0, table.NumCols())
	for i := range int(table.NumCols()) {
		field := tableSchema.Field(i)
		s, err := r.columnToSeries(field, table.Column(i))
		if err == nil && r.options.Schema != nil {
			if col, ok := r.options.Schema.Column(field.Name); ok && widens(field.Type, col.Type) {
				s, err = widenSeries(s, col.Type, r.mem)
			}
		}
		if err != nil {
			for _, done := range seriesList {
				done.Release()
			}
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

// columnToSeries flattens the chunks of an Arrow column into one Series.
func (r *ParquetReader) columnToSeries(field arrow.Field, column *arrow.Column) (dataframe.ISeries, error) {
	chunks := column.Data().Chunks()

	var arr arrow.Array
	switch len(chunks) {
	case 0:
		arr = array.MakeArrayOfNull(r.mem, field.Type, 0)
	case 1:
		arr = chunks[0]
		arr.Retain()
	default:
		concatenated, err := array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, err
		}
		arr = concatenated
	}
	defer arr.Release()

	return WrapArray(field.Name, arr)
}

// WrapArray adopts an Arrow array of a supported type as a Series.
func WrapArray(name string, arr arrow.Array) (dataframe.ISeries, error) {
	switch arr.(type) {
	case *array.Uint8:
		return wrap[uint8](name, arr)
	case *array.Uint16:
		return wrap[uint16](name, arr)
	case *array.Uint32:
		return wrap[uint32](name, arr)
	case *array.Uint64:
		return wrap[uint64](name, arr)
	case *array.Int64:
		return wrap[int64](name, arr)
	case *array.Float64:
		return wrap[float64](name, arr)
	case *array.Boolean:
		return wrap[bool](name, arr)
	case *array.String:
		return wrap[string](name, arr)
	case *array.Timestamp:
		return wrap[time.Time](name, arr)
	default:
		return nil, errors.NewTypeMismatchError(opLoad, name, "supported column type", arr.DataType().String())
	}
}

func wrap[T any](name string, arr arrow.Array) (dataframe.ISeries, error) {
	s, err := series.Wrap[T](name, arr)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Write writes the DataFrame to Parquet format.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	table := dataFrameToArrowTable(df)
	defer table.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compressionCodec(w.options.Compression)),
		parquet.WithMaxRowGroupLength(int64(w.batchSize())),
	)

	// The stored Arrow schema keeps unsigned widths and timestamp zones on read
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
		pqarrow.WithStoreSchema(),
	)

	// FileWriter.Close closes sinks that implement io.Closer; the caller owns w.writer
	sink := struct{ io.Writer }{w.writer}
	writer, err := pqarrow.NewFileWriter(table.Schema(), sink, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	if err := writer.WriteTable(table, int64(w.batchSize())); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

func (w *ParquetWriter) batchSize() int {
	if w.options.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return w.options.BatchSize
}

func compressionCodec(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// dataFrameToArrowTable converts a DataFrame to an Arrow table sharing the
// series' arrays.
func dataFrameToArrowTable(df *dataframe.DataFrame) arrow.Table {
	names := df.Columns()
	fields := make([]arrow.Field, 0, len(names))
	columns := make([]arrow.Column, 0, len(names))

	for _, name := range names {
		col, _ := df.Column(name)
		arr := col.Array()

		field := arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
		chunked := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
		arr.Release()

		column := arrow.NewColumn(field, chunked)
		chunked.Release()

		fields = append(fields, field)
		columns = append(columns, *column)
	}

	tableSchema := arrow.NewSchema(fields, nil)
	table := array.NewTable(tableSchema, columns, int64(df.Len()))
	for i := range columns {
		columns[i].Release()
	}
	return table
}
