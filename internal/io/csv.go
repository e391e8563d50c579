package io

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/series"
	"golang.org/x/exp/constraints"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
	boolType = "bool"

	opLoad = "Load"
)

// Read reads CSV data and returns a DataFrame
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = delimiterOrDefault(r.options.Delimiter)
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	// Short rows are padded with empty cells; wide rows are rejected below
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, errors.NewMalformedInputError(opLoad, "", err)
	}

	var headers []string
	var dataRows [][]string

	switch {
	case len(records) == 0:
		headers = []string{}
	case r.options.Header:
		headers = records[0]
		dataRows = records[1:]
	default:
		// Generate default column names
		numCols := len(records[0])
		headers = make([]string, numCols)
		for i := 0; i < numCols; i++ {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
		dataRows = records
	}

	if err := r.checkDeclaredColumns(headers); err != nil {
		return nil, err
	}
	for i, row := range dataRows {
		if len(row) > len(headers) {
			return nil, errors.NewFieldCountError(opLoad, i, len(headers), len(row))
		}
	}

	// Transpose data to work with columns
	numCols := len(headers)
	columns := make([][]string, numCols)
	for i := 0; i < numCols; i++ {
		columns[i] = make([]string, len(dataRows))
		for j, row := range dataRows {
			if i < len(row) {
				columns[i][j] = row[i]
			}
		}
	}

	seriesList := make([]dataframe.ISeries, 0, numCols)
	for i, header := range headers {
		s, err := r.createSeries(header, columns[i])
		if err != nil {
			for _, done := range seriesList {
				done.Release()
			}
			return nil, err
		}
		seriesList = append(seriesList, s)
	}

	return dataframe.New(seriesList...), nil
}

// checkDeclaredColumns fails on the first required column missing from headers
func (r *CSVReader) checkDeclaredColumns(headers []string) error {
	if r.options.Schema == nil {
		return nil
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, col := range r.options.Schema.Columns {
		if !col.Optional && !present[col.Name] {
			return errors.NewMissingColumnError(opLoad, col.Name)
		}
	}
	return nil
}

// createSeries coerces declared columns and infers the rest
func (r *CSVReader) createSeries(name string, data []string) (dataframe.ISeries, error) {
	if r.options.Schema != nil {
		if col, ok := r.options.Schema.Column(name); ok {
			return r.coerceColumn(col, data)
		}
	}
	return r.createSeriesFromStrings(name, data)
}

// coerceColumn converts raw cells to the declared type of col
func (r *CSVReader) coerceColumn(col schema.Column, data []string) (dataframe.ISeries, error) {
	switch col.Type {
	case schema.U8:
		return coerceUnsigned[uint8](r, col, data)
	case schema.U16:
		return coerceUnsigned[uint16](r, col, data)
	case schema.U32:
		return coerceUnsigned[uint32](r, col, data)
	case schema.U64:
		return coerceUnsigned[uint64](r, col, data)
	case schema.Timestamp:
		return r.coerceTimestamp(col, data)
	default:
		return nil, errors.NewTypeMismatchError(opLoad, col.Name, "declared type", col.Type.String())
	}
}

func coerceUnsigned[T constraints.Unsigned](r *CSVReader, col schema.Column, data []string) (dataframe.ISeries, error) {
	values, valid, err := parseUnsigned[T](col, data)
	if err != nil {
		return nil, err
	}
	return series.NewWithValidity(col.Name, values, valid, r.mem)
}

// parseUnsigned parses base-10 unsigned integers that fit in T. Empty cells
// are nulls when the column is nullable and coercion errors otherwise.
func parseUnsigned[T constraints.Unsigned](col schema.Column, data []string) ([]T, []bool, error) {
	values := make([]T, len(data))
	var valid []bool
	for i, raw := range data {
		value := strings.TrimSpace(raw)
		if value == "" && col.Nullable {
			if valid == nil {
				valid = allValid(len(data))
			}
			valid[i] = false
			continue
		}
		parsed, err := strconv.ParseUint(value, 10, col.Type.Bits())
		if err != nil {
			return nil, nil, errors.NewCoercionError(opLoad, col.Name, i, raw, col.Type.String(), unwrapNumError(err))
		}
		values[i] = T(parsed)
	}
	return values, valid, nil
}

func unwrapNumError(err error) error {
	var numErr *strconv.NumError
	if stderrors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}

func (r *CSVReader) coerceTimestamp(col schema.Column, data []string) (dataframe.ISeries, error) {
	layouts := r.options.TimestampLayouts
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}

	values := make([]time.Time, len(data))
	var valid []bool
	for i, raw := range data {
		value := strings.TrimSpace(raw)
		if value == "" && col.Nullable {
			if valid == nil {
				valid = allValid(len(data))
			}
			valid[i] = false
			continue
		}
		t, err := ParseTimestamp(value, layouts)
		if err != nil {
			return nil, errors.NewTimestampParseError(opLoad, col.Name, i, raw, err)
		}
		values[i] = t
	}
	return series.NewWithValidity(col.Name, values, valid, r.mem)
}

// ParseTimestamp parses value with the first matching layout. A UTC offset
// in the text is dropped and the wall-clock fields are kept, in UTC.
func ParseTimestamp(value string, layouts []string) (time.Time, error) {
	var firstErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no timestamp layouts configured")
	}
	return time.Time{}, firstErr
}

func delimiterOrDefault(d rune) rune {
	if d == 0 {
		return ','
	}
	return d
}

func allValid(n int) []bool {
	valid := make([]bool, n)
	for i := range valid {
		valid[i] = true
	}
	return valid
}

// createSeriesFromStrings creates a series from string data, inferring the appropriate type
func (r *CSVReader) createSeriesFromStrings(name string, data []string) (dataframe.ISeries, error) {
	if len(data) == 0 {
		return series.NewSafe(name, []string{}, r.mem)
	}

	// Infer the type based on the data
	inferredType := r.inferDataType(data)

	// Create series based on inferred type
	switch inferredType {
	case boolType:
		return r.createBoolSeries(name, data)
	case "int":
		return r.createIntSeries(name, data)
	case "float":
		return r.createFloatSeries(name, data)
	default:
		return series.NewSafe(name, data, r.mem)
	}
}

// inferDataType determines the most appropriate data type for the given string data
func (r *CSVReader) inferDataType(data []string) string {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for _, value := range data {
		if value == "" {
			continue // Skip empty values for type inference
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}

		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}

		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	// If all values are empty, default to string
	if !hasNonEmptyValue {
		return "string"
	}

	// Return the most specific type
	if canBeBool {
		return boolType
	}
	if canBeInt {
		return "int"
	}
	if canBeFloat {
		return "float"
	}
	return "string"
}

// createBoolSeries creates a boolean series from string data; empty cells are null
func (r *CSVReader) createBoolSeries(name string, data []string) (dataframe.ISeries, error) {
	values := make([]bool, len(data))
	valid := emptyMask(data)
	for i, value := range data {
		values[i] = strings.EqualFold(value, trueStr)
	}
	return series.NewWithValidity(name, values, valid, r.mem)
}

// createIntSeries creates an integer series from string data; empty cells are null
func (r *CSVReader) createIntSeries(name string, data []string) (dataframe.ISeries, error) {
	values := make([]int64, len(data))
	valid := emptyMask(data)
	for i, value := range data {
		if value != "" {
			values[i], _ = strconv.ParseInt(value, 10, 64)
		}
	}
	return series.NewWithValidity(name, values, valid, r.mem)
}

// createFloatSeries creates a float series from string data; empty cells are null
func (r *CSVReader) createFloatSeries(name string, data []string) (dataframe.ISeries, error) {
	values := make([]float64, len(data))
	valid := emptyMask(data)
	for i, value := range data {
		if value != "" {
			values[i], _ = strconv.ParseFloat(value, 64)
		}
	}
	return series.NewWithValidity(name, values, valid, r.mem)
}

// emptyMask marks empty cells invalid, or returns nil if there are none
func emptyMask(data []string) []bool {
	var valid []bool
	for i, value := range data {
		if value != "" {
			continue
		}
		if valid == nil {
			valid = allValid(len(data))
		}
		valid[i] = false
	}
	return valid
}

// Write writes the DataFrame to CSV format
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	csvWriter.Comma = delimiterOrDefault(w.options.Delimiter)

	columns := df.Columns()

	if w.options.Header {
		if err := csvWriter.Write(columns); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	arrays := make([]arrow.Array, len(columns))
	for j, name := range columns {
		col, _ := df.Column(name)
		arrays[j] = col.Array()
	}
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	layout := w.options.writeLayout()
	row := make([]string, len(columns))
	for i := 0; i < df.Len(); i++ {
		for j, arr := range arrays {
			row[j] = series.FormatValue(arr, i, layout)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
