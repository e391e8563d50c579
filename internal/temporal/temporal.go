// Package temporal replaces the click timestamp with discrete calendar fields.
package temporal

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	tableio "github.com/paveg/clickprep/internal/io"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/series"
	"github.com/paveg/clickprep/internal/validation"
)

const opDecompose = "Decompose"

// Options controls which calendar fields are extracted.
type Options struct {
	// IncludeYearMonth adds year and month ahead of day, hour, minute and
	// second. Only the balancing run enables it.
	IncludeYearMonth bool

	// Layouts are tried in order by DecomposeColumn. Empty means
	// io.DefaultTimestampLayouts.
	Layouts []string
}

// Fields returns the names of the columns Decompose appends, in order.
func (o Options) Fields() []string {
	fields := make([]string, 0, 6)
	if o.IncludeYearMonth {
		fields = append(fields, schema.ColYear, schema.ColMonth)
	}
	return append(fields, schema.ColDay, schema.ColHour, schema.ColMinute, schema.ColSecond)
}

// Decompose extracts calendar fields from the timestamp column click_time,
// appends them after the remaining columns and drops click_time together
// with attributed_time. Row order is unchanged and df is not modified.
func Decompose(df *dataframe.DataFrame, opts Options) (*dataframe.DataFrame, error) {
	if err := validation.ValidateColumns(df, opDecompose, schema.ColClickTime); err != nil {
		return nil, err
	}
	col, _ := df.Column(schema.ColClickTime)
	if err := validation.ValidateColumnType(schema.ColClickTime, col.DataType(), opDecompose, arrow.TIMESTAMP); err != nil {
		return nil, err
	}

	arr := col.Array()
	defer arr.Release()
	ts := arr.(*array.Timestamp)
	unit := ts.DataType().(*arrow.TimestampType).Unit

	times := make([]time.Time, ts.Len())
	for i := range ts.Len() {
		if ts.IsNull(i) {
			return nil, errors.NewTimestampParseError(opDecompose, schema.ColClickTime, i, "", nil)
		}
		times[i] = ts.Value(i).ToTime(unit).UTC()
	}

	return appendFields(df, times, opts)
}

// DecomposeColumn behaves like Decompose for a frame whose click_time was
// loaded as text, parsing each cell with opts.Layouts.
func DecomposeColumn(df *dataframe.DataFrame, opts Options) (*dataframe.DataFrame, error) {
	if err := validation.ValidateColumns(df, opDecompose, schema.ColClickTime); err != nil {
		return nil, err
	}
	col, _ := df.Column(schema.ColClickTime)
	if col.DataType().ID() == arrow.TIMESTAMP {
		return Decompose(df, opts)
	}
	if err := validation.ValidateColumnType(schema.ColClickTime, col.DataType(), opDecompose, arrow.STRING); err != nil {
		return nil, err
	}

	layouts := opts.Layouts
	if len(layouts) == 0 {
		layouts = tableio.DefaultTimestampLayouts
	}

	arr := col.Array()
	defer arr.Release()
	text := arr.(*array.String)

	times := make([]time.Time, text.Len())
	for i := range text.Len() {
		raw := ""
		if text.IsValid(i) {
			raw = text.Value(i)
		}
		t, err := tableio.ParseTimestamp(raw, layouts)
		if err != nil {
			return nil, errors.NewTimestampParseError(opDecompose, schema.ColClickTime, i, raw, err)
		}
		times[i] = t
	}

	return appendFields(df, times, opts)
}

func appendFields(df *dataframe.DataFrame, times []time.Time, opts Options) (*dataframe.DataFrame, error) {
	mem := memory.NewGoAllocator()
	n := len(times)

	var years []uint16
	var months []uint8
	if opts.IncludeYearMonth {
		years = make([]uint16, n)
		months = make([]uint8, n)
	}
	days := make([]uint8, n)
	hours := make([]uint8, n)
	minutes := make([]uint8, n)
	seconds := make([]uint8, n)

	for i, t := range times {
		if opts.IncludeYearMonth {
			years[i] = uint16(t.Year())
			months[i] = uint8(t.Month())
		}
		days[i] = uint8(t.Day())
		hours[i] = uint8(t.Hour())
		minutes[i] = uint8(t.Minute())
		seconds[i] = uint8(t.Second())
	}

	fields := make([]dataframe.ISeries, 0, 6)
	if opts.IncludeYearMonth {
		fields = append(fields,
			series.New(schema.ColYear, years, mem),
			series.New(schema.ColMonth, months, mem),
		)
	}
	fields = append(fields,
		series.New(schema.ColDay, days, mem),
		series.New(schema.ColHour, hours, mem),
		series.New(schema.ColMinute, minutes, mem),
		series.New(schema.ColSecond, seconds, mem),
	)

	out := df.Drop(schema.ColClickTime, schema.ColAttributedTime)
	for i, field := range fields {
		next, err := out.WithColumn(field)
		if err != nil {
			out.Release()
			for _, rest := range fields[i:] {
				rest.Release()
			}
			return nil, err
		}
		out.Release()
		out = next
	}
	return out, nil
}
