package io_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	"github.com/paveg/clickprep/internal/io"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createParquetTestDataFrame(t *testing.T, mem memory.Allocator) *dataframe.DataFrame {
	t.Helper()

	attributed, err := series.NewWithValidity("attributed_time",
		[]time.Time{{}, time.Date(2017, 11, 7, 9, 31, 3, 0, time.UTC)}, []bool{false, true}, mem)
	require.NoError(t, err)

	return dataframe.New(
		series.New("ip", []uint32{83230, 5314}, mem),
		series.New("app", []uint16{3, 12}, mem),
		series.New("device", []uint16{1, 1}, mem),
		series.New("os", []uint32{13, 13}, mem),
		series.New("channel", []uint32{379, 497}, mem),
		series.New("click_time", []time.Time{
			time.Date(2017, 11, 6, 14, 32, 21, 0, time.UTC),
			time.Date(2017, 11, 7, 9, 30, 38, 0, time.UTC),
		}, mem),
		attributed,
		series.New("is_attributed", []uint8{0, 1}, mem),
	)
}

func TestParquet_RoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()

	for _, codec := range []string{"snappy", "gzip", "zstd", "uncompressed"} {
		t.Run(codec, func(t *testing.T) {
			df := createParquetTestDataFrame(t, mem)
			defer df.Release()

			buf := new(bytes.Buffer)
			options := io.DefaultParquetOptions()
			options.Compression = codec
			require.NoError(t, io.NewParquetWriter(buf, options).Write(df))

			sch := schema.MustLookup(schema.Train, schema.Raw)
			readOpts := io.DefaultParquetOptions()
			readOpts.Schema = &sch
			result, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), readOpts, mem).Read()
			require.NoError(t, err)
			defer result.Release()

			assert.Equal(t, df.Columns(), result.Columns())
			assert.Equal(t, df.Len(), result.Len())
			for i := range df.Len() {
				assert.Equal(t, df.Row(i), result.Row(i))
			}

			ip, _ := result.Column("ip")
			assert.Equal(t, arrow.UINT32, ip.DataType().ID())
			attributed, _ := result.Column("attributed_time")
			assert.True(t, attributed.IsNull(0))
		})
	}
}

func TestParquetReader_SchemaChecks(t *testing.T) {
	mem := memory.NewGoAllocator()

	df := dataframe.New(
		series.New("is_attributed", []uint32{0, 1}, mem),
		series.New("click_id", []uint64{1, 2}, mem),
	)
	defer df.Release()

	buf := new(bytes.Buffer)
	require.NoError(t, io.NewParquetWriter(buf, io.DefaultParquetOptions()).Write(df))

	t.Run("wrong type", func(t *testing.T) {
		sch := schema.MustLookup(schema.Reference, schema.Raw)
		opts := io.DefaultParquetOptions()
		opts.Schema = &sch
		_, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})

	t.Run("missing column", func(t *testing.T) {
		sch := schema.MustLookup(schema.Test, schema.Decomposed)
		opts := io.DefaultParquetOptions()
		opts.Schema = &sch
		_, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})

	t.Run("text click_time stays a string", func(t *testing.T) {
		text := dataframe.New(
			series.New("is_attributed", []uint8{0}, mem),
			series.New("click_time", []string{"2017-11-06 14:32:21"}, mem),
			series.New("click_id", []uint64{1}, mem),
		)
		defer text.Release()
		var textBuf bytes.Buffer
		require.NoError(t, io.NewParquetWriter(&textBuf, io.DefaultParquetOptions()).Write(text))

		sch := schema.Schema{Columns: []schema.Column{
			{Name: "click_time", Type: schema.Timestamp},
			{Name: "click_id", Type: schema.U64},
		}}
		opts := io.DefaultParquetOptions()
		opts.Schema = &sch
		result, err := io.NewParquetReader(bytes.NewReader(textBuf.Bytes()), opts, mem).Read()
		require.NoError(t, err)
		defer result.Release()

		col, _ := result.Column("click_time")
		assert.Equal(t, arrow.STRING, col.DataType().ID())
	})

	t.Run("text is not accepted for integers", func(t *testing.T) {
		text := dataframe.New(series.New("click_id", []string{"1"}, mem))
		defer text.Release()
		var textBuf bytes.Buffer
		require.NoError(t, io.NewParquetWriter(&textBuf, io.DefaultParquetOptions()).Write(text))

		sch := schema.Schema{Columns: []schema.Column{{Name: "click_id", Type: schema.U64}}}
		opts := io.DefaultParquetOptions()
		opts.Schema = &sch
		_, err := io.NewParquetReader(bytes.NewReader(textBuf.Bytes()), opts, mem).Read()
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})

	t.Run("not parquet", func(t *testing.T) {
		_, err := io.NewParquetReader(bytes.NewReader([]byte("ip,app\n")), io.DefaultParquetOptions(), mem).Read()
		require.Error(t, err)
	})
}

func TestParquetWriter_LeavesSinkOpen(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := createParquetTestDataFrame(t, mem)
	defer df.Release()

	f, err := os.Create(filepath.Join(t.TempDir(), "train.parquet"))
	require.NoError(t, err)

	require.NoError(t, io.NewParquetWriter(f, io.DefaultParquetOptions()).Write(df))
	_, err = f.Write(nil)
	require.NoError(t, err, "sink must still be writable after Write")
	require.NoError(t, f.Close())
}

func TestParquetReader_WidensCalendarFields(t *testing.T) {
	mem := memory.NewGoAllocator()

	df := dataframe.New(
		series.New("ip", []uint32{1}, mem),
		series.New("app", []uint16{2}, mem),
		series.New("device", []uint16{3}, mem),
		series.New("os", []uint32{4}, mem),
		series.New("channel", []uint32{5}, mem),
		series.New("is_attributed", []uint8{1}, mem),
		series.New("day", []uint8{7}, mem),
		series.New("hour", []uint8{9}, mem),
		series.New("minute", []uint8{31}, mem),
		series.New("second", []uint8{3}, mem),
	)
	defer df.Release()

	buf := new(bytes.Buffer)
	require.NoError(t, io.NewParquetWriter(buf, io.DefaultParquetOptions()).Write(df))

	sch := schema.MustLookup(schema.Train, schema.Decomposed)
	opts := io.DefaultParquetOptions()
	opts.Schema = &sch
	result, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), opts, mem).Read()
	require.NoError(t, err)
	defer result.Release()

	hour, _ := result.Column("hour")
	assert.Equal(t, arrow.UINT32, hour.DataType().ID())
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "1", "7", "9", "31", "3"}, result.Row(0))
}
