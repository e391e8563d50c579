// Package testutil provides click-event fixtures shared by the package tests.
//
// Fixture rows are derived from their index so assertions can identify a row
// by its ip: row i has ip i, and every fourth row is attributed.
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// defaultRowCount is the default number of rows in test DataFrames.
	defaultRowCount = 10

	rawTrainHeader = "ip,app,device,os,channel,click_time,attributed_time,is_attributed"
	timeLayout     = "2006-01-02 15:04:05"
)

// BaseClickTime is the click_time of fixture row 0.
var BaseClickTime = time.Date(2017, 11, 6, 14, 32, 21, 0, time.UTC)

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator with automatic cleanup for tests.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	allocator := memory.NewGoAllocator()

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup:   func() {},
	}
}

// ClickOption configures fixture creation.
type ClickOption func(*clickConfig)

type clickConfig struct {
	rowCount       int
	attributedTime bool
}

// WithRowCount sets the number of rows in test data.
func WithRowCount(count int) ClickOption {
	return func(cfg *clickConfig) {
		cfg.rowCount = count
	}
}

// WithoutAttributedTime omits the optional attributed_time column.
func WithoutAttributedTime() ClickOption {
	return func(cfg *clickConfig) {
		cfg.attributedTime = false
	}
}

func newClickConfig(opts []ClickOption) *clickConfig {
	cfg := &clickConfig{
		rowCount:       defaultRowCount,
		attributedTime: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ClickTime returns the click_time of fixture row i.
func ClickTime(i int) time.Time {
	return BaseClickTime.Add(time.Duration(i) * 61 * time.Second)
}

// IsAttributed returns the label of fixture row i.
func IsAttributed(i int) uint8 {
	if i%4 == 3 {
		return 1
	}
	return 0
}

// CreateClickDataFrame creates a raw training frame:
// ip, app, device, os, channel, click_time, attributed_time, is_attributed.
//
// Example usage:
//
//	df := testutil.CreateClickDataFrame(mem.Allocator, testutil.WithRowCount(20))
//	defer df.Release()
func CreateClickDataFrame(allocator memory.Allocator, opts ...ClickOption) *dataframe.DataFrame {
	cfg := newClickConfig(opts)
	n := cfg.rowCount

	ips := make([]uint32, n)
	apps := make([]uint16, n)
	devices := make([]uint16, n)
	oses := make([]uint32, n)
	channels := make([]uint32, n)
	clicks := make([]time.Time, n)
	attributed := make([]time.Time, n)
	attributedValid := make([]bool, n)
	labels := make([]uint8, n)

	for i := range n {
		ips[i] = uint32(i)
		apps[i] = uint16(3 + i%5)
		devices[i] = uint16(1 + i%2)
		oses[i] = uint32(13 + i%3)
		channels[i] = uint32(379 + i)
		clicks[i] = ClickTime(i)
		labels[i] = IsAttributed(i)
		if labels[i] == 1 {
			attributed[i] = clicks[i].Add(42 * time.Second)
			attributedValid[i] = true
		}
	}

	seriesList := []dataframe.ISeries{
		series.New("ip", ips, allocator),
		series.New("app", apps, allocator),
		series.New("device", devices, allocator),
		series.New("os", oses, allocator),
		series.New("channel", channels, allocator),
		series.New("click_time", clicks, allocator),
	}
	if cfg.attributedTime {
		attr, err := series.NewWithValidity("attributed_time", attributed, attributedValid, allocator)
		if err != nil {
			panic(err)
		}
		seriesList = append(seriesList, attr)
	}
	seriesList = append(seriesList, series.New("is_attributed", labels, allocator))

	return dataframe.New(seriesList...)
}

// ClickCSV renders the same rows as CreateClickDataFrame as CSV text.
func ClickCSV(opts ...ClickOption) string {
	cfg := newClickConfig(opts)

	var sb strings.Builder
	header := rawTrainHeader
	if !cfg.attributedTime {
		header = strings.Replace(header, ",attributed_time", "", 1)
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	for i := range cfg.rowCount {
		cells := []string{
			strconv.Itoa(i),
			strconv.Itoa(3 + i%5),
			strconv.Itoa(1 + i%2),
			strconv.Itoa(13 + i%3),
			strconv.Itoa(379 + i),
			ClickTime(i).Format(timeLayout),
		}
		if cfg.attributedTime {
			attributed := ""
			if IsAttributed(i) == 1 {
				attributed = ClickTime(i).Add(42 * time.Second).Format(timeLayout)
			}
			cells = append(cells, attributed)
		}
		cells = append(cells, strconv.Itoa(int(IsAttributed(i))))
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// AssertDataFrameEqual compares layout and every rendered row.
func AssertDataFrameEqual(t *testing.T, expected, actual *dataframe.DataFrame) {
	t.Helper()

	require.NotNil(t, expected, "expected DataFrame should not be nil")
	require.NotNil(t, actual, "actual DataFrame should not be nil")

	assert.Equal(t, expected.Columns(), actual.Columns(), "DataFrame columns should match")
	require.Equal(t, expected.Len(), actual.Len(), "DataFrame lengths should match")

	for i := range expected.Len() {
		assert.Equal(t, expected.Row(i), actual.Row(i), "row %d should match", i)
	}
}

// AssertDataFrameHasColumns verifies the exact column order of a DataFrame.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Equal(t, expectedColumns, df.Columns())
}

// ColumnStrings renders one column of df.
func ColumnStrings(t *testing.T, df *dataframe.DataFrame, name string) []string {
	t.Helper()

	col, ok := df.Column(name)
	require.True(t, ok, "column %s should exist", name)
	values := make([]string, col.Len())
	for i := range values {
		values[i] = col.GetAsString(i)
	}
	return values
}
