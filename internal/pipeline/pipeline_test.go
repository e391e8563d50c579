package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/config"
	"github.com/paveg/clickprep/internal/errors"
	tableio "github.com/paveg/clickprep/internal/io"
	"github.com/paveg/clickprep/internal/monitoring"
	"github.com/paveg/clickprep/internal/pipeline"
	"github.com/paveg/clickprep/internal/rebalance"
	"github.com/paveg/clickprep/internal/series"
	"github.com/paveg/clickprep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newPipeline(t *testing.T, cfg config.Config, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(cfg, opts...)
	require.NoError(t, err)
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestNew(t *testing.T) {
	t.Run("defaults are filled in", func(t *testing.T) {
		p := newPipeline(t, config.Config{})
		assert.Equal(t, uint32(23), p.Config().Seed)
		assert.InDelta(t, 0.2, p.Config().TestSize, 1e-12)
		assert.False(t, p.Metrics().IsEnabled())
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.OutputFormat = "feather"
		_, err := pipeline.New(cfg)
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestRun(t *testing.T) {
	t.Run("writes the three csv outputs", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.InputPath = testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())
		cfg.OutputDir = dir

		outputs, err := newPipeline(t, cfg).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "new_train.csv"), outputs.Train)
		assert.Equal(t, filepath.Join(dir, "new_test.csv"), outputs.Test)
		assert.Equal(t, filepath.Join(dir, "crossref.csv"), outputs.Reference)

		assert.Equal(t,
			"ip,app,device,os,channel,day,hour,minute,second,click_id\n"+
				"5,3,2,15,384,6,14,37,26,1\n"+
				"8,6,1,15,387,6,14,40,29,2\n",
			readFile(t, outputs.Test))
		assert.Equal(t, "is_attributed,click_id\n0,1\n0,2\n", readFile(t, outputs.Reference))

		train := readFile(t, outputs.Train)
		assert.Contains(t, train, "ip,app,device,os,channel,is_attributed,day,hour,minute,second\n2,5,1,15,381,0,6,14,34,23\n")
		assert.NotContains(t, train, "attributed_time")
	})

	t.Run("parquet outputs reload with typed readers", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.InputPath = testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV(testutil.WithRowCount(20)))
		cfg.OutputDir = dir
		cfg.OutputFormat = "parquet"
		ctx := context.Background()

		p := newPipeline(t, cfg)
		outputs, err := p.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, ".parquet", filepath.Ext(outputs.Train))

		train, err := p.LoadTrain(ctx, outputs.Train)
		require.NoError(t, err)
		defer train.Release()
		assert.Equal(t, 16, train.Len())

		test, err := p.LoadTest(ctx, outputs.Test)
		require.NoError(t, err)
		defer test.Release()
		assert.Equal(t, []string{"0", "10", "2", "1"}, testutil.ColumnStrings(t, test, "ip"))

		reference, err := p.LoadReference(ctx, outputs.Reference)
		require.NoError(t, err)
		defer reference.Release()
		assert.Equal(t, []string{"1", "2", "3", "4"}, testutil.ColumnStrings(t, reference, "click_id"))
		assert.Equal(t, testutil.ColumnStrings(t, test, "click_id"), testutil.ColumnStrings(t, reference, "click_id"))
	})

	t.Run("parquet input with text click_time", func(t *testing.T) {
		dir := t.TempDir()
		mem := memory.NewGoAllocator()

		raw := testutil.CreateClickDataFrame(mem)
		defer raw.Release()
		text := make([]string, raw.Len())
		for i := range text {
			text[i] = testutil.ClickTime(i).Format("2006-01-02 15:04:05")
		}
		withText, err := raw.WithColumn(series.New("click_time", text, mem))
		require.NoError(t, err)
		defer withText.Release()

		cfg := config.NewConfig()
		cfg.InputPath = filepath.Join(dir, "train.parquet")
		cfg.OutputDir = dir
		require.NoError(t, tableio.WriteFile(cfg.InputPath, withText, tableio.DefaultFileOptions()))

		outputs, err := newPipeline(t, cfg).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t,
			"ip,app,device,os,channel,day,hour,minute,second,click_id\n"+
				"5,3,2,15,384,6,14,37,26,1\n"+
				"8,6,1,15,387,6,14,40,29,2\n",
			readFile(t, outputs.Test))
	})

	t.Run("header-only input warns and writes empty tables", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.InputPath = testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV(testutil.WithRowCount(0)))
		cfg.OutputDir = dir

		core, logs := observer.New(zapcore.InfoLevel)
		outputs, err := newPipeline(t, cfg, pipeline.WithLogger(zap.New(core))).Run(context.Background())
		require.NoError(t, err)

		warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
		require.Len(t, warnings, 2)
		assert.Equal(t, "split", warnings[0].ContextMap()["stage"])
		assert.Equal(t, "labels", warnings[1].ContextMap()["stage"])

		assert.Equal(t, "is_attributed,click_id\n", readFile(t, outputs.Reference))
	})

	t.Run("missing input", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.InputPath = filepath.Join(t.TempDir(), "absent.csv")

		_, err := newPipeline(t, cfg).Run(context.Background())
		assert.ErrorIs(t, err, errors.ErrFileNotFound)
	})

	t.Run("unparsable click_time", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.InputPath = testutil.WriteFile(t, dir, "train.csv",
			"ip,app,device,os,channel,click_time,is_attributed\n1,2,3,4,5,not a time,0\n")

		_, err := newPipeline(t, cfg).Run(context.Background())
		assert.ErrorIs(t, err, errors.ErrTimestampParse)
	})

	t.Run("unwritable output directory", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.InputPath = testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())
		cfg.OutputDir = filepath.Join(dir, "missing")

		_, err := newPipeline(t, cfg).Run(context.Background())
		assert.ErrorIs(t, err, errors.ErrWrite)
	})

	t.Run("canceled context", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.NewConfig()
		cfg.InputPath = testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newPipeline(t, cfg).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTrainTestRefSplit(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())
	metrics := monitoring.NewMetricsCollector(true)

	p := newPipeline(t, config.NewConfig(), pipeline.WithMetrics(metrics))
	result, err := p.TrainTestRefSplit(context.Background(), path)
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, 8, result.Train.Len())
	assert.Equal(t, 2, result.Test.Len())
	assert.False(t, result.Test.HasColumn("is_attributed"))
	assert.Equal(t, []string{"2", "9", "4", "7", "1", "0", "6", "3"}, testutil.ColumnStrings(t, result.Train, "ip"))

	stages := make([]string, 0)
	for _, m := range metrics.GetMetrics() {
		stages = append(stages, m.Stage)
	}
	assert.Equal(t, []string{"load", "decompose", "split", "labels"}, stages)
}

func TestPreprocessTest(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteFile(t, dir, "test.csv",
		"ip,app,device,os,channel,click_time,click_id\n"+
			"5744,9,1,3,107,2017-11-10 04:00:00,0\n"+
			"119901,9,1,3,466,2017-11-10 04:00:01,1\n")
	out := filepath.Join(dir, "test_preprocessed.csv")

	require.NoError(t, newPipeline(t, config.NewConfig()).PreprocessTest(context.Background(), in, out))

	assert.Equal(t,
		"ip,app,device,os,channel,click_id,day,hour,minute,second\n"+
			"5744,9,1,3,107,0,10,4,0,0\n"+
			"119901,9,1,3,466,1,10,4,0,1\n",
		readFile(t, out))

	t.Run("missing click_id", func(t *testing.T) {
		bad := testutil.WriteFile(t, dir, "bad.csv", "ip,app,device,os,channel,click_time\n1,2,3,4,5,2017-11-10 04:00:00\n")
		err := newPipeline(t, config.NewConfig()).PreprocessTest(context.Background(), bad, out)
		assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	})
}

func TestBalance(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())
	out := filepath.Join(dir, "balanced.csv")
	ctx := context.Background()

	p := newPipeline(t, config.NewConfig())
	require.NoError(t, p.Balance(ctx, in, out))

	reloaded, err := newPipeline(t, config.NewConfig()).LoadTrain(ctx, out)
	require.NoError(t, err)
	defer reloaded.Release()

	testutil.AssertDataFrameHasColumns(t, reloaded, []string{
		"ip", "app", "device", "os", "channel", "is_attributed", "year", "month", "day", "hour", "minute", "second",
	})
	counts, err := rebalance.Counts(reloaded, "is_attributed")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0": 8, "1": 8}, counts)
	assert.Equal(t, []string{"2017", "2017"}, testutil.ColumnStrings(t, reloaded, "year")[:2])
}
