package clickprep_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/clickprep"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRebalancer struct {
	calls int
}

func (c *countingRebalancer) Rebalance(df *dataframe.DataFrame, _ string) (*dataframe.DataFrame, error) {
	c.calls++
	return df.Select(df.Columns()...), nil
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := clickprep.NewConfig()
	cfg.InputPath = testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())
	cfg.OutputDir = dir

	mc := clickprep.NewMetricsCollector()
	outputs, err := clickprep.Run(context.Background(), cfg,
		clickprep.WithLogger(zap.NewNop()), clickprep.WithMetrics(mc))
	require.NoError(t, err)
	assert.NotZero(t, mc.GetSummary().TotalStages)

	crossref, err := os.ReadFile(outputs.Reference)
	require.NoError(t, err)
	assert.Equal(t, "is_attributed,click_id\n0,1\n0,2\n", string(crossref))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "clickprep.yml", "test_size: 0.5\nseed: 7\n")
	t.Setenv("CLICKPREP_SEED", "11")

	cfg, err := clickprep.LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.TestSize, 1e-12)
	assert.Equal(t, uint32(11), cfg.Seed)

	_, err = clickprep.LoadConfig(filepath.Join(dir, "absent.yml"))
	require.Error(t, err)
}

func TestWithRebalancer(t *testing.T) {
	dir := t.TempDir()
	in := testutil.WriteFile(t, dir, "train.csv", testutil.ClickCSV())
	rb := &countingRebalancer{}

	p, err := clickprep.New(clickprep.NewConfig(), clickprep.WithRebalancer(rb))
	require.NoError(t, err)
	require.NoError(t, p.Balance(context.Background(), in, filepath.Join(dir, "out.csv")))
	assert.Equal(t, 1, rb.calls)
}
