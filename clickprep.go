// Package clickprep prepares the TalkingData-style click-fraud dataset for
// model training.
//
// A run loads the labeled click file with fixed-width column types, replaces
// click_time with day, hour, minute and second fields, splits the rows 80/20
// exactly as scikit-learn's train_test_split(random_state=23) would, and
// withholds the test labels into a cross-reference table keyed by click_id.
//
// Basic usage:
//
//	cfg := clickprep.NewConfig()
//	cfg.InputPath = "train_sample.csv"
//	outputs, err := clickprep.Run(ctx, cfg)
//
// This package is the public API; the building blocks live under internal/.
package clickprep

import (
	"context"

	"github.com/paveg/clickprep/internal/config"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/monitoring"
	"github.com/paveg/clickprep/internal/pipeline"
	"github.com/paveg/clickprep/internal/rebalance"
	"go.uber.org/zap"
)

type (
	// Config holds the settings of a run.
	Config = config.Config
	// Pipeline runs preprocessing jobs for one configuration.
	Pipeline = pipeline.Pipeline
	// Option configures a Pipeline.
	Option = pipeline.Option
	// Result holds the train, test and reference tables of a split.
	Result = pipeline.Result
	// Outputs names the files written by Run.
	Outputs = pipeline.Outputs
	// DataFrame is an in-memory table of typed columns.
	DataFrame = dataframe.DataFrame
	// Rebalancer equalizes label classes for Balance.
	Rebalancer = rebalance.Rebalancer
	// MetricsCollector records per-stage timings and row counts.
	MetricsCollector = monitoring.MetricsCollector
)

// NewConfig returns the default configuration: 20% test share, seed 23,
// CSV output into the working directory.
func NewConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a YAML or JSON configuration file and applies
// CLICKPREP_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return Config{}, err
	}
	return config.ApplyEnv(cfg), nil
}

// New returns a Pipeline for cfg.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	return pipeline.New(cfg, opts...)
}

// Run splits cfg.InputPath and writes new_train, new_test and crossref into
// cfg.OutputDir.
func Run(ctx context.Context, cfg Config, opts ...Option) (Outputs, error) {
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return Outputs{}, err
	}
	return p.Run(ctx)
}

// WithLogger sets the zap logger stages report to.
func WithLogger(log *zap.Logger) Option {
	return pipeline.WithLogger(log)
}

// NewMetricsCollector returns a collector for WithMetrics.
func NewMetricsCollector() *MetricsCollector {
	return monitoring.NewMetricsCollector(true)
}

// WithMetrics records stage timings into mc.
func WithMetrics(mc *MetricsCollector) Option {
	return pipeline.WithMetrics(mc)
}

// WithRebalancer replaces the random over-sampler used by Balance.
func WithRebalancer(r Rebalancer) Option {
	return pipeline.WithRebalancer(r)
}
