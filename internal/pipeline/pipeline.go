// Package pipeline wires the loader, decomposer, partitioner, label
// extractor, rebalancer and writer into the runs the CLI exposes.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/clickprep/internal/config"
	"github.com/paveg/clickprep/internal/dataframe"
	"github.com/paveg/clickprep/internal/errors"
	tableio "github.com/paveg/clickprep/internal/io"
	"github.com/paveg/clickprep/internal/labels"
	"github.com/paveg/clickprep/internal/monitoring"
	"github.com/paveg/clickprep/internal/partition"
	"github.com/paveg/clickprep/internal/rebalance"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/temporal"
	"github.com/paveg/clickprep/internal/validation"
	"go.uber.org/zap"
)

// Output file base names written by Run.
const (
	TrainFile     = "new_train"
	TestFile      = "new_test"
	ReferenceFile = "crossref"
)

// Pipeline runs preprocessing jobs for one configuration. It is not safe for
// concurrent use.
type Pipeline struct {
	cfg        config.Config
	log        *zap.Logger
	metrics    *monitoring.MetricsCollector
	mem        memory.Allocator
	rebalancer rebalance.Rebalancer
	format     tableio.Format
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithMetrics sets the collector stage timings are recorded in.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(p *Pipeline) {
		p.metrics = mc
	}
}

// WithRebalancer replaces the random over-sampler used by Balance.
func WithRebalancer(r rebalance.Rebalancer) Option {
	return func(p *Pipeline) {
		p.rebalancer = r
	}
}

// WithAllocator sets the Arrow allocator used for loaded tables.
func WithAllocator(mem memory.Allocator) Option {
	return func(p *Pipeline) {
		p.mem = mem
	}
}

// New validates cfg and returns a Pipeline.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := tableio.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		log:        zap.NewNop(),
		mem:        memory.NewGoAllocator(),
		rebalancer: rebalance.RandomOverSampler{Seed: cfg.Seed},
		format:     format,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetricsCollector(cfg.MetricsCollection)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// Metrics returns the stage metrics collector.
func (p *Pipeline) Metrics() *monitoring.MetricsCollector {
	return p.metrics
}

// Result holds the three tables of a split. Release frees all of them.
type Result struct {
	Train     *dataframe.DataFrame
	Test      *dataframe.DataFrame
	Reference *dataframe.DataFrame
}

// Release releases every table in r.
func (r *Result) Release() {
	for _, df := range []*dataframe.DataFrame{r.Train, r.Test, r.Reference} {
		if df != nil {
			df.Release()
		}
	}
}

// Outputs names the files Run wrote.
type Outputs struct {
	Train     string
	Test      string
	Reference string
}

// TrainTestRefSplit loads the raw labeled file at path, decomposes
// click_time, splits the rows and withholds the test labels.
func (p *Pipeline) TrainTestRefSplit(ctx context.Context, path string) (*Result, error) {
	raw, err := p.load(ctx, "load", path, schema.Train, schema.Raw)
	if err != nil {
		return nil, err
	}
	defer raw.Release()

	decomposed, err := p.decompose(ctx, raw, temporal.Options{
		IncludeYearMonth: p.cfg.IncludeYearMonth,
		Layouts:          p.cfg.TimestampLayouts,
	})
	if err != nil {
		return nil, err
	}
	defer decomposed.Release()

	var train, labeledTest *dataframe.DataFrame
	err = p.stage(ctx, "split", func() (int, error) {
		var err error
		train, labeledTest, err = partition.Split(decomposed, partition.Options{
			TestSize: p.cfg.TestSize,
			Seed:     p.cfg.Seed,
		})
		if err != nil {
			return 0, err
		}
		if err := partition.Verify(decomposed, train, labeledTest); err != nil {
			train.Release()
			labeledTest.Release()
			return 0, err
		}
		return decomposed.Len(), validation.ValidateNotEmpty(train, "train", "Split")
	})
	if err != nil {
		return nil, err
	}
	defer labeledTest.Release()

	result := &Result{Train: train}
	err = p.stage(ctx, "labels", func() (int, error) {
		var err error
		result.Test, result.Reference, err = labels.Extract(labeledTest)
		return labeledTest.Len(), err
	})
	if err != nil {
		result.Release()
		return nil, err
	}

	p.log.Info("split complete",
		zap.Int("train_rows", result.Train.Len()),
		zap.Int("test_rows", result.Test.Len()),
	)
	return result, nil
}

// Run performs the split of the configured input and writes new_train,
// new_test and crossref into the output directory. Files already written
// are left in place when a later write fails.
func (p *Pipeline) Run(ctx context.Context) (Outputs, error) {
	result, err := p.TrainTestRefSplit(ctx, p.cfg.InputPath)
	if err != nil {
		return Outputs{}, err
	}
	defer result.Release()

	ext := p.format.Extension()
	outputs := Outputs{
		Train:     filepath.Join(p.cfg.OutputDir, TrainFile+ext),
		Test:      filepath.Join(p.cfg.OutputDir, TestFile+ext),
		Reference: filepath.Join(p.cfg.OutputDir, ReferenceFile+ext),
	}

	for _, out := range []struct {
		path string
		df   *dataframe.DataFrame
	}{
		{outputs.Train, result.Train},
		{outputs.Test, result.Test},
		{outputs.Reference, result.Reference},
	} {
		if err := p.write(ctx, out.path, out.df); err != nil {
			return Outputs{}, err
		}
	}

	p.logSummary()
	return outputs, nil
}

// PreprocessTest decomposes click_time of the raw test file at in and
// writes the result to out.
func (p *Pipeline) PreprocessTest(ctx context.Context, in, out string) error {
	raw, err := p.load(ctx, "load", in, schema.Test, schema.Raw)
	if err != nil {
		return err
	}
	defer raw.Release()

	decomposed, err := p.decompose(ctx, raw, temporal.Options{
		IncludeYearMonth: p.cfg.IncludeYearMonth,
		Layouts:          p.cfg.TimestampLayouts,
	})
	if err != nil {
		return err
	}
	defer decomposed.Release()

	if err := p.write(ctx, out, decomposed); err != nil {
		return err
	}
	p.logSummary()
	return nil
}

// Balance decomposes the raw labeled file at in with year and month,
// equalizes is_attributed classes and writes the result to out.
func (p *Pipeline) Balance(ctx context.Context, in, out string) error {
	raw, err := p.load(ctx, "load", in, schema.Train, schema.Raw)
	if err != nil {
		return err
	}
	defer raw.Release()

	decomposed, err := p.decompose(ctx, raw, temporal.Options{
		IncludeYearMonth: true,
		Layouts:          p.cfg.TimestampLayouts,
	})
	if err != nil {
		return err
	}
	defer decomposed.Release()

	var balanced *dataframe.DataFrame
	err = p.stage(ctx, "rebalance", func() (int, error) {
		var err error
		balanced, err = p.rebalancer.Rebalance(decomposed, schema.ColIsAttributed)
		if err != nil {
			return 0, err
		}
		return balanced.Len(), nil
	})
	if err != nil {
		return err
	}
	defer balanced.Release()

	if err := p.write(ctx, out, balanced); err != nil {
		return err
	}
	p.logSummary()
	return nil
}

// LoadTrain reads a decomposed training file written by Run.
func (p *Pipeline) LoadTrain(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	return p.load(ctx, "load_train", path, schema.Train, schema.Decomposed)
}

// LoadTest reads a decomposed test file written by Run or PreprocessTest.
func (p *Pipeline) LoadTest(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	return p.load(ctx, "load_test", path, schema.Test, schema.Decomposed)
}

// LoadReference reads the cross-reference file at path.
func (p *Pipeline) LoadReference(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	return p.load(ctx, "load_reference", path, schema.Reference, schema.Raw)
}

func (p *Pipeline) fileOptions() tableio.FileOptions {
	opts := tableio.DefaultFileOptions()
	if len(p.cfg.TimestampLayouts) > 0 {
		opts.CSV.TimestampLayouts = p.cfg.TimestampLayouts
	}
	opts.Parquet.Compression = p.cfg.Compression
	return opts
}

func (p *Pipeline) load(ctx context.Context, name, path string, variant schema.Variant, stage schema.Stage) (*dataframe.DataFrame, error) {
	sch, err := schema.Lookup(variant, stage)
	if err != nil {
		return nil, err
	}

	var df *dataframe.DataFrame
	err = p.stage(ctx, name, func() (int, error) {
		var err error
		df, err = tableio.LoadFile(path, &sch, p.fileOptions(), p.mem)
		if err != nil {
			return 0, err
		}
		return df.Len(), nil
	}, zap.String("path", path), zap.Stringer("schema", sch))
	if err != nil {
		return nil, err
	}
	return df, nil
}

func (p *Pipeline) decompose(ctx context.Context, df *dataframe.DataFrame, opts temporal.Options) (*dataframe.DataFrame, error) {
	var out *dataframe.DataFrame
	err := p.stage(ctx, "decompose", func() (int, error) {
		var err error
		out, err = temporal.DecomposeColumn(df, opts)
		if err != nil {
			return 0, err
		}
		return out.Len(), nil
	}, zap.Strings("fields", opts.Fields()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) write(ctx context.Context, path string, df *dataframe.DataFrame) error {
	return p.stage(ctx, "write", func() (int, error) {
		return df.Len(), tableio.WriteFile(path, df, p.fileOptions())
	}, zap.String("path", path))
}

// stage runs fn as a named, timed step. Advisory errors are logged as
// warnings and swallowed; any other error aborts the run.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() (int, error), fields ...zap.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := 0
	metrics, err := p.metrics.RecordStage(name, func() (int, error) {
		var err error
		rows, err = fn()
		return rows, err
	})

	fields = append(fields, zap.String("stage", name), zap.Int("rows", rows))
	if p.metrics.IsEnabled() {
		fields = append(fields, zap.Duration("duration", metrics.Duration))
	}

	switch {
	case err == nil:
		p.log.Info("stage complete", fields...)
	case errors.IsAdvisory(err):
		p.log.Warn("stage produced an empty partition", append(fields, zap.Error(err))...)
	default:
		p.log.Error("stage failed", append(fields, zap.Error(err))...)
		return err
	}
	return nil
}

func (p *Pipeline) logSummary() {
	if !p.metrics.IsEnabled() {
		return
	}
	summary := p.metrics.GetSummary()
	p.log.Info("run summary",
		zap.Int("stages", summary.TotalStages),
		zap.Int64("rows", summary.TotalRows),
		zap.Duration("duration", summary.TotalDuration),
	)
}
