// Command clickprep prepares the click-fraud dataset: it splits the labeled
// file into train, test and cross-reference tables, decomposes raw test
// files and writes class-balanced training tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/paveg/clickprep/internal/config"
	"github.com/paveg/clickprep/internal/logger"
	"github.com/paveg/clickprep/internal/pipeline"
	"github.com/paveg/clickprep/internal/schema"
	"github.com/paveg/clickprep/internal/version"
	"go.uber.org/zap"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, "clickprep (version %s)\n\n", version.Version)
	fmt.Fprintf(w, "Usage: clickprep <command> [options]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  split\n\t\tSplit the labeled file into new_train, new_test and crossref\n")
	fmt.Fprintf(w, "  preprocess-test -input FILE -output FILE\n\t\tDecompose click_time of a raw test file\n")
	fmt.Fprintf(w, "  balance -input FILE -output FILE\n\t\tDecompose with year and month and balance is_attributed\n")
	fmt.Fprintf(w, "  schema -variant train|test|reference -stage raw|decomposed\n\t\tPrint the declared columns of a file layout\n")
	fmt.Fprintf(w, "  version\n\t\tPrint version information and exit\n\n")
	fmt.Fprintf(w, "Run 'clickprep <command> -h' for the options of a command.\n")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the flags shared by every pipeline command.
type options struct {
	configPath string
	input      string
	output     string
	outputDir  string
	format     string
	seed       uint
	testSize   float64
	yearMonth  bool
	logLevel   string
	logFormat  string
}

func (o *options) register(fs *flag.FlagSet, withOutput bool) {
	fs.StringVar(&o.configPath, "config", "", "YAML or JSON configuration file")
	fs.StringVar(&o.input, "input", "", "input file (overrides input_path)")
	if withOutput {
		fs.StringVar(&o.output, "output", "", "output file; the extension selects csv or parquet")
	} else {
		fs.StringVar(&o.outputDir, "output-dir", "", "directory for new_train, new_test and crossref")
		fs.StringVar(&o.format, "format", "", "output format: csv or parquet")
		fs.UintVar(&o.seed, "seed", 0, "shuffle seed")
		fs.Float64Var(&o.testSize, "test-size", 0, "share of rows assigned to the test partition")
	}
	fs.BoolVar(&o.yearMonth, "year-month", false, "also extract year and month")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&o.logFormat, "log-format", "", "console or json")
}

// loadConfig layers defaults, .env, the config file, CLICKPREP_* variables
// and finally the flags that were set explicitly.
func (o *options) loadConfig(fs *flag.FlagSet) (config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return config.Config{}, err
	}

	cfg := config.NewConfig()
	if o.configPath != "" {
		loaded, err := config.LoadFromFile(o.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg = config.ApplyEnv(cfg)

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = o.input
		case "output-dir":
			cfg.OutputDir = o.outputDir
		case "format":
			cfg.OutputFormat = o.format
		case "seed":
			if o.seed > 1<<32-1 {
				err = fmt.Errorf("seed %s does not fit in 32 bits", strconv.FormatUint(uint64(o.seed), 10))
			}
			cfg.Seed = uint32(o.seed) //nolint:gosec // range checked above
		case "test-size":
			cfg.TestSize = o.testSize
		case "year-month":
			cfg.IncludeYearMonth = o.yearMonth
		case "log-level":
			cfg.LogLevel = o.logLevel
		case "log-format":
			cfg.LogFormat = o.logFormat
		}
	})
	return cfg, err
}

// printSchema lists the columns a variant and stage declare, one per line.
func printSchema(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(stderr)
	variantName := fs.String("variant", string(schema.Train), "train, test or reference")
	stageName := fs.String("stage", string(schema.Raw), "raw or decomposed")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	variant, err := schema.ParseVariant(*variantName)
	if err != nil {
		fmt.Fprintf(stderr, "clickprep: %v\n", err)
		return 1
	}
	stage, err := schema.ParseStage(*stageName)
	if err != nil {
		fmt.Fprintf(stderr, "clickprep: %v\n", err)
		return 1
	}
	sch, err := schema.Lookup(variant, stage)
	if err != nil {
		fmt.Fprintf(stderr, "clickprep: %v\n", err)
		return 1
	}

	for _, col := range sch.Columns {
		line := col.Name + "\t" + col.Type.String()
		if col.Optional {
			line += "\toptional"
		}
		if col.Nullable {
			line += "\tnullable"
		}
		fmt.Fprintln(stdout, line)
	}
	return 0
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 1
	}

	command, rest := args[0], args[1:]
	switch command {
	case "version", "-v", "--version":
		fmt.Fprint(stdout, version.Info().String())
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "schema":
		return printSchema(rest, stdout, stderr)
	case "split", "preprocess-test", "balance":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		usage(stderr)
		return 1
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	opts.register(fs, command != "split")
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := opts.loadConfig(fs)
	if err != nil {
		fmt.Fprintf(stderr, "clickprep: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "clickprep: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	p, err := pipeline.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return 1
	}

	log.Info("starting", zap.String("command", command), zap.String("version", version.Info().Short()))

	switch command {
	case "split":
		var outputs pipeline.Outputs
		outputs, err = p.Run(ctx)
		if err == nil {
			fmt.Fprintf(stdout, "%s\n%s\n%s\n", outputs.Train, outputs.Test, outputs.Reference)
		}
	case "preprocess-test", "balance":
		if opts.output == "" {
			log.Error("missing -output")
			return 1
		}
		if command == "balance" {
			err = p.Balance(ctx, cfg.InputPath, opts.output)
		} else {
			err = p.PreprocessTest(ctx, cfg.InputPath, opts.output)
		}
		if err == nil {
			fmt.Fprintln(stdout, opts.output)
		}
	}

	if err != nil {
		log.Error("command failed", zap.String("command", command), zap.Error(err))
		return 1
	}
	return 0
}
