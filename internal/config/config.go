// Package config provides configuration management for the clickprep pipeline
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/paveg/clickprep/internal/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "CLICKPREP_"

// Config represents the settings for one pipeline run
type Config struct {
	// Input and output
	InputPath    string `json:"input_path" yaml:"input_path"`       // Raw labeled click file
	OutputDir    string `json:"output_dir" yaml:"output_dir"`       // Directory receiving new_train, new_test and crossref
	OutputFormat string `json:"output_format" yaml:"output_format"` // csv or parquet
	Compression  string `json:"compression" yaml:"compression"`     // Parquet codec

	// Partitioning
	TestSize float64 `json:"test_size" yaml:"test_size"` // Share of rows assigned to the test partition
	Seed     uint32  `json:"seed" yaml:"seed"`           // Shuffle seed (0 = default)

	// Decomposition
	IncludeYearMonth bool     `json:"include_year_month" yaml:"include_year_month"` // Also extract year and month
	TimestampLayouts []string `json:"timestamp_layouts" yaml:"timestamp_layouts"`   // Go time layouts tried in order

	// Logging and metrics
	LogLevel          string `json:"log_level" yaml:"log_level"`                   // debug, info, warn or error
	LogFormat         string `json:"log_format" yaml:"log_format"`                 // console or json
	MetricsCollection bool   `json:"metrics_collection" yaml:"metrics_collection"` // Record per-stage timings
}

// Default configuration values
const (
	DefaultInputPath    = "train.csv"
	DefaultOutputDir    = "."
	DefaultOutputFormat = "csv"
	DefaultCompression  = "snappy"
	DefaultTestSize     = 0.20
	DefaultSeed         = 23
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
)

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		InputPath:    DefaultInputPath,
		OutputDir:    DefaultOutputDir,
		OutputFormat: DefaultOutputFormat,
		Compression:  DefaultCompression,

		TestSize: DefaultTestSize,
		Seed:     DefaultSeed,

		IncludeYearMonth: false,
		TimestampLayouts: nil, // Reader defaults

		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		MetricsCollection: true,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	const op = "Config"

	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError(op, "", fmt.Sprintf("TestSize must be in (0, 1), got %g", c.TestSize))
	}

	switch strings.ToLower(c.OutputFormat) {
	case "csv", "parquet":
	default:
		return errors.NewValidationError(op, "", fmt.Sprintf("OutputFormat must be csv or parquet, got %q", c.OutputFormat))
	}

	switch strings.ToLower(c.Compression) {
	case "snappy", "gzip", "zstd", "lz4", "uncompressed", "none":
	default:
		return errors.NewValidationError(op, "", fmt.Sprintf("unsupported Compression %q", c.Compression))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError(op, "", fmt.Sprintf("LogLevel must be debug, info, warn or error, got %q", c.LogLevel))
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return errors.NewValidationError(op, "", fmt.Sprintf("LogFormat must be console or json, got %q", c.LogFormat))
	}

	if c.InputPath == "" {
		return errors.NewValidationError(op, "", "InputPath must not be empty")
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.InputPath == "" {
		c.InputPath = defaults.InputPath
	}
	if c.OutputDir == "" {
		c.OutputDir = defaults.OutputDir
	}
	if c.OutputFormat == "" {
		c.OutputFormat = defaults.OutputFormat
	}
	if c.Compression == "" {
		c.Compression = defaults.Compression
	}
	if c.TestSize == 0 {
		c.TestSize = defaults.TestSize
	}
	if c.Seed == 0 {
		c.Seed = defaults.Seed
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}

	// Note: Boolean fields are intentionally not set to defaults here
	// This allows distinguishing between explicitly set false and unset values
	// Use NewConfig() directly if you need boolean defaults

	return c
}

// LoadFromJSON decodes JSON data over the defaults. Keys that are absent
// keep their default values.
func LoadFromJSON(data []byte) (Config, error) {
	config := NewConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML decodes YAML data over the defaults. Keys that are absent
// keep their default values.
func LoadFromYAML(data []byte) (Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.NewFileNotFoundError("LoadConfig", filename, err)
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		config, err = LoadFromJSON(data)
	case ".yaml", ".yml":
		config, err = LoadFromYAML(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	return config, nil
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set are not overridden.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables over the defaults
func LoadFromEnv() Config {
	return ApplyEnv(NewConfig())
}

// ApplyEnv overrides fields of config with CLICKPREP_* variables. Values that
// fail to parse are ignored.
func ApplyEnv(config Config) Config {
	if val := getenv("INPUT_PATH"); val != "" {
		config.InputPath = val
	}

	if val := getenv("OUTPUT_DIR"); val != "" {
		config.OutputDir = val
	}

	if val := getenv("OUTPUT_FORMAT"); val != "" {
		config.OutputFormat = val
	}

	if val := getenv("COMPRESSION"); val != "" {
		config.Compression = val
	}

	if val := getenv("TEST_SIZE"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.TestSize = parsed
		}
	}

	if val := getenv("SEED"); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			config.Seed = uint32(parsed)
		}
	}

	if val := getenv("INCLUDE_YEAR_MONTH"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.IncludeYearMonth = parsed
		}
	}

	if val := getenv("TIMESTAMP_LAYOUTS"); val != "" {
		config.TimestampLayouts = strings.Split(val, ";")
	}

	if val := getenv("LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := getenv("LOG_FORMAT"); val != "" {
		config.LogFormat = val
	}

	if val := getenv("METRICS_COLLECTION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsCollection = parsed
		}
	}

	return config
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}
