// Package config provides configuration for rollup runs: pipeline options,
// the database session, and logging.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/paveg/rollup/internal/query"
	"github.com/paveg/rollup/internal/relation"
	"github.com/paveg/rollup/internal/store"
	"github.com/paveg/rollup/internal/version"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of one rollup run
type Config struct {
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" ini:"pipeline"`
	Database DatabaseConfig `json:"database" yaml:"database" ini:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" ini:"logging"`
}

// PipelineConfig selects inputs, output, and join behavior
type PipelineConfig struct {
	JoinKind    string `json:"join_kind" yaml:"join_kind" ini:"join_kind"`          // left or inner
	LeftSuffix  string `json:"left_suffix" yaml:"left_suffix" ini:"left_suffix"`    // suffix for overlapping left columns
	RightSuffix string `json:"right_suffix" yaml:"right_suffix" ini:"right_suffix"` // suffix for overlapping right columns
	Loans       string `json:"loans" yaml:"loans" ini:"loans"`                      // loans input path
	Repayments  string `json:"repayments" yaml:"repayments" ini:"repayments"`       // repayments input path
	Output      string `json:"output" yaml:"output" ini:"output"`                   // summary output path (empty = stdout)
	TopN        int    `json:"top_n" yaml:"top_n" ini:"top_n"`                      // rows kept per partition by rank
}

// DatabaseConfig describes the session used to run statements
type DatabaseConfig struct {
	Dialect      string `json:"dialect" yaml:"dialect" ini:"dialect"` // postgres, sqlite, or duckdb
	DSN          string `json:"dsn" yaml:"dsn" ini:"dsn"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns" ini:"max_open_conns"`
}

// LoggingConfig controls the CLI logger
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" ini:"level"`
	Format string `json:"format" yaml:"format" ini:"format"` // text or json
}

// Default configuration values
const (
	DefaultJoinKind     = "left"
	DefaultDialect      = "sqlite"
	DefaultTopN         = 1
	DefaultMaxOpenConns = 4
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "ROLLUP_"

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			JoinKind:    DefaultJoinKind,
			LeftSuffix:  relation.DefaultLeftSuffix,
			RightSuffix: relation.DefaultRightSuffix,
			TopN:        DefaultTopN,
		},
		Database: DatabaseConfig{
			Dialect:      DefaultDialect,
			MaxOpenConns: DefaultMaxOpenConns,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if _, err := relation.ParseJoinKind(c.Pipeline.JoinKind); err != nil {
		return fmt.Errorf("pipeline.join_kind: %w", err)
	}
	if c.Pipeline.LeftSuffix == c.Pipeline.RightSuffix {
		return fmt.Errorf("pipeline suffixes must differ, both are %q", c.Pipeline.LeftSuffix)
	}
	if c.Pipeline.TopN <= 0 {
		return fmt.Errorf("pipeline.top_n must be positive, got %d", c.Pipeline.TopN)
	}
	if _, err := query.ParseDialect(c.Database.Dialect); err != nil {
		return fmt.Errorf("database.dialect: %w", err)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must be non-negative, got %d", c.Database.MaxOpenConns)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.Pipeline.JoinKind == "" {
		c.Pipeline.JoinKind = defaults.Pipeline.JoinKind
	}
	if c.Pipeline.LeftSuffix == "" {
		c.Pipeline.LeftSuffix = defaults.Pipeline.LeftSuffix
	}
	if c.Pipeline.RightSuffix == "" {
		c.Pipeline.RightSuffix = defaults.Pipeline.RightSuffix
	}
	if c.Pipeline.TopN == 0 {
		c.Pipeline.TopN = defaults.Pipeline.TopN
	}
	if c.Database.Dialect == "" {
		c.Database.Dialect = defaults.Database.Dialect
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	return c
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromYAML loads configuration from YAML data
func LoadFromYAML(data []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing YAML configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromINI loads configuration from INI data with [pipeline], [database],
// and [logging] sections
func LoadFromINI(data []byte) (Config, error) {
	var config Config
	if err := ini.MapTo(&config, data); err != nil {
		return Config{}, fmt.Errorf("parsing INI configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a file (supports JSON, YAML, INI)
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		config, err = LoadFromJSON(data)
	case ".yaml", ".yml":
		config, err = LoadFromYAML(data)
	case ".ini":
		config, err = LoadFromINI(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", filename, err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables over the defaults
func LoadFromEnv() Config {
	return NewConfig().WithEnv(os.LookupEnv)
}

// Load reads filename when it is not empty, then applies environment
// overrides, and validates the result.
func Load(filename string) (Config, error) {
	config := NewConfig()
	if filename != "" {
		var err error
		if config, err = LoadFromFile(filename); err != nil {
			return Config{}, err
		}
	}
	config = config.WithEnv(os.LookupEnv)
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// WithEnv returns a copy with every ROLLUP_* variable found by lookup applied.
// Unparseable numbers are ignored.
func (c Config) WithEnv(lookup func(string) (string, bool)) Config {
	strs := map[string]*string{
		"JOIN_KIND":    &c.Pipeline.JoinKind,
		"LEFT_SUFFIX":  &c.Pipeline.LeftSuffix,
		"RIGHT_SUFFIX": &c.Pipeline.RightSuffix,
		"LOANS":        &c.Pipeline.Loans,
		"REPAYMENTS":   &c.Pipeline.Repayments,
		"OUTPUT":       &c.Pipeline.Output,
		"DIALECT":      &c.Database.Dialect,
		"DSN":          &c.Database.DSN,
		"LOG_LEVEL":    &c.Logging.Level,
		"LOG_FORMAT":   &c.Logging.Format,
	}
	for name, dst := range strs {
		if val, ok := lookup(EnvPrefix + name); ok && val != "" {
			*dst = val
		}
	}

	ints := map[string]*int{
		"TOP_N":          &c.Pipeline.TopN,
		"MAX_OPEN_CONNS": &c.Database.MaxOpenConns,
	}
	for name, dst := range ints {
		if val, ok := lookup(EnvPrefix + name); ok && val != "" {
			if parsed, err := strconv.Atoi(val); err == nil {
				*dst = parsed
			}
		}
	}

	return c
}

// Plan returns the loan/repayment plan with the configured join kind and suffixes.
func (p PipelineConfig) Plan() (relation.Plan, error) {
	kind, err := relation.ParseJoinKind(p.JoinKind)
	if err != nil {
		return relation.Plan{}, err
	}
	plan := relation.LoanRepaymentPlan()
	plan.Join.Kind = kind
	plan.Join.LeftSuffix = p.LeftSuffix
	plan.Join.RightSuffix = p.RightSuffix
	for i, agg := range plan.Aggregations {
		if agg.Column == "status"+relation.DefaultRightSuffix {
			plan.Aggregations[i].Column = "status" + plan.Join.RightSuffix
		}
	}
	return plan, nil
}

// Options returns the store options for the configured database.
func (d DatabaseConfig) Options(log logrus.FieldLogger) (store.Options, error) {
	dialect, err := query.ParseDialect(d.Dialect)
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{
		Dialect:         dialect,
		DSN:             d.DSN,
		MaxOpenConns:    d.MaxOpenConns,
		ApplicationName: version.UserAgent(),
		Logger:          log,
	}, nil
}

// NewLogger builds a logger writing to w with the configured level and format.
func (l LoggingConfig) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
