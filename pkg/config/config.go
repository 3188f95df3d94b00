// Package config loads the pipeline configuration from a YAML or TOML file
// with ERPFLOW_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/wdm0006/erpflow/pkg/erp"
	"github.com/wdm0006/erpflow/pkg/forecast"
	"github.com/wdm0006/erpflow/pkg/transform/standardize"
	"github.com/wdm0006/erpflow/pkg/transform/validate"
)

// EnvPrefix prefixes every environment override, e.g. ERPFLOW_AWS_SECRET_KEY.
const EnvPrefix = "ERPFLOW"

// ErrInvalid marks configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Logging     LoggingConfig           `yaml:"logging" toml:"logging" split_words:"true"`
	Sources     map[string]SourceConfig `yaml:"sources" toml:"sources" ignored:"true" validate:"required,dive"`
	Datasets    []DatasetConfig         `yaml:"datasets" toml:"datasets" ignored:"true" validate:"required,min=1,dive"`
	AWS         AWSConfig               `yaml:"aws" toml:"aws" split_words:"true"`
	ObjectStore ObjectStoreConfig       `yaml:"object_store" toml:"object_store" split_words:"true"`
	Warehouse   WarehouseConfig         `yaml:"warehouse" toml:"warehouse" split_words:"true"`
	Transform   TransformConfig         `yaml:"transform" toml:"transform" split_words:"true"`
	DryRun      bool                    `yaml:"dry_run" toml:"dry_run" split_words:"true"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" split_words:"true" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" toml:"format" split_words:"true" validate:"omitempty,oneof=text json"`
	Output string `yaml:"output" toml:"output" split_words:"true" validate:"omitempty,oneof=stdout file both"`
	File   string `yaml:"file" toml:"file" split_words:"true" validate:"required_if=Output file,required_if=Output both"`
}

// SourceConfig describes one extraction source. SQL sources set driver,
// dsn and either query or catalog; file sources set driver csv or xlsx
// and path.
type SourceConfig struct {
	Driver    string              `yaml:"driver" toml:"driver" validate:"required,oneof=sqlserver pgx sqlite csv xlsx"`
	DSN       string              `yaml:"dsn" toml:"dsn"`
	Query     string              `yaml:"query" toml:"query"`
	Catalog   string              `yaml:"catalog" toml:"catalog"`
	Path      string              `yaml:"path" toml:"path"`
	Sheet     string              `yaml:"sheet" toml:"sheet"`
	Delimiter string              `yaml:"delimiter" toml:"delimiter" validate:"omitempty,len=1"`
	Kinds     map[string]string   `yaml:"kinds" toml:"kinds" validate:"omitempty,dive,oneof=bool int float string time"`
	Clean     standardize.Options `yaml:"clean" toml:"clean"`
}

// IsFile reports whether the source reads a file export.
func (s SourceConfig) IsFile() bool { return s.Driver == "csv" || s.Driver == "xlsx" }

// Dataset kinds.
const (
	KindProcurement = "procurement"
	KindPnL         = "pnl"
	KindMargin      = "margin"
)

type DatasetConfig struct {
	Name    string         `yaml:"name" toml:"name" validate:"required"`
	Kind    string         `yaml:"kind" toml:"kind" validate:"required,oneof=procurement pnl margin"`
	Sources []string       `yaml:"sources" toml:"sources" validate:"required,min=1"`
	Rules   validate.Rules `yaml:"rules" toml:"rules" validate:"omitempty,dive"`
	Table   string         `yaml:"table" toml:"table"`
	Enabled *bool          `yaml:"enabled" toml:"enabled"`
}

// IsEnabled reports whether the dataset runs; datasets are enabled unless
// set otherwise.
func (d DatasetConfig) IsEnabled() bool { return d.Enabled == nil || *d.Enabled }

type AWSConfig struct {
	AccessKey string `yaml:"access_key" toml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" toml:"secret_key" split_words:"true"`
	Region    string `yaml:"region" toml:"region" split_words:"true"`
	S3Bucket  string `yaml:"s3_bucket" toml:"s3_bucket" split_words:"true"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint" split_words:"true"`
	Prefix    string `yaml:"prefix" toml:"prefix" split_words:"true"`
}

type ObjectStoreConfig struct {
	Kind string `yaml:"kind" toml:"kind" split_words:"true" validate:"oneof=s3 local none"`
	Dir  string `yaml:"dir" toml:"dir" split_words:"true" validate:"required_if=Kind local"`
}

type WarehouseConfig struct {
	Kind      string          `yaml:"kind" toml:"kind" split_words:"true" validate:"oneof=snowflake postgres sqlite none"`
	DSN       string          `yaml:"dsn" toml:"dsn" split_words:"true" validate:"required_if=Kind postgres,required_if=Kind sqlite"`
	Snowflake SnowflakeConfig `yaml:"snowflake" toml:"snowflake" split_words:"true"`
}

type SnowflakeConfig struct {
	Account   string `yaml:"account" toml:"account" split_words:"true"`
	User      string `yaml:"user" toml:"user" split_words:"true"`
	Password  string `yaml:"password" toml:"password" split_words:"true"`
	Database  string `yaml:"database" toml:"database" split_words:"true"`
	Schema    string `yaml:"schema" toml:"schema" split_words:"true"`
	Warehouse string `yaml:"warehouse" toml:"warehouse" split_words:"true"`
	Role      string `yaml:"role" toml:"role" split_words:"true"`
}

type TransformConfig struct {
	CurrencyFactor  float64  `yaml:"currency_factor" toml:"currency_factor" split_words:"true"`
	RevenuePrefix   string   `yaml:"revenue_prefix" toml:"revenue_prefix" split_words:"true"`
	RollingWindow   int      `yaml:"rolling_window" toml:"rolling_window" split_words:"true" validate:"gte=1"`
	ForecastHorizon int      `yaml:"forecast_horizon" toml:"forecast_horizon" split_words:"true" validate:"gte=0"`
	MarginLow       float64  `yaml:"margin_low" toml:"margin_low" split_words:"true"`
	MarginHigh      float64  `yaml:"margin_high" toml:"margin_high" split_words:"true" validate:"gtefield=MarginLow"`
	DateLayouts     []string `yaml:"date_layouts" toml:"date_layouts" split_words:"true"`
	YearlyOrder     int      `yaml:"yearly_order" toml:"yearly_order" split_words:"true" validate:"gte=0"`
	Compression     string   `yaml:"compression" toml:"compression" split_words:"true" validate:"omitempty,oneof=snappy gzip zstd none"`
}

// Params converts the transform section into transformer parameters.
func (t TransformConfig) Params() erp.Params {
	return erp.Params{
		CurrencyFactor:  t.CurrencyFactor,
		RevenuePrefix:   t.RevenuePrefix,
		RollingWindow:   t.RollingWindow,
		ForecastHorizon: t.ForecastHorizon,
		MarginLow:       t.MarginLow,
		MarginHigh:      t.MarginHigh,
		DateLayouts:     t.DateLayouts,
		Forecast:        forecast.Options{YearlyOrder: t.YearlyOrder},
	}
}

// Default returns a configuration holding every default value.
func Default() *Config {
	p := erp.DefaultParams()
	return &Config{
		Logging:     LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		ObjectStore: ObjectStoreConfig{Kind: "s3"},
		Warehouse:   WarehouseConfig{Kind: "snowflake"},
		AWS:         AWSConfig{Prefix: "processed"},
		Transform: TransformConfig{
			CurrencyFactor:  p.CurrencyFactor,
			RevenuePrefix:   p.RevenuePrefix,
			RollingWindow:   p.RollingWindow,
			ForecastHorizon: p.ForecastHorizon,
			MarginLow:       p.MarginLow,
			MarginHigh:      p.MarginHigh,
			Compression:     "snappy",
		},
	}
}

// Load reads the file at path (format chosen by extension), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var structValidator = validator.New()

// Validate checks field constraints and cross references between datasets
// and sources. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var problems []string
	for name, s := range c.Sources {
		switch {
		case s.IsFile() && s.Path == "":
			problems = append(problems, fmt.Sprintf("source %s: path is required for %s", name, s.Driver))
		case !s.IsFile() && s.DSN == "":
			problems = append(problems, fmt.Sprintf("source %s: dsn is required for %s", name, s.Driver))
		case !s.IsFile() && s.Query == "" && s.Catalog == "":
			problems = append(problems, fmt.Sprintf("source %s: query or catalog is required", name))
		}
	}
	seen := map[string]bool{}
	for _, d := range c.Datasets {
		if seen[d.Name] {
			problems = append(problems, fmt.Sprintf("dataset %s: duplicate name", d.Name))
		}
		seen[d.Name] = true
		for _, s := range d.Sources {
			if _, ok := c.Sources[s]; !ok {
				problems = append(problems, fmt.Sprintf("dataset %s: unknown source %s", d.Name, s))
			}
		}
		for col, r := range d.Rules {
			if r.Type == validate.TypeRange && r.Min == nil && r.Max == nil {
				problems = append(problems, fmt.Sprintf("dataset %s: range rule on %s needs min or max", d.Name, col))
			}
		}
		if d.Table == "" && c.Warehouse.Kind != "none" {
			problems = append(problems, fmt.Sprintf("dataset %s: table is required", d.Name))
		}
	}
	if c.ObjectStore.Kind == "s3" && c.AWS.S3Bucket == "" {
		problems = append(problems, "aws.s3_bucket is required for the s3 object store")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Dataset returns the dataset named name.
func (c *Config) Dataset(name string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetConfig{}, false
}
