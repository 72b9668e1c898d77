// Package config provides the configuration for a benchmark run.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/layout"
	"github.com/arkilian/membench/internal/report"
	"github.com/arkilian/membench/internal/storage"
	"github.com/arkilian/membench/pkg/types"
)

// Config holds the configuration for one run.
type Config struct {
	// Storage selects and tunes the backend
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Generate controls the synthetic dataset
	Generate GenerateConfig `json:"generate" yaml:"generate"`

	// Layouts selects which layouts are written and queried
	Layouts LayoutsConfig `json:"layouts" yaml:"layouts"`

	// Bench controls the read phase
	Bench BenchConfig `json:"bench" yaml:"bench"`

	// Report controls output
	Report ReportConfig `json:"report" yaml:"report"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// URL selects the backend by scheme: redis, rediss, unix, sqlite, s3, bitcask, mem
	URL string `json:"url" yaml:"url"`

	// Retry bounds retries of transient connection failures
	Retry storage.RetryPolicy `json:"retry" yaml:"retry"`

	// S3 configuration (for s3:// URLs)
	S3 storage.S3Config `json:"s3" yaml:"s3"`
}

// GenerateConfig holds dataset generation configuration.
type GenerateConfig struct {
	// Organizations is the number of organizations to create
	Organizations int `json:"organizations" yaml:"organizations"`

	// UsersPerOrg is the inclusive range user counts are drawn from
	UsersPerOrg types.SizeRange `json:"users_per_org" yaml:"users_per_org"`

	// OrgIDScheme is one of objectid, ulid, uuid
	OrgIDScheme string `json:"org_id_scheme" yaml:"org_id_scheme"`

	// Verify reads every record back after generation
	Verify bool `json:"verify" yaml:"verify"`
}

// LayoutsConfig holds both layout configurations.
type LayoutsConfig struct {
	A FlatLayoutConfig     `json:"a" yaml:"a"`
	B DocumentLayoutConfig `json:"b" yaml:"b"`
}

// FlatLayoutConfig configures the flat key-value layout.
type FlatLayoutConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DocumentLayoutConfig configures the document array layout.
type DocumentLayoutConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Path      string `json:"path" yaml:"path"`
}

// BenchConfig holds benchmark configuration.
type BenchConfig struct {
	// Samples is the number of records drawn
	Samples int `json:"samples" yaml:"samples"`

	// Seed fixes the random sources; 0 seeds from the clock
	Seed uint64 `json:"seed" yaml:"seed"`
}

// ReportConfig holds report configuration.
type ReportConfig struct {
	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			URL:   "redis://localhost:6379",
			Retry: storage.DefaultRetryPolicy(),
			S3:    storage.DefaultS3Config(),
		},
		Generate: GenerateConfig{
			Organizations: 10,
			UsersPerOrg:   types.SizeRange{Min: 100, Max: 1000},
			OrgIDScheme:   types.OrgIDObjectID,
		},
		Layouts: LayoutsConfig{
			A: FlatLayoutConfig{Namespace: layout.DefaultFlatNamespace},
			B: DocumentLayoutConfig{
				Namespace: layout.DefaultDocumentNamespace,
				Path:      layout.DefaultDocumentPath,
			},
		},
		Bench: BenchConfig{
			Samples: 1000,
		},
		Report: ReportConfig{
			Format: string(report.FormatText),
		},
	}
}

// LayoutSet returns the enabled layouts.
func (c *Config) LayoutSet() layout.Set {
	return layout.NewSet(
		c.Layouts.A.Enabled, c.Layouts.A.Namespace,
		c.Layouts.B.Enabled, c.Layouts.B.Namespace, c.Layouts.B.Path,
	)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.URL == "" {
		return invalid("storage.url is required")
	}
	if _, err := url.Parse(c.Storage.URL); err != nil {
		return invalid(fmt.Sprintf("storage.url is not a valid URL: %v", err))
	}
	if c.Storage.Retry.MaxRetries < 0 {
		return invalid(fmt.Sprintf("storage.retry.max_retries must be >= 0, got %d", c.Storage.Retry.MaxRetries))
	}
	if c.Storage.Retry.BaseDelay < 0 || c.Storage.Retry.MaxDelay < 0 {
		return invalid("storage.retry delays must be >= 0")
	}

	if err := types.ValidateDataset(c.Generate.Organizations, c.Generate.UsersPerOrg); err != nil {
		return bencherr.NewValidationError(bencherr.CodeInvalidRange, "generate: "+err.Error())
	}
	if _, err := types.NewOrgIDSource(c.Generate.OrgIDScheme); err != nil {
		return invalid(err.Error())
	}

	if c.Layouts.A.Enabled && c.Layouts.A.Namespace == "" {
		return invalid("layouts.a.namespace is required when layout A is enabled")
	}
	if c.Layouts.B.Enabled && c.Layouts.B.Namespace == "" {
		return invalid("layouts.b.namespace is required when layout B is enabled")
	}
	if c.Layouts.B.Enabled && c.Layouts.B.Path == "" {
		return invalid("layouts.b.path is required when layout B is enabled")
	}
	if c.Layouts.A.Enabled && c.Layouts.B.Enabled && c.Layouts.A.Namespace == c.Layouts.B.Namespace {
		return invalid(fmt.Sprintf("layouts.a and layouts.b share namespace %q", c.Layouts.A.Namespace))
	}

	if c.Bench.Samples < 0 {
		return bencherr.NewValidationError(bencherr.CodeInvalidRange,
			fmt.Sprintf("bench.samples must be >= 0, got %d", c.Bench.Samples))
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return err
	}

	return nil
}

func invalid(msg string) error {
	return bencherr.NewValidationError(bencherr.CodeInvalidConfig, msg)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. With no
// arguments it reads ./.env if present.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays environment variables onto cfg. The legacy names
// REDIS_URL, ORGANIZATIOS_COUNT, TEST_KV, TEST_JSON and TESTS_COUNT are
// honored when the current name is unset.
//
// A malformed value fails immediately with an error naming the variable.
func LoadFromEnv(cfg *Config) error {
	e := envReader{}

	e.stringVar(&cfg.Storage.URL, "STORAGE_URL", "REDIS_URL")
	e.intVar(&cfg.Storage.Retry.MaxRetries, "RETRY_MAX_RETRIES")
	e.durationVar(&cfg.Storage.Retry.BaseDelay, "RETRY_BASE_DELAY")
	e.durationVar(&cfg.Storage.Retry.MaxDelay, "RETRY_MAX_DELAY")
	e.stringVar(&cfg.Storage.S3.Region, "S3_REGION")
	e.stringVar(&cfg.Storage.S3.Endpoint, "S3_ENDPOINT")
	e.boolVar(&cfg.Storage.S3.UsePathStyle, "S3_PATH_STYLE")

	e.intVar(&cfg.Generate.Organizations, "ORGANIZATION_COUNT", "ORGANIZATIOS_COUNT")
	e.intVar(&cfg.Generate.UsersPerOrg.Min, "USERS_PER_ORG_MIN")
	e.intVar(&cfg.Generate.UsersPerOrg.Max, "USERS_PER_ORG_MAX")
	e.stringVar(&cfg.Generate.OrgIDScheme, "ORG_ID_SCHEME")
	e.boolVar(&cfg.Generate.Verify, "VERIFY_AFTER_GENERATE")

	e.boolVar(&cfg.Layouts.A.Enabled, "ENABLE_LAYOUT_A", "TEST_KV")
	e.stringVar(&cfg.Layouts.A.Namespace, "LAYOUT_A_NAMESPACE")
	e.boolVar(&cfg.Layouts.B.Enabled, "ENABLE_LAYOUT_B", "TEST_JSON")
	e.stringVar(&cfg.Layouts.B.Namespace, "LAYOUT_B_NAMESPACE")
	e.stringVar(&cfg.Layouts.B.Path, "DOCUMENT_PATH")

	e.intVar(&cfg.Bench.Samples, "SAMPLE_COUNT", "TESTS_COUNT")
	e.uint64Var(&cfg.Bench.Seed, "SEED")

	e.stringVar(&cfg.Report.Format, "REPORT_FORMAT")

	return e.err
}

// envReader parses variables in order and keeps the first failure.
type envReader struct {
	err error
}

// lookup returns the first non-empty variable among names.
func (e *envReader) lookup(names ...string) (name, value string, ok bool) {
	if e.err != nil {
		return "", "", false
	}
	for _, n := range names {
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return n, v, true
		}
	}
	return "", "", false
}

func (e *envReader) fail(name, value, want string) {
	e.err = bencherr.NewValidationError(bencherr.CodeInvalidConfig,
		fmt.Sprintf("%s=%q is not a valid %s", name, value, want))
}

func (e *envReader) stringVar(dst *string, names ...string) {
	if _, v, ok := e.lookup(names...); ok {
		*dst = v
	}
}

func (e *envReader) intVar(dst *int, names ...string) {
	name, v, ok := e.lookup(names...)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, "integer")
		return
	}
	*dst = n
}

func (e *envReader) uint64Var(dst *uint64, names ...string) {
	name, v, ok := e.lookup(names...)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		e.fail(name, v, "unsigned integer")
		return
	}
	*dst = n
}

func (e *envReader) boolVar(dst *bool, names ...string) {
	name, v, ok := e.lookup(names...)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, "boolean")
		return
	}
	*dst = b
}

func (e *envReader) durationVar(dst *time.Duration, names ...string) {
	name, v, ok := e.lookup(names...)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, "duration")
		return
	}
	*dst = d
}
