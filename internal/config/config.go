package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	aictehttp "github.com/collegelist/aicte/internal/http"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/internal/upstream"
	"github.com/collegelist/aicte/pkg/store"
)

// Config defines configuration for the aicte CLI.
type Config struct {
	DataDir string   `yaml:"data_dir"`
	Bucket  string   `yaml:"bucket"`
	Listen  string   `yaml:"listen"`
	Year    string   `yaml:"year"`
	Course  string   `yaml:"course"`
	Fields  []string `yaml:"fields"`
	CSV     bool     `yaml:"csv"`

	Upstream UpstreamConfig `yaml:"upstream"`
	Download StageConfig    `yaml:"download"`
	Enrich   StageConfig    `yaml:"merge"`
}

// UpstreamConfig defines how the AICTE dashboard is reached.
type UpstreamConfig struct {
	InstituteEndpoint string        `yaml:"institute_endpoint"`
	CourseEndpoint    string        `yaml:"course_endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"rps"`
	PoliteDelay       time.Duration `yaml:"polite_delay"`
}

// StageConfig defines concurrency and retry behavior of one pipeline stage.
type StageConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		DataDir: "data",
		Listen:  ":8080",
		Year:    upstream.DefaultYear,
		Course:  upstream.DefaultCourse,
		Upstream: UpstreamConfig{
			InstituteEndpoint: upstream.InstituteEndpoint,
			CourseEndpoint:    upstream.CourseEndpoint,
			Timeout:           30 * time.Second,
			PoliteDelay:       300 * time.Millisecond,
		},
		Download: StageConfig{
			Concurrency: 2,
			Retries:     3,
			Backoff:     500 * time.Millisecond,
			MaxBackoff:  30 * time.Second,
		},
		Enrich: StageConfig{
			Concurrency: 8,
			Retries:     2,
			Backoff:     300 * time.Millisecond,
			MaxBackoff:  30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	DataDir  string             `yaml:"data_dir"`
	Bucket   string             `yaml:"bucket"`
	Listen   string             `yaml:"listen"`
	Year     string             `yaml:"year"`
	Course   string             `yaml:"course"`
	Fields   []string           `yaml:"fields"`
	CSV      bool               `yaml:"csv"`
	Upstream yamlUpstreamConfig `yaml:"upstream"`
	Download yamlStageConfig    `yaml:"download"`
	Enrich   yamlStageConfig    `yaml:"merge"`
}

type yamlUpstreamConfig struct {
	InstituteEndpoint string  `yaml:"institute_endpoint"`
	CourseEndpoint    string  `yaml:"course_endpoint"`
	Timeout           string  `yaml:"timeout"`
	RequestsPerSecond float64 `yaml:"rps"`
	PoliteDelay       string  `yaml:"polite_delay"`
}

type yamlStageConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Retries     *int   `yaml:"retries"`
	Backoff     string `yaml:"backoff"`
	MaxBackoff  string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file. Keys absent from the
// file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	cfg = cfg.Merge(Config{
		DataDir: yc.DataDir,
		Bucket:  yc.Bucket,
		Listen:  yc.Listen,
		Year:    yc.Year,
		Course:  yc.Course,
		Fields:  yc.Fields,
		CSV:     yc.CSV,
		Upstream: UpstreamConfig{
			InstituteEndpoint: yc.Upstream.InstituteEndpoint,
			CourseEndpoint:    yc.Upstream.CourseEndpoint,
			RequestsPerSecond: yc.Upstream.RequestsPerSecond,
		},
	})

	if cfg.Upstream.Timeout, err = duration(yc.Upstream.Timeout, cfg.Upstream.Timeout); err != nil {
		return Config{}, fmt.Errorf("parse upstream.timeout: %w", err)
	}
	if cfg.Upstream.PoliteDelay, err = duration(yc.Upstream.PoliteDelay, cfg.Upstream.PoliteDelay); err != nil {
		return Config{}, fmt.Errorf("parse upstream.polite_delay: %w", err)
	}
	if err := yc.Download.apply(&cfg.Download); err != nil {
		return Config{}, fmt.Errorf("parse download: %w", err)
	}
	if err := yc.Enrich.apply(&cfg.Enrich); err != nil {
		return Config{}, fmt.Errorf("parse merge: %w", err)
	}

	return cfg, nil
}

func (y yamlStageConfig) apply(s *StageConfig) error {
	var err error
	if y.Concurrency != 0 {
		s.Concurrency = y.Concurrency
	}
	// Zero retries is meaningful, so presence is tracked with a pointer.
	if y.Retries != nil {
		s.Retries = *y.Retries
	}
	if s.Backoff, err = duration(y.Backoff, s.Backoff); err != nil {
		return fmt.Errorf("backoff: %w", err)
	}
	if s.MaxBackoff, err = duration(y.MaxBackoff, s.MaxBackoff); err != nil {
		return fmt.Errorf("max_backoff: %w", err)
	}
	return nil
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// LoadFromEnv loads configuration from environment variables. The pipeline
// knobs use unprefixed names (DOWNLOAD_CONCURRENCY, YEAR, ...); everything
// else uses the AICTE_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("AICTE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("AICTE_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("AICTE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("YEAR"); v != "" {
		c.Year = v
	}
	if v := os.Getenv("COURSE"); v != "" {
		c.Course = v
	}
	if v := os.Getenv("AICTE_FIELDS"); v != "" {
		c.Fields = rows.ParseFields(v)
	}
	if v := os.Getenv("AICTE_CSV"); v != "" {
		c.CSV = v == "true" || v == "1"
	}
	if v := os.Getenv("AICTE_INSTITUTE_ENDPOINT"); v != "" {
		c.Upstream.InstituteEndpoint = v
	}
	if v := os.Getenv("AICTE_COURSE_ENDPOINT"); v != "" {
		c.Upstream.CourseEndpoint = v
	}
	if v := os.Getenv("AICTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse AICTE_TIMEOUT: %w", err)
		}
		c.Upstream.Timeout = d
	}
	if v := os.Getenv("AICTE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse AICTE_RPS: %w", err)
		}
		c.Upstream.RequestsPerSecond = f
	}
	if v := os.Getenv("AICTE_POLITE_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse AICTE_POLITE_DELAY: %w", err)
		}
		c.Upstream.PoliteDelay = d
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"DOWNLOAD_CONCURRENCY", &c.Download.Concurrency},
		{"DOWNLOAD_RETRIES", &c.Download.Retries},
		{"MERGE_CONCURRENCY", &c.Enrich.Concurrency},
		{"MERGE_RETRIES", &c.Enrich.Retries},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("RETRY_BASE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RETRY_BASE_MS: %w", err)
		}
		c.Enrich.Backoff = time.Duration(n) * time.Millisecond
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" && c.Bucket == "" {
		return errors.New("config: data_dir or bucket is required")
	}
	if c.Year == "" {
		return errors.New("config: year is required")
	}
	if c.Course == "" {
		return errors.New("config: course is required")
	}
	if c.Upstream.InstituteEndpoint == "" || c.Upstream.CourseEndpoint == "" {
		return errors.New("config: upstream endpoints are required")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.New("config: upstream.timeout must be positive")
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return errors.New("config: upstream.rps must not be negative")
	}
	if c.Upstream.PoliteDelay < 0 {
		return errors.New("config: upstream.polite_delay must not be negative")
	}
	for name, s := range map[string]StageConfig{"download": c.Download, "merge": c.Enrich} {
		if s.Concurrency <= 0 {
			return fmt.Errorf("config: %s.concurrency must be positive", name)
		}
		if s.Retries < 0 {
			return fmt.Errorf("config: %s.retries must not be negative", name)
		}
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.DataDir != "" {
		c.DataDir = override.DataDir
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Listen != "" {
		c.Listen = override.Listen
	}
	if override.Year != "" {
		c.Year = override.Year
	}
	if override.Course != "" {
		c.Course = override.Course
	}
	if len(override.Fields) > 0 {
		c.Fields = override.Fields
	}
	if override.CSV {
		c.CSV = override.CSV
	}
	if override.Upstream.InstituteEndpoint != "" {
		c.Upstream.InstituteEndpoint = override.Upstream.InstituteEndpoint
	}
	if override.Upstream.CourseEndpoint != "" {
		c.Upstream.CourseEndpoint = override.Upstream.CourseEndpoint
	}
	if override.Upstream.Timeout != 0 {
		c.Upstream.Timeout = override.Upstream.Timeout
	}
	if override.Upstream.RequestsPerSecond != 0 {
		c.Upstream.RequestsPerSecond = override.Upstream.RequestsPerSecond
	}
	if override.Upstream.PoliteDelay != 0 {
		c.Upstream.PoliteDelay = override.Upstream.PoliteDelay
	}
	c.Download = c.Download.merge(override.Download)
	c.Enrich = c.Enrich.merge(override.Enrich)
	return c
}

func (s StageConfig) merge(override StageConfig) StageConfig {
	if override.Concurrency != 0 {
		s.Concurrency = override.Concurrency
	}
	if override.Retries != 0 {
		s.Retries = override.Retries
	}
	if override.Backoff != 0 {
		s.Backoff = override.Backoff
	}
	if override.MaxBackoff != 0 {
		s.MaxBackoff = override.MaxBackoff
	}
	return s
}

// InstitutionFields returns the configured institute field list, or the
// built-in one.
func (c *Config) InstitutionFields() []string {
	if len(c.Fields) > 0 {
		return c.Fields
	}
	return rows.InstitutionFields
}

// Client returns HTTP client options for a stage.
func (c *Config) Client(s StageConfig) aictehttp.Options {
	opts := aictehttp.DefaultOptions()
	opts.Timeout = c.Upstream.Timeout
	opts.RetryAttempts = s.Retries
	opts.RetryBackoff = s.Backoff
	opts.RetryMaxBackoff = s.MaxBackoff
	opts.RequestsPerSecond = c.Upstream.RequestsPerSecond
	return opts
}

// OpenStore opens the artifact store: the bucket URL when set, otherwise
// the data directory.
func (c *Config) OpenStore(ctx context.Context) (*store.Store, error) {
	if c.Bucket != "" {
		return store.Open(ctx, c.Bucket)
	}
	return store.OpenDir(c.DataDir)
}
