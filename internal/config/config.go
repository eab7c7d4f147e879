package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
)

// Config holds the tagsearch service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Search   SearchConfig   `yaml:"search"`
	Semantic SemanticConfig `yaml:"semantic"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Fuzzy pass modes.
const (
	FuzzyUnconsumed = "unconsumed"
	FuzzyAlways     = "always"
)

// SearchConfig holds index names, key prefixes and query tuning.
type SearchConfig struct {
	TagIndex        string  `yaml:"tag_index"`
	TagPrefix       string  `yaml:"tag_prefix"`
	ProductIndex    string  `yaml:"product_index"`
	ProductPrefix   string  `yaml:"product_prefix"`
	LookupSize      int     `yaml:"lookup_size"`
	OuterTieBreaker float64 `yaml:"outer_tie_breaker"`
	InnerTieBreaker float64 `yaml:"inner_tie_breaker"`
	FilterPolicy    string  `yaml:"filter_policy"` // filters_as_boost | filters_as_required
	FuzzyMode       string  `yaml:"fuzzy_mode"`    // unconsumed | always
	DefaultPageSize int     `yaml:"default_page_size"`
	MaxPageSize     int     `yaml:"max_page_size"`
	QueryTimeoutMs  int     `yaml:"query_timeout_ms"`
	UpsertBatchSize int     `yaml:"upsert_batch_size"`
	ExtractWorkers  int     `yaml:"extract_workers"`
	// RecognizeParallelism bounds concurrent tag lookups per recognition pass.
	RecognizeParallelism int `yaml:"recognize_parallelism"`
	// MaxQueryTokens rejects longer queries before any lookup.
	MaxQueryTokens int `yaml:"max_query_tokens"`
}

// QueryTimeout returns the per-query store deadline.
func (s SearchConfig) QueryTimeout() time.Duration {
	return time.Duration(s.QueryTimeoutMs) * time.Millisecond
}

// LastRunKey is where the last tag indexing run is recorded. It lives outside the
// tag prefix so the tag index never picks it up.
func (s SearchConfig) LastRunKey() string {
	return "meta:" + s.TagIndex + ":last_run"
}

// SemanticConfig points at the two startup tables.
type SemanticConfig struct {
	TagFieldsPath string `yaml:"tag_fields_path"`
	StagesPath    string `yaml:"stages_path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	c.Search.applyDefaults()
	if c.Semantic.TagFieldsPath == "" {
		c.Semantic.TagFieldsPath = "config/tag-fields.yaml"
	}
	if c.Semantic.StagesPath == "" {
		c.Semantic.StagesPath = "config/stages.yaml"
	}
}

func (s *SearchConfig) applyDefaults() {
	if s.TagIndex == "" {
		s.TagIndex = "semantic-tags"
	}
	if s.TagPrefix == "" {
		s.TagPrefix = "tag:"
	}
	if s.ProductIndex == "" {
		s.ProductIndex = "products"
	}
	if s.ProductPrefix == "" {
		s.ProductPrefix = "product:"
	}
	if s.LookupSize <= 0 {
		s.LookupSize = 100
	}
	if s.OuterTieBreaker <= 0 {
		s.OuterTieBreaker = 0.5
	}
	if s.InnerTieBreaker <= 0 {
		s.InnerTieBreaker = 0.2
	}
	if s.FilterPolicy == "" {
		s.FilterPolicy = string(filter.AsBoost)
	}
	if s.FuzzyMode == "" {
		s.FuzzyMode = FuzzyUnconsumed
	}
	if s.DefaultPageSize <= 0 {
		s.DefaultPageSize = 20
	}
	if s.MaxPageSize <= 0 {
		s.MaxPageSize = 100
	}
	if s.QueryTimeoutMs <= 0 {
		s.QueryTimeoutMs = 2000
	}
	if s.UpsertBatchSize <= 0 {
		s.UpsertBatchSize = 500
	}
	if s.ExtractWorkers <= 0 {
		s.ExtractWorkers = 4
	}
	if s.RecognizeParallelism <= 0 {
		s.RecognizeParallelism = 8
	}
	if s.MaxQueryTokens <= 0 {
		s.MaxQueryTokens = 32
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Database.Driver != "redis" {
		return fmt.Errorf("database.driver must be \"redis\", got %q", c.Database.Driver)
	}
	return c.Search.validate()
}

func (s *SearchConfig) validate() error {
	if !filter.Policy(s.FilterPolicy).IsValid() {
		return fmt.Errorf("search.filter_policy must be %q or %q, got %q",
			filter.AsBoost, filter.AsRequired, s.FilterPolicy)
	}
	switch s.FuzzyMode {
	case FuzzyUnconsumed, FuzzyAlways:
	default:
		return fmt.Errorf("search.fuzzy_mode must be %q or %q, got %q",
			FuzzyUnconsumed, FuzzyAlways, s.FuzzyMode)
	}
	if s.OuterTieBreaker > 1 || s.InnerTieBreaker > 1 {
		return fmt.Errorf("search tie breakers must be in (0,1]")
	}
	if s.DefaultPageSize > s.MaxPageSize {
		return fmt.Errorf("search.default_page_size %d exceeds max_page_size %d",
			s.DefaultPageSize, s.MaxPageSize)
	}
	if s.TagIndex == s.ProductIndex {
		return fmt.Errorf("search.tag_index and search.product_index must differ")
	}
	if s.TagPrefix == s.ProductPrefix {
		return fmt.Errorf("search.tag_prefix and search.product_prefix must differ")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	return findFile(fmt.Sprintf("%s.yaml", env))
}

// findFile resolves a file name under config/, first relative to the working
// directory, then relative to the project root.
func findFile(filename string) string {
	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
