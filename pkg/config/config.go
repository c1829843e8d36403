// Package config loads lockey configuration from YAML files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultAPIBind          = "127.0.0.1:7360"
	DefaultRowHeight        = 36
	DefaultOverscan         = 10
	DefaultDebounceInterval = 200 * time.Millisecond
	DefaultFetchTimeout     = 30 * time.Second
	DefaultFetchPerMinute   = 30
	DefaultEnvironment      = "uat1"
)

// Config represents the complete lockey configuration
type Config struct {
	Confluence  ConfluenceConfig  `yaml:"confluence"`
	Dataset     DatasetConfig     `yaml:"dataset"`
	Cache       CacheConfig       `yaml:"cache"`
	Viewport    ViewportConfig    `yaml:"viewport"`
	Search      SearchConfig      `yaml:"search"`
	Bulk        BulkConfig        `yaml:"bulk"`
	API         APIConfig         `yaml:"api"`
	Bus         BusConfig         `yaml:"bus"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ConfluenceConfig holds credentials and connection settings for the
// Confluence Data Center API.
type ConfluenceConfig struct {
	Domain        string        `yaml:"domain"`
	Token         string        `yaml:"token"` // personal access token
	SkipTLSVerify bool          `yaml:"skip_tls_verify"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DatasetConfig maps environment names to language-pack dataset URLs.
type DatasetConfig struct {
	Environments       map[string]string `yaml:"environments"` // uat1, uat2, uat3, ak
	DefaultEnvironment string            `yaml:"default_environment"`
	WatchPath          string            `yaml:"watch_path"` // optional local dataset file to watch
}

// CacheConfig configures the persistent SQLite cache.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// ViewportConfig holds virtual scrolling defaults.
type ViewportConfig struct {
	RowHeight int `yaml:"row_height"`
	Overscan  int `yaml:"overscan"`
}

// SearchConfig holds filter evaluation settings.
type SearchConfig struct {
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// BulkConfig paces the sequential bulk grabber.
type BulkConfig struct {
	FetchPerMinute int `yaml:"fetch_per_minute"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Bind string `yaml:"bind"`
}

// BusConfig selects the event bus backend.
type BusConfig struct {
	Backend string `yaml:"backend"` // "memory" or "nats"
	URL     string `yaml:"url"`     // NATS server URL when backend is "nats"
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Dir      string `yaml:"dir"`
	MinLevel string `yaml:"min_level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	baseDir := filepath.Join(home, ".lockey")
	return &Config{
		Confluence: ConfluenceConfig{
			Timeout: DefaultFetchTimeout,
		},
		Dataset: DatasetConfig{
			Environments:       map[string]string{},
			DefaultEnvironment: DefaultEnvironment,
		},
		Cache: CacheConfig{
			Path: filepath.Join(baseDir, "cache.db"),
		},
		Viewport: ViewportConfig{
			RowHeight: DefaultRowHeight,
			Overscan:  DefaultOverscan,
		},
		Search: SearchConfig{
			DebounceInterval: DefaultDebounceInterval,
		},
		Bulk: BulkConfig{
			FetchPerMinute: DefaultFetchPerMinute,
		},
		API: APIConfig{
			Bind: DefaultAPIBind,
		},
		Bus: BusConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Dir:      filepath.Join(baseDir, "logs"),
			MinLevel: "info",
		},
	}
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".lockey", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOCKEY_CONFLUENCE_DOMAIN"); v != "" {
		cfg.Confluence.Domain = v
	}
	if v := os.Getenv("LOCKEY_CONFLUENCE_PAT"); v != "" {
		cfg.Confluence.Token = v
	} else if v := os.Getenv("PAT"); v != "" && cfg.Confluence.Token == "" {
		// grabber compatibility: bare PAT in the environment
		cfg.Confluence.Token = v
	}
	if v, ok := envBool("LOCKEY_SKIP_TLS_VERIFY"); ok {
		cfg.Confluence.SkipTLSVerify = v
	}
	if v := os.Getenv("LOCKEY_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("LOCKEY_API_BIND"); v != "" {
		cfg.API.Bind = v
	}
	if v := os.Getenv("LOCKEY_BUS_URL"); v != "" {
		cfg.Bus.Backend = "nats"
		cfg.Bus.URL = v
	}
	if v := os.Getenv("LOCKEY_ENV"); v != "" {
		cfg.Dataset.DefaultEnvironment = v
	}

	// grabber compatibility: UAT1=https://... style environment URLs
	for _, name := range []string{"uat1", "uat2", "uat3", "ak"} {
		if v := os.Getenv(strings.ToUpper(name)); v != "" {
			if cfg.Dataset.Environments == nil {
				cfg.Dataset.Environments = map[string]string{}
			}
			if _, exists := cfg.Dataset.Environments[name]; !exists {
				cfg.Dataset.Environments[name] = v
			}
		}
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return parsed, true
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Viewport.RowHeight <= 0 {
		return fmt.Errorf("viewport.row_height must be positive, got %d", c.Viewport.RowHeight)
	}
	if c.Viewport.Overscan < 0 {
		return fmt.Errorf("viewport.overscan must be non-negative, got %d", c.Viewport.Overscan)
	}
	if c.Search.DebounceInterval < 0 {
		return fmt.Errorf("search.debounce_interval must be non-negative")
	}
	if c.Bulk.FetchPerMinute <= 0 {
		return fmt.Errorf("bulk.fetch_per_minute must be positive, got %d", c.Bulk.FetchPerMinute)
	}
	switch c.Bus.Backend {
	case "", "memory", "nats":
	default:
		return fmt.Errorf("bus.backend must be \"memory\" or \"nats\", got %q", c.Bus.Backend)
	}
	if c.Bus.Backend == "nats" && strings.TrimSpace(c.Bus.URL) == "" {
		return fmt.Errorf("bus.url is required when bus.backend is \"nats\"")
	}
	switch c.Logging.MinLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.min_level must be one of debug/info/warn/error, got %q", c.Logging.MinLevel)
	}
	return nil
}

// EnvironmentURL resolves a dataset URL for the named environment.
func (c *Config) EnvironmentURL(name string) (string, bool) {
	if name == "" {
		name = c.Dataset.DefaultEnvironment
	}
	url, ok := c.Dataset.Environments[strings.ToLower(strings.TrimSpace(name))]
	return url, ok && url != ""
}
