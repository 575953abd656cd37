// Package config provides application configuration management using Viper.
// Configuration is loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Cursor   CursorConfig   `mapstructure:"cursor"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Overview OverviewConfig `mapstructure:"overview"`
	Index    IndexConfig    `mapstructure:"index"`
	Provider ProviderConfig `mapstructure:"provider"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // development, staging, production
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
	// BaseURL prefixes every link in STAC documents. Empty means
	// root-relative links.
	BaseURL     string `mapstructure:"base_url"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings for caching and locking.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds product summary caching settings.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SummaryTTL time.Duration `mapstructure:"summary_ttl"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

// SearchConfig holds page size limits and the time zone used to expand
// dates.
type SearchConfig struct {
	DefaultPageSize  int    `mapstructure:"default_page_size"`
	MaxPageSize      int    `mapstructure:"max_page_size"`
	GroupingTimezone string `mapstructure:"grouping_timezone"`
}

// Location loads the grouping time zone.
func (c *SearchConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.GroupingTimezone)
	if err != nil {
		return nil, fmt.Errorf("loading grouping timezone %q: %w", c.GroupingTimezone, err)
	}
	return loc, nil
}

// CursorConfig holds pagination cursor settings. Replicas must share the
// secret for cursors to survive load balancing.
type CursorConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"` // 0 disables expiry
}

// CatalogConfig sizes the in-process product cache.
type CatalogConfig struct {
	LRUSize int           `mapstructure:"lru_size"`
	LRUTTL  time.Duration `mapstructure:"lru_ttl"`
}

// OverviewConfig shapes the footprint, region and timeline endpoints.
// Above MaxFootprints datasets, footprints are dissolved into H3 cells of
// OutlineResolution.
type OverviewConfig struct {
	MaxFootprints     int `mapstructure:"max_footprints"`
	OutlineResolution int `mapstructure:"outline_resolution"`
}

// IndexConfig selects the record source.
type IndexConfig struct {
	Backend     string `mapstructure:"backend"` // postgres, memory
	SeedFixture bool   `mapstructure:"seed_fixture"`
}

// ProviderConfig lists the upstream STAC indexes datasets are ingested from.
type ProviderConfig struct {
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
}

// UpstreamConfig holds a single upstream's configuration.
type UpstreamConfig struct {
	Name     string        `mapstructure:"name"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
	MaxPages int           `mapstructure:"max_pages"`
	Retry    RetryConfig   `mapstructure:"retry"`
	CB       CBConfig      `mapstructure:"circuit_breaker"`
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

// CBConfig holds circuit breaker settings.
type CBConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// SyncConfig holds background sync worker settings.
type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	OnStartup        bool          `mapstructure:"on_startup"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BatchSize        int           `mapstructure:"batch_size"`
	RegionResolution int           `mapstructure:"region_resolution"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, file path
	// Verbose keeps informational entries. When false only warnings and
	// errors are written.
	Verbose bool `mapstructure:"verbose"`
}

// SentryConfig holds Sentry error tracking settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found, continue with defaults + env vars
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Search.DefaultPageSize < 1 {
		return fmt.Errorf("search.default_page_size must be at least 1")
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search.max_page_size (%d) is below search.default_page_size (%d)",
			c.Search.MaxPageSize, c.Search.DefaultPageSize)
	}
	if c.Overview.OutlineResolution < 0 || c.Overview.OutlineResolution > 15 {
		return fmt.Errorf("overview.outline_resolution must be 0..15, got %d", c.Overview.OutlineResolution)
	}
	switch c.Index.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("index.backend must be postgres or memory, got %q", c.Index.Backend)
	}
	seen := map[string]bool{}
	for i, u := range c.Provider.Upstreams {
		if u.Name == "" || u.BaseURL == "" {
			return fmt.Errorf("provider.upstreams[%d] needs a name and base_url", i)
		}
		if seen[u.Name] {
			return fmt.Errorf("provider.upstreams: duplicate name %q", u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "datacube-explorer")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", true)
	v.SetDefault("app.base_url", "")
	v.SetDefault("app.title", "Datacube Explorer")
	v.SetDefault("app.description", "Spatiotemporal datasets indexed by the datacube")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "datacube")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "secret")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.summary_ttl", "15m")
	v.SetDefault("cache.key_prefix", "datacube")

	// Search defaults
	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.max_page_size", 100)
	v.SetDefault("search.grouping_timezone", "Australia/Darwin")

	// Cursor defaults
	v.SetDefault("cursor.secret", "")
	v.SetDefault("cursor.ttl", "0s")

	// Catalog defaults
	v.SetDefault("catalog.lru_size", 256)
	v.SetDefault("catalog.lru_ttl", "1m")

	// Overview defaults
	v.SetDefault("overview.max_footprints", 600)
	v.SetDefault("overview.outline_resolution", 4)

	// Index defaults
	v.SetDefault("index.backend", "postgres")
	v.SetDefault("index.seed_fixture", false)

	// Sync defaults
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", "15m")
	v.SetDefault("sync.on_startup", true)
	v.SetDefault("sync.timeout", "5m")
	v.SetDefault("sync.batch_size", 500)
	v.SetDefault("sync.region_resolution", 5)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.verbose", true)

	// Sentry defaults
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
