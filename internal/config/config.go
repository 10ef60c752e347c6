// Package config loads the tracker's immutable run configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/changes"
	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/resilience"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/store"
	"github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"
)

const (
	EnvStoreDriver          = "COMPETE_STORE_DRIVER"
	EnvStoreDir             = "COMPETE_STORE_DIR"
	EnvSQLitePath           = "COMPETE_SQLITE_PATH"
	EnvRedisAddr            = "COMPETE_REDIS_ADDR"
	EnvRedisPassword        = "COMPETE_REDIS_PASSWORD"
	EnvRedisDB              = "COMPETE_REDIS_DB"
	EnvBlobConnectionString = "COMPETE_BLOB_CONNECTION_STRING"
	EnvBlobContainer        = "COMPETE_BLOB_CONTAINER"
	EnvThreshold            = "COMPETE_SIGNIFICANCE_THRESHOLD"
	EnvFetchTimeout         = "COMPETE_FETCH_TIMEOUT"
	EnvUserAgent            = "COMPETE_USER_AGENT"
	EnvContentMode          = "COMPETE_CONTENT_MODE"
	EnvRatePerHost          = "COMPETE_RATE_PER_HOST"
	EnvTimezone             = "COMPETE_TIMEZONE"
	EnvLogLevel             = "COMPETE_LOG_LEVEL"
	EnvLogFormat            = "COMPETE_LOG_FORMAT"
	EnvPort                 = "COMPETE_PORT"
	EnvAllowedOrigins       = "COMPETE_ALLOWED_ORIGINS"
	EnvMetricsTextfile      = "COMPETE_METRICS_TEXTFILE"
	EnvGitHubOutput         = "GITHUB_OUTPUT"
)

// VendorConfig declares one vendor, its display label and its documentation URLs in check order
type VendorConfig struct {
	Key   string   `toml:"key"`
	Label string   `toml:"label"`
	URLs  []string `toml:"urls"`
}

// FetchConfig configures the documentation fetcher
type FetchConfig struct {
	Timeout     string  `toml:"timeout"`
	UserAgent   string  `toml:"user_agent"`
	ContentMode string  `toml:"content_mode"`
	RatePerHost float64 `toml:"rate_per_host"`
	// MaxBodyBytes caps one page; zero keeps the fetcher default.
	MaxBodyBytes int64         `toml:"max_body_bytes"`
	Breaker      BreakerConfig `toml:"breaker"`
}

// BreakerConfig configures the per-vendor circuit breaker
type BreakerConfig struct {
	FailureThreshold int    `toml:"failure_threshold"`
	Cooldown         string `toml:"cooldown"`
}

// LogConfig selects log level and handler format
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig configures the read-only HTTP view
type ServerConfig struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	CacheTTL       string   `toml:"cache_ttl"`
	// RequestsPerMinute is the request budget of a single client IP
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// Config is the root configuration. It is not modified after Load returns.
type Config struct {
	Vendors         []VendorConfig `toml:"vendors"`
	Threshold       *float64       `toml:"significance_threshold"`
	Timezone        string         `toml:"timezone"`
	Fetch           FetchConfig    `toml:"fetch"`
	Store           store.Config   `toml:"store"`
	Log             LogConfig      `toml:"log"`
	Server          ServerConfig   `toml:"server"`
	MetricsTextfile string         `toml:"metrics_textfile"`
	GitHubOutput    string         `toml:"-"`

	location *time.Location
}

// Load reads .env (if present), the TOML file at path (if present), applies COMPETE_*
// environment overrides and validates. When required is true a missing file is an error.
func Load(path string, required bool) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		overlay, err := loadFile(path)
		switch {
		case err == nil:
			cfg.Merge(overlay)
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("load config %s", path), err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, apperrors.NewConfigurationError("invalid configuration", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied
func Default() (*Config, error) {
	return Load("", false)
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge overwrites fields that are set in overlay. A non-empty vendor list replaces the whole watchlist.
func (c *Config) Merge(overlay *Config) {
	if len(overlay.Vendors) > 0 {
		c.Vendors = overlay.Vendors
	}
	if overlay.Threshold != nil {
		v := *overlay.Threshold
		c.Threshold = &v
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
	if overlay.Fetch.Timeout != "" {
		c.Fetch.Timeout = overlay.Fetch.Timeout
	}
	if overlay.Fetch.UserAgent != "" {
		c.Fetch.UserAgent = overlay.Fetch.UserAgent
	}
	if overlay.Fetch.ContentMode != "" {
		c.Fetch.ContentMode = overlay.Fetch.ContentMode
	}
	if overlay.Fetch.RatePerHost != 0 {
		c.Fetch.RatePerHost = overlay.Fetch.RatePerHost
	}
	if overlay.Fetch.MaxBodyBytes != 0 {
		c.Fetch.MaxBodyBytes = overlay.Fetch.MaxBodyBytes
	}
	if overlay.Fetch.Breaker.FailureThreshold != 0 {
		c.Fetch.Breaker.FailureThreshold = overlay.Fetch.Breaker.FailureThreshold
	}
	if overlay.Fetch.Breaker.Cooldown != "" {
		c.Fetch.Breaker.Cooldown = overlay.Fetch.Breaker.Cooldown
	}
	mergeStore(&c.Store, &overlay.Store)
	if overlay.Log.Level != "" {
		c.Log.Level = overlay.Log.Level
	}
	if overlay.Log.Format != "" {
		c.Log.Format = overlay.Log.Format
	}
	if overlay.Server.Port != "" {
		c.Server.Port = overlay.Server.Port
	}
	if len(overlay.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = overlay.Server.AllowedOrigins
	}
	if overlay.Server.CacheTTL != "" {
		c.Server.CacheTTL = overlay.Server.CacheTTL
	}
	if overlay.Server.RequestsPerMinute != 0 {
		c.Server.RequestsPerMinute = overlay.Server.RequestsPerMinute
	}
	if overlay.MetricsTextfile != "" {
		c.MetricsTextfile = overlay.MetricsTextfile
	}
}

func mergeStore(c, overlay *store.Config) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.SQLitePath != "" {
		c.SQLitePath = overlay.SQLitePath
	}
	if overlay.Redis.Addr != "" {
		c.Redis.Addr = overlay.Redis.Addr
	}
	if overlay.Redis.Password != "" {
		c.Redis.Password = overlay.Redis.Password
	}
	if overlay.Redis.DB != 0 {
		c.Redis.DB = overlay.Redis.DB
	}
	if overlay.Redis.Prefix != "" {
		c.Redis.Prefix = overlay.Redis.Prefix
	}
	if overlay.Blob.ConnectionString != "" {
		c.Blob.ConnectionString = overlay.Blob.ConnectionString
	}
	if overlay.Blob.Container != "" {
		c.Blob.Container = overlay.Blob.Container
	}
}

func (c *Config) finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) loadDefaults() {
	if len(c.Vendors) == 0 {
		c.Vendors = DefaultVendors()
	}
	if c.Threshold == nil {
		v := DefaultThreshold
		c.Threshold = &v
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Fetch.Timeout == "" {
		c.Fetch.Timeout = DefaultTimeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Fetch.ContentMode == "" {
		c.Fetch.ContentMode = DefaultContentMode
	}
	if c.Fetch.Breaker.FailureThreshold == 0 {
		c.Fetch.Breaker.FailureThreshold = 3
	}
	if c.Fetch.Breaker.Cooldown == "" {
		c.Fetch.Breaker.Cooldown = "1m"
	}
	c.Store.Defaults()
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.CacheTTL == "" {
		c.Server.CacheTTL = DefaultCacheTTL
	}
	if c.Server.RequestsPerMinute == 0 {
		c.Server.RequestsPerMinute = DefaultRequestsPerMinute
	}
}

func (c *Config) loadEnv() error {
	setString(&c.Store.Driver, EnvStoreDriver)
	setString(&c.Store.Dir, EnvStoreDir)
	setString(&c.Store.SQLitePath, EnvSQLitePath)
	setString(&c.Store.Redis.Addr, EnvRedisAddr)
	setString(&c.Store.Redis.Password, EnvRedisPassword)
	setString(&c.Store.Blob.ConnectionString, EnvBlobConnectionString)
	setString(&c.Store.Blob.Container, EnvBlobContainer)
	setString(&c.Fetch.Timeout, EnvFetchTimeout)
	setString(&c.Fetch.UserAgent, EnvUserAgent)
	setString(&c.Fetch.ContentMode, EnvContentMode)
	setString(&c.Timezone, EnvTimezone)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Log.Format, EnvLogFormat)
	setString(&c.Server.Port, EnvPort)
	setString(&c.MetricsTextfile, EnvMetricsTextfile)
	setString(&c.GitHubOutput, EnvGitHubOutput)

	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		c.Store.Redis.DB = n
	}
	if v := os.Getenv(EnvThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Threshold = &f
	}
	if v := os.Getenv(EnvRatePerHost); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRatePerHost, err)
		}
		c.Fetch.RatePerHost = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations a run cannot use
func (c *Config) Validate() error {
	if len(c.Vendors) == 0 {
		return fmt.Errorf("at least one vendor required")
	}
	seenVendors := make(types.VendorSet, 0, len(c.Vendors))
	seenURLs := make(map[string]bool)
	for _, v := range c.Vendors {
		if v.Key == "" {
			return fmt.Errorf("vendor key required")
		}
		if seenVendors.Contains(types.Vendor(v.Key)) {
			return fmt.Errorf("duplicate vendor %q", v.Key)
		}
		seenVendors = append(seenVendors, types.Vendor(v.Key))
		for _, u := range v.URLs {
			if seenURLs[u] {
				return fmt.Errorf("duplicate url %q", u)
			}
			seenURLs[u] = true
		}
	}

	if c.Threshold == nil || *c.Threshold < 0 || math.IsNaN(*c.Threshold) {
		return fmt.Errorf("significance_threshold must be >= 0")
	}
	if d, err := time.ParseDuration(c.Fetch.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("fetch timeout must be a positive duration, got %q", c.Fetch.Timeout)
	}
	if d, err := time.ParseDuration(c.Fetch.Breaker.Cooldown); err != nil || d <= 0 {
		return fmt.Errorf("breaker cooldown must be a positive duration, got %q", c.Fetch.Breaker.Cooldown)
	}
	if d, err := time.ParseDuration(c.Server.CacheTTL); err != nil || d < 0 {
		return fmt.Errorf("cache_ttl must be a duration, got %q", c.Server.CacheTTL)
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0")
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be >= 0")
	}
	if c.Fetch.RatePerHost < 0 {
		return fmt.Errorf("rate_per_host must be >= 0")
	}
	switch c.Fetch.ContentMode {
	case "raw", "text":
	default:
		return fmt.Errorf("unknown content_mode %q", c.Fetch.ContentMode)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// VendorSet returns the vendor keys in declaration order
func (c *Config) VendorSet() types.VendorSet {
	set := make(types.VendorSet, 0, len(c.Vendors))
	for _, v := range c.Vendors {
		set = append(set, types.Vendor(v.Key))
	}
	return set
}

// Labels maps vendor keys to display labels
func (c *Config) Labels() map[types.Vendor]string {
	labels := make(map[types.Vendor]string, len(c.Vendors))
	for _, v := range c.Vendors {
		label := v.Label
		if label == "" {
			label = v.Key
		}
		labels[types.Vendor(v.Key)] = label
	}
	return labels
}

// Watchlist flattens the vendors' URLs in declaration order
func (c *Config) Watchlist() []changes.Target {
	var targets []changes.Target
	for _, v := range c.Vendors {
		for _, u := range v.URLs {
			targets = append(targets, changes.Target{Vendor: types.Vendor(v.Key), URL: u})
		}
	}
	return targets
}

// SignificanceThreshold is the minimum absolute overall delta logged by a daily run
func (c *Config) SignificanceThreshold() float64 {
	return *c.Threshold
}

// FetchTimeout returns the per-URL timeout
func (c *Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.Timeout)
	return d
}

// BreakerConfig returns the resilience settings for the fetcher
func (c *Config) BreakerConfig() resilience.BreakerConfig {
	cooldown, _ := time.ParseDuration(c.Fetch.Breaker.Cooldown)
	return resilience.BreakerConfig{
		FailureThreshold: c.Fetch.Breaker.FailureThreshold,
		Cooldown:         cooldown,
	}
}

// CacheTTL returns how long the HTTP view caches responses
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Server.CacheTTL)
	return d
}

// Location is the timezone that decides the calendar date of a run
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Today formats now as a calendar date in the configured timezone
func (c *Config) Today(now time.Time) string {
	return now.In(c.Location()).Format(types.DateLayout)
}
