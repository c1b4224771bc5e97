// Package config loads the client configuration from IMAGESYNC_ environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// EnvPrefix prefixes every variable, e.g. IMAGESYNC_BASE_URL.
const EnvPrefix = "IMAGESYNC"

// Config holds the client settings.
type Config struct {
	// BaseURL is the backend API root including the /api prefix.
	BaseURL     string        `envconfig:"BASE_URL" default:"http://localhost:3000/api"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	PageSize    int           `envconfig:"PAGE_SIZE" default:"20"`

	CacheTTL          time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	CacheMaxItemBytes int           `envconfig:"CACHE_MAX_ITEM_BYTES" default:"2097152"`

	// StorePath selects the SQLite durable store; empty keeps everything in memory.
	StorePath          string `envconfig:"STORE_PATH" default:""`
	StoreCapacityBytes int    `envconfig:"STORE_CAPACITY_BYTES" default:"5242880"`

	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"30s"`
	SnapshotMaxAge   time.Duration `envconfig:"SNAPSHOT_MAX_AGE" default:"168h"`

	GeneratorURL    string `envconfig:"GENERATOR_URL" default:"https://api.segmind.com/v1/ssd-1b"`
	GeneratorAPIKey string `envconfig:"GENERATOR_API_KEY" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// New parses the environment and validates the result.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("base_url", cfg.BaseURL).
		Int("page_size", cfg.PageSize).
		Dur("cache_ttl", cfg.CacheTTL).
		Str("store", cfg.StoreKind()).
		Bool("generator_key_present", cfg.GeneratorAPIKey != "").
		Msg("Configuration loaded")
	return &cfg, nil
}

// NewForTesting returns a config pointing at baseURL with in-memory storage.
func NewForTesting(baseURL string) *Config {
	return &Config{
		BaseURL:            baseURL,
		HTTPTimeout:        5 * time.Second,
		PageSize:           20,
		CacheTTL:           5 * time.Minute,
		CacheMaxItemBytes:  2 << 20,
		StoreCapacityBytes: 5 << 20,
		SnapshotInterval:   time.Hour,
		SnapshotMaxAge:     168 * time.Hour,
		LogLevel:           "error",
	}
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BASE_URL %q", c.BaseURL)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be within 1..100, got %d", c.PageSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CacheMaxItemBytes <= 0 || c.StoreCapacityBytes <= 0 {
		return fmt.Errorf("cache and store sizes must be positive")
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	return nil
}

// StoreKind names the configured durable store.
func (c *Config) StoreKind() string {
	if c.StorePath == "" {
		return "memory"
	}
	return "sqlite"
}
