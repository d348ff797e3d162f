package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the appview service.
// Environment variables are automatically parsed from the APPVIEW_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"cloud"`

	// Derived or override driver: postgres, sqlite
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration (local target)
	SQLitePath string `envconfig:"SQLITE_PATH" default:"appview.db"`

	// Identity resolution
	HandleResolverURL string        `envconfig:"HANDLE_RESOLVER_URL" default:"https://public.api.bsky.app"`
	HandleCacheTTL    time.Duration `envconfig:"HANDLE_CACHE_TTL" default:"10m"`

	// Preferences cache
	PrefsCacheTTL time.Duration `envconfig:"PREFS_CACHE_TTL" default:"5m"`

	// Sweep interval shared by the TTL caches
	CacheSweepInterval time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1m"`

	// Hydration fan-out deadline; enrichment datasets past it are served
	// empty rather than blocking the request.
	HydrationTimeout time.Duration `envconfig:"HYDRATION_TIMEOUT" default:"2s"`

	// Blob delivery (CDN) base URL
	ImgURIBase string `envconfig:"IMG_URI_BASE" default:"https://cdn.halcyon.social/img"`

	// Feed generator gateway; empty disables custom feed proxying
	FeedGenURL string `envconfig:"FEEDGEN_URL" default:""`

	// Default page size for feed endpoints
	DefaultPageSize int `envconfig:"DEFAULT_PAGE_SIZE" default:"50"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to
// "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "cloud":
		defaultDB = "postgres"
	case "local":
		defaultDB = "sqlite"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: APPVIEW_HTTP_PORT, APPVIEW_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("APPVIEW", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("handle_resolver", cfg.HandleResolverURL).
		Dur("handle_cache_ttl", cfg.HandleCacheTTL).
		Dur("prefs_cache_ttl", cfg.PrefsCacheTTL).
		Dur("hydration_timeout", cfg.HydrationTimeout).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		BuildTarget:        "local",
		DBDriver:           "sqlite",
		Environment:        EnvTesting,
		HTTPPort:           8080,
		SQLitePath:         ":memory:",
		HandleResolverURL:  "http://localhost:2584",
		HandleCacheTTL:     10 * time.Minute,
		PrefsCacheTTL:      5 * time.Minute,
		CacheSweepInterval: time.Minute,
		HydrationTimeout:   2 * time.Second,
		ImgURIBase:         "http://localhost:2585/img",
		FeedGenURL:         "http://localhost:2586",
		DefaultPageSize:    50,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
