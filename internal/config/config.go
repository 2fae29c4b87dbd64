// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/folio/internal/utils"
	"github.com/joho/godotenv"
)

// Source names, shared with the clients and the rate limiter.
const (
	SourceYahoo     = "yahoo"
	SourceING       = "ing"
	SourceFinnhub   = "finnhub"
	SourceCoingecko = "coingecko"
)

// SourceOrder is the default waterfall priority.
var SourceOrder = []string{SourceING, SourceYahoo, SourceFinnhub, SourceCoingecko}

// RateLimit is a per-source request budget.
type RateLimit struct {
	Max    int
	Window time.Duration
}

var defaultRateLimits = map[string]RateLimit{
	SourceYahoo:     {Max: 100, Window: time.Minute},
	SourceING:       {Max: 60, Window: time.Minute},
	SourceFinnhub:   {Max: 60, Window: time.Minute},
	SourceCoingecko: {Max: 30, Window: time.Minute},
}

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the snapshot database (always absolute)
	Port     int
	DevMode  bool
	LogLevel string
	LogFile  string // empty = console only

	// Empty base URLs select each client's public endpoint
	FinnhubAPIKey       string
	YahooBaseURL        string
	INGBaseURL          string
	FinnhubBaseURL      string
	CoingeckoBaseURL    string
	CoingeckoVsCurrency string

	CacheMaxEntries  int
	CacheTTL         time.Duration
	QuoteMaxAge      time.Duration
	SearchMaxAge     time.Duration
	SearchPriceLimit int
	UpstreamTimeout  time.Duration

	RateLimits map[string]RateLimit

	SnapshotSchedule    string // empty disables the refresh job
	SnapshotIdentifiers []string
	SnapshotRetention   time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("FOLIO_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  dataDir,
		Port:     getEnvAsInt("FOLIO_PORT", 8010),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		FinnhubAPIKey:       getEnv("FINNHUB_API_KEY", ""),
		YahooBaseURL:        getEnv("YAHOO_BASE_URL", ""),
		INGBaseURL:          getEnv("ING_BASE_URL", ""),
		FinnhubBaseURL:      getEnv("FINNHUB_BASE_URL", ""),
		CoingeckoBaseURL:    getEnv("COINGECKO_BASE_URL", ""),
		CoingeckoVsCurrency: getEnv("COINGECKO_VS_CURRENCY", "EUR"),

		CacheMaxEntries:  getEnvAsInt("CACHE_MAX_ENTRIES", 5000),
		CacheTTL:         getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		QuoteMaxAge:      getEnvAsDuration("QUOTE_MAX_AGE", 60*time.Second),
		SearchMaxAge:     getEnvAsDuration("SEARCH_MAX_AGE", 5*time.Minute),
		SearchPriceLimit: getEnvAsInt("SEARCH_PRICE_LIMIT", 10),
		UpstreamTimeout:  getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		RateLimits: loadRateLimits(),

		SnapshotSchedule:    getEnvAllowEmpty("SNAPSHOT_SCHEDULE", "@every 15m"),
		SnapshotIdentifiers: utils.ParseIdentifiers(getEnv("SNAPSHOT_IDENTIFIERS", "")),
		SnapshotRetention:   getEnvAsDuration("SNAPSHOT_RETENTION", 90*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadRateLimits reads <SOURCE>_RATE_LIMIT and <SOURCE>_RATE_WINDOW for
// every known source.
func loadRateLimits() map[string]RateLimit {
	limits := make(map[string]RateLimit, len(defaultRateLimits))
	for source, def := range defaultRateLimits {
		prefix := strings.ToUpper(source)
		limits[source] = RateLimit{
			Max:    getEnvAsInt(prefix+"_RATE_LIMIT", def.Max),
			Window: getEnvAsDuration(prefix+"_RATE_WINDOW", def.Window),
		}
	}
	return limits
}

// SnapshotDBPath returns the location of the snapshot database.
func (c *Config) SnapshotDBPath() string {
	return filepath.Join(c.DataDir, "snapshots.db")
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.CacheMaxEntries)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.QuoteMaxAge <= 0 {
		return fmt.Errorf("QUOTE_MAX_AGE must be positive, got %s", c.QuoteMaxAge)
	}
	if c.SearchMaxAge <= 0 {
		return fmt.Errorf("SEARCH_MAX_AGE must be positive, got %s", c.SearchMaxAge)
	}
	if c.QuoteMaxAge > c.CacheTTL {
		return fmt.Errorf("QUOTE_MAX_AGE (%s) cannot exceed CACHE_TTL (%s)", c.QuoteMaxAge, c.CacheTTL)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	for source, limit := range c.RateLimits {
		if limit.Max > 0 && limit.Window <= 0 {
			return fmt.Errorf("%s rate window must be positive", source)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an explicitly empty variable from an unset one.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
