package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP. An empty URL makes alerts go to the log instead of a broker.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sweep worker
	SweepInterval   time.Duration
	SweepWorkers    int
	SweepWorkspaces string // comma separated ids; empty means every workspace

	// Period resolution
	Timezone      string
	StrictPeriods bool

	// Tag index cache
	TagCacheSize int
	TagCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends   = []string{"memory", "sqlite"}
	validLogFormats = []string{"text", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
)

func Load() *Config {
	return &Config{
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgets.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgets"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_alerts"),

		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepWorkers:    getEnvInt("SWEEP_WORKERS", 4),
		SweepWorkspaces: getEnv("SWEEP_WORKSPACES", ""),

		Timezone:      getEnv("BUDGET_TIMEZONE", "UTC"),
		StrictPeriods: getEnvBool("STRICT_PERIODS", false),

		TagCacheSize: getEnvInt("TAG_CACHE_SIZE", 0),
		TagCacheTTL:  getEnvDuration("TAG_CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkspaceIDs parses SweepWorkspaces. An empty value yields nil.
func (c *Config) WorkspaceIDs() ([]int64, error) {
	if strings.TrimSpace(c.SweepWorkspaces) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(c.SweepWorkspaces, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid workspace id '%s'", part)
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 second", c.SweepInterval))
	} else if c.SweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at most 24 hours", c.SweepInterval))
	}

	if c.SweepWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid sweep workers %d: must be at least 1", c.SweepWorkers))
	} else if c.SweepWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid sweep workers %d: must be at most 64", c.SweepWorkers))
	}

	if _, err := c.WorkspaceIDs(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid SWEEP_WORKSPACES: %v", err))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.TagCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid tag cache size %d: must not be negative", c.TagCacheSize))
	}
	if c.TagCacheSize > 0 && c.TagCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid tag cache TTL %v: must be positive when the cache is enabled", c.TagCacheTTL))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
