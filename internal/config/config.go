package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"financeiro/internal/log"
)

type Config struct {
	// Finance API
	APIBaseURL  string
	APITimeout  time.Duration
	APIUsername string
	APIPassword string

	// Aggregates
	ProjectionMonths   int
	AggregateCacheTTL  time.Duration
	AggregateCacheSize int

	// Periodic full refresh while signed in; zero disables it
	RefreshInterval time.Duration

	// Mutation journal (SQLite); empty disables it
	JournalDBPath string

	// AMQP; empty URL disables mutation events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

func Load() *Config {
	return &Config{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:5000"),
		APITimeout:  getEnvDuration("API_TIMEOUT", 10*time.Second),
		APIUsername: getEnv("API_USERNAME", ""),
		APIPassword: getEnv("API_PASSWORD", ""),

		ProjectionMonths:   getEnvInt("PROJECTION_MONTHS", 6),
		AggregateCacheTTL:  getEnvDuration("AGGREGATE_CACHE_TTL", 5*time.Minute),
		AggregateCacheSize: getEnvInt("AGGREGATE_CACHE_SIZE", 32),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 0),

		JournalDBPath: getEnv("JOURNAL_DB_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "financeiro"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "financeiro_mutations"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	} else if c.APITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at most 5 minutes", c.APITimeout))
	}

	if (c.APIUsername == "") != (c.APIPassword == "") {
		errors = append(errors, "API_USERNAME and API_PASSWORD must be set together")
	}

	if c.ProjectionMonths < 1 || c.ProjectionMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid projection months %d: must be between 1 and 24", c.ProjectionMonths))
	}

	if c.AggregateCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid aggregate cache size %d: must be at least 1", c.AggregateCacheSize))
	}
	if c.AggregateCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid aggregate cache TTL %v: must be at least 1 second", c.AggregateCacheTTL))
	}

	if c.RefreshInterval != 0 && c.RefreshInterval < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 or at least 10 seconds", c.RefreshInterval))
	}

	if c.JournalDBPath != "" {
		dir := filepath.Dir(c.JournalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create journal database directory '%s': %v", dir, err))
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

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// JournalEnabled reports whether mutation outcomes are persisted locally.
func (c *Config) JournalEnabled() bool {
	return c.JournalDBPath != ""
}

// AMQPEnabled reports whether mutation events are published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
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
