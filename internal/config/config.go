package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (digest delivery, optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote expense feed
	FeedBaseURL      string
	FeedTokenURL     string
	FeedClientID     string
	FeedClientSecret string
	FeedScopes       []string
	FeedStaticToken  string

	// Sync behavior
	LookbackDays int
	RecheckToday bool
	SyncInterval time.Duration

	// Analytics
	TargetDailyRate decimal.Decimal
	DefaultCurrency string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendsync.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendsync"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "spend_digests"),

		FeedBaseURL:      getEnv("FEED_BASE_URL", ""),
		FeedTokenURL:     getEnv("FEED_TOKEN_URL", ""),
		FeedClientID:     getEnv("FEED_CLIENT_ID", ""),
		FeedClientSecret: getEnv("FEED_CLIENT_SECRET", ""),
		FeedScopes:       getEnvList("FEED_SCOPES"),
		FeedStaticToken:  getEnv("FEED_STATIC_TOKEN", ""),

		LookbackDays: getEnvInt("LOOKBACK_DAYS", 30),
		RecheckToday: getEnvBool("RECHECK_TODAY", false),
		SyncInterval: getEnvDuration("SYNC_INTERVAL", 6*time.Hour),

		TargetDailyRate: getEnvDecimal("TARGET_DAILY_RATE", decimal.NewFromInt(100)),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "EUR"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	if c.FeedBaseURL == "" {
		errors = append(errors, "FEED_BASE_URL is required")
	} else if parsedURL, err := url.Parse(c.FeedBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid feed base URL '%s': %v", c.FeedBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid feed base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	// Either a static token or a full client-credentials triple.
	hasStatic := c.FeedStaticToken != ""
	hasClientCreds := c.FeedTokenURL != "" && c.FeedClientID != "" && c.FeedClientSecret != ""
	if !hasStatic && !hasClientCreds {
		errors = append(errors, "feed credentials missing: set FEED_STATIC_TOKEN or all of FEED_TOKEN_URL, FEED_CLIENT_ID, FEED_CLIENT_SECRET")
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

	if c.LookbackDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid lookback days %d: must be at least 1", c.LookbackDays))
	} else if c.LookbackDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid lookback days %d: must be at most 365", c.LookbackDays))
	}

	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.TargetDailyRate.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid target daily rate %s: must not be negative", c.TargetDailyRate))
	}

	if c.DefaultCurrency == "" {
		errors = append(errors, "default currency cannot be empty")
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
