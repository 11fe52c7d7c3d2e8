// Package cli provides common initialization utilities shared by
// cmd/spendsync, cmd/sync-worker, and cmd/digest-worker.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"spendsync/internal/config"
	applog "spendsync/internal/log"
	"spendsync/internal/storage"
)

// SetupLogger initializes structured logging and sets it as the default.
// LOG_LEVEL (debug, info, warn, error) adjusts verbosity.
func SetupLogger() *slog.Logger {
	logger := applog.New(applog.Config{Level: levelFromEnv()})
	applog.SetDefault(logger)
	return logger.Logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes the ledger repository at the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
