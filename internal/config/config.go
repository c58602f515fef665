// Package config loads runtime configuration from the environment (optionally
// via a .env file) and structured settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for databases and logs (always absolute)
	LogLevel     string
	LogFile      string // Optional rotated log file
	Port         int
	DevMode      bool
	SettingsPath string

	WorkerPoolSize  int
	CacheMaxEntries int
	CacheDefaultTTL time.Duration

	RequestLogRetention       time.Duration
	RequestLogCleanupSchedule string // cron spec with seconds
	DatabaseCheckSchedule     string // cron spec with seconds

	StatusStreamInterval time.Duration

	Settings      *FileConfig
	SettingsFound bool // false when the settings file was absent and defaults are in use
}

// Load reads configuration from environment variables and the settings file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                   absDataDir,
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFile:                   getEnv("LOG_FILE", ""),
		Port:                      getEnvAsInt("PORT", 8888),
		DevMode:                   getEnvAsBool("DEV_MODE", false),
		SettingsPath:              getEnv("POSENV_CONFIG", "config/posenv.yaml"),
		WorkerPoolSize:            getEnvAsInt("WORKER_POOL_SIZE", 10),
		CacheMaxEntries:           getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
		CacheDefaultTTL:           time.Duration(getEnvAsInt("CACHE_DEFAULT_TTL_SECONDS", 60)) * time.Second,
		RequestLogRetention:       time.Duration(getEnvAsInt("REQUEST_LOG_RETENTION_DAYS", 30)) * 24 * time.Hour,
		RequestLogCleanupSchedule: getEnv("REQUEST_LOG_CLEANUP_SCHEDULE", "0 30 0 * * *"),
		DatabaseCheckSchedule:     getEnv("DB_CHECK_SCHEDULE", "0 0 * * * *"),
		StatusStreamInterval:      time.Duration(getEnvAsInt("STATUS_STREAM_INTERVAL_SECONDS", 5)) * time.Second,
	}

	settings, found, err := LoadFile(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings
	cfg.SettingsFound = found

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
// Warmup job parameters are not checked here; an invalid job is disabled on
// its own at startup.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1, got %d", c.WorkerPoolSize)
	}
	if c.CacheDefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL_SECONDS must be positive")
	}
	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be at least 1, got %d", c.CacheMaxEntries)
	}
	if c.RequestLogRetention <= 0 {
		return fmt.Errorf("REQUEST_LOG_RETENTION_DAYS must be positive")
	}
	if c.StatusStreamInterval <= 0 {
		return fmt.Errorf("STATUS_STREAM_INTERVAL_SECONDS must be positive")
	}
	if c.Settings != nil {
		if err := c.Settings.Validate(); err != nil {
			return fmt.Errorf("invalid settings file %s: %w", c.SettingsPath, err)
		}
	}
	return nil
}

// RequestLogPath returns the request log database file.
func (c *Config) RequestLogPath() string {
	return filepath.Join(c.DataDir, "requests.db")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
