package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"statwizard/internal/errors"
)

// DefaultStatsAPIURL is used when STATS_API_URL is not set.
const DefaultStatsAPIURL = "http://localhost:8000"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	StatsAPI StatsAPIConfig
	Database DatabaseConfig
	Sessions SessionConfig
	Policy   PolicyConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string
	GinMode      string
	MaxUploadMB  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StatsAPIConfig holds the remote statistics service settings
type StatsAPIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int
}

// DatabaseConfig holds run history storage settings
type DatabaseConfig struct {
	Driver    string
	URL       string
	Retention time.Duration
}

// SessionConfig holds wizard session lifetime settings
type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	ToastLimit    int
}

// PolicyConfig points at an optional validation policy override file
type PolicyConfig struct {
	File string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   *loadServerConfig(),
		StatsAPI: *loadStatsAPIConfig(),
		Database: *loadDatabaseConfig(),
		Sessions: *loadSessionConfig(),
		Policy:   PolicyConfig{File: getEnvOrDefault("POLICY_FILE", "")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		GinMode:      getEnvOrDefault("GIN_MODE", "debug"),
		MaxUploadMB:  getEnvIntOrDefault("MAX_UPLOAD_MB", 20),
		ReadTimeout:  getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
	}
}

func loadStatsAPIConfig() *StatsAPIConfig {
	return &StatsAPIConfig{
		BaseURL:       strings.TrimRight(getEnvOrDefault("STATS_API_URL", DefaultStatsAPIURL), "/"),
		Timeout:       getEnvDurationOrDefault("STATS_API_TIMEOUT", 60*time.Second),
		MaxConcurrent: getEnvIntOrDefault("STATS_API_MAX_CONCURRENT", 8),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:    getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
		URL:       getEnvOrDefault("DATABASE_URL", "statwizard.db"),
		Retention: getEnvDurationOrDefault("HISTORY_RETENTION", 30*24*time.Hour),
	}
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		IdleTimeout:   getEnvDurationOrDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SweepInterval: getEnvDurationOrDefault("SESSION_SWEEP_INTERVAL", time.Minute),
		ToastLimit:    getEnvIntOrDefault("TOAST_LIMIT", 5),
	}
}

func validateConfig(config *Config) error {
	u, err := url.Parse(config.StatsAPI.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigInvalid(fmt.Sprintf("STATS_API_URL %q is not an absolute URL", config.StatsAPI.BaseURL))
	}
	if config.StatsAPI.Timeout <= 0 {
		return errors.ConfigInvalid("STATS_API_TIMEOUT must be positive")
	}
	if config.StatsAPI.MaxConcurrent < 0 {
		return errors.ConfigInvalid("STATS_API_MAX_CONCURRENT cannot be negative")
	}
	switch config.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("DATABASE_DRIVER %q is not supported (postgres, sqlite3)", config.Database.Driver))
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Server.MaxUploadMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.Sessions.IdleTimeout <= 0 {
		return errors.ConfigInvalid("SESSION_IDLE_TIMEOUT must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Durations accept Go syntax ("45s") or a bare number of seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
