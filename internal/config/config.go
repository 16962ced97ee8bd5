package config

import (
	"os"
	"strconv"
	"strings"

	"peakmotif/internal/errors"
)

// Config represents the service configuration for the CLI and API binaries
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Paths    PathConfig
	LogLevel string
}

// DatabaseConfig holds result store connection settings
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds results API settings
type ServerConfig struct {
	Port string
}

// PathConfig holds output locations
type PathConfig struct {
	OutputDir string
}

// Load reads service configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
			URL:    getEnvOrDefault("DATABASE_URL", "peakmotif.db"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Paths: PathConfig{
			OutputDir: getEnvOrDefault("OUTPUT_DIR", "."),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be postgres or sqlite3")
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
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

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvUpper(key, defaultValue string) string {
	return strings.ToUpper(getEnvOrDefault(key, defaultValue))
}
