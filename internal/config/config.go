package config

import (
	"os"
	"strconv"
	"strings"

	"floodcv/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Analysis AnalysisConfig
	LogLevel string
}

// DatabaseConfig holds study store connection settings
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// AnalysisConfig holds the defaults of an analysis session
type AnalysisConfig struct {
	Seed               int64
	SamplesPerGroup    int
	Allocation         string
	KFolds             int
	NTrials            int
	Workers            int
	PermutationRepeats int
	Features           []string
}

// DefaultFeatures is the feature subset selected when none is configured.
var DefaultFeatures = []string{"VV", "VH", "DEM", "slope", "aspect"}

// AllFeatures is the full feature stack the external pipeline computes.
var AllFeatures = []string{"VV", "VH", "angle", "VV2_VH2", "VV2_plus_VH2", "VV_plus_VH", "DEM", "slope", "aspect"}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: *loadDatabaseConfig(),
		Server:   *loadServerConfig(),
		Analysis: *loadAnalysisConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
		URL:    getEnvOrDefault("DATABASE_URL", "floodcv.db"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Seed:               int64(getEnvIntOrDefault("FLOODCV_SEED", 42)),
		SamplesPerGroup:    getEnvIntOrDefault("FLOODCV_SAMPLES_PER_GROUP", 500),
		Allocation:         getEnvOrDefault("FLOODCV_ALLOCATION", "equalized"),
		KFolds:             getEnvIntOrDefault("FLOODCV_K_FOLDS", 5),
		NTrials:            getEnvIntOrDefault("FLOODCV_N_TRIALS", 10),
		Workers:            getEnvIntOrDefault("FLOODCV_WORKERS", 1),
		PermutationRepeats: getEnvIntOrDefault("FLOODCV_PERMUTATION_REPEATS", 10),
		Features:           getEnvListOrDefault("FLOODCV_FEATURES", DefaultFeatures),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return errors.ConfigInvalid("DATABASE_DRIVER must be sqlite3 or postgres, got " + config.Database.Driver)
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return ValidateAnalysis(&config.Analysis)
}

// ValidateAnalysis checks analysis settings that may also come from CLI flags.
func ValidateAnalysis(a *AnalysisConfig) error {
	if a.SamplesPerGroup < 2 {
		return errors.ConfigInvalid("samples per group must be at least 2")
	}
	switch a.Allocation {
	case "equalized", "proportional":
	default:
		return errors.ConfigInvalid("allocation must be equalized or proportional, got " + a.Allocation)
	}
	if a.KFolds < 2 {
		return errors.ConfigInvalid("k folds must be at least 2")
	}
	if a.NTrials < 1 {
		return errors.ConfigInvalid("n trials must be positive")
	}
	if a.Workers < 1 {
		return errors.ConfigInvalid("workers must be positive")
	}
	if a.PermutationRepeats < 10 {
		return errors.ConfigInvalid("permutation repeats must be at least 10")
	}
	if len(a.Features) == 0 {
		return errors.ConfigInvalid("at least one feature must be selected")
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

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
