// Package config provides application settings, the model allow-list,
// and the static zone/agent catalog.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings holds all environment-derived configuration.
type Settings struct {
	// Backboard gateway
	BackboardAPIKey  string
	BackboardBaseURL string

	// Feature flags
	LedgerEnabled bool

	// Job retention
	JobTTL time.Duration

	// HTTP
	HTTPPort string

	AppEnv string
}

// LoadSettings reads settings from the environment. Values have sensible
// development defaults; only the API key is commonly required.
func LoadSettings() (*Settings, error) {
	ttl, err := getEnvDuration("JOB_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	return &Settings{
		BackboardAPIKey:  os.Getenv("BACKBOARD_API_KEY"),
		BackboardBaseURL: getEnv("BACKBOARD_BASE_URL", "https://app.backboard.io/api"),
		LedgerEnabled:    getEnvBool("LEDGER_ENABLED", true),
		JobTTL:           ttl,
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "development"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
