// Package config loads engine configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the sync engine.
type Config struct {
	ServerAddr string
	DataDir    string

	LogLevel  string
	LogFormat string

	FetchTimeout time.Duration
	MaxFeedBytes int64

	MaxConcurrentSyncs int
	FetchRetries       int
	RetryBackoff       time.Duration
	DropThreshold      float64

	DefaultSyncIntervalMin int
	DefaultTimezone        string
}

// Load reads configuration from the environment, applying defaults.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		DataDir:    getEnv("DATA_DIR", "./data"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.FetchTimeout, err = getDuration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxFeedBytes, err = getInt64("MAX_FEED_BYTES", 5*1024*1024); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentSyncs, err = getInt("MAX_CONCURRENT_SYNCS", 5); err != nil {
		return nil, err
	}
	if cfg.FetchRetries, err = getInt("FETCH_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = getDuration("RETRY_BACKOFF", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.DropThreshold, err = getFloat("DROP_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if cfg.DefaultSyncIntervalMin, err = getInt("DEFAULT_SYNC_INTERVAL_MIN", 30); err != nil {
		return nil, err
	}
	cfg.DefaultTimezone = getEnv("DEFAULT_TIMEZONE", "UTC")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxConcurrentSyncs < 1 {
		return errors.New("MAX_CONCURRENT_SYNCS must be at least 1")
	}
	if c.DropThreshold < 0 || c.DropThreshold > 1 {
		return errors.New("DROP_THRESHOLD must be between 0 and 1")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if c.MaxFeedBytes <= 0 {
		return errors.New("MAX_FEED_BYTES must be positive")
	}
	return nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
