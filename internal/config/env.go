package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnv overrides cfg with ACSWEEP_* environment variables.
//
// Environment variables:
//   - ACSWEEP_BASE_URL, ACSWEEP_PATH, ACSWEEP_PARAM, ACSWEEP_ALPHABET
//   - ACSWEEP_PAGE_PARAM, ACSWEEP_NEXT_PAGE_KEY, ACSWEEP_MAX_PAGES
//   - ACSWEEP_INTER_REQUEST_DELAY, ACSWEEP_RETRY_DELAY, ACSWEEP_MAX_RETRY_DELAY
//   - ACSWEEP_MAX_ATTEMPTS, ACSWEEP_RATE_LIMIT_STATUS, ACSWEEP_REQUEST_TIMEOUT
//   - ACSWEEP_MAX_RPS, ACSWEEP_MAX_IN_FLIGHT, ACSWEEP_WORKERS
//   - ACSWEEP_PROGRESS_EVERY, ACSWEEP_PROGRESS_INTERVAL, ACSWEEP_MAX_PREFIX_LEN
//   - ACSWEEP_OUTPUT, ACSWEEP_ARCHIVE_PATH, ACSWEEP_METRICS_ADDR
//   - ACSWEEP_EXTRA_KEYS: comma-separated list
//   - ACSWEEP_BREAKER_ENABLED, ACSWEEP_BREAKER_FAILURE_THRESHOLD, ACSWEEP_BREAKER_OPEN_TIMEOUT
//
// Returns an error if any environment variable has an invalid value.
func ApplyEnv(cfg *Config) error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"ACSWEEP_BASE_URL", &cfg.BaseURL},
		{"ACSWEEP_PATH", &cfg.Path},
		{"ACSWEEP_PARAM", &cfg.Param},
		{"ACSWEEP_ALPHABET", &cfg.Alphabet},
		{"ACSWEEP_PAGE_PARAM", &cfg.PageParam},
		{"ACSWEEP_NEXT_PAGE_KEY", &cfg.NextPageKey},
		{"ACSWEEP_OUTPUT", &cfg.Output},
		{"ACSWEEP_ARCHIVE_PATH", &cfg.ArchivePath},
		{"ACSWEEP_METRICS_ADDR", &cfg.MetricsAddr},
	}
	for _, s := range strs {
		if err := parseEnvString(s.key, s.dest); err != nil {
			return err
		}
	}

	ints := []struct {
		key  string
		dest *int
	}{
		{"ACSWEEP_MAX_ATTEMPTS", &cfg.MaxAttempts},
		{"ACSWEEP_RATE_LIMIT_STATUS", &cfg.RateLimitStatus},
		{"ACSWEEP_MAX_IN_FLIGHT", &cfg.MaxInFlight},
		{"ACSWEEP_WORKERS", &cfg.Workers},
		{"ACSWEEP_PROGRESS_EVERY", &cfg.ProgressEvery},
		{"ACSWEEP_MAX_PREFIX_LEN", &cfg.MaxPrefixLen},
		{"ACSWEEP_MAX_PAGES", &cfg.MaxPages},
		{"ACSWEEP_BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold},
	}
	for _, i := range ints {
		if err := parseEnvInt(i.key, i.dest); err != nil {
			return err
		}
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"ACSWEEP_INTER_REQUEST_DELAY", &cfg.InterRequestDelay},
		{"ACSWEEP_RETRY_DELAY", &cfg.RetryDelay},
		{"ACSWEEP_MAX_RETRY_DELAY", &cfg.MaxRetryDelay},
		{"ACSWEEP_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"ACSWEEP_PROGRESS_INTERVAL", &cfg.ProgressInterval},
		{"ACSWEEP_BREAKER_OPEN_TIMEOUT", &cfg.Breaker.OpenTimeout},
	}
	for _, d := range durations {
		if err := parseEnvDuration(d.key, d.dest); err != nil {
			return err
		}
	}

	if err := parseEnvFloat("ACSWEEP_MAX_RPS", &cfg.MaxRPS); err != nil {
		return err
	}
	if err := parseEnvBool("ACSWEEP_BREAKER_ENABLED", &cfg.Breaker.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("ACSWEEP_EXTRA_KEYS"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		cfg.ExtraKeys = keys
	}

	return nil
}

// Load reads the config file at path (missing is fine), applies the
// environment and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a duration (including the "d" suffix) from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
