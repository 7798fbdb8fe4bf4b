// Package config holds the settings of a sweep.
//
// Settings are layered: built-in defaults (or a preset), then the YAML
// config file, then ACSWEEP_* environment variables, then command-line
// flags. The result is validated once and treated as immutable for the
// rest of the run.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/steveyegge/acsweep/internal/oracle"
)

// Preset bundles pacing and concurrency defaults.
type Preset string

const (
	PresetGentle     Preset = "gentle"
	PresetStandard   Preset = "standard"
	PresetAggressive Preset = "aggressive"
)

// DefaultAlphabet seeds the frontier when no alphabet is configured.
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyz"

// Config holds the effective configuration of a sweep
type Config struct {
	Preset Preset

	// Endpoint
	BaseURL string // scheme and host, e.g. http://localhost:8000
	Path    string // endpoint path, e.g. /v2/autocomplete
	Param   string // query parameter carrying the prefix

	// Paging: when PageParam is set, a response carrying a truthy
	// NextPageKey is followed with <PageParam>=<token>, up to MaxPages
	// pages per prefix
	PageParam   string // "" = paging disabled
	NextPageKey string
	MaxPages    int

	// Alphabet seeds one single-character prefix per symbol
	Alphabet string

	// Pacing and retry
	InterRequestDelay time.Duration
	RetryDelay        time.Duration
	MaxRetryDelay     time.Duration // 0 = uncapped
	MaxAttempts       int
	RateLimitStatus   int
	RequestTimeout    time.Duration // 0 = none
	MaxRPS            float64       // 0 = disabled
	MaxInFlight       int           // 0 = same as Workers

	// Concurrency
	Workers int

	// Progress reporting: every N discoveries or every interval
	ProgressEvery    int
	ProgressInterval time.Duration

	// MaxPrefixLen stops derivation past this many characters. 0 = unlimited
	MaxPrefixLen int

	// Outputs
	Output      string
	ArchivePath string // "" = no archive
	MetricsAddr string // "" = no metrics endpoint

	// ExtraKeys are object keys tried after the built-in ones when
	// normalizing responses
	ExtraKeys []string

	Breaker BreakerConfig
}

// BreakerConfig configures the request circuit breaker
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
}

// Default returns the standard configuration
func Default() *Config {
	return &Config{
		Preset:            PresetStandard,
		BaseURL:           "http://localhost:8000",
		Path:              "/v2/autocomplete",
		Param:             "query",
		NextPageKey:       "nextPage",
		MaxPages:          100,
		Alphabet:          DefaultAlphabet,
		InterRequestDelay: 1200 * time.Millisecond,
		RetryDelay:        time.Second,
		MaxRetryDelay:     0,
		MaxAttempts:       5,
		RateLimitStatus:   429,
		RequestTimeout:    30 * time.Second,
		MaxRPS:            0,
		MaxInFlight:       0,
		Workers:           1,
		ProgressEvery:     100,
		ProgressInterval:  30 * time.Second,
		MaxPrefixLen:      0,
		Output:            "extracted_names.json",
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			OpenTimeout:      time.Minute,
		},
	}
}

// PresetConfig returns the configuration for a preset. Unknown presets
// fall back to standard.
func PresetConfig(p Preset) *Config {
	cfg := Default()
	switch p {
	case PresetGentle:
		// Slow, patient sweep for services that throttle early
		cfg.Preset = PresetGentle
		cfg.InterRequestDelay = 2500 * time.Millisecond
		cfg.RetryDelay = 2 * time.Second
		cfg.MaxRetryDelay = 5 * time.Minute
		cfg.MaxAttempts = 8
		cfg.Breaker.FailureThreshold = 3
		cfg.Breaker.OpenTimeout = 5 * time.Minute

	case PresetAggressive:
		// Parallel sweep held under a global request ceiling
		cfg.Preset = PresetAggressive
		cfg.InterRequestDelay = 300 * time.Millisecond
		cfg.RetryDelay = 500 * time.Millisecond
		cfg.MaxRetryDelay = time.Minute
		cfg.Workers = 4
		cfg.MaxRPS = 10
		cfg.Breaker.FailureThreshold = 10
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}
	return cfg
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https (got %q)", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must include a host (got %q)", c.BaseURL)
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with / (got %q)", c.Path)
	}
	if c.Param == "" {
		return fmt.Errorf("param is required")
	}
	if c.Alphabet == "" {
		return fmt.Errorf("alphabet is required")
	}
	if c.PageParam != "" {
		if c.PageParam == c.Param {
			return fmt.Errorf("page_param must differ from param (both %q)", c.Param)
		}
		if c.NextPageKey == "" {
			return fmt.Errorf("next_page_key is required when page_param is set")
		}
		if c.MaxPages < 1 {
			return fmt.Errorf("max_pages must be at least 1 when page_param is set (got %d)", c.MaxPages)
		}
	}

	if c.InterRequestDelay < 0 {
		return fmt.Errorf("inter_request_delay cannot be negative (got %v)", c.InterRequestDelay)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry_delay must be positive (got %v)", c.RetryDelay)
	}
	if c.MaxRetryDelay < 0 {
		return fmt.Errorf("max_retry_delay cannot be negative (got %v)", c.MaxRetryDelay)
	}
	if c.MaxRetryDelay > 0 && c.MaxRetryDelay < c.RetryDelay {
		return fmt.Errorf("max_retry_delay (%v) must be >= retry_delay (%v)", c.MaxRetryDelay, c.RetryDelay)
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 100 {
		return fmt.Errorf("max_attempts must be between 1 and 100 (got %d)", c.MaxAttempts)
	}
	if c.RateLimitStatus < 100 || c.RateLimitStatus > 599 {
		return fmt.Errorf("rate_limit_status must be an HTTP status code (got %d)", c.RateLimitStatus)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout cannot be negative (got %v)", c.RequestTimeout)
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max_rps cannot be negative (got %v)", c.MaxRPS)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("max_in_flight cannot be negative (got %d)", c.MaxInFlight)
	}

	if c.Workers < 1 || c.Workers > 256 {
		return fmt.Errorf("workers must be between 1 and 256 (got %d)", c.Workers)
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("progress_every cannot be negative (got %d)", c.ProgressEvery)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval cannot be negative (got %v)", c.ProgressInterval)
	}
	if c.MaxPrefixLen < 0 {
		return fmt.Errorf("max_prefix_len cannot be negative (got %d)", c.MaxPrefixLen)
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}

	if c.Breaker.Enabled {
		if c.Breaker.FailureThreshold < 1 {
			return fmt.Errorf("breaker.failure_threshold must be at least 1 (got %d)", c.Breaker.FailureThreshold)
		}
		if c.Breaker.OpenTimeout <= 0 {
			return fmt.Errorf("breaker.open_timeout must be positive (got %v)", c.Breaker.OpenTimeout)
		}
	}

	return nil
}

// InFlight returns the effective cap on concurrent requests.
func (c *Config) InFlight() int {
	if c.MaxInFlight > 0 {
		return c.MaxInFlight
	}
	return c.Workers
}

// Endpoint returns the full endpoint URL without the query string.
func (c *Config) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + c.Path
}

// OracleConfig converts the request-layer settings for the oracle client.
func (c *Config) OracleConfig(userAgent string) oracle.Config {
	return oracle.Config{
		BaseURL:           c.BaseURL,
		Path:              c.Path,
		Param:             c.Param,
		PageParam:         c.PageParam,
		InterRequestDelay: c.InterRequestDelay,
		RetryDelay:        c.RetryDelay,
		MaxRetryDelay:     c.MaxRetryDelay,
		MaxAttempts:       c.MaxAttempts,
		RateLimitStatus:   c.RateLimitStatus,
		RequestTimeout:    c.RequestTimeout,
		MaxRPS:            c.MaxRPS,
		MaxInFlight:       c.InFlight(),
		Breaker: oracle.BreakerConfig{
			Enabled:          c.Breaker.Enabled,
			FailureThreshold: c.Breaker.FailureThreshold,
			SuccessThreshold: 1,
			OpenTimeout:      c.Breaker.OpenTimeout,
		},
		UserAgent: userAgent,
	}
}

// String returns a human-readable representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Preset: %s, Endpoint: %s?%s=, Alphabet: %d symbols, "+
			"InterRequestDelay: %v, RetryDelay: %v, MaxRetryDelay: %v, MaxAttempts: %d, "+
			"RateLimitStatus: %d, RequestTimeout: %v, MaxRPS: %g, InFlight: %d, Workers: %d, "+
			"ProgressEvery: %d, ProgressInterval: %v, MaxPrefixLen: %d, Output: %s, "+
			"Archive: %q, Metrics: %q, ExtraKeys: %v, Breaker: %t/%d/%v}",
		c.Preset, c.Endpoint(), c.Param, len([]rune(c.Alphabet)),
		c.InterRequestDelay, c.RetryDelay, c.MaxRetryDelay, c.MaxAttempts,
		c.RateLimitStatus, c.RequestTimeout, c.MaxRPS, c.InFlight(), c.Workers,
		c.ProgressEvery, c.ProgressInterval, c.MaxPrefixLen, c.Output,
		c.ArchivePath, c.MetricsAddr, c.ExtraKeys,
		c.Breaker.Enabled, c.Breaker.FailureThreshold, c.Breaker.OpenTimeout,
	)
}
