package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for a config file
const DefaultConfigPath = "acsweep.yaml"

// ConfigFile represents the structure of acsweep.yaml
type ConfigFile struct {
	// Preset to use (gentle/standard/aggressive)
	Preset string `yaml:"preset"`

	BaseURL  string `yaml:"base_url"`
	Path     string `yaml:"path"`
	Param    string `yaml:"param"`
	Alphabet string `yaml:"alphabet"`

	PageParam   string `yaml:"page_param"`
	NextPageKey string `yaml:"next_page_key"`
	MaxPages    *int   `yaml:"max_pages"`

	// Duration strings like "1200ms", "1m", "1d"
	InterRequestDelay string `yaml:"inter_request_delay"`
	RetryDelay        string `yaml:"retry_delay"`
	MaxRetryDelay     string `yaml:"max_retry_delay"`
	RequestTimeout    string `yaml:"request_timeout"`
	ProgressInterval  string `yaml:"progress_interval"`

	// Pointers so that an explicit 0 overrides the preset
	MaxAttempts     *int     `yaml:"max_attempts"`
	RateLimitStatus *int     `yaml:"rate_limit_status"`
	MaxRPS          *float64 `yaml:"max_rps"`
	MaxInFlight     *int     `yaml:"max_in_flight"`
	Workers         *int     `yaml:"workers"`
	ProgressEvery   *int     `yaml:"progress_every"`
	MaxPrefixLen    *int     `yaml:"max_prefix_len"`

	Output      string `yaml:"output"`
	ArchivePath string `yaml:"archive_path"`
	MetricsAddr string `yaml:"metrics_addr"`

	Normalizer NormalizerConfig  `yaml:"normalizer"`
	Breaker    BreakerConfigFile `yaml:"breaker"`
}

// NormalizerConfig defines response normalizer settings in the config file.
type NormalizerConfig struct {
	ExtraKeys []string `yaml:"extra_keys"`
}

// BreakerConfigFile defines circuit breaker settings in the config file.
type BreakerConfigFile struct {
	Enabled          *bool  `yaml:"enabled"`
	FailureThreshold *int   `yaml:"failure_threshold"`
	OpenTimeout      string `yaml:"open_timeout"`
}

// LoadFile loads configuration from path. A missing file yields the
// default configuration.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cf.ToConfig()
}

// ToConfig converts a ConfigFile to a Config.
func (cf *ConfigFile) ToConfig() (*Config, error) {
	// Start with preset or default
	var cfg *Config
	if cf.Preset != "" {
		switch Preset(cf.Preset) {
		case PresetGentle, PresetStandard, PresetAggressive:
		default:
			return nil, fmt.Errorf("unknown preset %q (want gentle, standard or aggressive)", cf.Preset)
		}
		cfg = PresetConfig(Preset(cf.Preset))
	} else {
		cfg = Default()
	}

	// Override with file settings
	setString(&cfg.BaseURL, cf.BaseURL)
	setString(&cfg.Path, cf.Path)
	setString(&cfg.Param, cf.Param)
	setString(&cfg.Alphabet, cf.Alphabet)
	setString(&cfg.PageParam, cf.PageParam)
	setString(&cfg.NextPageKey, cf.NextPageKey)
	setString(&cfg.Output, cf.Output)
	setString(&cfg.ArchivePath, cf.ArchivePath)
	setString(&cfg.MetricsAddr, cf.MetricsAddr)

	durations := []struct {
		name string
		raw  string
		dest *time.Duration
	}{
		{"inter_request_delay", cf.InterRequestDelay, &cfg.InterRequestDelay},
		{"retry_delay", cf.RetryDelay, &cfg.RetryDelay},
		{"max_retry_delay", cf.MaxRetryDelay, &cfg.MaxRetryDelay},
		{"request_timeout", cf.RequestTimeout, &cfg.RequestTimeout},
		{"progress_interval", cf.ProgressInterval, &cfg.ProgressInterval},
		{"breaker.open_timeout", cf.Breaker.OpenTimeout, &cfg.Breaker.OpenTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dest = v
	}

	setInt(&cfg.MaxAttempts, cf.MaxAttempts)
	setInt(&cfg.RateLimitStatus, cf.RateLimitStatus)
	setInt(&cfg.MaxInFlight, cf.MaxInFlight)
	setInt(&cfg.Workers, cf.Workers)
	setInt(&cfg.ProgressEvery, cf.ProgressEvery)
	setInt(&cfg.MaxPrefixLen, cf.MaxPrefixLen)
	setInt(&cfg.Breaker.FailureThreshold, cf.Breaker.FailureThreshold)
	setInt(&cfg.MaxPages, cf.MaxPages)
	if cf.MaxRPS != nil {
		cfg.MaxRPS = *cf.MaxRPS
	}
	if cf.Breaker.Enabled != nil {
		cfg.Breaker.Enabled = *cf.Breaker.Enabled
	}
	if len(cf.Normalizer.ExtraKeys) > 0 {
		cfg.ExtraKeys = cf.Normalizer.ExtraKeys
	}

	return cfg, nil
}

// SaveFile writes cfg to path as YAML
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var (
		enabled          = cfg.Breaker.Enabled
		failureThreshold = cfg.Breaker.FailureThreshold
		maxAttempts      = cfg.MaxAttempts
		rateLimitStatus  = cfg.RateLimitStatus
		maxRPS           = cfg.MaxRPS
		maxInFlight      = cfg.MaxInFlight
		workers          = cfg.Workers
		progressEvery    = cfg.ProgressEvery
		maxPrefixLen     = cfg.MaxPrefixLen
		maxPages         = cfg.MaxPages
	)
	cf := ConfigFile{
		Preset:            string(cfg.Preset),
		BaseURL:           cfg.BaseURL,
		Path:              cfg.Path,
		Param:             cfg.Param,
		Alphabet:          cfg.Alphabet,
		PageParam:         cfg.PageParam,
		NextPageKey:       cfg.NextPageKey,
		MaxPages:          &maxPages,
		InterRequestDelay: cfg.InterRequestDelay.String(),
		RetryDelay:        cfg.RetryDelay.String(),
		MaxRetryDelay:     cfg.MaxRetryDelay.String(),
		RequestTimeout:    cfg.RequestTimeout.String(),
		ProgressInterval:  cfg.ProgressInterval.String(),
		MaxAttempts:       &maxAttempts,
		RateLimitStatus:   &rateLimitStatus,
		MaxRPS:            &maxRPS,
		MaxInFlight:       &maxInFlight,
		Workers:           &workers,
		ProgressEvery:     &progressEvery,
		MaxPrefixLen:      &maxPrefixLen,
		Output:            cfg.Output,
		ArchivePath:       cfg.ArchivePath,
		MetricsAddr:       cfg.MetricsAddr,
		Normalizer:        NormalizerConfig{ExtraKeys: cfg.ExtraKeys},
		Breaker: BreakerConfigFile{
			Enabled:          &enabled,
			FailureThreshold: &failureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout.String(),
		},
	}

	data, err := yaml.Marshal(&cf)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ExampleConfigFile returns an example configuration file content.
func ExampleConfigFile() string {
	return `# acsweep configuration
# Values left out fall back to the preset; ACSWEEP_* environment
# variables and command-line flags override this file.

# Preset to use (gentle/standard/aggressive)
preset: standard

# Autocomplete endpoint: GET <base_url><path>?<param>=<prefix>
base_url: http://localhost:8000
path: /v2/autocomplete
param: query

# Follow-up pages: when page_param is set, a response whose next_page_key
# holds a token is re-requested with <page_param>=<token>
page_param: ""                # e.g. page, "" = paging disabled
next_page_key: nextPage
max_pages: 100                # pages per prefix, the first included

# One seed prefix per symbol
alphabet: abcdefghijklmnopqrstuvwxyz

# Pacing and retry
inter_request_delay: 1200ms   # paid before every attempt, grows x1.5 on 429
retry_delay: 1s               # wait after a failed attempt, doubles each time
max_retry_delay: 0s           # cap on retry_delay, 0 = uncapped
max_attempts: 5               # attempts per prefix before giving up
rate_limit_status: 429
request_timeout: 30s
max_rps: 0                    # global request ceiling, 0 = disabled

# Concurrency
workers: 1
max_in_flight: 0              # 0 = same as workers

# Progress is reported every N discoveries or every interval
progress_every: 100
progress_interval: 30s

# Stop deriving prefixes past this length, 0 = unlimited
max_prefix_len: 0

# Outputs
output: extracted_names.json
archive_path: ""              # e.g. .acsweep/runs.db
metrics_addr: ""              # e.g. :9090

# Extra object keys holding result arrays
normalizer:
  extra_keys:
    - names

# Hold requests back after repeated exhausted prefixes
breaker:
  enabled: true
  failure_threshold: 5
  open_timeout: 1m
`
}

func setString(dest *string, v string) {
	if v != "" {
		*dest = v
	}
}

func setInt(dest *int, v *int) {
	if v != nil {
		*dest = *v
	}
}

// parseDuration parses duration strings like "1200ms", "5m", "1d"
func parseDuration(s string) (time.Duration, error) {
	// Handle day suffix
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}

	// Use standard time.ParseDuration for other formats
	return time.ParseDuration(s)
}
