package config

import (
	"fmt"
	"io"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/monolith/internal/logging"
	"github.com/GriffinCanCode/monolith/internal/policy"
)

// Config holds the environment-level defaults of the command line.
type Config struct {
	Fetch   FetchConfig
	Cache   CacheConfig
	Logging LogConfig
}

// FetchConfig holds network defaults.
type FetchConfig struct {
	Timeout          time.Duration `envconfig:"MONOLITH_TIMEOUT" default:"60s"`
	UserAgent        string        `envconfig:"MONOLITH_USER_AGENT"`
	Insecure         bool          `envconfig:"MONOLITH_INSECURE" default:"false"`
	Retries          int           `envconfig:"MONOLITH_RETRIES" default:"2"`
	RateLimit        float64       `envconfig:"MONOLITH_RATE_LIMIT" default:"0"`
	BreakerThreshold uint32        `envconfig:"MONOLITH_BREAKER_THRESHOLD" default:"3"`
}

// CacheConfig holds asset cache settings.
type CacheConfig struct {
	Disk        bool   `envconfig:"MONOLITH_DISK_CACHE" default:"true"`
	MinDiskSize int    `envconfig:"MONOLITH_CACHE_MIN_DISK_SIZE" default:"10240"`
	Path        string `envconfig:"MONOLITH_CACHE_PATH"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:          policy.DefaultTimeout,
			Retries:          2,
			BreakerThreshold: 3,
		},
		Cache: CacheConfig{
			Disk:        true,
			MinDiskSize: 10240,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
	}
}

// Policy returns the base policy these defaults describe.
func (c *Config) Policy() policy.Policy {
	p := policy.Default()
	p.Timeout = c.Fetch.Timeout
	p.Insecure = c.Fetch.Insecure
	if c.Fetch.UserAgent != "" {
		p.UserAgent = c.Fetch.UserAgent
	}
	return p
}

// Logger returns the logger configuration writing to out, silenced on request.
func (c *Config) Logger(silent bool, out io.Writer) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = logging.Format(c.Logging.Format)
	cfg.Silent = silent
	cfg.Output = out
	return cfg
}
