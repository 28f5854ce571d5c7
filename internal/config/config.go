// Package config loads the bookmarks service configuration from environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL,required,notEmpty"`

	// BaseURL prefixes every hyperlink in bookmark resources.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Principal limits come from the caller's tier; the IP limit guards the
	// authentication step itself.
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitIPEnabled  bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS      int  `env:"RATE_LIMIT_IP_RPS" envDefault:"100"`
	RateLimitIPBurst    int  `env:"RATE_LIMIT_IP_BURST" envDefault:"20"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MaxRequestBodySize int64    `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// StrictBookmarkOwnership hides other accounts' bookmarks from
	// GET /bookmarks/{bookmarkId}.
	StrictBookmarkOwnership bool `env:"STRICT_BOOKMARK_OWNERSHIP" envDefault:"false"`

	SeedDemoData  bool     `env:"SEED_DEMO_DATA" envDefault:"false"`
	SeedUsernames []string `env:"SEED_USERNAMES" envSeparator:"," envDefault:"jhoeller,dsyer,pwebb,jlong"`
	SeedPassword  string   `env:"SEED_PASSWORD" envDefault:"password"`

	EventsEnabled  bool `env:"EVENTS_ENABLED" envDefault:"true"`
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigins returns the CORS origins with blanks removed.
func (c *Config) AllowedOrigins() []string {
	return compact(c.CORSAllowedOrigins)
}

// SeedUsernameList returns the demo usernames with blanks and duplicates removed.
func (c *Config) SeedUsernameList() []string {
	out := make([]string, 0, len(c.SeedUsernames))
	for _, name := range compact(c.SeedUsernames) {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of %v, got %q", validLogLevels, c.LogLevel))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of %v, got %q", validLogFormats, c.LogFormat))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.SeedDemoData && c.SeedPassword == "" {
		errs = append(errs, errors.New("SEED_PASSWORD is required when SEED_DEMO_DATA is set"))
	}
	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
