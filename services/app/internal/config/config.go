package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/bookineo/bookineo/pkg/config"
)

// Config holds all configuration for the terminal application.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"BOOKINEO_LOG_FILE" envDefault:"bookineo.log"`

	APIURL          string        `env:"BOOKINEO_API_URL" envDefault:"http://localhost:8080/api/v1"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	HTTPMaxRetries  int           `env:"HTTP_MAX_RETRIES" envDefault:"2"`
	SessionDB       string        `env:"BOOKINEO_SESSION_DB" envDefault:"bookineo-session.db"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30s"`
	RefreshLeeway   time.Duration `env:"REFRESH_LEEWAY" envDefault:"1m"`
	BootstrapWait   time.Duration `env:"BOOTSTRAP_TIMEOUT" envDefault:"5s"`

	MetricsAddr string `env:"BOOKINEO_METRICS_ADDR"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BOOKINEO_API_URL must be an absolute http(s) URL, got %q", c.APIURL))
	}
	if c.SessionDB == "" {
		errs = append(errs, errors.New("BOOKINEO_SESSION_DB must not be empty"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if c.HTTPMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("HTTP_MAX_RETRIES must not be negative"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval))
	}
	if c.RefreshLeeway < 0 {
		errs = append(errs, fmt.Errorf("REFRESH_LEEWAY must not be negative"))
	}
	if c.BootstrapWait <= 0 {
		errs = append(errs, fmt.Errorf("BOOTSTRAP_TIMEOUT must be positive, got %s", c.BootstrapWait))
	}

	return errors.Join(errs...)
}
