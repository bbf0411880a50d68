// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pollen-club/backoffice/pkg/retry"
)

// Config is the process configuration. Business settings such as the budget
// are stored in the database, not here.
type Config struct {
	APIURL           string        `envconfig:"API_URL" required:"true"`
	DBPath           string        `envconfig:"DB_PATH" default:"data/pollen.db"`
	LogFormat        string        `envconfig:"LOG_FORMAT"`
	GinMode          string        `envconfig:"GIN_MODE" default:"release"`
	CorsAllowOrigins []string      `envconfig:"CORS_ALLOW_ORIGINS"`
	EnablePprof      bool          `envconfig:"ENABLE_PPROF"`
	SeedFile         string        `envconfig:"SEED_FILE"`
	DismissalCron    string        `envconfig:"DISMISSAL_SCHEDULE" default:"0 3 * * *"`
	ReviewCron       string        `envconfig:"REVIEW_SCHEDULE" default:"0 8 * * 1"`
	AllocationCron   string        `envconfig:"ALLOCATION_SCHEDULE"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBackoff     time.Duration `envconfig:"RETRY_BACKOFF" default:"1s"`

	// URL is APIURL parsed
	URL *url.URL `ignored:"true"`
}

// Load processes the environment and validates the result.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}

	u, err := url.Parse(strings.TrimSuffix(c.APIURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("environment variable API_URL must be an absolute URL, got %q", c.APIURL)
	}
	c.URL = u

	switch c.LogFormat {
	case "", "human", "json":
	default:
		return Config{}, fmt.Errorf("environment variable LOG_FORMAT must be human or json, got %q", c.LogFormat)
	}

	if c.RetryMaxAttempts < 1 {
		return Config{}, fmt.Errorf("environment variable RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}

	return c, nil
}

// RetryPolicy returns the retry policy for scheduled jobs.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryMaxAttempts,
		Backoff:     c.RetryBackoff,
		Multiplier:  retry.DefaultPolicy.Multiplier,
	}
}
