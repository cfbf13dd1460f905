// Package config loads the proxy configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all proxy configuration.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	UserAgent string `env:"USER_AGENT" envDefault:"winmastersai-proxy/0.1.0"`

	// Upstream prediction service
	PredictorURL    string        `env:"PREDICTOR_URL,required"`
	PredictorKey    string        `env:"PREDICTOR_KEY"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`
	UpstreamRetries int           `env:"UPSTREAM_RETRIES" envDefault:"2"`

	// MatchIDs is the fixed set behind the aggregate view
	MatchIDs       []string `env:"MATCH_IDS" envSeparator:","`
	MaxConcurrency int      `env:"MAX_CONCURRENCY" envDefault:"0"`

	JWTSecret string `env:"JWT_SECRET,required"`

	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"20s"`
	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"memory"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"localhost:6379"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads the optional dotenv files, then parses and validates the
// environment. Variables already set win over dotenv values.
func Load(dotenvPaths ...string) (*Config, error) {
	if err := loadDotEnv(dotenvPaths...); err != nil {
		return nil, err
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.MatchIDs = cleanIDs(cfg.MatchIDs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// cleanIDs trims ids and drops empty ones, keeping order.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Validate checks the configuration for values the proxy cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.PredictorURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PREDICTOR_URL must be an absolute http(s) url (got %q)", c.PredictorURL)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0 (got %s)", c.UpstreamTimeout)
	}
	if c.UpstreamRetries < 1 {
		return fmt.Errorf("UPSTREAM_RETRIES must be >= 1 (got %d)", c.UpstreamRetries)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0 (got %s)", c.CacheTTL)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be >= 0 (got %d)", c.MaxConcurrency)
	}
	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q (got %q)", BackendMemory, BackendRedis, c.CacheBackend)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
