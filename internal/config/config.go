package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
)

type Config struct {
	Addr           string        `validate:"required"`
	Store          string        `validate:"oneof=sqlite badger"`
	DBPath         string        `validate:"required"`
	DefaultBaseURL string        `validate:"omitempty,url"`
	HTTPTimeout    time.Duration `validate:"gt=0"`
	Markdown       bool
	RateLimits     RateLimits

	Version   string
	Commit    string
	BuildTime string
}

type RateLimits struct {
	MutationsPerMinute int `yaml:"mutations_per_minute" validate:"gte=0"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:        ":5001",
		Store:       StoreSQLite,
		DBPath:      "masterblog.db",
		HTTPTimeout: 30 * time.Second,
	}
}

// Load reads the optional YAML file named by MASTERBLOG_CONFIG, then applies
// environment overrides on top.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("MASTERBLOG_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	addr := envString("MASTERBLOG_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		}
	}
	if addr != "" {
		cfg.Addr = addr
	}
	cfg.Store = envString("MASTERBLOG_STORE", cfg.Store)
	cfg.DBPath = envString("MASTERBLOG_DB", cfg.DBPath)
	cfg.DefaultBaseURL = envString("MASTERBLOG_DEFAULT_BASE_URL", cfg.DefaultBaseURL)
	cfg.HTTPTimeout = envDuration("MASTERBLOG_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.Markdown = envBool("MASTERBLOG_MARKDOWN", cfg.Markdown)
	cfg.RateLimits.MutationsPerMinute = envInt("MASTERBLOG_RL_MUTATIONS_PER_MIN", cfg.RateLimits.MutationsPerMinute)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig mirrors Config with string durations for YAML.
type fileConfig struct {
	Addr           string     `yaml:"addr"`
	Store          string     `yaml:"store"`
	DBPath         string     `yaml:"db"`
	DefaultBaseURL string     `yaml:"default_base_url"`
	HTTPTimeout    string     `yaml:"http_timeout"`
	Markdown       *bool      `yaml:"markdown"`
	RateLimits     RateLimits `yaml:"rate_limits"`
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.Addr != "" {
		c.Addr = fc.Addr
	}
	if fc.Store != "" {
		c.Store = fc.Store
	}
	if fc.DBPath != "" {
		c.DBPath = fc.DBPath
	}
	if fc.DefaultBaseURL != "" {
		c.DefaultBaseURL = fc.DefaultBaseURL
	}
	if fc.HTTPTimeout != "" {
		d, err := time.ParseDuration(fc.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("parse http_timeout %q: %w", fc.HTTPTimeout, err)
		}
		c.HTTPTimeout = d
	}
	if fc.Markdown != nil {
		c.Markdown = *fc.Markdown
	}
	if fc.RateLimits.MutationsPerMinute != 0 {
		c.RateLimits = fc.RateLimits
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and reports the first failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid config: %w", err)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
