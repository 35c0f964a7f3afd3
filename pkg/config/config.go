// Package config loads binary configuration from a YAML file with
// CM360_* environment overrides. Service-account key material is loaded
// here and handed to pkg/auth by value; nothing else reads the key file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raydius/cm360-mcp/pkg/auth"
	"github.com/raydius/cm360-mcp/pkg/cache"
	"github.com/raydius/cm360-mcp/pkg/client"
	"github.com/raydius/cm360-mcp/pkg/pagination"
)

// DefaultScope is the CM360 trafficking API OAuth scope.
const DefaultScope = "https://www.googleapis.com/auth/dfatrafficking"

// Duration wraps time.Duration so YAML can carry values like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration for both binaries. Sections the
// binary does not use (REST address for the MCP server) are ignored.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Auth       AuthConfig       `yaml:"auth"`
	Cache      CacheConfig      `yaml:"cache"`
	Pagination PaginationConfig `yaml:"pagination"`
	REST       RESTConfig       `yaml:"rest"`
}

// LogConfig controls zerolog setup.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// UpstreamConfig controls the CM360 HTTP client.
type UpstreamConfig struct {
	BaseURL   string   `yaml:"base_url"`
	UserAgent string   `yaml:"user_agent"`
	Timeout   Duration `yaml:"timeout"`
	RateLimit float64  `yaml:"rate_limit"`
	RateBurst int      `yaml:"rate_burst"`
}

// AuthConfig locates the service-account key material.
type AuthConfig struct {
	// KeyFile is the path to the service-account JSON key file.
	KeyFile string `yaml:"key_file"`

	// TokenURL overrides the key file's token endpoint (tests only).
	TokenURL string `yaml:"token_url"`

	// Scopes are the OAuth scopes to request.
	Scopes []string `yaml:"scopes"`
}

// CacheConfig controls the Redis response cache. An empty address
// disables caching.
type CacheConfig struct {
	RedisAddr string   `yaml:"redis_addr"`
	RedisDB   int      `yaml:"redis_db"`
	TTL       Duration `yaml:"ttl"`
}

// PaginationConfig bounds aggregation runs.
type PaginationConfig struct {
	MaxPages int `yaml:"max_pages"`
}

// RESTConfig controls the REST binary.
type RESTConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration both binaries start from.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Upstream: UpstreamConfig{
			BaseURL:   client.DefaultBaseURL,
			Timeout:   Duration(client.DefaultTimeout),
			RateLimit: 10,
			RateBurst: 5,
		},
		Auth: AuthConfig{
			Scopes: []string{DefaultScope},
		},
		Cache: CacheConfig{
			TTL: Duration(cache.DefaultTTL),
		},
		Pagination: PaginationConfig{
			MaxPages: pagination.DefaultMaxPages,
		},
		REST: RESTConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML file at path (skipped when empty), applies
// CM360_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv applies CM360_* environment overrides in place.
func (c *Config) FromEnv() error {
	setString(&c.Log.Level, "CM360_LOG_LEVEL")
	if err := setBool(&c.Log.Pretty, "CM360_LOG_PRETTY"); err != nil {
		return err
	}

	setString(&c.Upstream.BaseURL, "CM360_BASE_URL")
	setString(&c.Upstream.UserAgent, "CM360_USER_AGENT")
	if err := setDuration(&c.Upstream.Timeout, "CM360_TIMEOUT"); err != nil {
		return err
	}
	if err := setFloat(&c.Upstream.RateLimit, "CM360_RATE_LIMIT"); err != nil {
		return err
	}
	if err := setInt(&c.Upstream.RateBurst, "CM360_RATE_BURST"); err != nil {
		return err
	}

	setString(&c.Auth.KeyFile, "CM360_KEY_FILE")
	setString(&c.Auth.TokenURL, "CM360_TOKEN_URL")
	if raw := os.Getenv("CM360_SCOPES"); raw != "" {
		c.Auth.Scopes = strings.Split(raw, ",")
	}

	setString(&c.Cache.RedisAddr, "CM360_REDIS_ADDR")
	if err := setInt(&c.Cache.RedisDB, "CM360_REDIS_DB"); err != nil {
		return err
	}
	if err := setDuration(&c.Cache.TTL, "CM360_CACHE_TTL"); err != nil {
		return err
	}

	if err := setInt(&c.Pagination.MaxPages, "CM360_MAX_PAGES"); err != nil {
		return err
	}

	setString(&c.REST.Addr, "CM360_REST_ADDR")
	return nil
}

// Validate returns the first configuration violation found.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.Upstream.BaseURL); err != nil {
		return fmt.Errorf("upstream.base_url: %w", err)
	}
	if c.Upstream.RateLimit < 0 {
		return fmt.Errorf("upstream.rate_limit must not be negative")
	}
	if c.Upstream.Timeout.Std() <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if c.Auth.KeyFile == "" {
		return fmt.Errorf("auth.key_file is required (CM360_KEY_FILE)")
	}
	if len(c.Auth.Scopes) == 0 {
		return fmt.Errorf("auth.scopes must not be empty")
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL.Std() <= 0 {
		return fmt.Errorf("cache.ttl must be positive when redis_addr is set")
	}
	if c.Pagination.MaxPages <= 0 {
		return fmt.Errorf("pagination.max_pages must be positive")
	}
	return nil
}

// LoadServiceAccountKey reads and parses the configured key file,
// applying the token URL override when set.
func (c *Config) LoadServiceAccountKey() (*auth.ServiceAccountKey, error) {
	data, err := os.ReadFile(c.Auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := auth.ParseServiceAccountKey(data)
	if err != nil {
		return nil, err
	}
	if c.Auth.TokenURL != "" {
		key.TokenURL = c.Auth.TokenURL
	}
	return key, nil
}

func setString(target *string, name string) {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
}

func setBool(target *bool, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = parsed
	return nil
}

func setInt(target *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = parsed
	return nil
}

func setFloat(target *float64, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = parsed
	return nil
}

func setDuration(target *Duration, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = Duration(parsed)
	return nil
}
