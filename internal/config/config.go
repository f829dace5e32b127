// Package config loads server settings from defaults, an optional YAML file
// and BOOKMARKS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "BOOKMARKS_"

type Config struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public origin, ex: "https://bookmarks.example.com"
	DBPath  string `yaml:"db_path"`

	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Redis   RedisConfig   `yaml:"redis"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "text" | "json"
}

type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	TTL          time.Duration `yaml:"ttl"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

type OAuthConfig struct {
	Provider     string `yaml:"provider"` // "google" | "github"
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"` // defaults to BaseURL + "/auth/callback"
}

// RedisConfig is optional. An empty Addr keeps the change feed in-process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		Port:    8080,
		BaseURL: "http://localhost:8080",
		DBPath:  "data/bookmarks.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		OAuth: OAuthConfig{
			Provider: "google",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.OAuth.RedirectURL == "" {
		cfg.OAuth.RedirectURL = strings.TrimRight(cfg.BaseURL, "/") + "/auth/callback"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.BaseURL, "BASE_URL")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Session.Secret, "SESSION_SECRET")
	setString(&c.OAuth.Provider, "OAUTH_PROVIDER")
	setString(&c.OAuth.ClientID, "OAUTH_CLIENT_ID")
	setString(&c.OAuth.ClientSecret, "OAUTH_CLIENT_SECRET")
	setString(&c.OAuth.RedirectURL, "OAUTH_REDIRECT_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	errs = append(errs,
		setInt(&c.Port, "PORT"),
		setInt(&c.Redis.DB, "REDIS_DB"),
		setBool(&c.Session.CookieSecure, "COOKIE_SECURE"),
		setDuration(&c.Session.TTL, "SESSION_TTL"),
	)
	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: port %d out of range", c.Port))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: base_url %q must be an absolute http(s) URL", c.BaseURL))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("config: db_path is required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.Log.Format))
	}
	if len(c.Session.Secret) < 16 {
		errs = append(errs, fmt.Errorf("config: session secret must be at least 16 characters (set %sSESSION_SECRET)", envPrefix))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("config: session ttl must be positive"))
	}
	switch c.OAuth.Provider {
	case "google", "github":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported oauth provider %q", c.OAuth.Provider))
	}
	if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("config: oauth client id and secret are required (%sOAUTH_CLIENT_ID, %sOAUTH_CLIENT_SECRET)", envPrefix, envPrefix))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Session.Secret != "" {
		c.Session.Secret = "***REDACTED***"
	}
	if c.OAuth.ClientSecret != "" {
		c.OAuth.ClientSecret = "***REDACTED***"
	}
	if c.Redis.Password != "" {
		c.Redis.Password = "***REDACTED***"
	}
	return c
}

// helpers

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid integer for %s%s: %q", envPrefix, key, v)
	}
	*dst = i
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: invalid boolean for %s%s: %q", envPrefix, key, v)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: invalid duration for %s%s: %q", envPrefix, key, v)
	}
	*dst = d
	return nil
}
