// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Content  ContentConfig
	Loader   LoaderConfig
	Exam     ExamConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings.
// An empty URL keeps attempts and events in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings for the page cache.
// An empty URL uses an in-process cache.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// ContentConfig points at the course catalogue. An empty path serves the embedded catalogue.
type ContentConfig struct {
	Path   string
	Strict bool // refuse to start when the catalogue has lint findings
}

// LoaderConfig is the retry policy for lazily loaded route content.
type LoaderConfig struct {
	Attempts      int
	Timeout       time.Duration // per attempt
	Backoff       time.Duration // first retry delay, doubled per attempt
	MaxBackoff    time.Duration
	FallbackAfter time.Duration // how long a request waits before the loading page is shown
}

// ExamConfig holds mock exam settings.
type ExamConfig struct {
	Grace time.Duration // accepted lateness past the deadline
}

// AdminConfig holds settings for the content reload endpoint.
type AdminConfig struct {
	TokenHash string // bcrypt hash of the reload bearer token; empty disables the endpoint
}

// CORSConfig holds allowed origins for the JSON API.
type CORSConfig struct {
	Origins []string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 2),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
			TTL: envDuration("LEARN_CACHE_TTL", 10*time.Minute),
		},
		Content: ContentConfig{
			Path:   envStr("LEARN_CONTENT_PATH", ""),
			Strict: envBool("LEARN_CONTENT_STRICT", false),
		},
		Loader: LoaderConfig{
			Attempts:      envInt("LEARN_LOADER_ATTEMPTS", 3),
			Timeout:       envDuration("LEARN_LOADER_TIMEOUT", 10*time.Second),
			Backoff:       envDuration("LEARN_LOADER_BACKOFF", 250*time.Millisecond),
			MaxBackoff:    envDuration("LEARN_LOADER_MAX_BACKOFF", 2*time.Second),
			FallbackAfter: envDuration("LEARN_LOADER_FALLBACK_AFTER", 2*time.Second),
		},
		Exam: ExamConfig{
			Grace: envDuration("LEARN_EXAM_GRACE", 30*time.Second),
		},
		Admin: AdminConfig{
			TokenHash: envStr("LEARN_ADMIN_TOKEN_HASH", ""),
		},
		CORS: CORSConfig{
			Origins: envList("LEARN_CORS_ORIGINS", "http://localhost:3000"),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("LEARN_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Loader.Attempts < 1 {
		return fmt.Errorf("LEARN_LOADER_ATTEMPTS must be at least 1, got %d", c.Loader.Attempts)
	}
	if c.Loader.Timeout <= 0 {
		return fmt.Errorf("LEARN_LOADER_TIMEOUT must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("LEARN_DATABASE_MIN_CONNS (%d) exceeds LEARN_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// HasDatabase returns true if a PostgreSQL URL is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasCache returns true if a Redis/Dragonfly URL is configured.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key, fallback string) []string {
	parts := strings.Split(envStr(key, fallback), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
