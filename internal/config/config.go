package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	CatalogBaseURL    string
	HTTPPort          string
	LogLevel          string
	DatabaseURL       string
	TokenStore        string // "sqlite" or "redis"
	RedisURL          string
	RedisPrefix       string
	HTTPTimeout       time.Duration
	ReportsTimeout    time.Duration
	TokenExpiryLeeway time.Duration
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8000/api"),
		CatalogBaseURL:    getEnv("CATALOG_BASE_URL", "http://localhost:8001"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		DatabaseURL:       getEnv("DATABASE_URL", "afyacare_client.db"),
		TokenStore:        strings.ToLower(getEnv("TOKEN_STORE", "sqlite")),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:       getEnv("REDIS_PREFIX", "afyacare"),
		HTTPTimeout:       getEnvAsDuration("HTTP_TIMEOUT", 0),
		ReportsTimeout:    getEnvAsDuration("REPORTS_TIMEOUT", 15*time.Second),
		TokenExpiryLeeway: getEnvAsDuration("TOKEN_EXPIRY_LEEWAY", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{"API_BASE_URL": c.APIBaseURL, "CATALOG_BASE_URL": c.CatalogBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	switch c.TokenStore {
	case "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL cannot be empty when TOKEN_STORE=sqlite")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL cannot be empty when TOKEN_STORE=redis")
		}
	default:
		return fmt.Errorf("TOKEN_STORE must be sqlite or redis, got %q", c.TokenStore)
	}
	if c.HTTPTimeout < 0 || c.ReportsTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	// Bare integers are read as seconds.
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
