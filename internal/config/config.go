package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ClothAI server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Provider ProviderConfig
	Uploader UploaderConfig
	Polling  PollingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AuthConfig holds the static API key required on inbound requests.
type AuthConfig struct {
	APIKey string
}

// ProviderConfig points at the garment-swap flow provider.
type ProviderConfig struct {
	BaseURL    string
	FlowID     string
	APIKey     string
	WebhookURL string
	Timeout    time.Duration
}

// UploaderConfig points at the image-hosting provider.
type UploaderConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// PollingConfig bounds the status-poll loop: at most MaxRetries status
// fetches, a constant Interval apart.
type PollingConfig struct {
	MaxRetries int
	Interval   time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CLOTHAI_PORT", 8080),
			Env:  envString("CLOTHAI_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			APIKey: os.Getenv("CLOTHAI_API_KEY"),
		},
		Provider: ProviderConfig{
			BaseURL:    envString("FLOW_BASE_URL", "https://flows.eachlabs.ai/api/v1"),
			FlowID:     os.Getenv("FLOW_ID"),
			APIKey:     os.Getenv("FLOW_API_KEY"),
			WebhookURL: os.Getenv("FLOW_WEBHOOK_URL"),
			Timeout:    envDuration("FLOW_TIMEOUT", 30*time.Second),
		},
		Uploader: UploaderConfig{
			URL:     envString("IMGBB_UPLOAD_URL", "https://api.imgbb.com/1/upload"),
			APIKey:  os.Getenv("IMGBB_API_KEY"),
			Timeout: envDuration("IMGBB_TIMEOUT", 30*time.Second),
		},
		Polling: PollingConfig{
			MaxRetries: envInt("POLL_MAX_RETRIES", 30),
			Interval:   envDurationSecs("POLL_INTERVAL_SECS", 5*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("CLOTHAI_API_KEY is required")
	}

	if c.Provider.FlowID == "" {
		return fmt.Errorf("FLOW_ID is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("FLOW_API_KEY is required")
	}
	if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
		return fmt.Errorf("FLOW_BASE_URL must start with http:// or https://, got %q", c.Provider.BaseURL)
	}

	if c.Uploader.APIKey == "" {
		return fmt.Errorf("IMGBB_API_KEY is required")
	}
	if !strings.HasPrefix(c.Uploader.URL, "http://") && !strings.HasPrefix(c.Uploader.URL, "https://") {
		return fmt.Errorf("IMGBB_UPLOAD_URL must start with http:// or https://, got %q", c.Uploader.URL)
	}

	if c.Polling.MaxRetries <= 0 {
		return fmt.Errorf("POLL_MAX_RETRIES must be positive, got %d", c.Polling.MaxRetries)
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECS must be positive, got %s", c.Polling.Interval)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
