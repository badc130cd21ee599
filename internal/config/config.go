package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Values come from environment
// variables, optionally layered over a config file named by CONFIG_FILE.
type Config struct {
	// Environment
	Env string `mapstructure:"env"` // "development", "production", etc.

	// Server
	ServerAddr string `mapstructure:"server_addr"`
	BaseURL    string `mapstructure:"base_url"`

	// Storage. DatabaseURL may be sqlite://path for the embedded store.
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`

	// TLS
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	// Dashboard login (optional)
	OIDCIssuer       string `mapstructure:"oidc_issuer"`
	OIDCClientID     string `mapstructure:"oidc_client_id"`
	OIDCClientSecret string `mapstructure:"oidc_client_secret"`
	OIDCRedirectURL  string `mapstructure:"oidc_redirect_url"`

	// Session
	SessionSecret string `mapstructure:"session_secret"` // Used for signing cookies (min 32 chars)

	// CORS
	CORSOrigins string `mapstructure:"cors_origins"` // Comma-separated allowed origins

	// Search Console
	GoogleClientID        string `mapstructure:"google_client_id"`
	GoogleClientSecret    string `mapstructure:"google_client_secret"`
	GoogleRedirectURL     string `mapstructure:"google_redirect_url"`
	GoogleAuthURL         string `mapstructure:"google_auth_url"`
	GoogleTokenURL        string `mapstructure:"google_token_url"`
	SearchConsoleEndpoint string `mapstructure:"search_console_endpoint"`
	SearchWindowStart     string `mapstructure:"search_window_start"` // YYYY-MM-DD
	SearchWindowEnd       string `mapstructure:"search_window_end"`

	// Gemini
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	GeminiModel   string `mapstructure:"gemini_model"`
	GeminiBaseURL string `mapstructure:"gemini_base_url"`

	// Pipeline tuning
	AnalyzeMaxConcurrency int           `mapstructure:"analyze_max_concurrency"`
	AIRequestsPerSecond   float64       `mapstructure:"ai_requests_per_second"`
	AIMaxRetries          int           `mapstructure:"ai_max_retries"`
	EstimateCacheTTL      time.Duration `mapstructure:"estimate_cache_ttl"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "json" or "console"
}

var defaults = map[string]any{
	"env":                     "development",
	"server_addr":             ":3000",
	"base_url":                "http://localhost:3000",
	"database_url":            "postgres://localhost:5432/keywords?sslmode=disable",
	"redis_url":               "",
	"tls_enabled":             false,
	"tls_cert_file":           "",
	"tls_key_file":            "",
	"oidc_issuer":             "",
	"oidc_client_id":          "",
	"oidc_client_secret":      "",
	"oidc_redirect_url":       "http://localhost:3000/auth/callback",
	"session_secret":          "change-me-in-production-min-32-chars",
	"cors_origins":            "",
	"google_client_id":        "",
	"google_client_secret":    "",
	"google_redirect_url":     "http://localhost:3000/oauth/callback",
	"google_auth_url":         "",
	"google_token_url":        "",
	"search_console_endpoint": "",
	"search_window_start":     "",
	"search_window_end":       "",
	"gemini_api_key":          "",
	"gemini_model":            "gemini-1.5-flash",
	"gemini_base_url":         "",
	"analyze_max_concurrency": 5,
	"ai_requests_per_second":  2.0,
	"ai_max_retries":          2,
	"estimate_cache_ttl":      24 * time.Hour,
	"log_level":               "info",
	"log_format":              "json",
}

// Load reads configuration from the environment and, when CONFIG_FILE is set,
// from that file. Environment variables win over file values.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.AnalyzeMaxConcurrency <= 0 {
		return fmt.Errorf("analyze_max_concurrency must be positive, got %d", c.AnalyzeMaxConcurrency)
	}
	if c.AIRequestsPerSecond <= 0 {
		return fmt.Errorf("ai_requests_per_second must be positive, got %g", c.AIRequestsPerSecond)
	}
	if c.AIMaxRetries < 0 {
		return fmt.Errorf("ai_max_retries must not be negative, got %d", c.AIMaxRetries)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return c.validateWindow()
}

func (c *Config) validateWindow() error {
	if c.SearchWindowStart == "" && c.SearchWindowEnd == "" {
		return nil
	}
	if c.SearchWindowStart == "" || c.SearchWindowEnd == "" {
		return errors.New("search_window_start and search_window_end must be set together")
	}
	start, err := time.Parse(time.DateOnly, c.SearchWindowStart)
	if err != nil {
		return fmt.Errorf("invalid search_window_start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, c.SearchWindowEnd)
	if err != nil {
		return fmt.Errorf("invalid search_window_end: %w", err)
	}
	if start.After(end) {
		return fmt.Errorf("search window starts after it ends (%s > %s)", c.SearchWindowStart, c.SearchWindowEnd)
	}
	return nil
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// OIDCEnabled reports whether dashboard login is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// SearchConsoleEnabled reports whether Google OAuth credentials are present.
func (c *Config) SearchConsoleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
