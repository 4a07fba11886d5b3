// Package config provides environment-variable configuration loading for
// the gateway, following a defaults-then-overrides model.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Providers   ProvidersConfig
	Admin       AdminConfig
	RateLimit   RateLimitConfig
	QuotaDefaults QuotaDefaultsConfig
	LogRotation LogRotationConfig
	LogLevel    string
	LogPrompts  bool
}

// ServerConfig holds HTTP bind settings.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	DatabaseURL  string // server backend (postgres) connection string; empty = use SQLite
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
}

// Backend reports which persistence backend this configuration selects.
func (d DatabaseConfig) Backend() string {
	if d.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

// ProvidersConfig holds upstream credentials, the outbound rate limit, and
// the static per-provider model allowlist.
type ProvidersConfig struct {
	OpenAIAPIKey       string
	AnthropicAPIKey    string
	UpstreamRatePerSec float64

	OpenAIModels        []string
	OpenAIDefaultModel  string
	AnthropicModels     []string
	AnthropicDefaultModel string
}

// AdminConfig holds the single operator bearer token.
type AdminConfig struct {
	Token string
}

// RateLimitConfig holds the global per-identity admission rate limit.
type RateLimitConfig struct {
	Max       int
	WindowMS  int
}

// QuotaDefaultsConfig holds the defaults applied to newly created users.
type QuotaDefaultsConfig struct {
	DailyRequests      int
	DailyTokens        int
	MonthlySpendCapUSD *decimal.Decimal
}

// LogRotationConfig holds log rotation settings powered by lumberjack.
type LogRotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Default returns the default configuration before environment overrides.
func Default() *Config {
	defaultSpendCap := decimal.NewFromInt(50)
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3100,
		},
		Database: DatabaseConfig{
			SQLitePath:   "./data/gateway.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Providers: ProvidersConfig{
			UpstreamRatePerSec:    5,
			OpenAIModels:          []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
			OpenAIDefaultModel:    "gpt-4o-mini",
			AnthropicModels:       []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", "claude-3-opus-20240229"},
			AnthropicDefaultModel: "claude-3-5-haiku-20241022",
		},
		RateLimit: RateLimitConfig{
			Max:      100,
			WindowMS: 60000,
		},
		QuotaDefaults: QuotaDefaultsConfig{
			DailyRequests:      1000,
			DailyTokens:        100000,
			MonthlySpendCapUSD: &defaultSpendCap,
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		LogLevel:   "info",
		LogPrompts: false,
	}
}

// Validate checks the configuration for the invariants the process cannot
// start without.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "port", Message: "must be between 1 and 65535"}
	}
	if len(c.Admin.Token) < 16 {
		return &ConfigError{Field: "admin_token", Message: "must be at least 16 characters"}
	}
	if c.Providers.OpenAIAPIKey == "" && c.Providers.AnthropicAPIKey == "" {
		return &ConfigError{Field: "providers", Message: "at least one of OPENAI_API_KEY or ANTHROPIC_API_KEY must be set"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}

// Helper functions for environment variable parsing, following the
// teacher's own avoidance of an external env-parsing library.

func getEnvStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDecimalOptional(key string) *decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	lower := strings.ToLower(v)
	return lower == "true" || lower == "1" || lower == "yes" || lower == "on"
}
