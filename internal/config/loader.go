package config

import (
	"fmt"
	"os"
)

// Load loads configuration: defaults, then a .env file if present, then
// real environment variables (which always win).
func Load() (*Config, error) {
	loadDotEnv()

	cfg := Default()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads a .env file from the working directory, if present.
func loadDotEnv() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // .env file is optional
	}

	for _, line := range splitLines(string(data)) {
		line = trimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		if idx := indexOf(line, '='); idx > 0 {
			key := trimSpace(line[:idx])
			val := trimQuotes(trimSpace(line[idx+1:]))
			if os.Getenv(key) == "" {
				os.Setenv(key, val)
			}
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnvStr("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)

	cfg.Database.DatabaseURL = getEnvStr("DATABASE_URL", cfg.Database.DatabaseURL)
	cfg.Database.SQLitePath = getEnvStr("SQLITE_PATH", cfg.Database.SQLitePath)

	cfg.Providers.OpenAIAPIKey = getEnvStr("OPENAI_API_KEY", cfg.Providers.OpenAIAPIKey)
	cfg.Providers.AnthropicAPIKey = getEnvStr("ANTHROPIC_API_KEY", cfg.Providers.AnthropicAPIKey)
	cfg.Providers.UpstreamRatePerSec = getEnvFloat("UPSTREAM_RATE_LIMIT_PER_SEC", cfg.Providers.UpstreamRatePerSec)
	cfg.Providers.OpenAIModels = getEnvStrList("OPENAI_MODELS", cfg.Providers.OpenAIModels)
	cfg.Providers.OpenAIDefaultModel = getEnvStr("OPENAI_DEFAULT_MODEL", cfg.Providers.OpenAIDefaultModel)
	cfg.Providers.AnthropicModels = getEnvStrList("ANTHROPIC_MODELS", cfg.Providers.AnthropicModels)
	cfg.Providers.AnthropicDefaultModel = getEnvStr("ANTHROPIC_DEFAULT_MODEL", cfg.Providers.AnthropicDefaultModel)

	cfg.Admin.Token = getEnvStr("ADMIN_TOKEN", cfg.Admin.Token)

	cfg.RateLimit.Max = getEnvInt("RATE_LIMIT_MAX", cfg.RateLimit.Max)
	cfg.RateLimit.WindowMS = getEnvInt("RATE_LIMIT_WINDOW_MS", cfg.RateLimit.WindowMS)

	cfg.QuotaDefaults.DailyRequests = getEnvInt("DEFAULT_DAILY_REQUESTS", cfg.QuotaDefaults.DailyRequests)
	cfg.QuotaDefaults.DailyTokens = getEnvInt("DEFAULT_DAILY_TOKENS", cfg.QuotaDefaults.DailyTokens)
	if d := getEnvDecimalOptional("DEFAULT_MONTHLY_SPEND_CAP_USD"); d != nil {
		cfg.QuotaDefaults.MonthlySpendCapUSD = d
	}

	cfg.LogLevel = getEnvStr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPrompts = getEnvBool("LOG_PROMPTS", cfg.LogPrompts)

	cfg.LogRotation.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.LogRotation.MaxSizeMB)
	cfg.LogRotation.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.LogRotation.MaxBackups)
	cfg.LogRotation.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", cfg.LogRotation.MaxAgeDays)
	cfg.LogRotation.Compress = getEnvBool("LOG_COMPRESS", cfg.LogRotation.Compress)
}

// String utility functions (avoiding external dependencies, matching the
// teacher's own .env parser).

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func indexOf(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func getEnvStrList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range splitComma(v) {
		part = trimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
