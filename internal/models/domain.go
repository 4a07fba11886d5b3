// Package models defines the domain and wire types for the gateway.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStatus is the lifecycle state of a User.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// KeyStatus is the lifecycle state of an APIKey.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRevoked KeyStatus = "revoked"
)

// Provider identifies an upstream LLM provider, or "unknown" for usage
// records written before provider selection completed.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderUnknown   Provider = "unknown"
	ProviderAuto      Provider = "auto"
)

// UsageStatus is the terminal outcome of a dispatched request.
type UsageStatus string

const (
	UsageStatusSuccess UsageStatus = "success"
	UsageStatusError   UsageStatus = "error"
)

// User is a gateway tenant. Identity is an opaque, generated id; physical
// deletion is never performed while keys or usage records reference it.
type User struct {
	ID          string     `json:"id"`
	Email       *string    `json:"email,omitempty"`
	DisplayName *string    `json:"display_name,omitempty"`
	Status      UserStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// APIKey is a hashed bearer credential bound to a User. It never carries
// the plaintext: KeyStore.Generate hashes it before the APIKey is built,
// and the row stores only the hash and the lookup prefix.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Label      *string    `json:"label,omitempty"`
	Status     KeyStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// UserQuota is the 1:1 admission policy for a User.
type UserQuota struct {
	UserID                string           `json:"user_id"`
	DailyRequests         int              `json:"daily_requests"`
	DailyTokens           int              `json:"daily_tokens"`
	MonthlySpendCapUSD    *decimal.Decimal `json:"monthly_spend_cap_usd"`
	MaxConcurrentRequests int              `json:"max_concurrent_requests"`
}

// UsageRecord is an append-only accounting row, written exactly once per
// admitted end-user request.
type UsageRecord struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	RequestID     string          `json:"request_id"`
	Provider      Provider        `json:"provider"`
	Model         string          `json:"model"`
	InputTokens   int             `json:"input_tokens"`
	OutputTokens  int             `json:"output_tokens"`
	CostEstimate  decimal.Decimal `json:"cost_estimate_usd"`
	LatencyMS     int64           `json:"latency_ms"`
	Status        UsageStatus     `json:"status"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DailyAggregate is the per-(user, date) materialized summary maintained
// exclusively by the quota engine's record path.
type DailyAggregate struct {
	UserID        string          `json:"user_id"`
	Date          string          `json:"date"` // YYYY-MM-DD, server local timezone
	RequestCount  int             `json:"request_count"`
	TotalTokens   int             `json:"total_tokens"`
	TotalCostUSD  decimal.Decimal `json:"total_cost_usd"`
}

// QuotaDimension reports limit/used/remaining for one admission dimension.
type QuotaDimension struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// MonthlySpend reports cap/used/remaining for the spend dimension; Cap and
// Remaining are nil when the user has no monthly spend cap configured.
type MonthlySpend struct {
	CapUSD       *decimal.Decimal `json:"cap_usd"`
	UsedUSD      decimal.Decimal  `json:"used_usd"`
	RemainingUSD *decimal.Decimal `json:"remaining_usd"`
}

// QuotaStatus is the read-only inspection result for /v1/llm/quota.
type QuotaStatus struct {
	UserID        string         `json:"user_id"`
	DailyRequests QuotaDimension `json:"daily_requests"`
	DailyTokens   QuotaDimension `json:"daily_tokens"`
	MonthlySpend  MonthlySpend   `json:"monthly_spend"`
}
