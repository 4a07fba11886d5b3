package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/shopspring/decimal"
)

// QuotaEngine implements C3: pre-flight admission and post-flight recording
// against a user's daily/monthly limits and an in-memory concurrency
// counter. resets_at values use the server process's local timezone
// (time.Now().Local()), not UTC — an explicit, documented choice rather
// than an oversight.
type QuotaEngine struct {
	quotas     repository.QuotaRepository
	usage      repository.UsageRepository
	aggregates repository.AggregateRepository

	mu          sync.Mutex
	concurrency map[string]int
}

// NewQuotaEngine builds a QuotaEngine over quotas/usage/aggregates.
func NewQuotaEngine(quotas repository.QuotaRepository, usage repository.UsageRepository, aggregates repository.AggregateRepository) *QuotaEngine {
	return &QuotaEngine{
		quotas:      quotas,
		usage:       usage,
		aggregates:  aggregates,
		concurrency: make(map[string]int),
	}
}

// Admit runs the §4.3.1 admission procedure: each check can refuse outright,
// and a later check is never evaluated once an earlier one has refused. On
// success the in-memory concurrency counter is incremented; the caller must
// call Release exactly once regardless of how the request concludes.
func (e *QuotaEngine) Admit(ctx context.Context, userID string) error {
	quota, err := e.quotas.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user quota: %w", err)
	}

	today := time.Now().Local().Format("2006-01-02")
	todayAgg, err := e.aggregates.FindByUserAndDate(ctx, userID, today)
	if err != nil {
		return fmt.Errorf("load today's aggregate: %w", err)
	}

	if todayAgg.RequestCount >= quota.DailyRequests {
		return gatewayerr.WithFields(gatewayerr.QuotaExceeded, "daily request limit reached", map[string]any{
			"dimension": "daily_requests",
			"limit":     quota.DailyRequests,
			"used":      todayAgg.RequestCount,
			"resets_at": nextLocalMidnight(),
		})
	}
	if todayAgg.TotalTokens >= quota.DailyTokens {
		return gatewayerr.WithFields(gatewayerr.QuotaExceeded, "daily token limit reached", map[string]any{
			"dimension": "daily_tokens",
			"limit":     quota.DailyTokens,
			"used":      todayAgg.TotalTokens,
			"resets_at": nextLocalMidnight(),
		})
	}

	if quota.MonthlySpendCapUSD != nil {
		monthPrefix := time.Now().Local().Format("2006-01")
		monthAgg, err := e.aggregates.SumMonthToDate(ctx, userID, monthPrefix)
		if err != nil {
			return fmt.Errorf("load month-to-date spend: %w", err)
		}
		if monthAgg.TotalCostUSD.GreaterThanOrEqual(*quota.MonthlySpendCapUSD) {
			return gatewayerr.WithFields(gatewayerr.QuotaExceeded, "monthly spend cap reached", map[string]any{
				"dimension": "monthly_spend",
				"cap":       quota.MonthlySpendCapUSD.String(),
				"used":      monthAgg.TotalCostUSD.String(),
				"resets_at": nextLocalMonthStart(),
			})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.concurrency[userID] >= quota.MaxConcurrentRequests {
		return gatewayerr.WithFields(gatewayerr.TooManyConcurrent, "too many concurrent requests", map[string]any{
			"limit": quota.MaxConcurrentRequests,
		})
	}
	e.concurrency[userID]++
	return nil
}

// Release decrements the in-memory concurrency counter for userID. It is
// idempotent-safe to call at most once per successful Admit; calling it
// without a matching Admit would desynchronize the counter, so callers must
// track release state themselves (Gateway.Complete does this with a
// released flag).
func (e *QuotaEngine) Release(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.concurrency[userID] > 0 {
		e.concurrency[userID]--
		if e.concurrency[userID] == 0 {
			delete(e.concurrency, userID)
		}
	}
}

// ActiveConcurrency returns the current in-flight request count for userID,
// for tests and diagnostics.
func (e *QuotaEngine) ActiveConcurrency(userID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.concurrency[userID]
}

// RecordParams carries the outcome of a dispatched request into Record.
type RecordParams struct {
	UserID       string
	RequestID    string
	Provider     models.Provider
	Model        string
	InputTokens  int
	OutputTokens int
	LatencyMS    int64
	Status       models.UsageStatus
	ErrorMessage *string
}

// Record implements §4.3.2: compute cost, insert the immutable usage
// record, and upsert today's daily aggregate, atomically with respect to
// each other. It must be called exactly once for every admitted request.
func (e *QuotaEngine) Record(ctx context.Context, p RecordParams) error {
	cost := EstimateCost(p.Provider, p.Model, p.InputTokens, p.OutputTokens)
	if p.Status == models.UsageStatusError {
		cost = decimal.Zero
	}

	rec := &models.UsageRecord{
		UserID:       p.UserID,
		RequestID:    p.RequestID,
		Provider:     p.Provider,
		Model:        p.Model,
		InputTokens:  p.InputTokens,
		OutputTokens: p.OutputTokens,
		CostEstimate: cost,
		LatencyMS:    p.LatencyMS,
		Status:       p.Status,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    time.Now(),
	}

	today := time.Now().Local().Format("2006-01-02")
	return e.usage.InsertAndAggregate(ctx, rec, today)
}

// Inspect implements §4.3.3: a read-only snapshot of current usage against
// limits, used by /v1/llm/quota and the admin user-detail read.
func (e *QuotaEngine) Inspect(ctx context.Context, userID string) (*models.QuotaStatus, error) {
	quota, err := e.quotas.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user quota: %w", err)
	}

	today := time.Now().Local().Format("2006-01-02")
	todayAgg, err := e.aggregates.FindByUserAndDate(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("load today's aggregate: %w", err)
	}

	status := &models.QuotaStatus{
		UserID: userID,
		DailyRequests: models.QuotaDimension{
			Limit:     quota.DailyRequests,
			Used:      todayAgg.RequestCount,
			Remaining: max0(quota.DailyRequests - todayAgg.RequestCount),
		},
		DailyTokens: models.QuotaDimension{
			Limit:     quota.DailyTokens,
			Used:      todayAgg.TotalTokens,
			Remaining: max0(quota.DailyTokens - todayAgg.TotalTokens),
		},
	}

	if quota.MonthlySpendCapUSD != nil {
		monthPrefix := time.Now().Local().Format("2006-01")
		monthAgg, err := e.aggregates.SumMonthToDate(ctx, userID, monthPrefix)
		if err != nil {
			return nil, fmt.Errorf("load month-to-date spend: %w", err)
		}
		remaining := quota.MonthlySpendCapUSD.Sub(monthAgg.TotalCostUSD)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		status.MonthlySpend = models.MonthlySpend{
			CapUSD:       quota.MonthlySpendCapUSD,
			UsedUSD:      monthAgg.TotalCostUSD,
			RemainingUSD: &remaining,
		}
	} else {
		monthPrefix := time.Now().Local().Format("2006-01")
		monthAgg, err := e.aggregates.SumMonthToDate(ctx, userID, monthPrefix)
		if err != nil {
			return nil, fmt.Errorf("load month-to-date spend: %w", err)
		}
		status.MonthlySpend = models.MonthlySpend{UsedUSD: monthAgg.TotalCostUSD}
	}

	return status, nil
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func nextLocalMidnight() time.Time {
	now := time.Now().Local()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

func nextLocalMonthStart() time.Time {
	now := time.Now().Local()
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}
