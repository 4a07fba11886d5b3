package repository

import (
	"context"
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateRepository_FindByUserAndDateDefaultsToZero(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	aggregates := NewAggregateRepository(db, dialect)

	agg, err := aggregates.FindByUserAndDate(context.Background(), "nobody", "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, 0, agg.RequestCount)
	assert.True(t, agg.TotalCostUSD.IsZero())
}

func TestAggregateRepository_SumMonthToDate(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, dialect)
	usage := NewUsageRepository(db, dialect)
	aggregates := NewAggregateRepository(db, dialect)
	seedUser(t, ctx, users, "user_1")

	days := []string{"2026-07-01", "2026-07-15", "2026-08-01"}
	for i, date := range days {
		rec := &models.UsageRecord{
			UserID:       "user_1",
			RequestID:    date + "-req",
			Provider:     models.ProviderOpenAI,
			Model:        "gpt-4o",
			InputTokens:  10 * (i + 1),
			OutputTokens: 5,
			CostEstimate: decimal.NewFromFloat(0.01),
			Status:       models.UsageStatusSuccess,
			CreatedAt:    time.Now(),
		}
		require.NoError(t, usage.InsertAndAggregate(ctx, rec, date))
	}

	julySum, err := aggregates.SumMonthToDate(ctx, "user_1", "2026-07")
	require.NoError(t, err)
	assert.Equal(t, 2, julySum.RequestCount)
	assert.True(t, decimal.NewFromFloat(0.02).Equal(julySum.TotalCostUSD))

	allTime, err := aggregates.AllTimeTotals(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 3, allTime.RequestCount)
	assert.True(t, decimal.NewFromFloat(0.03).Equal(allTime.TotalCostUSD))
}
