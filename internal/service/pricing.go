package service

import (
	"github.com/llmgateway/gateway/internal/models"
	"github.com/shopspring/decimal"
)

// modelPrice is the per-1000-token rate for one model, in USD.
type modelPrice struct {
	in  decimal.Decimal
	out decimal.Decimal
}

// fallbackPrice is used for any (provider, model) pair absent from
// priceTable, so cost_estimate_usd is always computable.
var fallbackPrice = modelPrice{
	in:  decimal.NewFromFloat(0.01),
	out: decimal.NewFromFloat(0.03),
}

// priceTable is a static snapshot of per-1000-token list pricing, keyed by
// (provider, model). It is deliberately not fetched from upstream: the
// gateway estimates cost, it does not bill from provider invoices.
var priceTable = map[models.Provider]map[string]modelPrice{
	models.ProviderOpenAI: {
		"gpt-4o":      {in: decimal.NewFromFloat(0.0025), out: decimal.NewFromFloat(0.01)},
		"gpt-4o-mini": {in: decimal.NewFromFloat(0.00015), out: decimal.NewFromFloat(0.0006)},
		"gpt-4-turbo": {in: decimal.NewFromFloat(0.01), out: decimal.NewFromFloat(0.03)},
	},
	models.ProviderAnthropic: {
		"claude-3-5-sonnet-20241022": {in: decimal.NewFromFloat(0.003), out: decimal.NewFromFloat(0.015)},
		"claude-3-5-haiku-20241022":  {in: decimal.NewFromFloat(0.0008), out: decimal.NewFromFloat(0.004)},
		"claude-3-opus-20240229":     {in: decimal.NewFromFloat(0.015), out: decimal.NewFromFloat(0.075)},
	},
}

// EstimateCost computes cost_estimate_usd for a completed request in exact
// base-10 decimal arithmetic, never float64, so accumulated daily totals
// never drift from the sum of their usage records.
func EstimateCost(provider models.Provider, model string, inputTokens, outputTokens int) decimal.Decimal {
	price := fallbackPrice
	if byModel, ok := priceTable[provider]; ok {
		if p, ok := byModel[model]; ok {
			price = p
		}
	}

	thousand := decimal.NewFromInt(1000)
	inCost := decimal.NewFromInt(int64(inputTokens)).DivRound(thousand, 12).Mul(price.in)
	outCost := decimal.NewFromInt(int64(outputTokens)).DivRound(thousand, 12).Mul(price.out)
	return inCost.Add(outCost)
}
