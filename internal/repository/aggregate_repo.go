package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/llmgateway/gateway/internal/database"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/shopspring/decimal"
)

type sqlAggregateRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewAggregateRepository returns an AggregateRepository backed by db using
// dialect's SQL placeholder style.
func NewAggregateRepository(db *sql.DB, dialect database.Dialect) AggregateRepository {
	return &sqlAggregateRepository{db: db, dialect: dialect}
}

func (r *sqlAggregateRepository) FindByUserAndDate(ctx context.Context, userID, date string) (*models.DailyAggregate, error) {
	query, args, err := r.dialect.Builder().
		Select("user_id", "date", "request_count", "total_tokens", "total_cost_usd").
		From("daily_aggregates").
		Where("user_id = ? AND date = ?", userID, date).
		ToSql()
	if err != nil {
		return nil, err
	}
	agg, err := r.scanOne(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return &models.DailyAggregate{UserID: userID, Date: date}, nil
	}
	return agg, nil
}

// SumMonthToDate sums every daily_aggregates row whose date starts with
// monthPrefix ("YYYY-MM"); request_count, total_tokens and total_cost_usd
// are each summed across the matching rows.
func (r *sqlAggregateRepository) SumMonthToDate(ctx context.Context, userID, monthPrefix string) (*models.DailyAggregate, error) {
	return r.sumWhere(ctx, sq.And{sq.Eq{"user_id": userID}, sq.Like{"date": monthPrefix + "%"}}, userID, monthPrefix)
}

func (r *sqlAggregateRepository) AllTimeTotals(ctx context.Context, userID string) (*models.DailyAggregate, error) {
	return r.sumWhere(ctx, sq.Eq{"user_id": userID}, userID, "")
}

// sumWhere sums matching rows in Go rather than via SQL SUM(): total_cost_usd
// is stored as TEXT on SQLite, so only decimal.Add gives an exact total.
func (r *sqlAggregateRepository) sumWhere(ctx context.Context, pred sq.Sqlizer, userID, date string) (*models.DailyAggregate, error) {
	query, args, err := r.dialect.Builder().
		Select("request_count", "total_tokens", "total_cost_usd").
		From("daily_aggregates").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agg := &models.DailyAggregate{UserID: userID, Date: date}
	total := decimal.Zero
	for rows.Next() {
		var requestCount, totalTokens int
		var costStr string
		if err := rows.Scan(&requestCount, &totalTokens, &costStr); err != nil {
			return nil, fmt.Errorf("scan daily aggregate sum: %w", err)
		}
		cost, err := parseDecimal(costStr)
		if err != nil {
			return nil, fmt.Errorf("parse total_cost_usd: %w", err)
		}
		agg.RequestCount += requestCount
		agg.TotalTokens += totalTokens
		total = total.Add(cost)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	agg.TotalCostUSD = total
	return agg, nil
}

func (r *sqlAggregateRepository) scanOne(ctx context.Context, query string, args ...any) (*models.DailyAggregate, error) {
	var (
		userID, date                string
		requestCount, totalTokens   int
		totalCostUSD                string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&userID, &date, &requestCount, &totalTokens, &totalCostUSD)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily aggregate: %w", err)
	}
	cost, err := parseDecimal(totalCostUSD)
	if err != nil {
		return nil, fmt.Errorf("parse total_cost_usd: %w", err)
	}
	return &models.DailyAggregate{
		UserID:       userID,
		Date:         date,
		RequestCount: requestCount,
		TotalTokens:  totalTokens,
		TotalCostUSD: cost,
	}, nil
}
