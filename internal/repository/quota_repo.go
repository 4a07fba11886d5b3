package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/llmgateway/gateway/internal/database"
	"github.com/llmgateway/gateway/internal/models"
)

type sqlQuotaRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewQuotaRepository returns a QuotaRepository backed by db using dialect's
// SQL placeholder style.
func NewQuotaRepository(db *sql.DB, dialect database.Dialect) QuotaRepository {
	return &sqlQuotaRepository{db: db, dialect: dialect}
}

func (r *sqlQuotaRepository) Insert(ctx context.Context, q *models.UserQuota) error {
	var spendCap sql.NullString
	if q.MonthlySpendCapUSD != nil {
		spendCap = sql.NullString{String: decimalToString(*q.MonthlySpendCapUSD), Valid: true}
	}
	query, args, err := r.dialect.Builder().
		Insert("user_quotas").
		Columns("user_id", "daily_requests", "daily_tokens", "monthly_spend_cap_usd", "max_concurrent_requests").
		Values(q.UserID, q.DailyRequests, q.DailyTokens, spendCap, q.MaxConcurrentRequests).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *sqlQuotaRepository) FindByUserID(ctx context.Context, userID string) (*models.UserQuota, error) {
	query, args, err := r.dialect.Builder().
		Select("user_id", "daily_requests", "daily_tokens", "monthly_spend_cap_usd", "max_concurrent_requests").
		From("user_quotas").
		Where("user_id = ?", userID).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		id                    string
		dailyRequests         int
		dailyTokens           int
		spendCap              sql.NullString
		maxConcurrentRequests int
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id, &dailyRequests, &dailyTokens, &spendCap, &maxConcurrentRequests)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user quota: %w", err)
	}

	q := &models.UserQuota{
		UserID:                id,
		DailyRequests:         dailyRequests,
		DailyTokens:           dailyTokens,
		MaxConcurrentRequests: maxConcurrentRequests,
	}
	if spendCap.Valid {
		d, err := parseDecimal(spendCap.String)
		if err != nil {
			return nil, fmt.Errorf("parse monthly_spend_cap_usd: %w", err)
		}
		q.MonthlySpendCapUSD = &d
	}
	return q, nil
}

func (r *sqlQuotaRepository) Update(ctx context.Context, userID string, patch QuotaPatch) error {
	builder := r.dialect.Builder().Update("user_quotas")
	changed := false

	if patch.DailyRequests != nil {
		builder = builder.Set("daily_requests", *patch.DailyRequests)
		changed = true
	}
	if patch.DailyTokens != nil {
		builder = builder.Set("daily_tokens", *patch.DailyTokens)
		changed = true
	}
	if patch.MaxConcurrentRequests != nil {
		builder = builder.Set("max_concurrent_requests", *patch.MaxConcurrentRequests)
		changed = true
	}
	if patch.MonthlySpendCapUSD != nil {
		if *patch.MonthlySpendCapUSD == nil {
			builder = builder.Set("monthly_spend_cap_usd", nil)
		} else {
			builder = builder.Set("monthly_spend_cap_usd", **patch.MonthlySpendCapUSD)
		}
		changed = true
	}

	if !changed {
		return nil
	}

	query, args, err := builder.Where("user_id = ?", userID).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
