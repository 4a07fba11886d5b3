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

type sqlUsageRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewUsageRepository returns a UsageRepository backed by db using dialect's
// SQL placeholder style.
func NewUsageRepository(db *sql.DB, dialect database.Dialect) UsageRepository {
	return &sqlUsageRepository{db: db, dialect: dialect}
}

// InsertAndAggregate writes rec and upserts the matching daily_aggregates row
// inside a single transaction, so a crash between the two statements never
// leaves the aggregate out of step with the ledger it summarizes.
func (r *sqlUsageRepository) InsertAndAggregate(ctx context.Context, rec *models.UsageRecord, date string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertQuery, insertArgs, err := r.dialect.Builder().
		Insert("usage_records").
		Columns("user_id", "request_id", "provider", "model", "input_tokens", "output_tokens", "cost_estimate_usd", "latency_ms", "status", "error_message", "created_at").
		Values(rec.UserID, rec.RequestID, string(rec.Provider), rec.Model, rec.InputTokens, rec.OutputTokens, decimalToString(rec.CostEstimate), rec.LatencyMS, string(rec.Status), toNullString(rec.ErrorMessage), rec.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	if err := upsertDailyAggregate(ctx, tx, r.dialect, rec.UserID, date, rec.InputTokens+rec.OutputTokens, rec.CostEstimate); err != nil {
		return fmt.Errorf("upsert daily aggregate: %w", err)
	}

	return tx.Commit()
}

// upsertDailyAggregate increments the (user_id, date) row, inserting it with
// the initial delta if absent. No dialect exposes both SQLite's and
// Postgres's upsert syntax identically, so this reads-then-writes inside the
// caller's transaction rather than relying on ON CONFLICT across backends.
func upsertDailyAggregate(ctx context.Context, tx *sql.Tx, dialect database.Dialect, userID, date string, tokens int, cost decimal.Decimal) error {
	selectQuery, selectArgs, err := dialect.Builder().
		Select("total_cost_usd").
		From("daily_aggregates").
		Where("user_id = ? AND date = ?", userID, date).
		Suffix(suffixForUpdate(dialect)).
		ToSql()
	if err != nil {
		return err
	}

	var existingCost sql.NullString
	err = tx.QueryRowContext(ctx, selectQuery, selectArgs...).Scan(&existingCost)
	switch {
	case err == sql.ErrNoRows:
		insertQuery, insertArgs, err := dialect.Builder().
			Insert("daily_aggregates").
			Columns("user_id", "date", "request_count", "total_tokens", "total_cost_usd").
			Values(userID, date, 1, tokens, decimalToString(cost)).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insertQuery, insertArgs...)
		return err
	case err != nil:
		return err
	default:
		prior, err := parseDecimal(existingCost.String)
		if err != nil {
			return fmt.Errorf("parse existing total_cost_usd: %w", err)
		}
		updateQuery, updateArgs, err := dialect.Builder().
			Update("daily_aggregates").
			Set("request_count", sq.Expr("request_count + 1")).
			Set("total_tokens", sq.Expr("total_tokens + ?", tokens)).
			Set("total_cost_usd", decimalToString(prior.Add(cost))).
			Where("user_id = ? AND date = ?", userID, date).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, updateQuery, updateArgs...)
		return err
	}
}

// suffixForUpdate returns a row lock clause for the read-modify-write in
// upsertDailyAggregate. SQLite serializes writers at the connection level
// under WAL and has no FOR UPDATE syntax; Postgres needs it to avoid a lost
// update between concurrent requests for the same user and day.
func suffixForUpdate(dialect database.Dialect) string {
	if dialect.Name == "postgres" {
		return "FOR UPDATE"
	}
	return ""
}

func (r *sqlUsageRepository) Recent(ctx context.Context, userID string, limit int) ([]*models.UsageRecord, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "user_id", "request_id", "provider", "model", "input_tokens", "output_tokens", "cost_estimate_usd", "latency_ms", "status", "error_message", "created_at").
		From("usage_records").
		Where("user_id = ?", userID).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UsageRecord
	for rows.Next() {
		rec, err := scanUsageRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanUsageRow(rows *sql.Rows) (*models.UsageRecord, error) {
	var (
		id                         int64
		userID, requestID          string
		provider, model, status    string
		inputTokens, outputTokens  int
		costEstimate               string
		latencyMS                  int64
		errorMessage               sql.NullString
		createdAt                  any
	)
	if err := rows.Scan(&id, &userID, &requestID, &provider, &model, &inputTokens, &outputTokens, &costEstimate, &latencyMS, &status, &errorMessage, &createdAt); err != nil {
		return nil, fmt.Errorf("scan usage record: %w", err)
	}
	cost, err := parseDecimal(costEstimate)
	if err != nil {
		return nil, fmt.Errorf("parse cost_estimate_usd: %w", err)
	}
	rec := &models.UsageRecord{
		ID:           id,
		UserID:       userID,
		RequestID:    requestID,
		Provider:     models.Provider(provider),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostEstimate: cost,
		LatencyMS:    latencyMS,
		Status:       models.UsageStatus(status),
		ErrorMessage: nullString(errorMessage),
	}
	if t, err := asTime(createdAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}
