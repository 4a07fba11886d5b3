// Package repository implements C1 Persistence: one interface per logical
// table, with SQL built by Masterminds/squirrel so the same Go code serves
// both the embedded SQLite backend and the server Postgres backend.
package repository

import (
	"context"
	"database/sql"

	"github.com/llmgateway/gateway/internal/models"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx. The repositories in
// this package do not accept one: each runs against its own *sql.DB, and
// InsertAndAggregate opens its own transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository persists User rows.
type UserRepository interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
	SetStatus(ctx context.Context, id string, status models.UserStatus) error
}

// KeyRepository persists APIKey rows.
type KeyRepository interface {
	Insert(ctx context.Context, k *models.APIKey) error
	FindActiveByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.APIKey, error)
	FindByID(ctx context.Context, id string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// QuotaRepository persists UserQuota rows.
type QuotaRepository interface {
	Insert(ctx context.Context, q *models.UserQuota) error
	FindByUserID(ctx context.Context, userID string) (*models.UserQuota, error)
	Update(ctx context.Context, userID string, patch QuotaPatch) error
}

// QuotaPatch is a partial update to a UserQuota; nil fields are left
// unchanged.
type QuotaPatch struct {
	DailyRequests         *int
	DailyTokens           *int
	MonthlySpendCapUSD    **string // double pointer: nil = no change, pointing at nil = clear the cap
	MaxConcurrentRequests *int
}

// UsageRepository persists UsageRecord rows and reads usage statistics.
type UsageRepository interface {
	// InsertAndAggregate writes the usage record and upserts the matching
	// daily aggregate atomically. date is the server-local YYYY-MM-DD key.
	InsertAndAggregate(ctx context.Context, rec *models.UsageRecord, date string) error
	Recent(ctx context.Context, userID string, limit int) ([]*models.UsageRecord, error)
}

// AggregateRepository reads DailyAggregate rows.
type AggregateRepository interface {
	FindByUserAndDate(ctx context.Context, userID, date string) (*models.DailyAggregate, error)
	SumMonthToDate(ctx context.Context, userID string, monthPrefix string) (*models.DailyAggregate, error)
	AllTimeTotals(ctx context.Context, userID string) (*models.DailyAggregate, error)
}
