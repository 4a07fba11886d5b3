package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/llmgateway/gateway/internal/database"
	"github.com/llmgateway/gateway/internal/models"
)

type sqlKeyRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewKeyRepository returns a KeyRepository backed by db using dialect's SQL
// placeholder style.
func NewKeyRepository(db *sql.DB, dialect database.Dialect) KeyRepository {
	return &sqlKeyRepository{db: db, dialect: dialect}
}

func (r *sqlKeyRepository) Insert(ctx context.Context, k *models.APIKey) error {
	query, args, err := r.dialect.Builder().
		Insert("api_keys").
		Columns("id", "user_id", "key_hash", "key_prefix", "label", "status", "created_at", "last_used_at").
		Values(k.ID, k.UserID, k.KeyHash, k.KeyPrefix, toNullString(k.Label), string(k.Status), k.CreatedAt, toNullTime(k.LastUsedAt)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// FindActiveByPrefix returns every active key sharing prefix. The prefix
// index narrows candidates; the caller still verifies the full secret
// against key_hash before trusting a match.
func (r *sqlKeyRepository) FindActiveByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "user_id", "key_hash", "key_prefix", "label", "status", "created_at", "last_used_at").
		From("api_keys").
		Where("key_prefix = ? AND status = ?", prefix, string(models.KeyStatusActive)).
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryKeys(ctx, query, args...)
}

func (r *sqlKeyRepository) FindByUserID(ctx context.Context, userID string) ([]*models.APIKey, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "user_id", "key_hash", "key_prefix", "label", "status", "created_at", "last_used_at").
		From("api_keys").
		Where("user_id = ?", userID).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryKeys(ctx, query, args...)
}

func (r *sqlKeyRepository) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "user_id", "key_hash", "key_prefix", "label", "status", "created_at", "last_used_at").
		From("api_keys").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, err
	}
	keys, err := r.queryKeys(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	return keys[0], nil
}

func (r *sqlKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	query, args, err := r.dialect.Builder().
		Update("api_keys").
		Set("last_used_at", nowArg(r.dialect)).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *sqlKeyRepository) Revoke(ctx context.Context, id string) error {
	query, args, err := r.dialect.Builder().
		Update("api_keys").
		Set("status", string(models.KeyStatusRevoked)).
		Where("id = ?", id).
		ToSql()
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

func (r *sqlKeyRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query, args, err := r.dialect.Builder().
		Update("api_keys").
		Set("status", string(models.KeyStatusRevoked)).
		Where("user_id = ? AND status = ?", userID, string(models.KeyStatusActive)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *sqlKeyRepository) queryKeys(ctx context.Context, query string, args ...any) ([]*models.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.APIKey
	for rows.Next() {
		k, err := scanKeyRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func scanKeyRow(rows *sql.Rows) (*models.APIKey, error) {
	var (
		id, userID, keyHash, keyPrefix, status string
		label                                  sql.NullString
		createdAt                              any
		lastUsedAt                             sql.NullTime
	)
	if err := rows.Scan(&id, &userID, &keyHash, &keyPrefix, &label, &status, &createdAt, &lastUsedAt); err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	k := &models.APIKey{
		ID:         id,
		UserID:     userID,
		KeyHash:    keyHash,
		KeyPrefix:  keyPrefix,
		Label:      nullString(label),
		Status:     models.KeyStatus(status),
		LastUsedAt: nullTime(lastUsedAt),
	}
	if t, err := asTime(createdAt); err == nil {
		k.CreatedAt = t
	}
	return k, nil
}

// nowArg returns the dialect's current-timestamp SQL expression as a raw
// builder arg so UPDATE ... SET last_used_at = now() runs server-side rather
// than trusting client clocks.
func nowArg(d database.Dialect) sq.Sqlizer {
	if d.Name == "postgres" {
		return sq.Expr("now()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
