package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/llmgateway/gateway/internal/database"
	"github.com/llmgateway/gateway/internal/models"
)

// ErrNotFound is returned when a lookup or update by id or email matches
// no row; FindActiveByPrefix returns an empty slice instead.
var ErrNotFound = errors.New("not found")

type sqlUserRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewUserRepository returns a UserRepository backed by db using dialect's
// SQL placeholder style.
func NewUserRepository(db *sql.DB, dialect database.Dialect) UserRepository {
	return &sqlUserRepository{db: db, dialect: dialect}
}

func (r *sqlUserRepository) Insert(ctx context.Context, u *models.User) error {
	query, args, err := r.dialect.Builder().
		Insert("users").
		Columns("id", "email", "display_name", "status", "created_at", "updated_at").
		Values(u.ID, toNullString(u.Email), toNullString(u.DisplayName), string(u.Status), u.CreatedAt, u.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *sqlUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "email", "display_name", "status", "created_at", "updated_at").
		From("users").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.scanOne(r.db.QueryRowContext(ctx, query, args...))
}

func (r *sqlUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "email", "display_name", "status", "created_at", "updated_at").
		From("users").
		Where("email = ?", email).
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.scanOne(r.db.QueryRowContext(ctx, query, args...))
}

func (r *sqlUserRepository) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	query, args, err := r.dialect.Builder().
		Select("id", "email", "display_name", "status", "created_at", "updated_at").
		From("users").
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
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

	var out []*models.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *sqlUserRepository) SetStatus(ctx context.Context, id string, status models.UserStatus) error {
	query, args, err := r.dialect.Builder().
		Update("users").
		Set("status", string(status)).
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqlUserRepository) scanOne(row rowScanner) (*models.User, error) {
	var (
		id, status           string
		email, displayName   sql.NullString
		createdAt, updatedAt any
	)
	u := &models.User{}
	if err := row.Scan(&id, &email, &displayName, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id
	u.Email = nullString(email)
	u.DisplayName = nullString(displayName)
	u.Status = models.UserStatus(status)
	if t, err := asTime(createdAt); err == nil {
		u.CreatedAt = t
	}
	if t, err := asTime(updatedAt); err == nil {
		u.UpdatedAt = t
	}
	return u, nil
}

func scanUserRow(rows *sql.Rows) (*models.User, error) {
	var (
		id, status           string
		email, displayName   sql.NullString
		createdAt, updatedAt any
	)
	if err := rows.Scan(&id, &email, &displayName, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u := &models.User{
		ID:          id,
		Email:       nullString(email),
		DisplayName: nullString(displayName),
		Status:      models.UserStatus(status),
	}
	if t, err := asTime(createdAt); err == nil {
		u.CreatedAt = t
	}
	if t, err := asTime(updatedAt); err == nil {
		u.UpdatedAt = t
	}
	return u, nil
}
