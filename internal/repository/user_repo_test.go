package repository

import (
	"context"
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_InsertAndFind(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	repo := NewUserRepository(db, dialect)
	ctx := context.Background()

	email := "ada@example.com"
	name := "Ada"
	u := &models.User{
		ID:          "user_1",
		Email:       &email,
		DisplayName: &name,
		Status:      models.UserStatusActive,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Insert(ctx, u))

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byID.ID)
	assert.Equal(t, email, *byID.Email)
	assert.Equal(t, models.UserStatusActive, byID.Status)

	byEmail, err := repo.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_SetStatus(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	repo := NewUserRepository(db, dialect)
	ctx := context.Background()

	u := &models.User{ID: "user_2", Status: models.UserStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, u))

	tests := []struct {
		name    string
		id      string
		status  models.UserStatus
		wantErr error
	}{
		{"suspend existing", "user_2", models.UserStatusSuspended, nil},
		{"unknown user", "nope", models.UserStatusSuspended, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.SetStatus(ctx, tt.id, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, err := repo.FindByID(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}

func TestUserRepository_List(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	repo := NewUserRepository(db, dialect)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, &models.User{
			ID:        "user_list_" + string(rune('a'+i)),
			Status:    models.UserStatusActive,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}))
	}

	users, err := repo.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
