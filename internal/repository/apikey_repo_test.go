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

func seedUser(t *testing.T, ctx context.Context, users UserRepository, id string) {
	t.Helper()
	require.NoError(t, users.Insert(ctx, &models.User{
		ID:        id,
		Status:    models.UserStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))
}

func TestKeyRepository_InsertAndFindByPrefix(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, dialect)
	keys := NewKeyRepository(db, dialect)
	seedUser(t, ctx, users, "user_1")

	k := &models.APIKey{
		ID:        "key_1",
		UserID:    "user_1",
		KeyHash:   "hashed-secret",
		KeyPrefix: "gwk_abcd1234",
		Status:    models.KeyStatusActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, keys.Insert(ctx, k))

	found, err := keys.FindActiveByPrefix(ctx, "gwk_abcd1234")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, k.KeyHash, found[0].KeyHash)

	none, err := keys.FindActiveByPrefix(ctx, "gwk_missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestKeyRepository_RevokeExcludesFromActiveLookup(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, dialect)
	keys := NewKeyRepository(db, dialect)
	seedUser(t, ctx, users, "user_1")

	k := &models.APIKey{ID: "key_1", UserID: "user_1", KeyHash: "h", KeyPrefix: "gwk_xyz", Status: models.KeyStatusActive, CreatedAt: time.Now()}
	require.NoError(t, keys.Insert(ctx, k))

	require.NoError(t, keys.Revoke(ctx, "key_1"))

	found, err := keys.FindActiveByPrefix(ctx, "gwk_xyz")
	require.NoError(t, err)
	assert.Empty(t, found)

	byID, err := keys.FindByID(ctx, "key_1")
	require.NoError(t, err)
	assert.Equal(t, models.KeyStatusRevoked, byID.Status)

	assert.ErrorIs(t, keys.Revoke(ctx, "missing"), ErrNotFound)
}

func TestKeyRepository_RevokeAllForUser(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, dialect)
	keys := NewKeyRepository(db, dialect)
	seedUser(t, ctx, users, "user_1")

	require.NoError(t, keys.Insert(ctx, &models.APIKey{ID: "key_1", UserID: "user_1", KeyHash: "h1", KeyPrefix: "gwk_a", Status: models.KeyStatusActive, CreatedAt: time.Now()}))
	require.NoError(t, keys.Insert(ctx, &models.APIKey{ID: "key_2", UserID: "user_1", KeyHash: "h2", KeyPrefix: "gwk_b", Status: models.KeyStatusActive, CreatedAt: time.Now()}))

	require.NoError(t, keys.RevokeAllForUser(ctx, "user_1"))

	all, err := keys.FindByUserID(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, k := range all {
		assert.Equal(t, models.KeyStatusRevoked, k.Status)
	}
}

func TestKeyRepository_UpdateLastUsed(t *testing.T) {
	db, dialect := testutil.NewTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, dialect)
	keys := NewKeyRepository(db, dialect)
	seedUser(t, ctx, users, "user_1")
	require.NoError(t, keys.Insert(ctx, &models.APIKey{ID: "key_1", UserID: "user_1", KeyHash: "h", KeyPrefix: "gwk_a", Status: models.KeyStatusActive, CreatedAt: time.Now()}))

	require.NoError(t, keys.UpdateLastUsed(ctx, "key_1"))

	got, err := keys.FindByID(ctx, "key_1")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
}
