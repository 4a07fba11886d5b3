package service

import (
	"context"
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/llmgateway/gateway/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestKeyStore(t *testing.T) (*KeyStore, repository.UserRepository, string) {
	t.Helper()
	db, dialect := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db, dialect)
	keys := repository.NewKeyRepository(db, dialect)

	userID := "user_1"
	require.NoError(t, users.Insert(context.Background(), &models.User{
		ID:        userID,
		Status:    models.UserStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))

	return NewKeyStore(keys, users, zap.NewNop()), users, userID
}

func TestKeyStore_GenerateAndVerify(t *testing.T) {
	store, _, userID := newTestKeyStore(t)
	ctx := context.Background()

	issued, err := store.Generate(ctx, userID, nil)
	require.NoError(t, err)
	assert.True(t, len(issued.Plaintext) > len(issued.Prefix))
	assert.Equal(t, issued.Prefix, issued.Plaintext[:12])

	gotUserID, gotKeyID, err := store.Verify(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, userID, gotUserID)
	assert.Equal(t, issued.KeyID, gotKeyID)
}

func TestKeyStore_VerifyRejectsWrongSecret(t *testing.T) {
	store, _, userID := newTestKeyStore(t)
	ctx := context.Background()

	issued, err := store.Generate(ctx, userID, nil)
	require.NoError(t, err)

	tampered := issued.Plaintext[:len(issued.Plaintext)-1] + "0"
	if tampered == issued.Plaintext {
		tampered = issued.Plaintext[:len(issued.Plaintext)-1] + "1"
	}

	_, _, err = store.Verify(ctx, tampered)
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.Unauthorized, gwErr.Kind)
}

func TestKeyStore_VerifyRejectsMalformedToken(t *testing.T) {
	store, _, _ := newTestKeyStore(t)
	_, _, err := store.Verify(context.Background(), "not-a-gwk-token")
	require.Error(t, err)
}

func TestKeyStore_RevokeExcludesFromVerification(t *testing.T) {
	store, _, userID := newTestKeyStore(t)
	ctx := context.Background()

	issued, err := store.Generate(ctx, userID, nil)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, issued.KeyID))

	_, _, err = store.Verify(ctx, issued.Plaintext)
	require.Error(t, err)
}

func TestKeyStore_RevokeAllForUser(t *testing.T) {
	store, _, userID := newTestKeyStore(t)
	ctx := context.Background()

	first, err := store.Generate(ctx, userID, nil)
	require.NoError(t, err)
	second, err := store.Generate(ctx, userID, nil)
	require.NoError(t, err)

	require.NoError(t, store.RevokeAllForUser(ctx, userID))

	_, _, err = store.Verify(ctx, first.Plaintext)
	assert.Error(t, err)
	_, _, err = store.Verify(ctx, second.Plaintext)
	assert.Error(t, err)
}
