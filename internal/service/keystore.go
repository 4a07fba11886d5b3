package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

const (
	keyFixedPrefix = "gwk"
	keyPrefixLen   = 12
	keyBodyBytes   = 16 // 128 bits of entropy

	argon2Time    = 1
	argon2Memory  = 64 * 1024 // KiB, i.e. 64MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// IssuedKey is the one-time creation result: Plaintext is never stored and
// never retrievable again after this call returns.
type IssuedKey struct {
	KeyID     string
	Plaintext string
	Prefix    string
}

// KeyStore implements C2: bearer-token issuance, verification, and
// revocation over a per-key argon2id verifier hash.
type KeyStore struct {
	keys   repository.KeyRepository
	users  repository.UserRepository
	logger *zap.Logger
}

// NewKeyStore builds a KeyStore over keys/users.
func NewKeyStore(keys repository.KeyRepository, users repository.UserRepository, logger *zap.Logger) *KeyStore {
	return &KeyStore{keys: keys, users: users, logger: logger}
}

// Generate issues a new key for userID and returns its plaintext exactly
// once; the store itself never holds the plaintext after this call returns.
func (s *KeyStore) Generate(ctx context.Context, userID string, label *string) (*IssuedKey, error) {
	body := make([]byte, keyBodyBytes)
	if _, err := rand.Read(body); err != nil {
		return nil, fmt.Errorf("generate key body: %w", err)
	}
	plaintext := fmt.Sprintf("%s_%s", keyFixedPrefix, hex.EncodeToString(body))
	prefix := plaintext[:keyPrefixLen]

	hash, err := hashVerifier(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash verifier: %w", err)
	}

	keyID := uuid.NewString()
	k := &models.APIKey{
		ID:        keyID,
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Label:     label,
		Status:    models.KeyStatusActive,
	}
	if err := s.keys.Insert(ctx, k); err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	return &IssuedKey{KeyID: keyID, Plaintext: plaintext, Prefix: prefix}, nil
}

// Verify checks a bearer token against the prefix index and each candidate's
// verifier hash, returning the owning user id and key id on the first match.
// It never distinguishes "malformed", "unknown prefix", and "wrong secret"
// in its returned error so a caller can't use the failure mode as an oracle.
func (s *KeyStore) Verify(ctx context.Context, plaintext string) (userID, keyID string, err error) {
	invalid := gatewayerr.New(gatewayerr.Unauthorized, "invalid API key")

	if !strings.HasPrefix(plaintext, keyFixedPrefix+"_") || len(plaintext) < keyPrefixLen {
		return "", "", invalid
	}
	prefix := plaintext[:keyPrefixLen]

	candidates, findErr := s.keys.FindActiveByPrefix(ctx, prefix)
	if findErr != nil {
		return "", "", fmt.Errorf("find keys by prefix: %w", findErr)
	}

	for _, k := range candidates {
		if verifyHash(plaintext, k.KeyHash) {
			if updateErr := s.keys.UpdateLastUsed(ctx, k.ID); updateErr != nil {
				s.logger.Warn("failed to update key last_used_at", zap.String("key_id", k.ID), zap.Error(updateErr))
			}
			return k.UserID, k.ID, nil
		}
	}

	return "", "", invalid
}

// Revoke marks a key as no longer usable for authentication.
func (s *KeyStore) Revoke(ctx context.Context, keyID string) error {
	return s.keys.Revoke(ctx, keyID)
}

// RevokeAllForUser revokes every active key owned by userID, used when a
// user account is suspended.
func (s *KeyStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.keys.RevokeAllForUser(ctx, userID)
}

// hashVerifier computes an argon2id hash encoded as salt$hash, both
// base64-raw-encoded, so the stored value is self-describing at
// verification time without a separate params column.
func hashVerifier(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(plaintext), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("%s$%s", b64(salt), b64(sum)), nil
}

// verifyHash recomputes the hash with the stored salt and compares in
// constant time.
func verifyHash(plaintext, stored string) bool {
	parts := strings.SplitN(stored, "$", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	actual := argon2.IDKey([]byte(plaintext), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return subtle.ConstantTimeCompare(expected, actual) == 1
}

func b64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}
