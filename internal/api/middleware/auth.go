package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/llmgateway/gateway/internal/service"
)

const (
	userIDKey = "user_id"
	keyIDKey  = "key_id"
)

// bearerToken extracts the token from "Authorization: Bearer <token>",
// returning "" if the header is absent or malformed.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// RequireAPIKey implements pipeline steps 2-4: extract the bearer token,
// verify it against the key store, and load the owning user, rejecting a
// suspended or missing user. On success it binds user_id and key_id into
// the gin context for downstream handlers.
func RequireAPIKey(keys *service.KeyStore, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			RespondError(c, gatewayerr.New(gatewayerr.Unauthorized, "missing bearer token"))
			return
		}

		userID, keyID, err := keys.Verify(c.Request.Context(), token)
		if err != nil {
			RespondError(c, err)
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil || user.Status != models.UserStatusActive {
			RespondError(c, gatewayerr.New(gatewayerr.Forbidden, "account is not active"))
			return
		}

		c.Set(userIDKey, userID)
		c.Set(keyIDKey, keyID)
		c.Next()
	}
}

// CurrentUserID retrieves the user id bound by RequireAPIKey.
func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// RequireAdminToken implements §4.6's operator-token check: a single
// static token compared in constant time.
func RequireAdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := bearerToken(c)
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			RespondError(c, gatewayerr.New(gatewayerr.Forbidden, "invalid operator token"))
			return
		}
		c.Next()
	}
}
