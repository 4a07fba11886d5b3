package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/api/middleware"
	"github.com/llmgateway/gateway/internal/gatewayerr"
)

type createKeyRequest struct {
	Label *string `json:"label,omitempty"`
}

// CreateKey handles POST /admin/users/:id/keys. The plaintext is returned
// exactly once, with a banner string reminding the operator it cannot be
// retrieved again.
func (h *AdminHandler) CreateKey(c *gin.Context) {
	userID := c.Param("id")

	if _, err := h.users.FindByID(c.Request.Context(), userID); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.NotFound, "user not found"))
		return
	}

	var req createKeyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.RespondError(c, gatewayerr.New(gatewayerr.ValidationError, err.Error()))
			return
		}
	}

	issued, err := h.keyStore.Generate(c.Request.Context(), userID, req.Label)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key_id":   issued.KeyID,
		"prefix":   issued.Prefix,
		"api_key":  issued.Plaintext,
		"banner":   "Save this key now: it will not be shown again.",
	})
}

// RevokeKey handles DELETE /admin/keys/:id.
func (h *AdminHandler) RevokeKey(c *gin.Context) {
	keyID := c.Param("id")

	if _, err := h.keys.FindByID(c.Request.Context(), keyID); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.NotFound, "key not found"))
		return
	}

	if err := h.keyStore.Revoke(c.Request.Context(), keyID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
