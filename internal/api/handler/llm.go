package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/api/middleware"
	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/service"
	"go.uber.org/zap"
)

// LLMHandler serves the unified completion surface.
type LLMHandler struct {
	gateway *service.Gateway
	quota   *service.QuotaEngine
	logger  *zap.Logger
}

// NewLLMHandler builds an LLMHandler over gateway/quota.
func NewLLMHandler(gateway *service.Gateway, quota *service.QuotaEngine, logger *zap.Logger) *LLMHandler {
	return &LLMHandler{gateway: gateway, quota: quota, logger: logger}
}

// Complete handles POST /v1/llm/complete.
func (h *LLMHandler) Complete(c *gin.Context) {
	var req models.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.ValidationError, err.Error()))
		return
	}

	userID := middleware.CurrentUserID(c)
	requestID := middleware.GetRequestID(c)

	resp, err := h.gateway.Complete(c.Request.Context(), userID, requestID, req)
	if err != nil {
		h.logger.Warn("completion failed",
			zap.String("request_id", requestID),
			zap.String("user_id", userID),
			zap.Error(err))
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Models handles GET /v1/llm/models.
func (h *LLMHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.gateway.Router.Models()})
}

// Quota handles GET /v1/llm/quota.
func (h *LLMHandler) Quota(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	status, err := h.quota.Inspect(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
