package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/llmgateway/gateway/internal/api/middleware"
	"github.com/llmgateway/gateway/internal/config"
	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/llmgateway/gateway/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AdminHandler serves C6: user, key, and quota administration behind the
// single operator token (checked by middleware.RequireAdminToken, not here).
type AdminHandler struct {
	users      repository.UserRepository
	keys       repository.KeyRepository
	quotas     repository.QuotaRepository
	usage      repository.UsageRepository
	aggregates repository.AggregateRepository
	keyStore   *service.KeyStore
	quotaEngine *service.QuotaEngine
	defaults   config.QuotaDefaultsConfig
}

// NewAdminHandler builds an AdminHandler over the repositories and services
// it administers.
func NewAdminHandler(
	users repository.UserRepository,
	keys repository.KeyRepository,
	quotas repository.QuotaRepository,
	usage repository.UsageRepository,
	aggregates repository.AggregateRepository,
	keyStore *service.KeyStore,
	quotaEngine *service.QuotaEngine,
	defaults config.QuotaDefaultsConfig,
) *AdminHandler {
	return &AdminHandler{
		users:       users,
		keys:        keys,
		quotas:      quotas,
		usage:       usage,
		aggregates:  aggregates,
		keyStore:    keyStore,
		quotaEngine: quotaEngine,
		defaults:    defaults,
	}
}

type createUserRequest struct {
	Email       *string `json:"email,omitempty" binding:"omitempty,email"`
	DisplayName *string `json:"display_name,omitempty"`
}

// CreateUser handles POST /admin/users.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.ValidationError, err.Error()))
		return
	}

	if req.Email != nil {
		if existing, _ := h.users.FindByEmail(c.Request.Context(), *req.Email); existing != nil {
			middleware.RespondError(c, gatewayerr.New(gatewayerr.ValidationError, "email already in use"))
			return
		}
	}

	user := &models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Status:      models.UserStatusActive,
	}
	if err := h.users.Insert(c.Request.Context(), user); err != nil {
		middleware.RespondError(c, err)
		return
	}

	quota := &models.UserQuota{
		UserID:                user.ID,
		DailyRequests:         h.defaults.DailyRequests,
		DailyTokens:           h.defaults.DailyTokens,
		MonthlySpendCapUSD:    h.defaults.MonthlySpendCapUSD,
		MaxConcurrentRequests: 5,
	}
	if err := h.quotas.Insert(c.Request.Context(), quota); err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "quota": quota})
}

// ListUsers handles GET /admin/users with bounded offset/limit pagination.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	offset := parseIntParam(c.Query("offset"), 0)
	limit := parseIntParam(c.Query("limit"), defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := h.users.List(c.Request.Context(), offset, limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "offset": offset, "limit": limit})
}

// GetUser handles GET /admin/users/:id: user row, quota, usage stats, and
// keys (prefix/label/status/timestamps only, never plaintext).
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.NotFound, "user not found"))
		return
	}

	quota, err := h.quotas.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	keys, err := h.keys.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	status, err := h.quotaEngine.Inspect(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	monthPrefix := time.Now().Local().Format("2006-01")
	thisMonth, err := h.aggregates.SumMonthToDate(c.Request.Context(), userID, monthPrefix)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	allTime, err := h.aggregates.AllTimeTotals(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":             user,
		"quota":            quota,
		"keys":             keys,
		"usage_today":      status,
		"usage_this_month": thisMonth,
		"usage_all_time":   allTime,
	})
}

// SuspendUser handles POST /admin/users/:id/suspend: marks the user
// suspended and revokes every key they hold.
func (h *AdminHandler) SuspendUser(c *gin.Context) {
	userID := c.Param("id")

	if err := h.users.SetStatus(c.Request.Context(), userID, models.UserStatusSuspended); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.NotFound, "user not found"))
		return
	}
	if err := h.keyStore.RevokeAllForUser(c.Request.Context(), userID); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

// ActivateUser handles POST /admin/users/:id/activate. Revoked keys stay
// revoked: the operator must issue new ones.
func (h *AdminHandler) ActivateUser(c *gin.Context) {
	userID := c.Param("id")
	if err := h.users.SetStatus(c.Request.Context(), userID, models.UserStatusActive); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.NotFound, "user not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

type updateQuotaRequest struct {
	DailyRequests         *int     `json:"daily_requests,omitempty" binding:"omitempty,gte=0"`
	DailyTokens           *int     `json:"daily_tokens,omitempty" binding:"omitempty,gte=0"`
	MonthlySpendCapUSD    *string  `json:"monthly_spend_cap_usd,omitempty"`
	ClearSpendCap         bool     `json:"clear_spend_cap,omitempty"`
	MaxConcurrentRequests *int     `json:"max_concurrent_requests,omitempty" binding:"omitempty,gte=1"`
}

// UpdateQuota handles PATCH /admin/users/:id/quota: a partial update over
// any subset of {daily_requests, daily_tokens, monthly_spend_cap_usd,
// max_concurrent_requests}.
func (h *AdminHandler) UpdateQuota(c *gin.Context) {
	userID := c.Param("id")

	var req updateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.ValidationError, err.Error()))
		return
	}

	patch := repository.QuotaPatch{
		DailyRequests:         req.DailyRequests,
		DailyTokens:           req.DailyTokens,
		MaxConcurrentRequests: req.MaxConcurrentRequests,
	}
	if req.ClearSpendCap {
		var nilStr *string
		patch.MonthlySpendCapUSD = &nilStr
	} else if req.MonthlySpendCapUSD != nil {
		v := req.MonthlySpendCapUSD
		patch.MonthlySpendCapUSD = &v
	}

	if err := h.quotas.Update(c.Request.Context(), userID, patch); err != nil {
		middleware.RespondError(c, err)
		return
	}

	quota, err := h.quotas.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quota": quota})
}

func parseIntParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
