package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/api/middleware"
	"github.com/llmgateway/gateway/internal/gatewayerr"
)

const defaultUsageLimit = 50
const maxUsageLimit = 200

// GetUsage handles GET /admin/users/:id/usage: today/month/all-time stats
// plus a bounded page of recent usage records.
func (h *AdminHandler) GetUsage(c *gin.Context) {
	userID := c.Param("id")

	if _, err := h.users.FindByID(c.Request.Context(), userID); err != nil {
		middleware.RespondError(c, gatewayerr.New(gatewayerr.NotFound, "user not found"))
		return
	}

	limit := parseIntParam(c.Query("limit"), defaultUsageLimit)
	if limit <= 0 || limit > maxUsageLimit {
		limit = defaultUsageLimit
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

	recent, err := h.usage.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"today":    status,
		"month":    thisMonth,
		"all_time": allTime,
		"recent":   recent,
	})
}
