package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports process liveness and readiness. Unlike the
// teacher's HealthChecker, there is no per-endpoint polling loop here: this
// gateway has exactly two external dependencies to check, the persistence
// pool and at least one configured provider, so readiness is computed
// directly rather than tracked in a background state machine.
type HealthHandler struct {
	db               *sql.DB
	providersConfigured bool
}

// NewHealthHandler builds a HealthHandler. providersConfigured should be
// true iff at least one upstream provider API key is set.
func NewHealthHandler(db *sql.DB, providersConfigured bool) *HealthHandler {
	return &HealthHandler{db: db, providersConfigured: providersConfigured}
}

// Health handles GET /health: unconditional liveness, no dependency checks.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Ready handles GET /health/ready: 200 when persistence is reachable and at
// least one provider is configured, 503 with per-check detail otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}

	dbOK := true
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		dbOK = false
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	if h.providersConfigured {
		checks["providers"] = "ok"
	} else {
		checks["providers"] = "no provider API key configured"
	}

	if dbOK && h.providersConfigured {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
}
