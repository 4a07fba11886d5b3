// Package api wires the gateway's HTTP surface: route groups, middleware
// chains, and the handlers built over the C1-C6 services.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/api/handler"
	"github.com/llmgateway/gateway/internal/api/middleware"
	"github.com/llmgateway/gateway/internal/config"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/llmgateway/gateway/internal/service"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

// ServerDeps holds every dependency the route wiring needs, constructed
// once in main() and injected here rather than reached through package
// globals.
type ServerDeps struct {
	Gateway    *service.Gateway
	KeyStore   *service.KeyStore
	QuotaEngine *service.QuotaEngine
	Users      repository.UserRepository
	Keys       repository.KeyRepository
	Quotas     repository.QuotaRepository
	Usage      repository.UsageRepository
	Aggregates repository.AggregateRepository
	DB         *sql.DB
	Admin      config.AdminConfig
	RateLimit  config.RateLimitConfig
	QuotaDefaults config.QuotaDefaultsConfig
	ProvidersConfigured bool
	Logger     *zap.Logger
}

// NewServer builds the gin engine with every route SPEC_FULL.md's external
// interface section names, mounted behind the matching middleware chain.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())

	healthHandler := handler.NewHealthHandler(deps.DB, deps.ProvidersConfigured)
	r.GET("/health", healthHandler.Health)
	r.GET("/health/ready", healthHandler.Ready)

	rateLimitCfg := middleware.RateLimitConfig{Max: deps.RateLimit.Max, WindowMS: deps.RateLimit.WindowMS}

	llmHandler := handler.NewLLMHandler(deps.Gateway, deps.QuotaEngine, logger)
	llmGroup := r.Group("/v1/llm")
	llmGroup.Use(middleware.RateLimit(rateLimitCfg))
	llmGroup.Use(middleware.RequireAPIKey(deps.KeyStore, deps.Users))
	{
		llmGroup.POST("/complete", llmHandler.Complete)
		llmGroup.GET("/models", llmHandler.Models)
		llmGroup.GET("/quota", llmHandler.Quota)
	}

	adminHandler := handler.NewAdminHandler(
		deps.Users, deps.Keys, deps.Quotas, deps.Usage, deps.Aggregates,
		deps.KeyStore, deps.QuotaEngine, deps.QuotaDefaults,
	)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.RequireAdminToken(deps.Admin.Token))
	{
		adminGroup.POST("/users", adminHandler.CreateUser)
		adminGroup.GET("/users", adminHandler.ListUsers)
		adminGroup.GET("/users/:id", adminHandler.GetUser)
		adminGroup.POST("/users/:id/suspend", adminHandler.SuspendUser)
		adminGroup.POST("/users/:id/activate", adminHandler.ActivateUser)
		adminGroup.PATCH("/users/:id/quota", adminHandler.UpdateQuota)
		adminGroup.POST("/users/:id/keys", adminHandler.CreateKey)
		adminGroup.DELETE("/keys/:id", adminHandler.RevokeKey)
		adminGroup.GET("/users/:id/usage", adminHandler.GetUsage)
	}

	return &Server{router: r, logger: logger}
}

// ServeHTTP implements http.Handler so Server can back an *http.Server
// directly, giving main() control over graceful shutdown.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
