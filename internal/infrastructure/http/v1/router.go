// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/party"
	"stockledger/internal/domain/product"
	"stockledger/internal/infrastructure/cache"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration for multi-tenant architecture.
type RouterConfig struct {
	// TenantManager manages database connections for all tenants
	TenantManager *tenant.Manager

	// MetaPool is connection to meta-database (for health checks)
	MetaPool *pgxpool.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// Domain services
	ProductService  *product.Service
	PartyService    *party.Service
	MovementService *ledger.Service

	// QueryCache for list/summary reads; nil disables caching
	QueryCache *cache.QueryCache

	// VersionStore reads the per-family version counters for cache keys
	VersionStore *postgres.VersionStore
}

// NewRouter creates and configures the Gin router for multi-tenant architecture.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth, no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.MetaPool, cfg.TenantManager)
	health := router.Group("/health")
	{
		health.GET("", healthHandler.Live)
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Auth routes need TenantDB middleware BEFORE auth
		registerAuthRoutes(v1, cfg)

		// Protected endpoints: TenantDB runs first, then Auth
		protected := v1.Group("")
		protected.Use(middleware.TenantDB(cfg.TenantManager)) // 1. Resolve tenant, get DB pool
		protected.Use(middleware.Auth(cfg.JWTValidator))      // 2. Validate JWT, put user in context

		registerProductRoutes(protected, cfg)
		registerPartyRoutes(protected, cfg)
		registerMovementRoutes(protected, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)

	// Public auth endpoints (no JWT required, but need tenant for DB access)
	publicAuth := rg.Group("/auth")
	publicAuth.Use(middleware.TenantDB(cfg.TenantManager))

	// Protected auth endpoints (JWT required)
	protectedAuth := rg.Group("/auth")
	protectedAuth.Use(middleware.TenantDB(cfg.TenantManager))
	protectedAuth.Use(middleware.Auth(cfg.JWTValidator))

	authHandler.RegisterRoutes(publicAuth, protectedAuth)
}

// registerProductRoutes registers product registry endpoints.
// Writes need admin, destructive ops need owner.
func registerProductRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewProductHandler(
		baseHandler, cfg.ProductService, cfg.MovementService, cfg.QueryCache, cfg.VersionStore)

	products := rg.Group("/products")
	{
		products.GET("", handler.List)
		products.POST("", middleware.RequireRole(appctx.RoleAdmin), handler.Create)
		products.GET("/:name", handler.Get)
		products.PUT("/:name", middleware.RequireRole(appctx.RoleAdmin), handler.Update)
		products.DELETE("/:name", middleware.RequireRole(appctx.RoleOwner), handler.Delete)
		products.POST("/:name/restore", middleware.RequireRole(appctx.RoleAdmin), handler.Restore)
		products.GET("/:name/latest-purchase-party", handler.LatestPurchaseParty)
	}
}

// registerPartyRoutes registers party registry endpoints.
func registerPartyRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewPartyHandler(baseHandler, cfg.PartyService)

	parties := rg.Group("/parties")
	{
		parties.GET("", handler.List)
		parties.POST("", middleware.RequireRole(appctx.RoleAdmin), handler.Upsert)
		parties.GET("/:name", handler.Get)
		parties.PUT("/:name/rename", middleware.RequireRole(appctx.RoleAdmin), handler.Rename)
		parties.DELETE("/:name", middleware.RequireRole(appctx.RoleOwner), handler.Deactivate)
	}
}

// registerMovementRoutes registers movement ledger endpoints.
func registerMovementRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewMovementHandler(
		baseHandler, cfg.MovementService, cfg.QueryCache, cfg.VersionStore)

	movements := rg.Group("/movements")
	{
		movements.GET("", handler.List)
		movements.POST("", middleware.RequireRole(appctx.RoleAdmin), handler.Record)
		movements.GET("/summary", handler.Summary)
		movements.PUT("/initial-stock", middleware.RequireRole(appctx.RoleAdmin), handler.UpsertInitialStock)
		movements.GET("/:id", handler.Get)
		movements.DELETE("/:id", middleware.RequireRole(appctx.RoleOwner), handler.Delete)
	}
}
