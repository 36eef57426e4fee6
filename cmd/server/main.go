// Package main is the entry point for the stockledger API server.
// Multi-tenant architecture: Database-per-Tenant.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/party"
	"stockledger/internal/domain/product"
	"stockledger/internal/infrastructure/cache"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/auth_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/registry_repo"
	"stockledger/pkg/logger"
)

// auditAdapter bridges the string-typed domain audit hook onto the
// storage audit service.
type auditAdapter struct {
	svc *postgres.AuditService
}

func (a auditAdapter) LogChange(ctx context.Context, entityType, entityRef, action string, changes map[string]any) error {
	return a.svc.LogChange(ctx, entityType, entityRef, postgres.AuditAction(action), changes)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stockledger server (multi-tenant mode)")

	// --- Meta-database connection ---
	metaPool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.MetaDatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to meta database", "error", err)
	}
	defer metaPool.Close()

	if err := postgres.EnsureMetaSchema(ctx, metaPool.Unwrap()); err != nil {
		log.Fatalw("failed to ensure meta schema", "error", err)
	}
	log.Info("meta database connection established")

	// --- Tenant Registry and Manager ---
	registry := tenant.NewPostgresRegistry(metaPool.Unwrap())

	managerCfg := tenant.DefaultManagerConfig()
	managerCfg.DBUser = cfg.TenantDBUser
	managerCfg.DBPassword = cfg.TenantDBPassword
	managerCfg.MaxTotalPools = cfg.TenantMaxPools
	managerCfg.MaxConnsPerTenant = int32(cfg.TenantMaxConns)
	managerCfg.PoolIdleTimeout = cfg.TenantPoolIdleTime

	tenantManager := tenant.NewManager(managerCfg, registry, log)
	defer tenantManager.Close()

	if cfg.PrewarmPools {
		log.Info("prewarming tenant pools...")
		if err := tenantManager.PrewarmPools(ctx); err != nil {
			log.Warnw("failed to prewarm some pools", "error", err)
		}
	}

	// --- JWT Service ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.AccessTokenTTL
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Repositories ---
	// Repos are created once; TxManager comes from context per-request.
	productRepo := registry_repo.NewProductRepo()
	partyRepo := registry_repo.NewPartyRepo()
	movementRepo := ledger_repo.NewMovementRepo()
	userRepo := auth_repo.NewUserRepo()
	versionStore := postgres.NewVersionStore()

	auditService, err := postgres.NewAuditService(nil)
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}
	audit := auditAdapter{svc: auditService}

	// --- Domain services ---
	partyService := party.NewService(partyRepo, productRepo, movementRepo, versionStore, audit)
	movementService := ledger.NewService(movementRepo, productRepo, partyService, versionStore, audit)
	productService := product.NewService(productRepo, movementRepo, versionStore, audit)
	// The ledger depends on the registry for stock state; the registry
	// needs the ledger to record initial stock. Wire the back edge here.
	productService.SetStockInitializer(movementService)

	authService := auth.NewService(userRepo, jwtService, auth.DefaultServiceConfig())

	// --- Query cache ---
	queryCache := cache.NewQueryCache(cfg.ProductsCacheTTL)
	queryCache.SetFamilyTTL(postgres.FamilyProducts, cfg.ProductsCacheTTL)
	queryCache.SetFamilyTTL(postgres.FamilyMovements, cfg.MovementsCacheTTL)
	queryCache.Start(ctx)
	defer queryCache.Stop()

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		TenantManager:   tenantManager,
		MetaPool:        metaPool.Unwrap(),
		Logger:          log,
		JWTValidator:    jwtService,
		AuthService:     authService,
		ProductService:  productService,
		PartyService:    partyService,
		MovementService: movementService,
		QueryCache:      queryCache,
		VersionStore:    versionStore,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort, "mode", "multi-tenant")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
