package main

import (
	"fmt"
	"log"
	"net/http"

	"tenauth/internal/api"
	"tenauth/internal/api/handlers"
	"tenauth/internal/api/middleware"
	"tenauth/internal/pkg/logger"
	"tenauth/internal/platform/audit"
	"tenauth/internal/platform/auth"
	"tenauth/internal/platform/config"
	"tenauth/internal/platform/database"
	"tenauth/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	adminRepo := repositories.NewAdminRepository(db)
	appRepo := repositories.NewAppRepository(db)
	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewAPIKeyRepository(db)
	revocationRepo := repositories.NewSessionRevocationRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.Sessions)
	auditLog := audit.NewLogger(db)

	// Handlers
	adminHandler := handlers.NewAdminHandler(adminRepo, revocationRepo, tokenSvc, auditLog)
	authHandler := handlers.NewAuthHandler(userRepo, revocationRepo, tokenSvc, auditLog)
	appHandler := handlers.NewAppHandler(appRepo, auditLog)
	apiKeyHandler := handlers.NewAPIKeyHandler(appRepo, keyRepo, auditLog)
	userHandler := handlers.NewUserHandler(appRepo, userRepo, auditLog)
	auditHandler := handlers.NewAuditHandler(appRepo, auditLog)
	healthHandler := handlers.NewHealthHandler(db)
	metricsHandler := handlers.NewMetricsHandler()

	// Middleware
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(keyRepo, appRepo)
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc, revocationRepo)
	principalMiddleware := middleware.NewPrincipalMiddleware(adminRepo, userRepo)
	rateLimiter := middleware.NewRateLimiter()

	deps := &api.Dependencies{
		AdminHandler:        adminHandler,
		AuthHandler:         authHandler,
		AppHandler:          appHandler,
		APIKeyHandler:       apiKeyHandler,
		UserHandler:         userHandler,
		AuditHandler:        auditHandler,
		HealthHandler:       healthHandler,
		MetricsHandler:      metricsHandler,
		APIKeyMiddleware:    apiKeyMiddleware,
		AuthMiddleware:      authMiddleware,
		PrincipalMiddleware: principalMiddleware,
		RateLimiter:         rateLimiter,
		RateLimits:          cfg.RateLimit,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
