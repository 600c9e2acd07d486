// Package main runs the SaaS backend HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexiom/backend/config"
	"github.com/nexiom/backend/internal/auth"
	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/identity/local"
	"github.com/nexiom/backend/internal/identity/zitadel"
	"github.com/nexiom/backend/internal/middleware"
	"github.com/nexiom/backend/internal/models"
	"github.com/nexiom/backend/internal/organizations"
	"github.com/nexiom/backend/internal/sessions"
	"github.com/nexiom/backend/internal/tenants"
	"github.com/nexiom/backend/internal/users"
	"github.com/nexiom/backend/pkg/database"
	"github.com/nexiom/backend/pkg/queue"
	"github.com/nexiom/backend/pkg/redis"
	"github.com/nexiom/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Identity backend
	var provider identity.Provider
	switch cfg.Auth.Provider {
	case "zitadel":
		provider, err = zitadel.New(cfg.Zitadel.Issuer, []byte(cfg.Zitadel.ServiceUserJSON), logger)
		if err != nil {
			logger.Fatal("zitadel provider", zap.Error(err))
		}
	default:
		var cache *local.SessionCache
		if cfg.Auth.CacheTTLMinutes > 0 {
			cache = local.NewSessionCache(rdb.Client, time.Duration(cfg.Auth.CacheTTLMinutes)*time.Minute)
		}
		store := local.NewStore(pool)
		sessionTTL := time.Duration(cfg.Auth.SessionTTLHours) * time.Hour
		provider = local.New(store, cache, sessionTTL, logger)
	}

	// Core: tenant provisioning and session enrichment
	tenantRepo := tenants.NewRepository(pool)
	tenantSvc := tenants.NewService(tenantRepo, logger)
	enricher := sessions.NewService(provider, tenantRepo, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	cookie := auth.CookieConfig{
		Name:   cfg.Auth.SessionCookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
		MaxAge: cfg.Auth.SessionTTLHours * 3600,
	}
	authHandler := auth.NewHandler(provider, enricher, tenantSvc, jobQueue, cookie, cfg.Server.BaseURL, logger)

	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo)
	userHandler := users.NewHandler(provider)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (token extraction happens in the handlers)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/verify-email", authHandler.VerifyEmail)
		authGroup.POST("/provision-tenant", authHandler.ProvisionTenant)
		authGroup.POST("/refresh-session", authHandler.RefreshSession)
	}

	// Protected API (enriched session required)
	api := router.Group("")
	api.Use(middleware.Auth(enricher, cfg.Auth.SessionCookieName))
	{
		api.GET("/users", userHandler.List)
		api.GET("/users/:id", userHandler.GetByID)
		api.GET("/organizations", middleware.RequireTenant(), orgHandler.GetMine)
		api.GET("/organizations/:id/members", middleware.RequireTenant(),
			middleware.RequireRole(models.OrgRoleAdmin, models.OrgRoleOwner), orgHandler.ListMembers)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("identity_provider", cfg.Auth.Provider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
