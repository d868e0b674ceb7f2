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

	adminapp "github.com/govcon/backend/internal/application/admin"
	entapp "github.com/govcon/backend/internal/application/entitlement"
	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/infrastructure/cache"
	"github.com/govcon/backend/internal/infrastructure/config"
	"github.com/govcon/backend/internal/infrastructure/email"
	"github.com/govcon/backend/internal/infrastructure/logger"
	"github.com/govcon/backend/internal/infrastructure/payment"
	"github.com/govcon/backend/internal/infrastructure/persistence"
	"github.com/govcon/backend/internal/interfaces/http/handler"
	"github.com/govcon/backend/internal/interfaces/http/middleware"
	"github.com/govcon/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting GovCon entitlement backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database connection with GORM logging routed through zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Fast access cache. Redis is the normal backend; if it is unreachable
	// the process stays up on an in-memory cache so webhooks keep landing
	// in the ledger, and a later repair run restores the cache entries.
	var accessCache entitlement.AccessCache
	redisCache, err := cache.NewRedisAccessCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory access cache", zap.Error(err))
		accessCache = cache.NewInMemoryAccessCache()
	} else {
		accessCache = redisCache
		log.Info("Redis access cache connected")
	}

	// Payment gateway. Without API keys there is nothing to reconcile.
	gateway, err := payment.NewStripeGateway(payment.StripeConfig{
		LiveSecretKey:     cfg.Stripe.LiveSecretKey,
		TestSecretKey:     cfg.Stripe.TestSecretKey,
		LiveWebhookSecret: cfg.Stripe.LiveWebhookSecret,
		TestWebhookSecret: cfg.Stripe.TestWebhookSecret,
	})
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	// Outbound mail
	var mailer email.Mailer
	if cfg.SMTP.Host != "" {
		mailer = email.NewSMTPMailer(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn("SMTP not configured, access emails disabled")
		mailer = email.NoopMailer{}
	}

	// Repositories
	purchaseRepo := persistence.NewGormPurchaseRepository(db.DB)
	profileRepo := persistence.NewGormProfileRepository(db.DB)

	cat := catalog.Default()
	eventGuard := cache.NewRecentEventSet(0)

	// Application services
	grantService := entapp.NewGrantService(cat, profileRepo, accessCache, mailer, cfg.App.BaseURL, log)
	webhookService := entapp.NewWebhookService(gateway, eventGuard, purchaseRepo, grantService, cat, log)
	accessService := entapp.NewAccessService(cat, profileRepo, purchaseRepo, accessCache, log)

	// Admin reconciliation services
	backfillService := adminapp.NewBackfillService(gateway, purchaseRepo, grantService, cat, log)
	cleanupService := adminapp.NewCleanupService(purchaseRepo, cat, log)
	repairService := adminapp.NewRepairService(purchaseRepo, profileRepo, accessCache, cat, log)
	verifyService := adminapp.NewVerifyService(purchaseRepo, profileRepo, accessCache, cat, log)
	reportService := adminapp.NewReportService(purchaseRepo, cat, log)
	bulkMailService := adminapp.NewBulkMailService(purchaseRepo, accessCache, mailer, cat, cfg.App.BaseURL, log)
	listingService := adminapp.NewListingService(accessCache)

	// HTTP handlers
	webhookHandler := handler.NewWebhookHandler(webhookService)
	accessHandler := handler.NewAccessHandler(accessService)
	adminHandler := handler.NewAdminHandler(
		cfg.Admin.Password,
		backfillService,
		cleanupService,
		repairService,
		verifyService,
		reportService,
		bulkMailService,
		listingService,
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Versioned API surface: webhook intake and access queries
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(webhookHandler).
		Register(accessHandler)
	r.Setup()

	// Admin tools live at the root, gated by the shared admin credential
	adminHandler.RegisterRoutes(engine.Group(""))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
