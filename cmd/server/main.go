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

	apptax "github.com/taxflow/backend/internal/application/tax"
	"github.com/taxflow/backend/internal/infrastructure/auth"
	"github.com/taxflow/backend/internal/infrastructure/config"
	"github.com/taxflow/backend/internal/infrastructure/logger"
	"github.com/taxflow/backend/internal/infrastructure/persistence"
	"github.com/taxflow/backend/internal/infrastructure/ratetable"
	"github.com/taxflow/backend/internal/infrastructure/taxdoc"
	"github.com/taxflow/backend/internal/interfaces/http/handler"
	"github.com/taxflow/backend/internal/interfaces/http/middleware"
	"github.com/taxflow/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting TaxFlow Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Call ledger repository
	ledger := persistence.NewGormCallRecordRepository(db.DB, log)

	// Document-service backend
	docClient, err := taxdoc.NewClient(&taxdoc.Config{
		BaseURL:     cfg.TaxService.BaseURL,
		AccountID:   cfg.TaxService.AccountID,
		LicenseKey:  cfg.TaxService.LicenseKey,
		CompanyCode: cfg.TaxService.CompanyCode,
		Timeout:     cfg.TaxService.Timeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure tax document service client", zap.Error(err))
	}
	docBackend := taxdoc.NewDocumentBackend(docClient, log)
	finalizer := taxdoc.NewFinalizer(docClient)

	// Rate-table backend with Redis read-through cache
	rateSource, err := ratetable.NewHTTPRateSource(&ratetable.Config{
		BaseURL: cfg.RateService.BaseURL,
		APIKey:  cfg.RateService.APIKey,
		Timeout: cfg.RateService.Timeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure rate service client", zap.Error(err))
	}
	rateCache, err := ratetable.NewCachedRateSource(rateSource, cfg.Redis, cfg.RateService.CacheTTL, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := rateCache.Close(); err != nil {
			log.Error("Error closing rate cache", zap.Error(err))
		}
	}()
	rateBackend := ratetable.NewRateTableBackend(rateCache, log)
	log.Info("Rate cache connected", zap.Duration("ttl", cfg.RateService.CacheTTL))

	// Per-tenant backend selection
	resolver := apptax.NewStaticBackendResolver(cfg.Tenants.Default, cfg.Tenants.Backends, docBackend, rateBackend)

	// Application services
	engineService := apptax.NewEngine(ledger, resolver, log)
	finalizeService := apptax.NewFinalizeService(ledger, finalizer, log)

	// JWT service for host authentication
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	taxHandler := handler.NewTaxHandler(engineService, finalizeService, log)
	systemHandler := handler.NewSystemHandler(db.DB, rateCache.Client())

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. BodyLimit - Limit request body size
	// 6. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
			"/api/v1/system/health",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Tax computation routes
	taxRoutes := router.NewDomainGroup("tax", "/tax")
	taxRoutes.POST("/compute", taxHandler.Compute)

	// Invoice finalization routes
	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices")
	invoiceRoutes.POST("/:id/commit", taxHandler.CommitInvoice)
	invoiceRoutes.POST("/:id/void", taxHandler.VoidInvoice)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/health", systemHandler.Health)

	r.Register(taxRoutes).
		Register(invoiceRoutes).
		Register(systemRoutes)

	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
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
