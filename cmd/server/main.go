package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	connectionsapp "github.com/erpbridge/backend/internal/application/connections"
	identityapp "github.com/erpbridge/backend/internal/application/identity"
	importsapp "github.com/erpbridge/backend/internal/application/imports"
	mappingsapp "github.com/erpbridge/backend/internal/application/mappings"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/auth"
	"github.com/erpbridge/backend/internal/infrastructure/cache"
	"github.com/erpbridge/backend/internal/infrastructure/config"
	importengine "github.com/erpbridge/backend/internal/infrastructure/engine"
	"github.com/erpbridge/backend/internal/infrastructure/erp"
	"github.com/erpbridge/backend/internal/infrastructure/logger"
	"github.com/erpbridge/backend/internal/infrastructure/persistence"
	"github.com/erpbridge/backend/internal/infrastructure/spreadsheet"
	"github.com/erpbridge/backend/internal/infrastructure/storage"
	"github.com/erpbridge/backend/internal/infrastructure/telemetry"
	"github.com/erpbridge/backend/internal/infrastructure/transform"
	"github.com/erpbridge/backend/internal/interfaces/http/handler"
	"github.com/erpbridge/backend/internal/interfaces/http/middleware"
	"github.com/erpbridge/backend/internal/interfaces/http/router"
	"github.com/erpbridge/backend/internal/interfaces/ws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger: environment picks the preset, explicit settings win
	logCfg := logger.DefaultConfig()
	if cfg.App.Env == "production" {
		logCfg = logger.ProductionConfig()
	}
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	if cfg.Log.Output != "" {
		logCfg.Output = cfg.Log.Output
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ERPBridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Ship structured logs to the collector alongside stdout
	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if loggerProvider.IsEnabled() {
		bridgeLevel := zapcore.InfoLevel
		if cfg.Log.Level == "debug" {
			bridgeLevel = zapcore.DebugLevel
		}
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          bridgeLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore,
			zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	// Continuous profiling, opt-in
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilerEnabled,
		ServerAddress:       cfg.Telemetry.ProfilerAddress,
		ApplicationName:     cfg.App.Name,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		// CPU samples get span_id labels once both sides are running
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Error("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Initialize database connection with zap-backed GORM logging
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

	// Query spans and pool/latency metrics on the shared GORM handle
	if cfg.Telemetry.Enabled {
		dbTracingCfg := telemetry.DefaultDBTracingConfig()
		dbTracingCfg.Enabled = true
		dbTracing := telemetry.NewDBTracingPlugin(dbTracingCfg, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Error("Failed to register database tracing", zap.Error(err))
		}
		if _, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log); err != nil {
			log.Error("Failed to register database metrics", zap.Error(err))
		}
	}

	// Initialize repositories
	userRepo := persistence.NewGormUserRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	jobRepo := persistence.NewGormImportJobRepository(db.DB)
	connectionRepo := persistence.NewGormERPConnectionRepository(db.DB)

	// JWT service and token blacklist. Redis revocation survives restarts,
	// the in-memory fallback keeps single-node deployments working.
	jwtService := auth.NewJWTService(cfg.JWT)
	var blacklist auth.TokenBlacklist
	redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable for token blacklist, using in-memory store", zap.Error(err))
		blacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		blacklist = redisBlacklist
	}

	// Idempotency store for upload deduplication
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Uploaded-file archive
	var archive storage.Archive
	switch cfg.Storage.Backend {
	case "s3":
		s3Archive, err := storage.NewS3Archive(&cfg.Storage, storage.WithS3Logger(log))
		if err != nil {
			log.Fatal("Failed to initialize S3 archive", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			log.Warn("Failed to ensure archive bucket", zap.Error(err))
		}
		cancel()
		archive = s3Archive
	default:
		localArchive, err := storage.NewLocalArchive(cfg.Storage.LocalDir, storage.WithLocalLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize local archive", zap.Error(err))
		}
		archive = localArchive
	}
	log.Info("Upload archive ready", zap.String("backend", cfg.Storage.Backend))

	// Import pipeline components
	registry := transform.NewRegistry()
	loader := spreadsheet.NewLoader(
		spreadsheet.WithMaxFileSize(cfg.Import.MaxFileSize),
		spreadsheet.WithMaxRows(cfg.Import.MaxRows),
		spreadsheet.WithLogger(log),
	)
	pipeline := importengine.NewPipeline(registry, importengine.WithPipelineLogger(log))

	// ERP delivery provider bound to the default connection
	erpProvider := erp.NewProvider(connectionRepo, cfg.ERP, log)

	// WebSocket hub for job progress updates
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := ws.NewHub(ws.WithHubLogger(log))
	go hub.Run(hubCtx)
	wsHandler := ws.NewHandler(hub, jwtService, cfg.HTTP.CORSAllowOrigins, log)

	// Job lifecycle events fan out to websocket clients and, when metrics
	// are enabled, to the import instruments
	notifier := importsapp.MultiNotifier{ws.NewJobNotifier(hub)}
	if meterProvider.IsEnabled() {
		importMetrics, err := telemetry.NewImportMetrics(telemetry.ImportMetricsConfig{
			Meter:         meterProvider.Meter("imports"),
			Logger:        log,
			StatsProvider: telemetry.NewGormJobStatsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize import metrics", zap.Error(err))
		}
		importMetrics.StartPeriodicCollection(hubCtx, time.Minute)
		defer importMetrics.Stop()
		notifier = append(notifier, importMetrics)
	}

	// Initialize application services
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, identityapp.DefaultAuthServiceConfig(), log)
	userService := identityapp.NewUserService(userRepo, log)
	mappingService := mappingsapp.NewService(mappingRepo, registry, log)
	connectionService := connectionsapp.NewService(connectionRepo, log)
	importService := importsapp.NewService(jobRepo, mappingRepo, loader, pipeline, erpProvider, cfg.Import,
		importsapp.WithNotifier(notifier),
		importsapp.WithArchive(archive),
		importsapp.WithIdempotencyStore(idempotencyStore, shared.DefaultIdempotencyTTL),
		importsapp.WithServiceLogger(log),
	)

	// Bootstrap admin account on first start
	if cfg.App.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := userService.EnsureAdmin(ctx, cfg.App.AdminUsername, cfg.App.AdminPassword); err != nil {
			log.Fatal("Failed to ensure bootstrap admin", zap.Error(err))
		}
		cancel()
	} else {
		log.Warn("Bootstrap admin password not configured, skipping admin bootstrap")
	}

	// Jobs orphaned by an unclean shutdown are failed so they stop
	// reporting as running forever
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		recovered, err := importService.RecoverOrphans(ctx)
		cancel()
		if err != nil {
			log.Error("Orphaned job recovery failed", zap.Error(err))
		} else if recovered > 0 {
			log.Info("Recovered orphaned jobs", zap.Int("count", recovered))
		}
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	mappingHandler := handler.NewMappingHandler(mappingService)
	importHandler := handler.NewImportHandler(importService)
	connectionHandler := handler.NewConnectionHandler(connectionService)
	transformationHandler := handler.NewTransformationHandler(registry)
	systemHandler := handler.NewSystemHandler(db, erpProvider)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

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
	// 4. Tracing/Metrics - OpenTelemetry spans and request metrics (if enabled)
	// 5. Profiling - pprof labels for continuous profiling (if enabled)
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanEnrichment())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Telemetry.ProfilerEnabled {
		engine.Use(middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
	}

	// Liveness and readiness probes outside the API prefix
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	// WebSocket endpoint authenticates via query token inside the handler
	engine.GET("/ws", wsHandler.Serve)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		SkipPaths: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/v1/system/ping",
		},
		Logger: log,
	}))

	// Authentication routes. Login and refresh get a tighter per-IP
	// limit than the global one to slow brute forcing.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authRoutes := router.NewDomainGroup("/auth")
	authRoutes.POST("/login", middleware.AuthRateLimit(authLimiter), authHandler.Login)
	authRoutes.POST("/refresh", middleware.AuthRateLimit(authLimiter), authHandler.RefreshToken)
	authRoutes.POST("/logout", authHandler.Logout)
	authRoutes.GET("/me", authHandler.GetCurrentUser)
	authRoutes.PUT("/password", authHandler.ChangePassword)

	// User management, admin only
	userRoutes := router.NewDomainGroup("/users")
	userRoutes.Use(middleware.RequireAdmin())
	userRoutes.POST("", userHandler.CreateUser)
	userRoutes.GET("", userHandler.ListUsers)
	userRoutes.GET("/:id", userHandler.GetUser)
	userRoutes.PUT("/:id", userHandler.UpdateUser)
	userRoutes.DELETE("/:id", userHandler.DeactivateUser)
	userRoutes.POST("/:id/activate", userHandler.ActivateUser)
	userRoutes.PUT("/:id/password", userHandler.ResetPassword)

	// Column mappings. Reads are open to operators, writes are admin only.
	mappingRoutes := router.NewDomainGroup("/mappings")
	mappingRoutes.GET("", mappingHandler.ListMappings)
	mappingRoutes.GET("/:id", mappingHandler.GetMapping)
	mappingRoutes.POST("", middleware.RequireAdmin(), mappingHandler.CreateMapping)
	mappingRoutes.PUT("/:id", middleware.RequireAdmin(), mappingHandler.UpdateMapping)
	mappingRoutes.DELETE("/:id", middleware.RequireAdmin(), mappingHandler.DeleteMapping)
	mappingRoutes.POST("/:id/restore", middleware.RequireAdmin(), mappingHandler.RestoreMapping)

	// Import jobs
	importRoutes := router.NewDomainGroup("/imports")
	importRoutes.POST("", importHandler.Upload)
	importRoutes.GET("", importHandler.ListJobs)
	importRoutes.GET("/:id", importHandler.GetJob)
	importRoutes.GET("/:id/errors", importHandler.GetJobErrors)
	importRoutes.POST("/:id/cancel", importHandler.CancelJob)

	// ERP connections, admin only
	connectionRoutes := router.NewDomainGroup("/connections")
	connectionRoutes.Use(middleware.RequireAdmin())
	connectionRoutes.POST("", connectionHandler.CreateConnection)
	connectionRoutes.GET("", connectionHandler.ListConnections)
	connectionRoutes.GET("/:id", connectionHandler.GetConnection)
	connectionRoutes.PUT("/:id", connectionHandler.UpdateConnection)
	connectionRoutes.DELETE("/:id", connectionHandler.DeleteConnection)
	connectionRoutes.POST("/:id/default", connectionHandler.SetDefaultConnection)
	connectionRoutes.POST("/:id/test", connectionHandler.TestConnection)

	erpRoutes := router.NewDomainGroup("/erp")
	erpRoutes.Use(middleware.RequireAdmin())
	erpRoutes.POST("/test", connectionHandler.TestCredentials)

	// Transformation catalogue
	transformationRoutes := router.NewDomainGroup("/transformations")
	transformationRoutes.GET("", transformationHandler.ListTransformations)

	// System routes
	systemRoutes := router.NewDomainGroup("/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(authRoutes).
		Register(userRoutes).
		Register(mappingRoutes).
		Register(importRoutes).
		Register(connectionRoutes).
		Register(erpRoutes).
		Register(transformationRoutes).
		Register(systemRoutes)

	r.Setup()

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

	// Running imports drain before the process exits so no job is
	// left in a non-terminal state
	importService.Wait()
	hubCancel()

	log.Info("Server exited gracefully")
}
