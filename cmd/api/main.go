package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/textra-ai/textra/internal/auth"
	"github.com/textra-ai/textra/internal/config"
	"github.com/textra-ai/textra/internal/database"
	"github.com/textra-ai/textra/internal/detection"
	"github.com/textra-ai/textra/internal/extract"
	"github.com/textra-ai/textra/internal/inference"
	mw "github.com/textra-ai/textra/internal/middleware"
	inats "github.com/textra-ai/textra/internal/nats"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
	iredis "github.com/textra-ai/textra/internal/redis"
	"github.com/textra-ai/textra/internal/server"
	"github.com/textra-ai/textra/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := database.RunMigrations(cfg.DB.DSN(), migrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional for the API: only the readiness probe reports it.
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Warn("NATS unavailable, continuing without it", "error", err)
		natsClient = nil
	} else {
		defer natsClient.Close()
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Quotas and throttles
	quotaSvc := quota.NewService(quota.NewPostgresStore(pool), cfg.Quota)
	limiter := ratelimit.New(redisClient, cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour, cfg.RateLimit.Enabled)

	// Detection pipeline
	historyRepo := detection.NewHistoryRepository(pool)
	detectionSvc := detection.NewService(
		quotaSvc,
		historyRepo,
		inference.NewClient(cfg.ML),
		extract.NewExtractor(cfg.Extractor),
		extract.NewReader(cfg.Reader),
		cfg.Detection,
	)
	detectionHandler := detection.NewHandler(detectionSvc, quotaSvc, limiter, historyRepo, cfg.Detection)

	// Router
	routerCfg := server.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		AuthRateLimiter:    mw.NewRateLimiter(redisClient, cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindowSec).Middleware,
	}
	router := server.NewRouter(pool, natsClient, routerCfg, server.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		DetectText: detectionHandler.DetectText,
		DetectFile: detectionHandler.DetectFile,
		DetectURL:  detectionHandler.DetectURL,

		GetLimits:     detectionHandler.GetLimits,
		ListHistory:   detectionHandler.ListHistory,
		GetStats:      detectionHandler.GetStats,
		DeleteHistory: detectionHandler.DeleteHistory,

		UpdateUserLimits: detectionHandler.UpdateUserLimits,
		ResetRateLimit:   detectionHandler.ResetRateLimit,

		AuthMiddleware:      auth.Middleware(authSvc),
		UserRateLimit:       mw.UserRateLimit(limiter),
		AdminOnlyMiddleware: mw.AdminOnly(cfg.Admin.Emails),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
