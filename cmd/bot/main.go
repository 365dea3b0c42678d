package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/textra-ai/textra/internal/bot"
	"github.com/textra-ai/textra/internal/config"
	"github.com/textra-ai/textra/internal/database"
	"github.com/textra-ai/textra/internal/detection"
	"github.com/textra-ai/textra/internal/extract"
	"github.com/textra-ai/textra/internal/inference"
	inats "github.com/textra-ai/textra/internal/nats"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
	iredis "github.com/textra-ai/textra/internal/redis"
	"github.com/textra-ai/textra/internal/users"
	ixmpp "github.com/textra-ai/textra/internal/xmpp"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is required: the bot cannot run without it.
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	publisher := inats.NewPublisher(natsClient.JetStream())
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())

	// Detection pipeline shared with the HTTP transport.
	userSvc := users.NewService(users.NewRepository(pool))
	quotaSvc := quota.NewService(quota.NewPostgresStore(pool), cfg.Quota)
	limiter := ratelimit.New(redisClient, cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour, cfg.RateLimit.Enabled)
	detectionSvc := detection.NewService(
		quotaSvc,
		detection.NewHistoryRepository(pool),
		inference.NewClient(cfg.ML),
		extract.NewExtractor(cfg.Extractor),
		extract.NewReader(cfg.Reader),
		cfg.Detection,
	)

	// XMPP component bridging stanzas to NATS.
	xmppHandler := ixmpp.NewHandler(publisher)
	component, err := ixmpp.NewComponent(cfg.XMPP, xmppHandler)
	if err != nil {
		slog.Error("creating XMPP component", "error", err)
		os.Exit(1)
	}

	relay := ixmpp.NewOutboundRelay(xmppHandler, component.Sender(), consumerMgr)
	detectionBot := bot.New(publisher, consumerMgr, userSvc, limiter, detectionSvc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return component.Start(ctx) })
	g.Go(func() error { return relay.Start(ctx) })
	g.Go(func() error { return detectionBot.Start(ctx) })

	if err := g.Wait(); err != nil {
		slog.Error("bot error", "error", err)
		os.Exit(1)
	}

	slog.Info("bot stopped gracefully")
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
