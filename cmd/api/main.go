// Command api runs the NeuraSlide webhook service: the Instagram and Stripe
// webhook endpoints plus the operator-facing processed-events query surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"neuraslide/internal/api/handlers"
	"neuraslide/internal/automations"
	"neuraslide/internal/billing"
	"neuraslide/internal/config"
	"neuraslide/internal/core"
	"neuraslide/internal/db"
	"neuraslide/internal/external"
	"neuraslide/internal/ledger"
	"neuraslide/internal/messaging"
	"neuraslide/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	dedup, closeDedup, err := newDeduper(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer closeDedup()

	// Repositories.
	accountRepo := db.NewInstagramAccountRepo(pool)
	conversationRepo := db.NewConversationRepo(pool, logger)
	messageRepo := db.NewMessageRepo(pool)
	automationRepo := db.NewAutomationRepo(pool, logger)
	subscriptionRepo := db.NewSubscriptionRepo(pool)
	invoiceRepo := db.NewInvoiceRepo(pool)
	usageRepo := db.NewUsageRecordRepo(pool)
	delayedRepo := db.NewDelayedResponseRepo(pool)
	eventRepo := db.NewProcessedEventRepo(pool)

	// External collaborators.
	instagramAPI := external.NewInstagramClient(cfg.Instagram.GraphAPIURL, cfg.Instagram.Timeout)
	textGen := external.NewAIClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Timeout)
	instagramVerifier := webhook.NewInstagramVerifier(cfg.Instagram.AppSecret)
	stripeVerifier := external.NewStripeVerifier(cfg.Stripe.WebhookSecret)

	// Core pipeline.
	recorder := ledger.NewRecorder(eventRepo, logger)
	resolver := messaging.NewConversationResolver(accountRepo, conversationRepo, logger)
	matcher := automations.NewMatcher(automationRepo, conversationRepo, logger)
	responder := automations.NewResponder(textGen, instagramAPI, delayedRepo, automationRepo, logger)
	processor := messaging.NewProcessor(dedup, resolver, messageRepo, matcher, responder, usageRepo, recorder, logger)
	reconciler := billing.NewReconciler(subscriptionRepo, invoiceRepo, usageRepo, dedup, recorder, logger)

	// HTTP surface.
	r := chi.NewRouter()
	r.Use(core.Recoverer(logger))
	r.Use(core.RequestID)
	r.Use(core.RequestLogger(logger))

	handlers.NewHealthHandler(pool).RegisterRoutes(r)
	handlers.NewInstagramWebhookHandler(instagramVerifier, processor, cfg.Instagram.VerifyToken, logger).RegisterRoutes(r)
	handlers.NewStripeWebhookHandler(stripeVerifier, reconciler, logger).RegisterRoutes(r)
	handlers.NewEventsHandler(eventRepo, logger).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("webhook service listening",
			slog.String("addr", srv.Addr),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// newDeduper returns the redis-backed duplicate guard when an address is
// configured, else the in-process guard.
func newDeduper(ctx context.Context, cfg *config.Config, logger *slog.Logger) (webhook.Deduper, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info("no redis configured; using in-memory dedup guard")
		return webhook.NewMemoryDeduper(cfg.Redis.DedupTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Unmask(),
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	return webhook.NewRedisDeduper(client, cfg.Redis.DedupTTL), func() { client.Close() }, nil
}
