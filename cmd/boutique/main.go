package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/Alba-Tab/backend-boutique/internal/app"
	"github.com/Alba-Tab/backend-boutique/internal/catalog"
	"github.com/Alba-Tab/backend-boutique/internal/installment"
	"github.com/Alba-Tab/backend-boutique/internal/observability"
	"github.com/Alba-Tab/backend-boutique/internal/payments"
	"github.com/Alba-Tab/backend-boutique/internal/platform/cache"
	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/internal/sales"
	"github.com/Alba-Tab/backend-boutique/internal/shared"
	"github.com/Alba-Tab/backend-boutique/internal/stock"
	"github.com/Alba-Tab/backend-boutique/internal/users"
	"github.com/Alba-Tab/backend-boutique/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if cfg.TestMode {
		logger.Info("test mode detected, skipping server startup")
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MinConns: cfg.PGMinConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	metrics := observability.NewMetrics()
	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobClient.Close() }()

	catalogRepo := catalog.NewRepository(pool)
	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(catalogRepo, catalogCache)

	userRepo := users.NewRepository(pool)
	notifier := jobs.NewNotifier(jobClient, catalogService, logger)

	salesRepo := sales.NewRepository(pool, cfg.LockTimeout)
	salesService := sales.NewService(logger, salesRepo, userRepo, stock.NewLedger(), notifier, auditLogger, metrics)

	paymentsRepo := payments.NewRepository(pool, cfg.LockTimeout)
	paymentsService := payments.NewService(logger, paymentsRepo, auditLogger, metrics)

	installmentStore := installment.NewStore(pool)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		Metrics:            metrics,
		SalesHandler:       sales.NewHandler(logger, salesService, validate),
		PaymentsHandler:    payments.NewHandler(logger, paymentsService, validate),
		InstallmentHandler: installment.NewHandler(logger, installmentStore),
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		UsersHandler:       users.NewHandler(logger, userRepo),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
