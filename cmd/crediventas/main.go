package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/crediventas/crediventas/internal/app"
	"github.com/crediventas/crediventas/internal/ledger"
	"github.com/crediventas/crediventas/internal/ledger/memory"
	"github.com/crediventas/crediventas/internal/ledger/postgres"
	"github.com/crediventas/crediventas/internal/observability"
	"github.com/crediventas/crediventas/internal/platform/cache"
	"github.com/crediventas/crediventas/internal/platform/db"
	"github.com/crediventas/crediventas/internal/shared"
	"github.com/crediventas/crediventas/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	readiness := map[string]app.ReadinessCheck{}

	var (
		store   ledger.Store
		auditor app.Auditor
		pool    *pgxpool.Pool
	)
	if cfg.UsesMemoryStore() {
		logger.Warn("using in-memory ledger store, data is lost on restart")
		store = memory.New()
		auditor = shared.NewLogAuditor(logger)
	} else {
		pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		store = postgres.New(pool)
		auditor = shared.NewAuditLogger(pool)
		readiness["postgres"] = pool.Ping
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, customer cache and job queue disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	metrics := observability.NewMetrics()
	services, err := app.NewServices(app.ServiceDeps{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Redis:   redisClient,
		Audit:   auditor,
		Metrics: metrics,
	})
	if err != nil {
		logger.Error("build services", slog.Any("error", err))
		os.Exit(1)
	}

	params := app.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Metrics:   metrics,
		Readiness: readiness,
	}
	if redisClient != nil {
		params.JobHandler = newJobHandler(redisClient, logger)
		defer params.JobHandler.Close()
	}
	router := app.NewRouter(services.Handlers(params))

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("ledger_store", cfg.LedgerStore))
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

func newJobHandler(client *redis.Client, logger *slog.Logger) *jobs.Handler {
	opts := asynq.RedisClientOpt{Addr: client.Options().Addr, Password: client.Options().Password, DB: client.Options().DB}
	return jobs.NewHandler(asynq.NewInspector(opts), jobs.NewClient(opts), logger)
}
