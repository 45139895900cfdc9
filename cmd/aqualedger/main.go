package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/aqualedger/aqualedger/cmd/aqualedger/cli"
	"github.com/aqualedger/aqualedger/internal/app"
	"github.com/aqualedger/aqualedger/internal/billing"
	"github.com/aqualedger/aqualedger/internal/customers"
	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/format"
	"github.com/aqualedger/aqualedger/internal/observability"
	"github.com/aqualedger/aqualedger/internal/platform/cache"
	"github.com/aqualedger/aqualedger/internal/platform/db"
	"github.com/aqualedger/aqualedger/internal/route"
	"github.com/aqualedger/aqualedger/internal/shared"
	"github.com/aqualedger/aqualedger/internal/tenant"
	"github.com/aqualedger/aqualedger/jobs"
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

	if len(os.Args) > 2 {
		switch os.Args[1] + " " + os.Args[2] {
		case "billing generate":
			os.Exit(runBillingCommand(ctx, cfg, os.Args[3:]))
		case "jobs stats":
			os.Exit(runStatsCommand(ctx, cfg, os.Args[3:]))
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if cfg.PlanCacheBackend == "redis" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var plans tenant.PlanCache
	if redisClient != nil {
		plans = tenant.NewRedisPlanCache(cache.NewRedisJSON[tenant.Plan](redisClient, "aqualedger:plan", cfg.PlanCacheTTL))
	} else {
		plans = tenant.NewMemoryPlanCache(cfg.PlanCacheTTL, nil)
	}
	resolver := tenant.NewResolver(tenant.NewRepository(dbpool), plans, logger)
	auth := tenant.Middleware{
		Tokens:   tenant.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		Resolver: resolver,
		Logger:   logger,
	}

	formatter := format.New(loc, cfg.CurrencySymbol)
	auditLogger := shared.NewAuditLogger(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	deliveryService := delivery.NewService(delivery.NewRepository(dbpool, cfg.TxMaxRetries), idempotencyStore, auditLogger, formatter, logger)
	customerService := customers.NewService(customers.NewRepository(dbpool, cfg.TxMaxRetries), auditLogger, formatter, logger, cfg.OverdueAfterDays)
	routeService := route.NewService(route.NewRepository(dbpool, cfg.TxMaxRetries), deliveryService, auditLogger, logger)
	billingService := billing.NewService(billing.NewRepository(dbpool, cfg.TxMaxRetries), auditLogger, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Pool:            dbpool,
		Auth:            auth,
		Metrics:         metrics,
		DeliveryHandler: delivery.NewHandler(logger, deliveryService),
		CustomerHandler: customers.NewHandler(logger, customerService),
		RouteHandler:    route.NewHandler(logger, routeService),
		BillingHandler:  billing.NewHandler(logger, billingService),
		JobHandler:      jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func runBillingCommand(ctx context.Context, cfg *app.Config, args []string) int {
	queue, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = queue.Close() }()
	return cli.NewBillingOpsCLI(queue).TriggerCommand(ctx, cli.BillingTriggerOptions{Args: args})
}

func runStatsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	queue, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = queue.Close() }()
	return cli.StatsCommand(ctx, queue, args, os.Stdout, os.Stderr)
}
