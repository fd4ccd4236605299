package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/cron"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/notifications"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/partners"
	product "github.com/grigobio237-eng/Youniqle-sub002/internal/products"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/users"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/instance"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/metrics"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/migrate"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/redis"
)

const notificationTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if strings.EqualFold(cfg.Inventory.Backend, config.InventoryBackendMemory) {
		// expiry releases must land in the ledger the api reserved against
		logg.Error(context.Background(), "cron worker needs a shared inventory backend", errors.New("memory inventory backend is process-local"))
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outboxRepo, logg)
	ordersRepo := orders.NewRepository(gormDB)
	partnersRepo := partners.NewRepository(gormDB)

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Store:          inventory.NewGormStore(gormDB),
		Logger:         logg,
		Metrics:        metrics.NewInventoryMetrics(prometheus.DefaultRegisterer),
		RetryAttempts:  cfg.Inventory.RetryAttempts,
		RetryBaseDelay: cfg.Inventory.RetryBaseDelay,
	})
	exitOnErr(logg, "failed to create inventory service", err)

	dispatcher, err := notifications.NewDispatcher(notifications.NewLogSender(logg), users.NewRepository(gormDB), logg, notificationTimeout)
	exitOnErr(logg, "failed to create notification dispatcher", err)

	commissionSvc, err := commissions.NewService(commissions.ServiceParams{
		Repo:     commissions.NewRepository(gormDB),
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Orders:   ordersRepo,
		Partners: partnersRepo,
		Logger:   logg,
	})
	exitOnErr(logg, "failed to create commission service", err)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:         ordersRepo,
		Tx:           dbClient,
		Outbox:       outboxSvc,
		Catalog:      product.NewRepository(gormDB),
		Partners:     partnersRepo,
		Reservations: inventorySvc,
		Notifier:     dispatcher,
		Commissions:  commissionSvc,
		Logger:       logg,
		MerchantID:   cfg.Payments.MerchantID,
	})
	exitOnErr(logg, "failed to create order service", err)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	expiryJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:  logg,
		Orders:  ordersRepo,
		Expirer: ordersSvc,
		Metrics: metricsCollector,
		TTL:     cfg.Orders.PendingTTL,
		Batch:   cfg.Orders.ExpiryBatch,
	})
	exitOnErr(logg, "failed to create reservation expiry job", err)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Metrics:    metricsCollector,
	})
	exitOnErr(logg, "failed to create outbox retention job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	exitOnErr(logg, "failed to create cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, retentionJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Orders.ExpiryInterval,
	})
	exitOnErr(logg, "failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Orders.ExpiryInterval.String(),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	dispatcher.Wait()
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
