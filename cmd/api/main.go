package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grigobio237-eng/Youniqle-sub002/api/controllers"
	"github.com/grigobio237-eng/Youniqle-sub002/api/routes"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/notifications"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/partners"
	paymentsvc "github.com/grigobio237-eng/Youniqle-sub002/internal/payments"
	product "github.com/grigobio237-eng/Youniqle-sub002/internal/products"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/users"
	paymentwebhook "github.com/grigobio237-eng/Youniqle-sub002/internal/webhooks/payments"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/metrics"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/migrate"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pubsub"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/redis"
)

const (
	notificationTimeout = 10 * time.Second
	shutdownTimeout     = 20 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	pingers := map[string]controllers.Pinger{"db": dbClient, "redis": redisClient}

	sender, closeSender, err := notificationSender(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap notification sender", err)
		os.Exit(1)
	}
	defer closeSender()

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	ordersRepo := orders.NewRepository(gormDB)
	partnersRepo := partners.NewRepository(gormDB)
	productsRepo := product.NewRepository(gormDB)

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Store:          inventoryStore(cfg.Inventory, dbClient),
		Logger:         logg,
		Metrics:        metrics.NewInventoryMetrics(prometheus.DefaultRegisterer),
		RetryAttempts:  cfg.Inventory.RetryAttempts,
		RetryBaseDelay: cfg.Inventory.RetryBaseDelay,
	})
	exitOnErr(logg, "failed to create inventory service", err)

	adjuster, err := inventory.NewAdjuster(inventorySvc, dbClient, outboxSvc, logg)
	exitOnErr(logg, "failed to create stock adjuster", err)

	dispatcher, err := notifications.NewDispatcher(sender, users.NewRepository(gormDB), logg, notificationTimeout)
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
		Catalog:      productsRepo,
		Partners:     partnersRepo,
		Reservations: inventorySvc,
		Notifier:     dispatcher,
		Commissions:  commissionSvc,
		Logger:       logg,
		MerchantID:   cfg.Payments.MerchantID,
	})
	exitOnErr(logg, "failed to create order service", err)

	gateway, err := payments.NewGateway(cfg.Payments)
	exitOnErr(logg, "failed to create payment gateway", err)

	paymentSvc, err := paymentsvc.NewService(paymentsvc.ServiceParams{
		Orders:      ordersRepo,
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Stock:       inventorySvc,
		Commissions: commissionSvc,
		Gateway:     gateway,
		Notifier:    dispatcher,
		Logger:      logg,
	})
	exitOnErr(logg, "failed to create payment service", err)

	callbackGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, cfg.Payments.CallbackTTL, paymentwebhook.Scope)
	exitOnErr(logg, "failed to create callback guard", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	hostname, _ := os.Hostname()
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  hostname,
		"inventory": cfg.Inventory.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			Pingers:     pingers,
			Idempotency: redisClient,
			Limiter:     redisClient,
			Orders:      ordersSvc,
			Payments:    paymentSvc,
			Gateway:     gateway,
			Callbacks:   callbackGuard,
			Inventory:   inventorySvc,
			Adjuster:    adjuster,
			Products:    productsRepo,
			Commissions: commissionSvc,
			Partners:    partnersRepo,
		}),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	// in-flight notifications finish before the process exits
	dispatcher.Wait()
	logg.Info(ctx, "api server stopped")
}

func inventoryStore(cfg config.InventoryConfig, dbClient *db.Client) inventory.Store {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), config.InventoryBackendMemory) {
		return inventory.NewMemoryStore()
	}
	return inventory.NewGormStore(dbClient.DB())
}

// notificationSender publishes to Pub/Sub when a GCP project is configured and
// falls back to structured logs otherwise.
func notificationSender(cfg *config.Config, logg *logger.Logger) (notifications.Sender, func(), error) {
	if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		logg.Warn(context.Background(), "no gcp project configured; notifications are logged only")
		return notifications.NewLogSender(logg), func() {}, nil
	}
	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := notifications.NewPubSubSender(client.NotificationPublisher())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	sender, err := notifications.NewBreakerSender(publisher, notifications.BreakerOptions{}, logg)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return sender, func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}, nil
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
