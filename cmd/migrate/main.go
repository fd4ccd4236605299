package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	product "github.com/grigobio237-eng/Youniqle-sub002/internal/products"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/metrics"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/migrate"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	// Flags
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|seed-product")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")

	// Command-specific flags
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")

	// seed-product flags
	productName := flag.String("product-name", "", "product name (for seed-product)")
	price := flag.Int64("price", 0, "unit price in cents (for seed-product)")
	stock := flag.Int("stock", 0, "opening stock (for seed-product)")
	minStock := flag.Int("min", 0, "low stock threshold (for seed-product)")
	maxStock := flag.Int("max", 0, "overstock threshold (for seed-product)")
	partner := flag.String("partner", "", "owning partner id (for seed-product)")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// Commands that do NOT require DB
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		logg.Info(ctx, "migrate ready")
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		logg.Info(ctx, "migrate ready")
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	// Everything else needs DB
	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up":
		if err := migrate.Run(ctx, sqlDB, *dir, "up"); err != nil {
			fmt.Fprintf(os.Stderr, "goose up failed: %v\n", err)
			os.Exit(1)
		}

	case "down":
		if err := migrate.Run(ctx, sqlDB, *dir, "down"); err != nil {
			fmt.Fprintf(os.Stderr, "goose down failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := migrate.Run(ctx, sqlDB, *dir, "status"); err != nil {
			fmt.Fprintf(os.Stderr, "goose status failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			fmt.Fprintf(os.Stderr, "goose version migrate failed: %v\n", err)
			os.Exit(1)
		}

	case "seed-product":
		input := product.CreateProductInput{
			Name:       *productName,
			PriceCents: *price,
			Stock:      *stock,
			MinStock:   *minStock,
			MaxStock:   *maxStock,
		}
		if *partner != "" {
			id, err := uuid.Parse(*partner)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid -partner: %v\n", err)
				os.Exit(1)
			}
			input.PartnerID = &id
		}
		if err := seedProduct(ctx, logg, dbClient, input); err != nil {
			fmt.Fprintf(os.Stderr, "seed product failed: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

// seedProduct creates a catalog row and its tracked ledger entry.
func seedProduct(ctx context.Context, logg *logger.Logger, dbClient *db.Client, input product.CreateProductInput) error {
	gormDB := dbClient.DB()
	inv, err := inventory.NewService(inventory.ServiceParams{
		Store:   inventory.NewGormStore(gormDB),
		Logger:  logg,
		Metrics: metrics.NewInventoryMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		return err
	}
	svc, err := product.NewService(product.NewRepository(gormDB), inv, logg)
	if err != nil {
		return err
	}
	created, err := svc.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Println("seeded product:", created.ID)
	return nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
