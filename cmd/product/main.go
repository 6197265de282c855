package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/techguru-shop/internal/app"
	"github.com/ariefcatur/techguru-shop/internal/config"
	"github.com/ariefcatur/techguru-shop/internal/httpx"
	"github.com/ariefcatur/techguru-shop/internal/inventory"
	"github.com/ariefcatur/techguru-shop/internal/logging"
	"github.com/ariefcatur/techguru-shop/internal/metrics"
	"github.com/ariefcatur/techguru-shop/internal/orders"
	"github.com/ariefcatur/techguru-shop/internal/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("product")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("product service exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store inventory.Store
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store = &inventory.PGStore{DB: db}
	} else {
		log.Warn("POSTGRES_DSN empty, using in-memory inventory")
		store = inventory.NewMemoryStore()
	}

	notifier, closeNotifier := app.Notifier(cfg, log)
	defer closeNotifier()

	reg := app.Registry()
	swept := metrics.NewSweeperMetrics(reg)
	router := httpx.NewRouter(httpx.RouterConfig{
		Log:         log,
		Metrics:     metrics.NewServerMetrics("product", reg),
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
	})
	(&httpx.ProductsHandler{Store: store, Notifier: notifier, Producer: cfg.ServiceName, Log: log}).Register(router)

	sweeper := &inventory.Sweeper{
		Store:    store,
		Orders:   orders.NewClient(cfg.OrderServiceURL, cfg.CallTimeout),
		TTL:      cfg.ReservationTTL,
		Interval: cfg.SweepInterval,
		Log:      log,
		OnSwept:  swept.Add,
	}
	return app.Serve(ctx, log, cfg.HTTPAddr, router, sweeper.Run)
}
