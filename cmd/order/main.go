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
	"github.com/ariefcatur/techguru-shop/internal/carts"
	"github.com/ariefcatur/techguru-shop/internal/checkout"
	"github.com/ariefcatur/techguru-shop/internal/config"
	"github.com/ariefcatur/techguru-shop/internal/httpx"
	"github.com/ariefcatur/techguru-shop/internal/inventory"
	"github.com/ariefcatur/techguru-shop/internal/logging"
	"github.com/ariefcatur/techguru-shop/internal/metrics"
	"github.com/ariefcatur/techguru-shop/internal/mongox"
	"github.com/ariefcatur/techguru-shop/internal/orders"
	"github.com/ariefcatur/techguru-shop/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("order")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("order service exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store orders.Store
	if cfg.MongoURI != "" {
		client, err := mongox.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.MongoDB)
		if err := mongox.EnsureIndexes(ctx, db, mongox.OrderIndexes); err != nil {
			return err
		}
		store = orders.NewMongoStore(db)
	} else {
		log.Warn("MONGO_URI empty, using in-memory orders")
		store = orders.NewMemoryStore()
	}

	notifier, closeNotifier := app.Notifier(cfg, log)
	defer closeNotifier()

	svc := &orders.Service{Store: store, Notifier: notifier, Producer: cfg.ServiceName, Log: log}
	var idem httpx.Idempotency
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		idem = redisx.NewIdempotency(rdb)
		svc.Cache = redisx.NewOrderCache(rdb, log)
	} else {
		log.Warn("REDIS_ADDR empty, idempotency keys and order cache disabled")
	}

	reg := app.Registry()
	orch := &checkout.Orchestrator{
		Ledger:      inventory.NewClient(cfg.ProductServiceURL, cfg.CallTimeout),
		Orders:      store,
		Carts:       carts.NewClient(cfg.CartServiceURL, cfg.CallTimeout),
		Notifier:    notifier,
		Metrics:     metrics.NewCheckoutMetrics(reg),
		Log:         log,
		Producer:    cfg.ServiceName,
		CallTimeout: cfg.CallTimeout,
	}
	// side effects still running at shutdown must finish before the producer closes
	defer orch.Wait()

	router := httpx.NewRouter(httpx.RouterConfig{
		Log:         log,
		Metrics:     metrics.NewServerMetrics("order", reg),
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
	})
	(&httpx.OrdersHandler{Checkout: orch, Orders: svc, Idem: idem, Log: log}).Register(router)

	return app.Serve(ctx, log, cfg.HTTPAddr, router)
}
