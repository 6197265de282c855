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
	"github.com/ariefcatur/techguru-shop/internal/config"
	"github.com/ariefcatur/techguru-shop/internal/httpx"
	"github.com/ariefcatur/techguru-shop/internal/logging"
	"github.com/ariefcatur/techguru-shop/internal/metrics"
	"github.com/ariefcatur/techguru-shop/internal/mongox"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("cart")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("cart service exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store carts.Store
	if cfg.MongoURI != "" {
		client, err := mongox.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.MongoDB)
		if err := mongox.EnsureIndexes(ctx, db, mongox.CartIndexes); err != nil {
			return err
		}
		store = carts.NewMongoStore(db)
	} else {
		log.Warn("MONGO_URI empty, using in-memory carts")
		store = carts.NewMemoryStore()
	}

	notifier, closeNotifier := app.Notifier(cfg, log)
	defer closeNotifier()

	reg := app.Registry()
	router := httpx.NewRouter(httpx.RouterConfig{
		Log:         log,
		Metrics:     metrics.NewServerMetrics("cart", reg),
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
	})
	svc := &carts.Service{Store: store, Notifier: notifier, Producer: cfg.ServiceName, Log: log}
	(&httpx.CartsHandler{Service: svc, Log: log}).Register(router)

	return app.Serve(ctx, log, cfg.HTTPAddr, router)
}
