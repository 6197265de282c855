// Package app holds the process plumbing shared by the service binaries.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/techguru-shop/internal/config"
	"github.com/ariefcatur/techguru-shop/internal/events"
	kafkax "github.com/ariefcatur/techguru-shop/internal/kafka"
)

const shutdownTimeout = 10 * time.Second

// Registry returns a registry with the Go runtime and process collectors.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Notifier starts a Kafka producer when brokers are configured. The returned
// func flushes and closes it; call it after the HTTP server has stopped.
func Notifier(cfg config.Config, log *slog.Logger) (events.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("KAFKA_BROKERS empty, events are discarded")
		return events.Discard{}, func() {}
	}
	p := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	p.Start()
	return p, func() {
		p.Close()
		p.WaitClosed()
	}
}

// Serve runs the HTTP server and every background task until ctx is done or
// one of them fails, then shuts the server down gracefully.
func Serve(ctx context.Context, log *slog.Logger, addr string, h http.Handler, tasks ...func(context.Context) error) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	for _, task := range tasks {
		g.Go(func() error { return task(ctx) })
	}
	return g.Wait()
}
