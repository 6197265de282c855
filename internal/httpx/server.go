// Package httpx holds the chi routers and JSON handlers of the four services.
package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ariefcatur/techguru-shop/internal/metrics"
)

type RouterConfig struct {
	Log         *slog.Logger
	Metrics     *metrics.ServerMetrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Timeout     time.Duration
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(cfg.Log), middleware.Recoverer)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r.Use(middleware.Timeout(timeout))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log == nil || r.URL.Path == "/healthz" {
				return
			}
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
