package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "techguru"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string, reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Middleware labels by chi route pattern so path ids do not explode cardinality.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// Checkout outcome results.
const (
	ResultSuccess           = "success"
	ResultInsufficientStock = "insufficient_stock"
	ResultValidation        = "validation"
	ResultDependency        = "dependency_unavailable"
	ResultStoreError        = "store_error"
)

type CheckoutMetrics struct {
	Outcomes   *prometheus.CounterVec
	DurationMS prometheus.Histogram
	Rollbacks  prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "outcomes_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		DurationMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duration_ms",
			Help:      "Checkout latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "reservations_released_total",
			Help:      "Reservations released while unwinding a failed checkout.",
		}),
	}
	reg.MustRegister(m.Outcomes, m.DurationMS, m.Rollbacks)
	return m
}

// Observe is nil-safe so the orchestrator can run without metrics.
func (m *CheckoutMetrics) Observe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(result).Inc()
	m.DurationMS.Observe(float64(d.Milliseconds()))
}

func (m *CheckoutMetrics) Released(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Rollbacks.Add(float64(n))
}

type SweeperMetrics struct {
	Settled *prometheus.CounterVec
}

func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "stale_reservations_total",
		Help:      "Stale reservations settled by the sweeper, by action.",
	}, []string{"action"})
	reg.MustRegister(c)
	return &SweeperMetrics{Settled: c}
}

func (m *SweeperMetrics) Add(released, committed int) {
	if m == nil {
		return
	}
	if released > 0 {
		m.Settled.WithLabelValues("released").Add(float64(released))
	}
	if committed > 0 {
		m.Settled.WithLabelValues("committed").Add(float64(committed))
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
