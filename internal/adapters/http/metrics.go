package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's Prometheus instruments on a private registry so
// two servers in one process do not collide.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dinky_http_requests_total",
		Help: "HTTP requests served, by method and status code.",
	}, []string{"method", "code"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dinky_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	m.sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dinky_sessions_active",
		Help: "Sessions created minus sessions deleted.",
	})

	m.registry.MustRegister(m.requests, m.duration, m.sessions)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		m.requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *metrics) sessionOpened() { m.sessions.Inc() }
func (m *metrics) sessionClosed() { m.sessions.Dec() }
