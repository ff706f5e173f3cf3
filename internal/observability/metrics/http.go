package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docqa"

// Metrics owns a private registry with the HTTP, query, tier, upload and
// index build collectors of one service.
type Metrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	queryChunks     prometheus.Histogram
	queryContext    prometheus.Histogram
	noContextTotal  prometheus.Counter
	tierCallsTotal  *prometheus.CounterVec
	tierDuration    *prometheus.HistogramVec
	uploadsTotal    *prometheus.CounterVec
	uploadChunks    *prometheus.HistogramVec
	indexBuilds     *prometheus.CounterVec
	indexDuration   prometheus.Histogram
	indexesInFlight prometheus.Gauge
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		service:  service,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "in_flight_requests",
				Help:        "Number of in-flight HTTP requests.",
				ConstLabels: serviceLabel,
			},
		),
	}
	m.registerPipeline(serviceLabel)

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.queriesTotal,
		m.queryDuration,
		m.queryChunks,
		m.queryContext,
		m.noContextTotal,
		m.tierCallsTotal,
		m.tierDuration,
		m.uploadsTotal,
		m.uploadChunks,
		m.indexBuilds,
		m.indexDuration,
		m.indexesInFlight,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/rag/debug/session/"):
		return "/api/rag/debug/session/{session_id}"
	default:
		return path
	}
}
