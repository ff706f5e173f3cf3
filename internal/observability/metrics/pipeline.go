package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docqa/internal/core/domain"
)

func (m *Metrics) registerPipeline(serviceLabel prometheus.Labels) {
	m.queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered questions by category and backend.",
		},
		[]string{"service", "category", "backend"},
	)
	m.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end pipeline duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60},
		},
		[]string{"service", "category"},
	)
	m.queryChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "query",
			Name:        "retrieved_chunks",
			Help:        "Chunks placed in the context per question.",
			Buckets:     []float64{0, 1, 2, 3, 4},
			ConstLabels: serviceLabel,
		},
	)
	m.queryContext = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "query",
			Name:        "context_chars",
			Help:        "Context size in characters per question.",
			Buckets:     []float64{0, 250, 500, 1000, 2000, 3000, 4000},
			ConstLabels: serviceLabel,
		},
	)
	m.noContextTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "query",
			Name:        "no_context_total",
			Help:        "Questions answered without calling a backend.",
			ConstLabels: serviceLabel,
		},
	)
	m.tierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tier",
			Name:      "calls_total",
			Help:      "Answer tier calls by outcome.",
		},
		[]string{"service", "tier", "outcome"},
	)
	m.tierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tier",
			Name:      "duration_seconds",
			Help:      "Answer tier call duration in seconds, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 40, 60},
		},
		[]string{"service", "tier"},
	)
	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "documents_total",
			Help:      "Uploaded documents by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	m.uploadChunks = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "chunks",
			Help:      "Chunks produced per successful upload.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "kind"},
	)
	m.indexBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Index builds by status.",
		},
		[]string{"service", "status"},
	)
	m.indexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "build_duration_seconds",
			Help:        "Index build duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
	)
	m.indexesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "builds_in_flight",
			Help:        "Index builds currently running on the pool.",
			ConstLabels: serviceLabel,
		},
	)
}

func (m *Metrics) ObserveQuery(category domain.Category, backend string, chunks, contextChars int, elapsed time.Duration) {
	if backend == "" {
		backend = "unknown"
	}
	m.queriesTotal.WithLabelValues(m.service, string(category), backend).Inc()
	m.queryDuration.WithLabelValues(m.service, string(category)).Observe(elapsed.Seconds())
	m.queryChunks.Observe(float64(chunks))
	m.queryContext.Observe(float64(contextChars))
	if backend == domain.BackendNone {
		m.noContextTotal.Inc()
	}
}

func (m *Metrics) ObserveTier(tier, outcome string, elapsed time.Duration) {
	m.tierCallsTotal.WithLabelValues(m.service, tier, outcome).Inc()
	m.tierDuration.WithLabelValues(m.service, tier).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUpload(kind domain.DocumentKind, status string, chunks int) {
	m.uploadsTotal.WithLabelValues(m.service, string(kind), status).Inc()
	if status == "ok" {
		m.uploadChunks.WithLabelValues(m.service, string(kind)).Observe(float64(chunks))
	}
}

func (m *Metrics) StartIndexBuild() {
	m.indexesInFlight.Inc()
}

func (m *Metrics) FinishIndexBuild(duration time.Duration, err error) {
	m.indexesInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.indexBuilds.WithLabelValues(m.service, status).Inc()
	m.indexDuration.Observe(duration.Seconds())
}
