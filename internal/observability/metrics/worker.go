package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	chunksPersisted *prometheus.CounterVec
	pendingReview   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ki",
			Subsystem: "pipeline",
			Name:      "document_ingest_total",
			Help:      "Total ingestion runs by terminal status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ki",
			Subsystem: "pipeline",
			Name:      "document_ingest_duration_seconds",
			Help:      "Ingestion run duration in seconds by terminal status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ki",
			Subsystem: "pipeline",
			Name:      "document_ingest_in_flight",
			Help:      "Number of in-flight ingestion runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksPersisted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ki",
			Subsystem: "pipeline",
			Name:      "chunks_persisted_total",
			Help:      "Total chunk rows persisted by gate outcome.",
		},
		[]string{"service", "gate"},
	)
	pendingReview := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ki",
			Subsystem: "pipeline",
			Name:      "review_notifications_total",
			Help:      "Total review notifications sent.",
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, chunksPersisted, pendingReview)

	return &WorkerMetrics{
		registry:        registry,
		ingestTotal:     ingestTotal,
		ingestDuration:  ingestDuration,
		ingestInFlight:  ingestInFlight,
		chunksPersisted: chunksPersisted,
		pendingReview:   pendingReview,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRun() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.ingestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.ingestTotal.WithLabelValues(service, status).Inc()
	m.ingestDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunks(service string, approved, pending int) {
	m.chunksPersisted.WithLabelValues(service, "approved").Add(float64(approved))
	m.chunksPersisted.WithLabelValues(service, "pending").Add(float64(pending))
}

func (m *WorkerMetrics) ObserveReviewNotification(service string) {
	m.pendingReview.WithLabelValues(service).Inc()
}
