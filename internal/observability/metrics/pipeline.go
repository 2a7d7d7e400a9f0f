package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers the query-to-answer pipeline. The degraded-retrieval
// counter exists so partial-scope outages surface to operators instead of
// silently lowering answer quality.
type PipelineMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal            *prometheus.CounterVec
	askDuration         *prometheus.HistogramVec
	degradedRetrieval   *prometheus.CounterVec
	refinementCycles    *prometheus.HistogramVec
	retrievedCandidates *prometheus.HistogramVec

	sessionPurgeTotal *prometheus.CounterVec
	uploadChunksTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcta",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plcta",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plcta",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcta",
			Subsystem: "pipeline",
			Name:      "ask_total",
			Help:      "Total answered queries by outcome.",
		},
		[]string{"service", "outcome"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plcta",
			Subsystem: "pipeline",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)
	degradedRetrieval := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcta",
			Subsystem: "pipeline",
			Name:      "degraded_retrieval_total",
			Help:      "Total answers produced with one retrieval scope unavailable.",
		},
		[]string{"service"},
	)
	refinementCycles := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plcta",
			Subsystem: "pipeline",
			Name:      "refinement_cycles",
			Help:      "Distribution of analyze-retrieve-generate-evaluate cycles per request.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	retrievedCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plcta",
			Subsystem: "pipeline",
			Name:      "retrieved_candidates",
			Help:      "Distribution of context candidates per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)

	sessionPurgeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcta",
			Subsystem: "sessions",
			Name:      "purge_total",
			Help:      "Total session purge attempts by status.",
		},
		[]string{"service", "status"},
	)
	uploadChunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcta",
			Subsystem: "sessions",
			Name:      "upload_chunks_total",
			Help:      "Total private chunks indexed from session uploads.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal, requestDuration, requestInFlight,
		askTotal, askDuration, degradedRetrieval, refinementCycles, retrievedCandidates,
		sessionPurgeTotal, uploadChunksTotal,
	)

	return &PipelineMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		askTotal:            askTotal,
		askDuration:         askDuration,
		degradedRetrieval:   degradedRetrieval,
		refinementCycles:    refinementCycles,
		retrievedCandidates: retrievedCandidates,
		sessionPurgeTotal:   sessionPurgeTotal,
		uploadChunksTotal:   uploadChunksTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveRequest(service, method, path, status string, duration time.Duration) {
	m.requestTotal.WithLabelValues(service, method, path, status).Inc()
	m.requestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RequestStarted()  { m.requestInFlight.Inc() }
func (m *PipelineMetrics) RequestFinished() { m.requestInFlight.Dec() }

func (m *PipelineMetrics) ObserveAsk(service, outcome string, duration time.Duration, degraded bool, iterations, candidates int) {
	m.askTotal.WithLabelValues(service, outcome).Inc()
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	if degraded {
		m.degradedRetrieval.WithLabelValues(service).Inc()
	}
	if iterations > 0 {
		m.refinementCycles.WithLabelValues(service).Observe(float64(iterations))
	}
	if candidates >= 0 {
		m.retrievedCandidates.WithLabelValues(service).Observe(float64(candidates))
	}
}

func (m *PipelineMetrics) ObserveSessionPurge(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sessionPurgeTotal.WithLabelValues(service, status).Inc()
}

func (m *PipelineMetrics) ObserveUploadChunks(service string, count int) {
	if count > 0 {
		m.uploadChunksTotal.WithLabelValues(service).Add(float64(count))
	}
}
