package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// answerRequestsTotal counts completed /api/answer requests, partitioned
	// by outcome: "ok", "no_match", "timeout", or "error".
	answerRequestsTotal *prometheus.CounterVec

	// answerDurationSeconds records the wall-clock duration of each
	// /api/answer request, covering retrieval, generation, and extraction.
	answerDurationSeconds *prometheus.HistogramVec

	// answerInFlight is the number of /api/answer requests currently being
	// processed.
	answerInFlight prometheus.Gauge

	// extractionTotal counts answered requests by the extraction strategy
	// that recognized the choice in the model's reply.
	extractionTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default,
// which keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		answerRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcqa",
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Total number of /api/answer requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcqa",
			Subsystem: "answer",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/answer requests, including retrieval and generation.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		answerInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcqa",
			Subsystem: "answer",
			Name:      "in_flight",
			Help:      "Number of /api/answer requests currently being processed.",
		}),

		extractionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcqa",
			Subsystem: "answer",
			Name:      "extraction_total",
			Help:      "Answered requests partitioned by the extraction strategy that matched the reply.",
		}, []string{"strategy"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
