// Package metrics provides Prometheus metrics export for the item search service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports service metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// HTTP metrics
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	inFlight       prometheus.Gauge

	// Recognition pipeline metrics
	pipelineRuns    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec

	// Search metrics
	searchResults *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemsearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	e.requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "itemsearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"route"},
	)

	e.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "itemsearch",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests being served",
		},
	)

	e.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemsearch",
			Subsystem: "recognition",
			Name:      "pipeline_runs_total",
			Help:      "Total number of recognition pipeline runs",
		},
		[]string{"pipeline", "status"},
	)

	e.pipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "itemsearch",
			Subsystem: "recognition",
			Name:      "pipeline_duration_seconds",
			Help:      "Recognition pipeline latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"pipeline"},
	)

	e.searchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "itemsearch",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of rows returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 500, 1000},
		},
		[]string{"ranked"},
	)

	registry.MustRegister(
		e.requests,
		e.requestLatency,
		e.inFlight,
		e.pipelineRuns,
		e.pipelineLatency,
		e.searchResults,
	)

	return e
}

// RecordRequest records a served HTTP request.
func (e *PrometheusExporter) RecordRequest(route, method string, code int, latency time.Duration) {
	e.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	e.requestLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// IncInFlight marks a request as started; the returned func marks it done.
func (e *PrometheusExporter) IncInFlight() func() {
	e.inFlight.Inc()
	return e.inFlight.Dec
}

// RecordPipelineRun records a recognition pipeline run.
func (e *PrometheusExporter) RecordPipelineRun(pipeline string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	e.pipelineRuns.WithLabelValues(pipeline, status).Inc()
	e.pipelineLatency.WithLabelValues(pipeline).Observe(latency.Seconds())
}

// RecordSearch records the size of a search result.
func (e *PrometheusExporter) RecordSearch(ranked bool, results int) {
	e.searchResults.WithLabelValues(strconv.FormatBool(ranked)).Observe(float64(results))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
