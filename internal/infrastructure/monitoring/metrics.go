package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	ExecutionTimeouts prometheus.Counter

	// Rewrite metrics
	TransformsTotal *prometheus.CounterVec
	RuleHits        *prometheus.CounterVec

	// Install metrics
	InstallsTotal *prometheus.CounterVec

	// Test metrics
	TestRunsTotal *prometheus.CounterVec
	TestOutcomes  *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_executions_total",
				Help: "Total number of snippet executions",
			},
			[]string{"status"},
		),
		ExecutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backend_execution_duration_seconds",
				Help:    "Snippet execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		ExecutionTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_execution_timeouts_total",
				Help: "Total number of executions cut short by timeout",
			},
		),

		TransformsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_transforms_total",
				Help: "Total number of import rewrite calls",
			},
			[]string{"changed"},
		),
		RuleHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_transform_rule_hits_total",
				Help: "Rewrite rule fire counts",
			},
			[]string{"rule"},
		),

		InstallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_installs_total",
				Help: "Total number of package install attempts",
			},
			[]string{"result"},
		),

		TestRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_test_runs_total",
				Help: "Total number of test-file runs",
			},
			[]string{"parser"},
		),
		TestOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_test_outcomes_total",
				Help: "Individual test outcomes by status",
			},
			[]string{"status"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// RecordExecution records one engine execution
func (m *Metrics) RecordExecution(success, timedOut bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	m.ExecutionDuration.Observe(duration.Seconds())
	if timedOut {
		m.ExecutionTimeouts.Inc()
	}
}

// RecordTransform records one rewrite call and its per-rule hits
func (m *Metrics) RecordTransform(changed bool, ruleHits map[string]int) {
	label := "false"
	if changed {
		label = "true"
	}
	m.TransformsTotal.WithLabelValues(label).Inc()
	for rule, count := range ruleHits {
		m.RuleHits.WithLabelValues(rule).Add(float64(count))
	}
}

// RecordInstall records an install attempt outcome
func (m *Metrics) RecordInstall(result string) {
	m.InstallsTotal.WithLabelValues(result).Inc()
}

// RecordTestRun records a test-file run and its outcomes
func (m *Metrics) RecordTestRun(parser string, statuses []string) {
	m.TestRunsTotal.WithLabelValues(parser).Inc()
	for _, status := range statuses {
		m.TestOutcomes.WithLabelValues(status).Inc()
	}
}

// Handler returns the Prometheus scrape handler wrapped for Gin
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
