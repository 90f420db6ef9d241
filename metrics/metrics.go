package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	runs              *prometheus.CounterVec // total apply runs
	runDuration       prometheus.Histogram   // time to run
	rowsParsed        *prometheus.CounterVec // csv rows by outcome
	operations        *prometheus.CounterVec // planned operations
	apiRequests       *prometheus.CounterVec // remote api requests
	changelogRequests *prometheus.CounterVec // badgerdb requests
}

// Public interface for metrics operations
func (m *Metrics) IncRun(success bool) {
	m.runs.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetRunDuration(duration time.Duration) {
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncRowParsed(objectType string, valid bool) {
	m.rowsParsed.WithLabelValues(objectType, boolToResult(valid)).Inc()
}

func (m *Metrics) IncOperation(action, risk string) {
	m.operations.WithLabelValues(action, risk).Inc()
}

func (m *Metrics) IncAPIRequest(method string, code int) {
	m.apiRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) IncChangelogRequest(operation string, success bool) {
	m.changelogRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "bamsync"

	m := &Metrics{
		registry: registry,

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of apply runs",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of apply runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		rowsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Total CSV rows parsed",
		}, []string{"object_type", "status"}),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total planned operations by action and risk",
		}, []string{"action", "risk"}),

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total remote IPAM API requests",
		}, []string{"method", "code"}),

		changelogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changelog_requests_total",
			Help:      "Total changelog store requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.runs,
			m.runDuration,
			m.rowsParsed,
			m.operations,
			m.apiRequests,
			m.changelogRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
