package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served API requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installer_http_requests_total",
		Help: "Total HTTP requests served by the conversation API",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "installer_http_request_duration_seconds",
		Help:    "Latency of conversation API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// HTTPErrors counts error responses by domain error code.
	HTTPErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installer_http_errors_total",
		Help: "Total error responses by domain error code",
	}, []string{"method", "path", "code"})

	// StateTransitions counts lifecycle transitions.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installer_state_transitions_total",
		Help: "Installation request lifecycle transitions",
	}, []string{"from", "to"})

	// ExternalCalls counts calls to ticketing and job execution systems.
	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installer_external_calls_total",
		Help: "Calls to external systems by outcome",
	}, []string{"system", "operation", "result"})

	// ExternalCallDuration tracks external call latency, including timeouts.
	ExternalCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "installer_external_call_duration_seconds",
		Help:    "Latency of calls to external systems",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"system", "operation"})

	// AuditWriteFailures counts audit appends that failed and were only logged.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "installer_audit_write_failures_total",
		Help: "Audit log appends that failed",
	})

	// Polls counts executor status polls by observed status.
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "installer_job_polls_total",
		Help: "Job status polls by observed status",
	}, []string{"status"})

	// ActivePollers tracks requests currently being polled.
	ActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "installer_active_pollers",
		Help: "Running requests with an active poll loop",
	})
)

// Metrics records HTTP level counters.
type Metrics struct{}

// NewMetrics returns the HTTP metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	HTTPErrors.WithLabelValues(method, path, code).Inc()
}

// RecordExternalCall records the outcome and latency of one external call.
func RecordExternalCall(system, operation string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ExternalCalls.WithLabelValues(system, operation, result).Inc()
	ExternalCallDuration.WithLabelValues(system, operation).Observe(duration.Seconds())
}
