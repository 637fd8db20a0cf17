package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "corpreg",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// OrchestrationDuration tracks total per-request orchestration latency.
var OrchestrationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "corpreg",
		Subsystem: "orchestration",
		Name:      "duration_seconds",
		Help:      "End-to-end orchestration duration in seconds, by terminal state.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// UpstreamCallsTotal counts upstream calls by service, operation and result.
var UpstreamCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "corpreg",
		Subsystem: "upstream",
		Name:      "calls_total",
		Help:      "Total upstream registry calls.",
	},
	[]string{"service", "operation", "result"},
)

// UpstreamRetriesTotal counts retry attempts against upstream registries, by
// service.
var UpstreamRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "corpreg",
		Subsystem: "upstream",
		Name:      "retries_total",
		Help:      "Total retry attempts issued against upstream registries.",
	},
	[]string{"service"},
)

// GUSRateLimiterWaitSeconds tracks time spent blocked on the GUS outgoing
// token bucket.
var GUSRateLimiterWaitSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "corpreg",
		Subsystem: "gus",
		Name:      "rate_limiter_wait_seconds",
		Help:      "Time spent waiting for a GUS outgoing rate limiter token.",
		Buckets:   []float64{0, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
)

// GUSSessionRenewalsTotal counts GUS session re-authentications.
var GUSSessionRenewalsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "corpreg",
		Subsystem: "gus",
		Name:      "session_renewals_total",
		Help:      "Total GUS session token renewals performed.",
	},
)

// All returns the service-specific collectors to register alongside the
// shared HTTP metric and the Go/process collectors. No code in the service
// records to these collectors; they are registered and exported at their
// zero values.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		OrchestrationDuration,
		UpstreamCallsTotal,
		UpstreamRetriesTotal,
		GUSRateLimiterWaitSeconds,
		GUSSessionRenewalsTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors, the shared HTTP request duration metric, and any additional
// service-specific collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
