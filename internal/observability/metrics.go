package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records MongoDB command latency by command and collection.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database command latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// DatabaseCommandFailures counts MongoDB commands that returned an error.
	DatabaseCommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_database_command_failures_total",
		Help: "Total number of failed database commands",
	}, []string{"operation"})

	// CascadeOperations counts reference-integrity cascades by kind and outcome.
	CascadeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cascade_operations_total",
		Help: "Total number of integrity cascades by kind and outcome",
	}, []string{"cascade", "outcome"})

	// UpstreamFailures counts media host and mailer failures.
	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_upstream_failures_total",
		Help: "Total number of failed calls to third-party services",
	}, []string{"service", "operation"})

	// ActivityEvents counts reader activity events seen on the notification channels.
	ActivityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_activity_events_total",
		Help: "Total number of activity events by type",
	}, []string{"type"})
)

// ObserveQuery records the latency of a finished database command.
func ObserveQuery(operation, collection string, latency time.Duration) {
	DatabaseQueryLatency.WithLabelValues(operation, collection).Observe(latency.Seconds())
}

// RecordCascade counts a finished cascade.
func RecordCascade(cascade string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	CascadeOperations.WithLabelValues(cascade, outcome).Inc()
}
