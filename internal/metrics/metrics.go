package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route pattern
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flicket",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flicket",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WorkflowTriggersTotal counts generation workflow triggers
	WorkflowTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flicket",
			Subsystem: "workflow",
			Name:      "triggers_total",
			Help:      "Total generation workflow triggers",
		},
		[]string{"workflow", "status"},
	)

	// WorkflowRunsTotal counts finished generation run attempts
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flicket",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total generation run attempts by outcome",
		},
		[]string{"workflow", "status"},
	)

	// WebhookEventsTotal counts hosting provider callbacks
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flicket",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total hosting provider webhook events",
		},
		[]string{"type", "status"},
	)

	// StorageOperationsTotal counts object storage calls
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flicket",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total thumbnail storage operations",
		},
		[]string{"operation", "status"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordWorkflowTrigger records a workflow trigger attempt
func RecordWorkflowTrigger(workflow, status string) {
	WorkflowTriggersTotal.WithLabelValues(workflow, status).Inc()
}

// RecordWorkflowRun records the outcome of one run attempt
func RecordWorkflowRun(workflow, status string) {
	WorkflowRunsTotal.WithLabelValues(workflow, status).Inc()
}

// RecordWebhookEvent records a processed webhook event
func RecordWebhookEvent(eventType, status string) {
	WebhookEventsTotal.WithLabelValues(eventType, status).Inc()
}

// RecordStorageOperation records an object storage call
func RecordStorageOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
}
