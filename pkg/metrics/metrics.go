// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// DBOperationDuration tracks repository call latency including retries.
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "entity", "status"},
	)

	// ConversationTransitionsTotal counts lifecycle actions by outcome.
	ConversationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_transitions_total",
			Help: "Conversation lifecycle actions by source status, target status and outcome",
		},
		[]string{"action", "from", "to", "outcome"},
	)

	// TransitionConflictsTotal counts compare-and-set misses that forced a reload.
	TransitionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_transition_conflicts_total",
			Help: "Concurrent modification retries during lifecycle transitions",
		},
		[]string{"action"},
	)

	// SecondaryWriteFailuresTotal counts best-effort writes that failed after a primary write succeeded.
	SecondaryWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secondary_write_failures_total",
			Help: "Best-effort secondary writes that failed",
		},
		[]string{"operation"},
	)

	// AutomationTogglesTotal counts automation flag writes.
	AutomationTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_toggles_total",
			Help: "Automation flag changes",
		},
		[]string{"enabled"},
	)

	// WebhookEventsTotal counts processed webhook deliveries.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// SMSDeliveriesTotal counts SMS send attempts and carrier callbacks.
	SMSDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_deliveries_total",
			Help: "SMS delivery outcomes",
		},
		[]string{"stage", "status"},
	)

	// EventsPublishedTotal counts lifecycle events published to the stream.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_events_published_total",
			Help: "Lifecycle events published",
		},
		[]string{"type", "status"},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSStreamBytes tracks bytes in NATS stream.
	NATSStreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_bytes",
			Help: "Bytes in NATS stream",
		},
		[]string{"stream"},
	)

	// EventPoolRunning tracks busy workers in the event publishing pool.
	EventPoolRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_pool_running_workers",
			Help: "Busy workers in the event publishing pool",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveDBOperation records the duration and status of a repository call.
func ObserveDBOperation(operation, entity string, d time.Duration, err error) {
	DBOperationDuration.WithLabelValues(operation, entity, statusLabel(err)).Observe(d.Seconds())
}

// RecordTransition records a lifecycle action.
func RecordTransition(action, from, to, outcome string) {
	ConversationTransitionsTotal.WithLabelValues(action, from, to, outcome).Inc()
}

// RecordTransitionConflict records a compare-and-set miss.
func RecordTransitionConflict(action string) {
	TransitionConflictsTotal.WithLabelValues(action).Inc()
}

// RecordSecondaryWriteFailure records a failed best-effort write.
func RecordSecondaryWriteFailure(operation string) {
	SecondaryWriteFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordAutomationToggle records an automation flag write.
func RecordAutomationToggle(enabled bool) {
	AutomationTogglesTotal.WithLabelValues(strconv.FormatBool(enabled)).Inc()
}

// RecordWebhook records the outcome of one webhook delivery.
func RecordWebhook(source, outcome string) {
	WebhookEventsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordSMS records an SMS send attempt or carrier status.
func RecordSMS(stage, status string) {
	SMSDeliveriesTotal.WithLabelValues(stage, status).Inc()
}

// RecordEventPublish records a lifecycle event publish attempt.
func RecordEventPublish(eventType string, err error) {
	EventsPublishedTotal.WithLabelValues(eventType, statusLabel(err)).Inc()
}

// RecordStream records stream size gauges.
func RecordStream(stream string, msgs, bytes uint64) {
	NATSStreamMessages.WithLabelValues(stream).Set(float64(msgs))
	NATSStreamBytes.WithLabelValues(stream).Set(float64(bytes))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
