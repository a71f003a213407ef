// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Client metrics
	InstructionsSubmitted *prometheus.CounterVec
	InstructionLatency    *prometheus.HistogramVec
	RPCCallLatency        *prometheus.HistogramVec

	// Relayer metrics
	NotificationsReceived  prometheus.Counter
	DuplicateNotifications prometheus.Counter
	EventsDecoded          *prometheus.CounterVec
	DuplicateRequests      prometheus.Counter
	HandlerAttempts        *prometheus.CounterVec
	EventProcessingErrors  *prometheus.CounterVec
	HighestSlotSeen        prometheus.Gauge

	// Ledger metrics
	DroppedNotifications prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastProcessedEvent prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_bridge"
	}

	return &Metrics{
		// Client metrics
		InstructionsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "instructions_submitted_total",
			Help:      "Total number of bridge operations submitted by operation and status",
		}, []string{"operation", "status"}),
		InstructionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "instruction_latency_seconds",
			Help:      "Bridge operation submit latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Relayer metrics
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "notifications_received_total",
			Help:      "Total number of log notifications received",
		}),
		DuplicateNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "duplicate_notifications_total",
			Help:      "Total number of redelivered events skipped",
		}),
		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "events_decoded_total",
			Help:      "Total number of bridge events decoded by event name",
		}, []string{"event"}),
		DuplicateRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "duplicate_requests_total",
			Help:      "Total number of lock events whose request id was already recorded",
		}),
		HandlerAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "handler_attempts_total",
			Help:      "Total number of request handler attempts by status",
		}, []string{"status"}),
		EventProcessingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "event_processing_errors_total",
			Help:      "Total number of event processing errors by type",
		}, []string{"event_type", "error_type"}),
		HighestSlotSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "highest_slot_seen",
			Help:      "Highest slot number seen",
		}),

		// Ledger metrics
		DroppedNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "dropped_notifications_total",
			Help:      "Total number of log notifications dropped for a full subscriber",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastProcessedEvent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_processed_event_timestamp",
			Help:      "Unix timestamp of the last processed bridge event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordInstruction records a submitted bridge operation.
func RecordInstruction(operation string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.InstructionsSubmitted.WithLabelValues(operation, status).Inc()
	DefaultMetrics.InstructionLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordNotification increments the notifications received counter.
func RecordNotification() {
	DefaultMetrics.NotificationsReceived.Inc()
}

// RecordDroppedNotification counts a notification dropped by the ledger.
func RecordDroppedNotification() {
	DefaultMetrics.DroppedNotifications.Inc()
}

// RecordDuplicateNotification increments the redelivery counter.
func RecordDuplicateNotification() {
	DefaultMetrics.DuplicateNotifications.Inc()
}

// RecordEventDecoded counts a decoded event and stamps the health gauge.
func RecordEventDecoded(event string, unixSeconds int64) {
	DefaultMetrics.EventsDecoded.WithLabelValues(event).Inc()
	DefaultMetrics.LastProcessedEvent.Set(float64(unixSeconds))
}

// RecordDuplicateRequest increments the duplicate request id counter.
func RecordDuplicateRequest() {
	DefaultMetrics.DuplicateRequests.Inc()
}

// RecordHandlerAttempt records one handler invocation.
func RecordHandlerAttempt(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.HandlerAttempts.WithLabelValues(status).Inc()
}

// RecordEventError records an event processing error.
func RecordEventError(eventType, errorType string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(eventType, errorType).Inc()
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot int64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
