// Package metrics provides Prometheus metrics for the fanout service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager manages all Prometheus metrics for the fanout service.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Stream consumption
	eventsConsumed *prometheus.CounterVec // pipeline
	eventsSkipped  *prometheus.CounterVec // pipeline, reason
	derivedEvents  *prometheus.CounterVec // event_type

	// Webhook delivery
	deliveries        *prometheus.CounterVec // outcome: ok, http_error, network_error
	deliveryAttempts  prometheus.Counter
	deliveryLatency   prometheus.Histogram
	deliveryLogErrors prometheus.Counter

	// Realtime feed
	wsConnections       prometheus.Gauge
	broadcasts          *prometheus.CounterVec // scope: all, player
	broadcastSendErrors prometheus.Counter

	// Registry
	subscriptionsActive prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec // endpoint, method, status
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "fanout",
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help}
	}
	gaugeOpts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help}
	}

	m.eventsConsumed = prometheus.NewCounterVec(
		factory("events_consumed_total", "Stream messages processed per pipeline."),
		[]string{"pipeline"},
	)
	m.eventsSkipped = prometheus.NewCounterVec(
		factory("events_skipped_total", "Stream messages skipped per pipeline and reason."),
		[]string{"pipeline", "reason"},
	)
	m.derivedEvents = prometheus.NewCounterVec(
		factory("derived_events_total", "Events synthesized by the rule engine by type."),
		[]string{"event_type"},
	)

	m.deliveries = prometheus.NewCounterVec(
		factory("webhook_deliveries_total", "Webhook delivery outcomes."),
		[]string{"outcome"},
	)
	m.deliveryAttempts = prometheus.NewCounter(
		factory("webhook_delivery_attempts_total", "Individual HTTP attempts including retries."),
	)
	m.deliveryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "webhook_delivery_seconds",
		Help:      "Wall time of a full deliver call including retries.",
		Buckets:   prometheus.DefBuckets,
	})
	m.deliveryLogErrors = prometheus.NewCounter(
		factory("webhook_delivery_log_errors_total", "Failures writing delivery log records."),
	)

	m.wsConnections = prometheus.NewGauge(
		gaugeOpts("ws_connections", "Currently registered websocket sessions."),
	)
	m.broadcasts = prometheus.NewCounterVec(
		factory("ws_broadcasts_total", "Broadcast calls by scope."),
		[]string{"scope"},
	)
	m.broadcastSendErrors = prometheus.NewCounter(
		factory("ws_broadcast_send_errors_total", "Per-session send failures during broadcast."),
	)

	m.subscriptionsActive = prometheus.NewGauge(
		gaugeOpts("subscriptions_active", "Active webhook subscriptions."),
	)

	m.httpRequests = prometheus.NewCounterVec(
		factory("http_requests_total", "HTTP requests by endpoint, method and status."),
		[]string{"endpoint", "method", "status"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"endpoint", "method", "status"})

	m.registry.MustRegister(
		m.eventsConsumed,
		m.eventsSkipped,
		m.derivedEvents,
		m.deliveries,
		m.deliveryAttempts,
		m.deliveryLatency,
		m.deliveryLogErrors,
		m.wsConnections,
		m.broadcasts,
		m.broadcastSendErrors,
		m.subscriptionsActive,
		m.httpRequests,
		m.httpRequestDuration,
	)
}

// GetRegistry returns the registry backing the global manager, for promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers delegating to the global manager.

func RecordEventConsumed(pipeline string) {
	globalManager.eventsConsumed.WithLabelValues(pipeline).Inc()
}

func RecordEventSkipped(pipeline, reason string) {
	globalManager.eventsSkipped.WithLabelValues(pipeline, reason).Inc()
}

func RecordDerivedEvent(eventType string) {
	globalManager.derivedEvents.WithLabelValues(eventType).Inc()
}

func RecordDelivery(outcome string) {
	globalManager.deliveries.WithLabelValues(outcome).Inc()
}

func RecordDeliveryAttempt() {
	globalManager.deliveryAttempts.Inc()
}

func RecordDeliveryLatency(seconds float64) {
	globalManager.deliveryLatency.Observe(seconds)
}

func RecordDeliveryLogError() {
	globalManager.deliveryLogErrors.Inc()
}

func UpdateWSConnections(delta int) {
	globalManager.wsConnections.Add(float64(delta))
}

func RecordBroadcast(scope string) {
	globalManager.broadcasts.WithLabelValues(scope).Inc()
}

func RecordBroadcastSendError() {
	globalManager.broadcastSendErrors.Inc()
}

func UpdateSubscriptionsActive(n int) {
	globalManager.subscriptionsActive.Set(float64(n))
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}
