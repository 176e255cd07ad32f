package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the Aria real-time backend.
//
// Naming convention: namespace_subsystem_name
// - namespace: aria (application-level grouping)
// - subsystem: websocket, room, media, rate_limit, circuit_breaker (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, participants)
// - Counter: Cumulative events (messages processed, errors)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aria",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of materialized room actors.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aria",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active room actors",
	})

	// RoomMembers tracks the number of members in each room actor.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aria",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members currently joined to each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks the total number of WebSocket wire events processed.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"tag", "status"})

	// MessageProcessingDuration tracks the time spent processing WebSocket messages.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aria",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"tag"})

	// MediaIngestDuration tracks the time spent hashing and generating derivatives for an upload.
	MediaIngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aria",
		Subsystem: "media",
		Name:      "ingest_duration_seconds",
		Help:      "Time spent ingesting and deriving media",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// MediaDerivativesGenerated tracks the total number of derivative files written.
	MediaDerivativesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "media",
		Name:      "derivatives_generated_total",
		Help:      "Total derivative files generated",
	}, []string{"kind", "status"})

	// CircuitBreakerState tracks the current state of a circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aria",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// NotificationBusLagged tracks the number of times a bus subscriber lagged and dropped notifications.
	NotificationBusLagged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "bus",
		Name:      "lagged_total",
		Help:      "Total number of times a notification bus subscriber lagged behind and skipped",
	})

	// RoomMemberSendDropped tracks messages dropped because a member's
	// outbound channel was full.
	RoomMemberSendDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "room",
		Name:      "member_send_dropped_total",
		Help:      "Total messages dropped because a member's outbound channel was full",
	}, []string{"tag"})

	// StoreOperationDuration tracks the duration of store operations.
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aria",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of store operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
