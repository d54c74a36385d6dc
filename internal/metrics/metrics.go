package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Currently open WebSocket connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total WebSocket connections accepted",
		},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_streams_active",
			Help: "Connections currently broadcasting a stream",
		},
	)

	// Message metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Inbound events by type",
		},
		[]string{"type"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Frames written to clients",
		},
	)

	// Error metrics
	BroadcastErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcast_errors_total",
			Help: "Per-recipient delivery failures during fan-out",
		},
	)

	RateLimitViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_violations_total",
			Help: "Inbound events dropped by per-connection rate limiting",
		},
	)
)
