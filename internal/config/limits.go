package config

import "time"

// DefaultPort is used when PORT is unset.
const DefaultPort = "3001"

// WebSocket connection limits and constraints
const (
	// Connection limits
	MaxTotalConnections = 10000

	// Rate limiting
	MaxMessagesPerSecond = 20
	RateLimitWindow      = time.Second

	// Timeouts. Inbound reads have none: clients may idle indefinitely
	// and dead peers surface through a failed ping instead.
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second

	// Channel buffers
	ClientSendBufferSize = 256
)
