package services

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/Thethetrader/thethetrader-sub001/internal/config"
	"github.com/Thethetrader/thethetrader-sub001/internal/metrics"
)

// Client pumps a single WebSocket connection. Inbound frames are handed to
// the hub's dispatch path; outbound frames are queued on the send channel
// and written by a dedicated goroutine so a slow reader never blocks a
// broadcast.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
	log  zerolog.Logger

	// Rate limiting
	messageCount int
	rateLimitMu  sync.Mutex
	lastReset    time.Time

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex
}

func NewClient(id string, conn *websocket.Conn, hub *Hub, log zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:        id,
		conn:      conn,
		hub:       hub,
		send:      make(chan []byte, config.ClientSendBufferSize),
		log:       log.With().Str("conn", id).Logger(),
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ID implements Session.
func (c *Client) ID() string { return c.id }

// Run starts the write pump and blocks reading frames until the connection
// drops, then unregisters the client from the hub.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// writePump drains the send channel onto the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				c.log.Debug().Err(err).Msg("write error")
				metrics.BroadcastErrors.Inc()
				return
			}
			metrics.MessagesSent.Inc()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				c.log.Debug().Err(err).Msg("ping error")
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump feeds inbound frames to the hub until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	for {
		// Reads carry no deadline: a participant may stay silent for the
		// whole session. Dead peers are detected by the ping loop in
		// writePump, which tears the connection down on a failed ping.
		_, message, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		if !c.checkRateLimit() {
			c.log.Warn().Msg("rate limit exceeded")
			metrics.RateLimitViolations.Inc()
			c.hub.sendError(c, "Rate limit exceeded. Please slow down.")
			continue
		}

		c.hub.Dispatch(c, message)
	}
}

// checkRateLimit verifies the client hasn't exceeded message rate limits.
func (c *Client) checkRateLimit() bool {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastReset) > config.RateLimitWindow {
		c.messageCount = 0
		c.lastReset = now
	}

	c.messageCount++
	return c.messageCount <= config.MaxMessagesPerSecond
}

// Send queues a frame for delivery. It never blocks: a client whose buffer
// is full is closed and the frame reported undelivered.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.log.Warn().Msg("send buffer full, closing slow client")
		go c.Close()
		return false
	}
}

// Close cleanly shuts down the client connection. Safe to call more than
// once.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	close(c.send)
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
