package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Thethetrader/thethetrader-sub001/internal/metrics"
	"github.com/Thethetrader/thethetrader-sub001/internal/models"
)

// Session is one live connection attached to the hub. *Client is the real
// implementation; tests substitute their own.
type Session interface {
	ID() string
	Send(data []byte) bool
}

// ChatTimestampLayout is the display format stamped on chat messages:
// 24-hour, 2-digit hour and minute.
const ChatTimestampLayout = "15:04"

// Hub relays events between live connections. It owns the connection set
// and the two registries are injected at construction; every connection's
// read pump funnels inbound frames through Dispatch.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]Session

	registry *ConnectionRegistry
	streams  *StreamRegistry
	log      zerolog.Logger
	started  time.Time
}

func NewHub(registry *ConnectionRegistry, streams *StreamRegistry, log zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]Session),
		registry: registry,
		streams:  streams,
		log:      log,
		started:  time.Now(),
	}
}

// Register attaches a newly accepted connection. The connection has no
// Participant until it sends a join event.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()
	h.log.Info().Str("conn", s.ID()).Msg("connection registered")
}

// Disconnect tears the connection down: both registries are cleaned up and
// the departure is broadcast to everyone else. A second call for the same
// connection is a no-op.
func (h *Hub) Disconnect(s Session) {
	h.mu.Lock()
	_, known := h.sessions[s.ID()]
	delete(h.sessions, s.ID())
	h.mu.Unlock()

	if !known {
		return
	}
	metrics.ConnectionsActive.Dec()

	p, joined := h.registry.Remove(s.ID())
	// An in-progress stream is removed here without a stream-stopped
	// broadcast; remaining clients only observe the user-left event.
	h.streams.Remove(s.ID())
	metrics.StreamsActive.Set(float64(h.streams.Count()))

	if !joined {
		return
	}

	h.broadcastExcept(s.ID(), &models.WSMessage{
		Type: models.EventUserLeft,
		Payload: models.UserLeftPayload{
			ID:           s.ID(),
			Username:     p.Username,
			Participants: h.registry.List(),
		},
	})
	h.log.Info().Str("conn", s.ID()).Str("username", p.Username).Msg("participant left")
}

// Dispatch routes one inbound frame. Events other than join from a
// connection without a Participant are dropped: there is nobody to
// attribute them to.
func (h *Hub) Dispatch(s Session, data []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.log.Debug().Err(err).Str("conn", s.ID()).Msg("dropping malformed frame")
		return
	}

	// Label values come from the closed event set so a client minting
	// novel type strings cannot grow the series cardinality.
	eventType := msg.Type
	if !models.IsClientEvent(eventType) {
		eventType = "unknown"
	}
	metrics.MessagesReceived.WithLabelValues(eventType).Inc()

	if msg.Type == models.EventJoin {
		h.handleJoin(s, msg.Payload)
		return
	}

	p, joined := h.registry.Get(s.ID())
	if !joined {
		h.log.Debug().Str("conn", s.ID()).Str("type", msg.Type).Msg("dropping event from unjoined connection")
		return
	}

	switch msg.Type {
	case models.EventOffer:
		var in models.OfferPayload
		if err := json.Unmarshal(msg.Payload, &in); err != nil {
			h.log.Debug().Err(err).Str("conn", s.ID()).Msg("bad offer payload")
			return
		}
		h.broadcastExcept(s.ID(), &models.WSMessage{
			Type:    models.EventOffer,
			Payload: models.OfferRelay{Offer: in.Offer, From: s.ID()},
		})

	case models.EventAnswer:
		var in models.AnswerPayload
		if err := json.Unmarshal(msg.Payload, &in); err != nil {
			h.log.Debug().Err(err).Str("conn", s.ID()).Msg("bad answer payload")
			return
		}
		h.broadcastExcept(s.ID(), &models.WSMessage{
			Type:    models.EventAnswer,
			Payload: models.AnswerRelay{Answer: in.Answer, From: s.ID()},
		})

	case models.EventICECandidate:
		var in models.CandidatePayload
		if err := json.Unmarshal(msg.Payload, &in); err != nil {
			h.log.Debug().Err(err).Str("conn", s.ID()).Msg("bad candidate payload")
			return
		}
		h.broadcastExcept(s.ID(), &models.WSMessage{
			Type:    models.EventICECandidate,
			Payload: models.CandidateRelay{Candidate: in.Candidate, From: s.ID()},
		})

	case models.EventChat:
		h.handleChat(p, msg.Payload)

	case models.EventStartStream:
		h.streams.Start(s.ID(), p.Username)
		metrics.StreamsActive.Set(float64(h.streams.Count()))
		h.broadcast(&models.WSMessage{
			Type:    models.EventStreamStarted,
			Payload: models.StreamEventPayload{Streamer: p.Username},
		})
		h.log.Info().Str("conn", s.ID()).Str("streamer", p.Username).Msg("stream started")

	case models.EventStopStream:
		h.streams.Stop(s.ID())
		metrics.StreamsActive.Set(float64(h.streams.Count()))
		h.broadcast(&models.WSMessage{
			Type:    models.EventStreamStopped,
			Payload: models.StreamEventPayload{Streamer: p.Username},
		})
		h.log.Info().Str("conn", s.ID()).Str("streamer", p.Username).Msg("stream stopped")

	default:
		h.log.Debug().Str("conn", s.ID()).Str("type", msg.Type).Msg("unknown event type")
	}
}

func (h *Hub) handleJoin(s Session, payload json.RawMessage) {
	var in models.JoinPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &in); err != nil {
			h.log.Debug().Err(err).Str("conn", s.ID()).Msg("bad join payload, joining with empty username")
		}
	}

	// The joiner's own snapshot is the roster as it stood before joining;
	// everyone else sees the roster with the joiner included.
	before := h.registry.List()
	p := h.registry.Add(s.ID(), in.Username)

	h.broadcastExcept(s.ID(), &models.WSMessage{
		Type: models.EventUserJoined,
		Payload: models.UserJoinedPayload{
			ID:           s.ID(),
			Username:     p.Username,
			Participants: h.registry.List(),
		},
	})

	h.sendTo(s, &models.WSMessage{
		Type:    models.EventParticipants,
		Payload: before,
	})

	h.log.Info().Str("conn", s.ID()).Str("username", p.Username).Msg("participant joined")
}

func (h *Hub) handleChat(p *models.Participant, payload json.RawMessage) {
	var in models.ChatPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		h.log.Debug().Err(err).Str("conn", p.ID).Msg("bad chat payload")
		return
	}

	h.broadcast(&models.WSMessage{
		Type: models.EventChat,
		Payload: models.ChatMessage{
			ID:        ulid.Make().String(),
			User:      p.Username,
			Message:   in.Message,
			Timestamp: time.Now().Format(ChatTimestampLayout),
		},
	})
}

// broadcast delivers msg to every live connection, including the sender.
func (h *Hub) broadcast(msg *models.WSMessage) {
	h.broadcastExcept("", msg)
}

// broadcastExcept delivers msg to every live connection but the named one.
// The recipient set is snapshotted under the read lock and sends happen
// outside it; each send is best-effort and a failure never aborts the rest.
func (h *Hub) broadcastExcept(exclude string, msg *models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		if id == exclude {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.Send(data) {
			metrics.BroadcastErrors.Inc()
			h.log.Warn().Str("conn", s.ID()).Str("type", msg.Type).Msg("dropping frame for unreachable connection")
		}
	}
}

// sendTo delivers a single message to one connection, best-effort.
func (h *Hub) sendTo(s Session, msg *models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("marshal message")
		return
	}
	if !s.Send(data) {
		metrics.BroadcastErrors.Inc()
	}
}

func (h *Hub) sendError(s Session, text string) {
	h.sendTo(s, &models.WSMessage{
		Type:    models.EventError,
		Payload: models.ErrorPayload{Message: text},
	})
}

// Stats is a point-in-time view of the hub for the health endpoint.
type Stats struct {
	ActiveConnections int   `json:"active_connections"`
	Participants      int   `json:"participants"`
	ActiveStreams     int   `json:"active_streams"`
	UptimeSeconds     int64 `json:"uptime_seconds"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	conns := len(h.sessions)
	h.mu.RUnlock()

	return Stats{
		ActiveConnections: conns,
		Participants:      h.registry.Count(),
		ActiveStreams:     h.streams.Count(),
		UptimeSeconds:     int64(time.Since(h.started).Seconds()),
	}
}
