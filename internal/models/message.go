package models

import "encoding/json"

// WSMessage is a server-to-client event.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ClientMessage is a client-to-server event with the payload left raw
// until the dispatch path knows which shape to decode.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client → Server event types
const (
	EventJoin         = "join-live"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventChat         = "chat-message"
	EventStartStream  = "start-stream"
	EventStopStream   = "stop-stream"
)

// Server → Client event types (offer/answer/ice-candidate/chat-message are
// echoed back under the same name they arrived with)
const (
	EventUserJoined    = "user-joined"
	EventParticipants  = "participants-list"
	EventStreamStarted = "stream-started"
	EventStreamStopped = "stream-stopped"
	EventUserLeft      = "user-left"
	EventError         = "error"
)

var clientEvents = map[string]bool{
	EventJoin:         true,
	EventOffer:        true,
	EventAnswer:       true,
	EventICECandidate: true,
	EventChat:         true,
	EventStartStream:  true,
	EventStopStream:   true,
}

// IsClientEvent reports whether t is a known client-to-server event type.
func IsClientEvent(t string) bool {
	return clientEvents[t]
}

// Inbound payloads

type JoinPayload struct {
	Username string `json:"username"`
}

type OfferPayload struct {
	Offer json.RawMessage `json:"offer"`
}

type AnswerPayload struct {
	Answer json.RawMessage `json:"answer"`
}

type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

// Outbound payloads

type UserJoinedPayload struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Participants []*Participant `json:"participants"`
}

// OfferRelay carries an SDP offer to every other connection. The server
// never inspects the offer; From is attached server-side and never trusted
// from the client.
type OfferRelay struct {
	Offer json.RawMessage `json:"offer"`
	From  string          `json:"from"`
}

type AnswerRelay struct {
	Answer json.RawMessage `json:"answer"`
	From   string          `json:"from"`
}

type CandidateRelay struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

// ChatMessage is built server-side, broadcast once and never stored.
// Timestamp is a 24-hour HH:MM display string.
type ChatMessage struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type StreamEventPayload struct {
	Streamer string `json:"streamer"`
}

type UserLeftPayload struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Participants []*Participant `json:"participants"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
