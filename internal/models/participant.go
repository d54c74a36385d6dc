package models

import "time"

// Participant is the joined identity attached to a live connection. The
// connection id is assigned by the transport at accept time; the username
// is whatever the client supplied and is not checked for uniqueness.
type Participant struct {
	ID       string    `json:"-"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

func NewParticipant(id, username string) *Participant {
	return &Participant{
		ID:       id,
		Username: username,
		JoinedAt: time.Now(),
	}
}

// StreamSession records that a connection is currently broadcasting.
// Streamer is the participant's username as it was at stream start; it is
// not kept in sync if the participant later rejoins under another name.
type StreamSession struct {
	ConnectionID string    `json:"connectionId"`
	Streamer     string    `json:"streamer"`
	StartedAt    time.Time `json:"startedAt"`
}
