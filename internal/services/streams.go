package services

import (
	"sync"
	"time"

	"github.com/Thethetrader/thethetrader-sub001/internal/models"
)

// StreamRegistry tracks which connections are currently broadcasting, at
// most one session per connection. It does not cross-check the connection
// registry; callers only start sessions for joined participants.
type StreamRegistry struct {
	mu       sync.Mutex
	sessions map[string]*models.StreamSession
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{
		sessions: make(map[string]*models.StreamSession),
	}
}

// Start creates a session for the connection, replacing any existing one.
func (r *StreamRegistry) Start(connID, streamer string) *models.StreamSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &models.StreamSession{
		ConnectionID: connID,
		Streamer:     streamer,
		StartedAt:    time.Now(),
	}
	r.sessions[connID] = s
	return s
}

// Stop removes and returns the connection's session, if any.
func (r *StreamRegistry) Stop(connID string) (*models.StreamSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, connID)
	return s, true
}

// Remove is disconnect cleanup: same as Stop with the result discarded.
func (r *StreamRegistry) Remove(connID string) {
	r.Stop(connID)
}

func (r *StreamRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
