package services

import (
	"sync"

	"github.com/Thethetrader/thethetrader-sub001/internal/models"
)

// ConnectionRegistry is the exclusive owner of the live Participant set.
// All mutation is funneled through the hub's dispatch path; nothing is
// persisted across restarts.
type ConnectionRegistry struct {
	mu           sync.Mutex
	participants map[string]*models.Participant
	order        []string
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		participants: make(map[string]*models.Participant),
	}
}

// Add inserts a participant for the connection, replacing any existing
// record for the same connection id (a re-join is not an error).
func (r *ConnectionRegistry) Add(connID, username string) *models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := models.NewParticipant(connID, username)
	if _, exists := r.participants[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.participants[connID] = p
	return p
}

// Remove deletes and returns the participant for the connection. Unknown
// connection ids return false, which callers treat as a no-op.
func (r *ConnectionRegistry) Remove(connID string) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, false
	}
	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p, true
}

// Get returns the participant for the connection, if it has joined.
func (r *ConnectionRegistry) Get(connID string) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	return p, ok
}

// List returns a snapshot of all participants in join order.
func (r *ConnectionRegistry) List() []*models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id])
	}
	return out
}

func (r *ConnectionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.participants)
}
