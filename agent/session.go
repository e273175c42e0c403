package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session identifies one conversation and holds its finalized turns in
// order. The session is owned by the caller; the core never persists it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	turns []*Turn
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
}

func (s *Session) append(t *Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// Turns returns a copy of the finalized turn history.
func (s *Session) Turns() []*Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of finalized turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
