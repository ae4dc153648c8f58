// Package session keeps bounded per-identity conversation history in memory
// and mirrors it to durable storage in the background.
package session

import (
	"sync"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// DefaultMaxTurns bounds how many turns a session keeps.
const DefaultMaxTurns = 20

// Session is the recent history of one identity, oldest turn first.
type Session struct {
	turns    []model.Turn
	maxTurns int
	mu       sync.Mutex
	exchange sync.Mutex // Serializes read-invoke-append cycles
}

func newSession(maxTurns int) *Session {
	return &Session{maxTurns: maxTurns}
}

// Turns returns a copy of the history.
func (s *Session) Turns() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Turn(nil), s.turns...)
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *Session) append(turns ...model.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
	if over := len(s.turns) - s.maxTurns; over > 0 {
		s.turns = append([]model.Turn(nil), s.turns[over:]...)
	}
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}

// seed replaces the history only if it is still empty.
func (s *Session) seed(turns []model.Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) > 0 {
		return false
	}
	if over := len(turns) - s.maxTurns; over > 0 {
		turns = turns[over:]
	}
	s.turns = append([]model.Turn(nil), turns...)
	return true
}
