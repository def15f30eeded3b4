package core

import (
	"sync"
	"time"
)

// Session is the per-conversation state mutated by the router every turn. It
// references (but does not own) the runtime-managed thread handle and is safe
// for concurrent access, although a single session is normally driven by one
// logical task at a time.
//
// Contract:
//   - At most one active ThreadID per session
//   - AuthSnapshot returns a defensive copy
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID             string            `json:"id"`
	ThreadID       string            `json:"thread_id"`
	AuthContext    map[string]string `json:"auth_context"`
	LastSpecialist string            `json:"last_specialist,omitempty"`
	Consulted      []string          `json:"consulted,omitempty"`
	TurnCount      int               `json:"turn_count"`
	Created        time.Time         `json:"created"`
	Updated        time.Time         `json:"updated"`
	mu             sync.RWMutex
}

// NewSession creates a session bound to a freshly created runtime thread.
func NewSession(id, threadID string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		ThreadID:    threadID,
		AuthContext: map[string]string{},
		Created:     now,
		Updated:     now,
	}
}

// Auth returns the credential value for key and whether it is set.
func (s *Session) Auth(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.AuthContext[key]
	return v, ok
}

// SetAuth stores a credential key/value pair updating the Updated timestamp.
func (s *Session) SetAuth(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AuthContext[key] = value
	s.Updated = time.Now()
}

// AuthSnapshot returns a copy of the auth context to prevent callers from
// mutating internal state.
func (s *Session) AuthSnapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]string, len(s.AuthContext))
	for k, v := range s.AuthContext {
		snap[k] = v
	}
	return snap
}

// SetLastSpecialist records the specialist that answered the current turn.
func (s *Session) SetLastSpecialist(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastSpecialist = name
	s.Updated = time.Now()
}

// RecordConsulted appends an agent name to the consulted set (deduplicated,
// order preserving).
func (s *Session) RecordConsulted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.Consulted {
		if n == name {
			return
		}
	}
	s.Consulted = append(s.Consulted, name)
	s.Updated = time.Now()
}

// BeginTurn increments the turn counter and returns the new value.
func (s *Session) BeginTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnCount++
	s.Updated = time.Now()
	return s.TurnCount
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:             s.ID,
		ThreadID:       s.ThreadID,
		AuthContext:    make(map[string]string, len(s.AuthContext)),
		LastSpecialist: s.LastSpecialist,
		Consulted:      make([]string, len(s.Consulted)),
		TurnCount:      s.TurnCount,
		Created:        s.Created,
		Updated:        s.Updated,
	}
	for k, v := range s.AuthContext {
		clone.AuthContext[k] = v
	}
	copy(clone.Consulted, s.Consulted)
	return clone
}
