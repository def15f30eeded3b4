// Package session manages conversation sessions and their runtime threads.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/runtime"
)

// Store keeps sessions in memory. Each session owns exactly one runtime
// thread for its whole lifetime; End releases the thread, so a session id
// reused after End starts from a blank slate.
type Store struct {
	rt     runtime.Runtime
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewStore creates an empty store backed by rt.
func NewStore(rt runtime.Runtime, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Store{
		rt:       rt,
		logger:   logger,
		sessions: map[string]*core.Session{},
	}
}

// Get returns the session for id, lazily creating it (and its runtime thread)
// on first use. An empty id gets a fresh generated one.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	threadID, err := s.rt.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create thread for session %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A racing Get may have won; keep its session and release our thread.
	if existing, ok := s.sessions[id]; ok {
		if relErr := s.rt.ReleaseThread(ctx, threadID); relErr != nil {
			s.logger.Warn("release of duplicate thread failed", "thread_id", threadID, "error", relErr)
		}
		return existing, nil
	}

	sess = core.NewSession(id, threadID)
	s.sessions[id] = sess
	s.logger.Info("session created", "session_id", id, "thread_id", threadID)
	return sess, nil
}

// Lookup returns the session without creating one.
func (s *Store) Lookup(id string) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// End evicts the session and releases its runtime thread. Thread release is
// best-effort: a failure is logged, never surfaced, and the session is
// evicted regardless.
func (s *Store) End(ctx context.Context, id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.rt.ReleaseThread(ctx, sess.ThreadID); err != nil {
		s.logger.Warn("thread release failed", "session_id", id, "thread_id", sess.ThreadID, "error", err)
		return
	}
	s.logger.Info("session ended", "session_id", id, "thread_id", sess.ThreadID)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
