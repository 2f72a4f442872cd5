package service

import (
	"sync"

	"github.com/exambuddy/exambuddy-backend/internal/model"
)

// LiveSession pairs an in-memory session with its serialization lock.
// Every mutating engine operation holds the lock end to end, so two racing
// requests against the same session can never interleave mid-mutation.
type LiveSession struct {
	mu   sync.Mutex
	Sess *model.ExamSession
}

// Lock acquires the per-session lock.
func (l *LiveSession) Lock() { l.mu.Lock() }

// Unlock releases the per-session lock.
func (l *LiveSession) Unlock() { l.mu.Unlock() }

// SessionRegistry is the process-local working set of live sessions, keyed by
// session id. It is injected into the engine rather than held as package
// state; unrelated sessions proceed independently under a shared read lock.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*LiveSession)}
}

// Add registers a session and returns its live handle. If the id is already
// registered (e.g. two requests rehydrating at once), the existing handle
// wins and the argument is discarded.
func (r *SessionRegistry) Add(sess *model.ExamSession) *LiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sess.SessionID]; ok {
		return existing
	}
	live := &LiveSession{Sess: sess}
	r.sessions[sess.SessionID] = live
	return live
}

// Get looks up a live session by id.
func (r *SessionRegistry) Get(sessionID string) (*LiveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live, ok := r.sessions[sessionID]
	return live, ok
}

// Remove drops a session from the working set. Returns whether it was present.
func (r *SessionRegistry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	return ok
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
