package conversation

import (
	"sync"

	"github.com/edgard/matchbot/internal/domain"
)

// Session is the per-user conversation record. It lives in memory only.
type Session struct {
	UserID domain.UserID
	// Lang is empty until resolved from the profile or the default.
	Lang  domain.Language
	State State
}

type sessionEntry struct {
	mu      sync.Mutex
	session Session
}

// SessionStore serialises events per user while letting different users
// progress concurrently.
type SessionStore struct {
	mu      sync.Mutex
	entries map[domain.UserID]*sessionEntry
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[domain.UserID]*sessionEntry)}
}

// Acquire locks the session of id, creating an idle one on first use. The
// returned release func must be called once the event is handled.
func (s *SessionStore) Acquire(id domain.UserID) (*Session, func()) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &sessionEntry{session: Session{UserID: id, State: Idle{}}}
		s.entries[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	return &e.session, e.mu.Unlock
}

// Snapshot returns a copy of the session of id.
func (s *SessionStore) Snapshot(id domain.UserID) (Session, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, true
}

// Len returns the number of known sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
