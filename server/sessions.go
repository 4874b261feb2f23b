package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/ellapad/runner"
)

// Session is a named ella session: its own VM and globals, the worker
// goroutine that owns them and the dispatcher routing its responses.
type Session struct {
	ID         string
	Name       string
	Created    time.Time
	Worker     *SessionWorker
	Dispatcher *Dispatcher
}

// SessionStore manages sessions. Sessions never share globals.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextID   atomic.Uint64
	queue    int
}

// NewSessionStore creates a session store whose workers queue up to
// queue jobs each.
func NewSessionStore(queue int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		queue:    queue,
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) *Session {
	id := fmt.Sprintf("s-%d", s.nextID.Add(1))

	worker := NewSessionWorker(runner.NewSession(), s.queue)
	session := &Session{
		ID:         id,
		Name:       name,
		Created:    time.Now(),
		Worker:     worker,
		Dispatcher: NewDispatcher(worker),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	log.Infof("session %s created", id)
	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Destroy removes a session, disposes its in-flight requests and stops its
// worker. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}

	session.Dispatcher.DisposeAll()
	session.Worker.Stop()
	log.Infof("session %s destroyed", id)
	return true
}

// Close destroys every session.
func (s *SessionStore) Close() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Destroy(id)
	}
}
