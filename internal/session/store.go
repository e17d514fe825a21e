package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNoSession is returned by Append when the session does not exist.
	ErrNoSession = errors.New("session not found")
	// ErrSystemRole is returned by Append for system-role messages; only
	// Ensure may write the system message.
	ErrSystemRole = errors.New("system messages cannot be appended")
)

// SystemComposer produces the system instruction for a session.
type SystemComposer interface {
	Compose(sessionID string) string
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store maps session ids to their histories. Every non-empty history starts
// with exactly one system message and never exceeds Window.Cap() entries.
//
// Ensure and Append expect the caller to hold Lock(id) so that a whole chat
// turn is serialized per session. Reset and Snapshot lock on their own.
type Store struct {
	composer SystemComposer
	window   Window
	clock    Clock
	keys     *keyedMutex

	mu       sync.RWMutex
	sessions map[string][]Message
}

// NewStore creates an empty Store. maxTurns <= 0 selects DefaultMaxTurns.
func NewStore(composer SystemComposer, maxTurns int) *Store {
	return NewStoreWithClock(composer, maxTurns, realClock{})
}

// NewStoreWithClock creates a Store with a custom clock (for testing).
func NewStoreWithClock(composer SystemComposer, maxTurns int, clock Clock) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		composer: composer,
		window:   Window{MaxTurns: maxTurns},
		clock:    clock,
		keys:     newKeyedMutex(),
		sessions: make(map[string][]Message),
	}
}

// Window returns the window policy applied on every Append.
func (s *Store) Window() Window {
	return s.window
}

// Lock acquires the per-session mutex for id. Different ids never contend.
func (s *Store) Lock(id string) (unlock func()) {
	return s.keys.Lock(id)
}

// Ensure creates the session with a freshly composed system message, or
// replaces history[0] of an existing session with one. Other entries are
// left untouched.
func (s *Store) Ensure(id string) Session {
	sys := Message{Role: RoleSystem, Content: s.composer.Compose(id), Timestamp: s.clock.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok || len(h) == 0 {
		h = []Message{sys}
	} else {
		h[0] = sys
	}
	s.sessions[id] = h
	return snapshot(id, h)
}

// Append pushes msg onto the session history and applies the window.
// A zero Timestamp is filled from the store clock.
func (s *Store) Append(id string, msg Message) (Session, error) {
	if msg.Role == RoleSystem {
		return Session{}, ErrSystemRole
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.clock.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("appending to %q: %w", id, ErrNoSession)
	}
	h = s.window.Apply(append(h, msg))
	s.sessions[id] = h
	return snapshot(id, h), nil
}

// Reset removes the session. Unknown ids are a no-op. Reset waits for any
// in-flight turn holding Lock(id).
func (s *Store) Reset(id string) {
	unlock := s.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Snapshot returns a copy of the session, if present.
func (s *Store) Snapshot(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return snapshot(id, h), true
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func snapshot(id string, h []Message) Session {
	cp := make([]Message, len(h))
	copy(cp, h)
	return Session{ID: id, History: cp}
}
