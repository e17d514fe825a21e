package profile

import (
	"sync"
	"time"
)

// Store is the session-keyed profile storage used by the composer and the
// HTTP layer. MemoryStore is the only implementation; profiles are volatile.
type Store interface {
	Get(sessionID string) (Profile, bool)
	Set(sessionID string, p Profile) (Profile, error)
	Delete(sessionID string)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// MemoryStore keeps profiles in a process-local map.
type MemoryStore struct {
	clock Clock

	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(realClock{})
}

// NewMemoryStoreWithClock creates a MemoryStore with a custom clock (for testing).
func NewMemoryStoreWithClock(clock Clock) *MemoryStore {
	return &MemoryStore{
		clock:    clock,
		profiles: make(map[string]Profile),
	}
}

// Get returns the profile saved for sessionID, if any.
func (s *MemoryStore) Get(sessionID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[sessionID]
	return p, ok
}

// Set validates p, normalizes its goal, stamps UpdatedAt and overwrites any
// previous profile for sessionID. The stored value is returned.
func (s *MemoryStore) Set(sessionID string, p Profile) (Profile, error) {
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	p.Goal = ParseGoal(string(p.Goal))
	p.UpdatedAt = s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[sessionID] = p
	return p, nil
}

// Delete removes the profile for sessionID. Missing ids are ignored.
func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, sessionID)
}
