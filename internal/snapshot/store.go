package snapshot

import (
	"sync"
	"time"

	"github.com/svclane/rolloutd/internal/rollout"
)

// Store holds the installed traffic assignment for the proxy request path.
// Installs swap the whole snapshot; readers always see either the previous
// complete assignment or the new one, never a mix. Callers must not mutate
// a returned assignment.
type Store struct {
	mu          sync.RWMutex
	current     *rollout.Assignment
	installedAt time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Install publishes a new assignment. The value is copied by the caller
// convention of passing by value; the stored pointer is never handed out
// for mutation.
func (s *Store) Install(a rollout.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &a
	s.installedAt = time.Now()
}

// Current returns the installed assignment, or false before the first
// install.
func (s *Store) Current() (*rollout.Assignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// RolloutID returns the installed rollout id, or empty before the first
// install.
func (s *Store) RolloutID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.RolloutID
}

// InstalledAt returns when the current assignment was installed, zero
// before the first install.
func (s *Store) InstalledAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installedAt
}
