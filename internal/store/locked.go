package store

import "sync"

// Locked serializes access to a Store for servers that handle calls
// concurrently.
type Locked struct {
	mu    sync.Mutex
	store *Store
}

// NewLocked wraps s.
func NewLocked(s *Store) *Locked {
	return &Locked{store: s}
}

// Do runs fn while holding the lock. fn must not retain s.
func (l *Locked) Do(fn func(s *Store) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.store)
}
