// Package session owns the current Identity: a versioned store written by the
// Manager and read by everything else.
package session

import (
	"sync"

	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

// Snapshot is an immutable view of the store. Version increases by one on
// every write, including writes that leave the Identity unchanged.
type Snapshot struct {
	Identity *gateway.Identity
	Version  uint64
}

// Authenticated reports whether an Identity is current.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil
}

// Observer is called after each write with the new snapshot.
type Observer func(Snapshot)

// Store holds the current Identity, or none. Writes replace the whole
// record; readers always get their own copy.
type Store struct {
	mu        sync.RWMutex
	identity  *gateway.Identity
	version   uint64
	nextID    uint64
	observers map[uint64]Observer
	order     []uint64
}

func NewStore() *Store {
	return &Store{observers: make(map[uint64]Observer)}
}

// Current returns a copy of the current Identity, or nil.
func (s *Store) Current() *gateway.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// Snapshot returns the current Identity together with its version.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Identity: s.identity.Clone(), Version: s.version}
}

// Set replaces the current Identity. nil clears it. Observers run on the
// caller's goroutine after the lock is released.
func (s *Store) Set(identity *gateway.Identity) Snapshot {
	s.mu.Lock()
	s.identity = identity.Clone()
	s.version++
	snap := Snapshot{Identity: s.identity.Clone(), Version: s.version}
	observers := make([]Observer, 0, len(s.order))
	for _, id := range s.order {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(Snapshot{Identity: snap.Identity.Clone(), Version: snap.Version})
	}
	return snap
}

// Observe registers fn for future writes.
func (s *Store) Observe(fn Observer) gateway.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	s.order = append(s.order, id)

	return unsubscribeFunc(func() { s.removeObserver(id) })
}

func (s *Store) removeObserver(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.observers, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

type unsubscribeFunc func()

func (f unsubscribeFunc) Unsubscribe() {
	f()
}
