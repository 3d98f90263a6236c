// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package wizard

import (
	"sync"
	"time"
)

// Store keeps one Machine per customization session.
type Store struct {
	mu         sync.Mutex
	m          map[string]*Machine
	newMachine func(sessionID string) *Machine
}

// NewStore creates an empty store. newMachine builds the machine for a
// session on first use.
func NewStore(newMachine func(sessionID string) *Machine) *Store {
	return &Store{m: make(map[string]*Machine), newMachine: newMachine}
}

// Get returns the session's machine, creating it if needed.
func (s *Store) Get(sessionID string) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.m[sessionID]; ok {
		return m
	}
	m := s.newMachine(sessionID)
	s.m[sessionID] = m
	return m
}

// Reset replaces the session's machine with a fresh one.
func (s *Store) Reset(sessionID string) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.newMachine(sessionID)
	s.m[sessionID] = m
	return m
}

// Drop forgets the session.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, sessionID)
}

// Prune drops sessions idle for longer than maxIdle and returns how many
// were removed. Sessions with a request in flight are kept.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	var n int
	for id, m := range s.m {
		st := m.State()
		if st == Submitting || st == AddingToCart {
			continue
		}
		if m.lastUpdate().Before(cutoff) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
