// Package tokenstore holds the Search Console access token shared by every
// analysis in the process.
package tokenstore

import "sync"

// Store is a single-slot, concurrency-safe holder for an OAuth access token.
// The token has no expiry tracking; it is replaced by a fresh authorization
// flow or dropped with Clear when the backend rejects it.
type Store struct {
	mu    sync.RWMutex
	token string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Get returns the current token and whether one is set.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set replaces the current token. Last write wins.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the current token.
func (s *Store) Clear() {
	s.Set("")
}

// ClearIf drops the token only if it still equals stale, so a token written by a
// concurrent authorization is not lost.
func (s *Store) ClearIf(stale string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != stale {
		return false
	}
	s.token = ""
	return true
}
