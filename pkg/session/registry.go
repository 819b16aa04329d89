// Package session owns the lifecycle of messaging sessions: creating,
// validating, restarting, and tearing down one automation-driven client
// per tenant, plus the event wiring that feeds the webhook pipeline.
package session

import (
	"sort"
	"sync"

	"github.com/chatwire/chatwire/pkg/driver"
)

// Session is one tenant's live client entry. The registry owns the entry;
// once removed, the client handle must not be used again.
type Session struct {
	ID     string
	Client driver.Client

	mu sync.Mutex
	qr string
}

// SetQR stores the latest pairing code for polling by the QR endpoint.
func (s *Session) SetQR(code string) {
	s.mu.Lock()
	s.qr = code
	s.mu.Unlock()
}

// QR returns the pending pairing code, or "" when none is pending.
func (s *Session) QR() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qr
}

// ClearQR discards the pending pairing code.
func (s *Session) ClearQR() {
	s.SetQR("")
}

// Registry is the in-memory map from session id to live entry: the single
// source of truth for "is this tenant active". Lifecycle operations on one
// id are sequenced by the caller; the mutex only protects the map against
// concurrent reads from HTTP handlers.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. One instance lives for the whole
// process and is shared by reference.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the session for id, if present.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Has reports whether a session exists for id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Set inserts or replaces the session for id.
func (r *Registry) Set(id string, s *Session) {
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
}

// Delete removes the session for id. Removing an absent id is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// IDs returns the registered session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
