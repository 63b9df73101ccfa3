// Package registry holds the process-local mapping from session id to
// Session, with exclusive ownership: a Session is never reachable
// except through the registry once inserted.
package registry

import (
	"errors"
	"sync"

	"engineio/session"
)

// ErrSIDCollision is returned by Insert when the generated sid is
// already registered. Callers should either regenerate the id and
// retry, or surface a 500 — spec.md §8 property 7 requires that two
// sessions never share a sid, never that a collision be silently
// resolved.
var ErrSIDCollision = errors.New("registry: sid collision")

// Registry is a thread-safe sid → Session map. The lock is never held
// while invoking a callback or performing I/O: Snapshot copies the
// relevant sessions out under a read lock and releases it before the
// caller acts on them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*session.Session)}
}

// Insert adds s under its own id, failing with ErrSIDCollision if
// that id is already registered. On success it wires s's removal
// callback so that s.Close removes it from this registry.
func (r *Registry) Insert(s *session.Session) error {
	r.mu.Lock()
	if _, exists := r.sessions[s.ID()]; exists {
		r.mu.Unlock()
		return ErrSIDCollision
	}
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	s.SetRemover(r.Remove)
	return nil
}

// Get looks up a session by id.
func (r *Registry) Get(sid string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

// Remove deletes sid from the map. Removing an absent sid is a no-op.
func (r *Registry) Remove(sid string) {
	r.mu.Lock()
	delete(r.sessions, sid)
	r.mu.Unlock()
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of every currently registered session, for
// the heartbeat loop's scan. The registry lock is released before the
// returned slice is inspected, so a session may close concurrently
// with the caller acting on it — Session.Close tolerates that.
func (r *Registry) Snapshot() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
