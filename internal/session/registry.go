package session

import (
	"sort"
	"sync"
	"time"
)

// Registry is the process-local store of active call sessions keyed by callId.
// A single mutex guards every operation; all mutations are whole-record merges.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the registry's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// touch bumps LastUpdatedAt, never moving it backwards.
func (r *Registry) touch(s *Session) {
	now := r.now()
	if now.After(s.LastUpdatedAt) {
		s.LastUpdatedAt = now
	}
}

// Upsert inserts s or replaces the stored record with the same CallID.
// CreatedAt of an existing record is preserved.
func (r *Registry) Upsert(s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := s.clone()
	if existing, ok := r.sessions[s.CallID]; ok {
		rec.CreatedAt = existing.CreatedAt
		rec.LastUpdatedAt = existing.LastUpdatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	r.touch(&rec)
	r.sessions[rec.CallID] = &rec
	return rec.clone()
}

// Insert stores s only if no session with the same CallID exists.
func (r *Registry) Insert(s Session) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.CallID]; ok {
		return Session{}, false
	}
	rec := s.clone()
	rec.CreatedAt = r.now()
	rec.LastUpdatedAt = rec.CreatedAt
	r.sessions[rec.CallID] = &rec
	return rec.clone(), true
}

// InsertByCallSID stores s unless a session already carries s.CallSID, in
// which case that session is returned instead. The bool is true when s was
// stored. An empty CallSID always inserts.
func (r *Registry) InsertByCallSID(s Session) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.CallSID != "" {
		if existing := r.findCallSID(s.CallSID); existing != nil {
			return existing.clone(), false
		}
	}
	if _, ok := r.sessions[s.CallID]; ok {
		return Session{}, false
	}
	rec := s.clone()
	rec.CreatedAt = r.now()
	rec.LastUpdatedAt = rec.CreatedAt
	r.sessions[rec.CallID] = &rec
	return rec.clone(), true
}

// FindByCallSID returns the session the provider knows as callSID.
func (r *Registry) FindByCallSID(callSID string) (Session, bool) {
	if callSID == "" {
		return Session{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s := r.findCallSID(callSID); s != nil {
		return s.clone(), true
	}
	return Session{}, false
}

// findCallSID scans for callSID. Callers hold mu.
func (r *Registry) findCallSID(callSID string) *Session {
	for _, s := range r.sessions {
		if s.CallSID == callSID {
			return s
		}
	}
	return nil
}

// Update merges p into the stored session and refreshes LastUpdatedAt.
// Returns false if callID is unknown.
func (r *Registry) Update(callID string, p Patch) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callID]
	if !ok {
		return Session{}, false
	}
	p.apply(s)
	r.touch(s)
	return s.clone(), true
}

// Get returns a snapshot of the session.
func (r *Registry) Get(callID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Has reports whether callID is registered.
func (r *Registry) Has(callID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[callID]
	return ok
}

// Delete removes callID. Unknown ids are ignored.
func (r *Registry) Delete(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// DeleteIf removes callID only if pred holds for its current record.
func (r *Registry) DeleteIf(callID string, pred func(Session) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callID]
	if !ok || !pred(*s) {
		return false
	}
	delete(r.sessions, callID)
	return true
}

// Clear drops every session. Intended for tests and resets.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}

// List returns snapshots of all sessions, oldest first.
func (r *Registry) List() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CallID < out[j].CallID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
