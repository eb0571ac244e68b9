// Package session tracks agent session lifecycle: creation, activity
// timestamps, the set of files a session has touched, and TTL-based
// eviction by a background sweeper.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDPrefix is prepended to every generated session id.
const IDPrefix = "sess-"

// Session is a single agent session's tracked state.
type Session struct {
	ID           string
	IntentID     string
	CreatedAt    time.Time
	LastActivity time.Time
	Files        map[string]struct{}
}

// Registry is the in-memory map of active sessions, guarded by a single
// mutex. Time is read from an injectable clock so tests can control
// eviction deterministically.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// New returns an empty Registry using the real wall clock.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// NewWithClock returns an empty Registry using an injected clock, for tests.
func NewWithClock(now func() time.Time) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

// CreateID returns a fresh session id: the fixed prefix plus a random
// lower-case hex suffix derived from a v4 UUID.
func CreateID() string {
	return IDPrefix + uuid.New().String()[:8]
}

// Register creates and stores a session with the given id and optional bound
// intent id (empty string means unbound). CreatedAt and LastActivity are
// both set to the registry's current time.
func (r *Registry) Register(id, intentID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &Session{
		ID:           id,
		IntentID:     intentID,
		CreatedAt:    now,
		LastActivity: now,
		Files:        make(map[string]struct{}),
	}
	r.sessions[id] = s
	return s
}

// Unregister removes a session. Unregistering an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Touch updates a session's last-activity timestamp to now. A no-op if the
// session is unknown.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastActivity = r.now()
	}
}

// AddFile records path as observed by session id and implicitly touches it.
// A no-op if the session is unknown.
func (r *Registry) AddFile(id, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.Files[path] = struct{}{}
	s.LastActivity = r.now()
}

// RemoveFile forgets path for session id. A no-op if the session or the file
// is unknown.
func (r *Registry) RemoveFile(id, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(s.Files, path)
}

// IsActive reports whether id currently names a registered session.
func (r *Registry) IsActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// ListActive returns a snapshot copy of every currently registered session.
func (r *Registry) ListActive() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		cp := *s
		cp.Files = make(map[string]struct{}, len(s.Files))
		for f := range s.Files {
			cp.Files[f] = struct{}{}
		}
		out = append(out, cp)
	}
	return out
}

// Sweep evicts every session whose last-activity is older than maxAge.
func (r *Registry) Sweep(maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	for id, s := range r.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}

// Run starts a background sweeper that calls Sweep(maxAge) every interval,
// until the returned stop function is called.
func (r *Registry) Run(interval, maxAge time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				r.Sweep(maxAge)
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
