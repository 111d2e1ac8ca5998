package param

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is the idle lifetime of a session.
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxSessions bounds the number of live sessions in a store.
const DefaultMaxSessions = 100_000

// SessionStore keeps server-side session data in memory, keyed by an opaque
// session ID.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Sessions idle for longer than the TTL are discarded on next access.
//   - The store never holds more than its limit; creating a session in a
//     full store first drops expired sessions, then the least recently
//     used one.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	max      int
	sessions map[string]*sessionData
	now      func() time.Time
}

type sessionData struct {
	values  map[string]any
	touched time.Time
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithMaxSessions sets the session limit. Non-positive values are ignored.
func WithMaxSessions(n int) SessionOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.max = n
		}
	}
}

// NewSessionStore creates a store. A non-positive ttl uses DefaultSessionTTL.
func NewSessionStore(ttl time.Duration, opts ...SessionOption) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{
		ttl:      ttl,
		max:      DefaultMaxSessions,
		sessions: make(map[string]*sessionData),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns the session for id, creating a new one with a fresh ID when
// id is empty, unknown or expired. The returned bool reports whether the
// session was newly created.
func (s *SessionStore) Open(id string) (*Session, bool) {
	if sess := s.resume(id); sess != nil {
		return sess, false
	}
	return &Session{id: s.create(), store: s}, true
}

// Resume returns the live session for id. When there is none it returns a
// pending session: reads see no values, and the first Set creates the
// session and calls onCreate with it. Requests that never write to their
// session therefore leave nothing behind in the store.
func (s *SessionStore) Resume(id string, onCreate func(*Session)) *Session {
	if sess := s.resume(id); sess != nil {
		return sess
	}
	return &Session{store: s, onCreate: onCreate}
}

func (s *SessionStore) resume(id string) *Session {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sessions[id]
	if !ok {
		return nil
	}
	now := s.now()
	if now.Sub(data.touched) > s.ttl {
		delete(s.sessions, id)
		return nil
	}
	data.touched = now
	return &Session{id: id, store: s}
}

func (s *SessionStore) create() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if len(s.sessions) >= s.max {
		s.sweepLocked(now)
	}
	for len(s.sessions) >= s.max {
		s.evictOldestLocked()
	}
	id := uuid.NewString()
	s.sessions[id] = &sessionData{values: make(map[string]any), touched: now}
	return id
}

func (s *SessionStore) evictOldestLocked() {
	var oldest string
	var at time.Time
	for id, data := range s.sessions {
		if oldest == "" || data.touched.Before(at) {
			oldest, at = id, data.touched
		}
	}
	delete(s.sessions, oldest)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, data := range s.sessions {
		if now.Sub(data.touched) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Session is a handle on one stored session. It is the session source.
// A pending session (see SessionStore.Resume) has no ID until its first Set.
type Session struct {
	store    *SessionStore
	onCreate func(*Session)

	mu sync.Mutex
	id string
}

// ID returns the session ID, or "" for a pending session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// data returns the stored values of the session; the store lock must be held.
func (s *Session) data(id string) (*sessionData, bool) {
	if id == "" {
		return nil, false
	}
	data, ok := s.store.sessions[id]
	return data, ok
}

// Lookup implements Source.
func (s *Session) Lookup(_ context.Context, key string) (any, bool) {
	id := s.ID()
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	data, ok := s.data(id)
	if !ok {
		return nil, false
	}
	v, ok := data.values[key]
	return v, ok
}

// Set stores value under key, creating a pending session first. Setting on
// a discarded session is a no-op.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	created := false
	if s.id == "" {
		s.id, created = s.store.create(), true
	}
	id := s.id
	s.mu.Unlock()

	s.store.mu.Lock()
	if data, ok := s.data(id); ok {
		data.values[key] = value
		data.touched = s.store.now()
	}
	s.store.mu.Unlock()

	if created && s.onCreate != nil {
		s.onCreate(s)
	}
}

// Delete removes key from the session.
func (s *Session) Delete(key string) {
	id := s.ID()
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if data, ok := s.data(id); ok {
		delete(data.values, key)
	}
}

// Values returns a copy of the session values.
func (s *Session) Values() map[string]any {
	id := s.ID()
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	data, ok := s.data(id)
	if !ok {
		return nil
	}
	return maps.Clone(data.values)
}
