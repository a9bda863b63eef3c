package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is an in-memory registry of sessions.
// It is safe for concurrent use. Contents are lost on process restart.
type Store struct {
	mu       sync.Mutex // guards sessions only; never held across a session lock
	sessions map[string]*Session

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL evicts sessions idle for longer than ttl during Sweep.
// Zero (the default) disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session.store")
	return s
}

// GetOrCreate returns the session for id, creating an empty one if needed.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id)
}

func (s *Store) getOrCreateLocked(id string) *Session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = newSession(id, s.now())
		s.sessions[id] = sess
	}
	return sess
}

// Append adds one turn to the end of the session's history.
func (s *Store) Append(id string, turn Turn) {
	s.GetOrCreate(id).append(turn, s.now())
}

// Snapshot returns a copy of the session's history.
// Unknown sessions yield an empty slice and are not created.
func (s *Store) Snapshot(id string) []Turn {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		return []Turn{}
	}
	return sess.History()
}

// Clear removes all turns for id. Clearing an unknown or empty session is a no-op.
// A session held by an in-flight run keeps its entry so the run's appends
// land in the same history.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok && !sess.Busy() {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok {
		sess.reset(s.now())
	}
}

// TryAcquire marks the session as running a turn.
// It returns ok=false without blocking when another run holds the session.
// The returned release func is idempotent.
func (s *Store) TryAcquire(id string) (release func(), ok bool) {
	s.mu.Lock()
	sess := s.getOrCreateLocked(id)
	acquired := sess.busy.CompareAndSwap(false, true)
	s.mu.Unlock()

	if !acquired {
		return func() {}, false
	}

	sess.touch(s.now())

	var once sync.Once
	return func() {
		once.Do(func() {
			sess.touch(s.now())
			sess.busy.Store(false)
		})
	}, true
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stats summarizes store contents for metrics.
type Stats struct {
	Sessions int `json:"sessions"`
	Busy     int `json:"busy"`
	Turns    int `json:"turns"`
}

// Stats returns current counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	st := Stats{Sessions: len(sessions)}
	for _, sess := range sessions {
		if sess.Busy() {
			st.Busy++
		}
		st.Turns += sess.Len()
	}
	return st
}

// Sweep evicts sessions idle longer than the TTL and returns how many were removed.
// Busy sessions are never evicted. Without a TTL, Sweep does nothing.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Busy() {
			continue
		}
		if now.Sub(sess.LastUsed()) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
// It returns immediately when no TTL is configured.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Debug("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}
