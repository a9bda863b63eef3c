// Package session holds per-conversation turn history for the voice pipeline.
//
// A Store maps opaque session identifiers to ordered histories. Each session
// carries its own lock, so appends and reads on one session never contend with
// another. The Store also tracks a single-flight flag per session that the
// orchestrator uses to reject concurrent turns.
package session

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser is transcribed user speech.
	RoleUser Role = "user"

	// RoleAssistant is a generated reply.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one utterance in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Session is one conversation's history.
type Session struct {
	id string

	mu       sync.RWMutex
	history  []Turn
	created  time.Time
	lastUsed time.Time

	busy atomic.Bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:       id,
		created:  now,
		lastUsed: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the turns in conversational order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Busy reports whether a pipeline run currently holds the session.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// CreatedAt returns when the session was first referenced.
func (s *Session) CreatedAt() time.Time {
	return s.created
}

// LastUsed returns when the session was last touched.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

func (s *Session) append(turn Turn, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
	s.lastUsed = now
}

func (s *Session) reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.lastUsed = now
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}
