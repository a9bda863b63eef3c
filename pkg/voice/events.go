package voice

import (
	"time"

	"github.com/ayusha001100/talkback/pkg/session"
)

// EventType names a run milestone.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventStageCompleted EventType = "stage_completed"
	EventTurnAppended   EventType = "turn_appended"
	EventRunFailed      EventType = "run_failed"
	EventRunCompleted   EventType = "run_completed"
	EventHistoryCleared EventType = "history_cleared"
)

// Event is published to observers as a run progresses.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id"`
	RunID     string        `json:"run_id,omitempty"`
	Stage     Stage         `json:"stage,omitempty"`
	Turn      *session.Turn `json:"turn,omitempty"`
	LatencyMs int64         `json:"latency_ms,omitempty"`
	Error     string        `json:"error,omitempty"`
	Time      time.Time     `json:"time"`
}

// Observer receives run events. OnEvent is called synchronously from the
// run, so implementations must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(e Event) { f(e) }
