package inference

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Mock is a scriptable Provider that records every call. A zero Mock
// fails Chat with ErrProviderUnavailable.
type Mock struct {
	ChatFunc   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthFunc func(ctx context.Context) error
	CloseFunc  func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded invocation. Messages is a copy of the window
// sent to Chat, so tests can inspect exactly what the model saw.
type MockCall struct {
	Method   string
	Messages []Message
	Time     time.Time
}

// NewMock answers every conversation with reply.
func NewMock(reply string) *Mock {
	return &Mock{ChatFunc: func(context.Context, *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{
			Message:      NewAssistantMessage(reply),
			FinishReason: "stop",
			Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			Model:        "mock",
		}, nil
	}}
}

// NewEcho repeats the newest user line, which is enough to exercise a
// full turn without an API key.
func NewEcho() *Mock {
	return &Mock{ChatFunc: func(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
		reply := "I didn't catch that."
		for _, m := range slices.Backward(req.Messages) {
			if m.Role == RoleUser {
				reply = "You said: " + m.Content
				break
			}
		}
		return &ChatResponse{Message: NewAssistantMessage(reply), FinishReason: "stop", Model: "echo"}, nil
	}}
}

// WithError returns a mock whose Chat and Health both fail with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc:   func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, err },
		HealthFunc: func(context.Context) error { return err },
	}
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	call := MockCall{Method: "Chat"}
	if req != nil {
		call.Messages = slices.Clone(req.Messages)
	}
	m.record(call)
	if m.ChatFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.ChatFunc(ctx, req)
}

func (m *Mock) Health(ctx context.Context) error {
	m.record(MockCall{Method: "Health"})
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.record(MockCall{Method: "Close"})
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

func (m *Mock) record(call MockCall) {
	call.Time = time.Now()
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *Mock) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns a copy of the newest call, or nil.
func (m *Mock) LastCall() *MockCall {
	calls := m.Calls()
	if len(calls) == 0 {
		return nil
	}
	return &calls[len(calls)-1]
}

func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

var _ Provider = (*Mock)(nil)
