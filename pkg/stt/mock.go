package stt

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Mock is a scriptable Provider. It records the size and MIME hint of each
// clip rather than the bytes themselves.
type Mock struct {
	TranscribeFunc func(ctx context.Context, audio []byte, mimeHint string) (*Transcript, error)
	CloseFunc      func() error

	mu    sync.Mutex
	calls []MockCall
}

type MockCall struct {
	Method string
	Bytes  int
	MIME   string
	Time   time.Time
}

// NewMock hears text in every clip.
func NewMock(text string) *Mock {
	return &Mock{TranscribeFunc: func(context.Context, []byte, string) (*Transcript, error) {
		return &Transcript{Text: text, LatencyMs: 1}, nil
	}}
}

// WithError returns a mock whose Transcribe always fails with err.
func WithError(err error) *Mock {
	return &Mock{TranscribeFunc: func(context.Context, []byte, string) (*Transcript, error) {
		return nil, err
	}}
}

// Transcribe fails with ErrProviderUnavailable when TranscribeFunc is nil.
func (m *Mock) Transcribe(ctx context.Context, audio []byte, mimeHint string) (*Transcript, error) {
	m.record(MockCall{Method: "Transcribe", Bytes: len(audio), MIME: mimeHint})
	if m.TranscribeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.TranscribeFunc(ctx, audio, mimeHint)
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

func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

var _ Provider = (*Mock)(nil)
