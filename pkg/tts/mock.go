package tts

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ayusha001100/talkback/pkg/audioio"
)

const mockSampleRate = 24000

// Mock is a scriptable Provider. NewMock answers every line with silence;
// a zero Mock fails Synthesize with ErrProviderUnavailable.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text, voice string) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error
	CloseFunc      func() error

	// Delay holds each Synthesize call back, or until ctx is done.
	Delay time.Duration

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded invocation.
type MockCall struct {
	Method string
	Text   string
	Voice  string
	Time   time.Time
}

func NewMock() *Mock {
	return &Mock{SynthesizeFunc: silence}
}

// silence renders 20ms of mono WAV silence per character of text.
func silence(_ context.Context, text, voice string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError("mock", ErrEmptyText)
	}
	d := time.Duration(len(text)) * 20 * time.Millisecond
	samples := make([]int16, int(d.Seconds()*mockSampleRate))
	return &AudioResult{
		Audio:     audioio.EncodeWAV(samples, mockSampleRate, 1),
		Format:    AudioFormat{Encoding: EncodingWAV, SampleRate: mockSampleRate, Channels: 1, BitDepth: 16},
		Voice:     voice,
		CharCount: len(text),
		Duration:  d,
	}, nil
}

// WithError returns a mock whose Synthesize and Health both fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// WithLatency sets m.Delay and returns m.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	m.Delay = delay
	return m
}

func (m *Mock) Synthesize(ctx context.Context, text, voice string) (*AudioResult, error) {
	m.record("Synthesize", text, voice)
	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.SynthesizeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, text, voice)
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "", "")
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.record("Close", "", "")
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

func (m *Mock) record(method, text, voice string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Voice: voice, Time: time.Now()})
	m.mu.Unlock()
}

func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount counts recorded calls to method.
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
