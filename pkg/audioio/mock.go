package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave) on a ticker.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	chunks  chan AudioChunk
	stopCh  chan struct{}
	done    chan struct{}

	startErr error

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
	starts      atomic.Int64
	stops       atomic.Int64

	// Generator state, owned by the generate goroutine.
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithStartError makes Start fail with err, e.g. ErrPermissionDenied.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger.With("component", "audioio.mock"),
		chunks:    make(chan AudioChunk),
		amplitude: 0.5,
	}
	close(m.chunks)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.starts.Add(1)
	m.chunks = make(chan AudioChunk, 64)
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})

	go m.generateLoop(ctx, m.chunks, m.stopCh, m.done)

	m.logger.Debug("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)
	return nil
}

// generateLoop is the only sender on chunks and closes it on exit.
func (m *MockSource) generateLoop(ctx context.Context, chunks chan<- AudioChunk, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(chunks)

	ticker := time.NewTicker(m.cfg.Chunk)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			chunk := m.generateChunk()
			select {
			case chunks <- chunk:
				m.chunksRead.Add(1)
				m.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				m.overruns.Add(1)
			}
		}
	}
}

func (m *MockSource) generateChunk() AudioChunk {
	frames := m.cfg.chunkFrames()
	channels := m.cfg.Channels
	samples := make([]int16, frames*channels)

	if m.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < channels; ch++ {
				samples[i*channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   channels,
	}
}

// Stop halts audio generation. Chunks already buffered remain readable.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.stops.Add(1)
	close(m.stopCh)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Debug("mock audio source stopped")
	return nil
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	m.mu.Lock()
	chunks := m.chunks
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-chunks:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Running reports whether capture is active.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StartCount returns how many times capture started.
func (m *MockSource) StartCount() int {
	return int(m.starts.Load())
}

// StopCount returns how many times a running capture was stopped.
func (m *MockSource) StopCount() int {
	return int(m.stops.Load())
}

// Close stops capture and prevents restarts.
func (m *MockSource) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     m.Running(),
		Backend:     "mock",
	}
}

// MockPlayer implements Player for testing.
type MockPlayer struct {
	// PlayFunc is called when Play is invoked.
	// If nil, Play returns immediately.
	PlayFunc func(ctx context.Context, audio []byte, mime string) error

	mu    sync.Mutex
	plays []MockPlay
}

// MockPlay records one Play call.
type MockPlay struct {
	Bytes int
	MIME  string
	Time  time.Time
}

// NewMockPlayer creates a player that accepts everything instantly.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play records the call and runs PlayFunc.
func (p *MockPlayer) Play(ctx context.Context, audio []byte, mime string) error {
	p.mu.Lock()
	p.plays = append(p.plays, MockPlay{Bytes: len(audio), MIME: mime, Time: time.Now()})
	p.mu.Unlock()

	if p.PlayFunc != nil {
		return p.PlayFunc(ctx, audio, mime)
	}
	return nil
}

// Name returns "mock".
func (p *MockPlayer) Name() string {
	return "mock"
}

// Plays returns all recorded Play calls.
func (p *MockPlayer) Plays() []MockPlay {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]MockPlay, len(p.plays))
	copy(out, p.plays)
	return out
}

// PlayCount returns the number of Play calls.
func (p *MockPlayer) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

var (
	_ SourceWithStats = (*MockSource)(nil)
	_ Player          = (*MockPlayer)(nil)
)
