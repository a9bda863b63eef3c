package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// startProbe is how long Start waits for the recorder to either produce audio
// or exit, so that immediate failures surface from Start.
const startProbe = 300 * time.Millisecond

// stopGrace is how long Stop waits after an interrupt before killing the recorder.
const stopGrace = 2 * time.Second

// permissionHints are stderr fragments recorders print when the OS denies
// microphone access.
var permissionHints = []string{
	"permission denied",
	"operation not permitted",
	"not authorized",
	"access denied",
}

// CommandSource captures audio by running an external recorder that writes
// raw PCM16 to stdout.
type CommandSource struct {
	cfg    Config
	logger *slog.Logger
	name   string
	args   []string

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	chunks  chan AudioChunk
	stopCh  chan struct{}
	done    chan struct{}
	stderr  *lockedBuffer

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewCommandSource locates a recorder and returns a source that drives it.
// The configured Command wins; otherwise arecord and then sox's rec are tried.
func NewCommandSource(cfg Config, logger *slog.Logger) (*CommandSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	name, args, err := recorderCommand(cfg)
	if err != nil {
		return nil, err
	}

	return &CommandSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.command", "recorder", name),
		name:   name,
		args:   args,
		chunks: closedChunks(),
	}, nil
}

func recorderCommand(cfg Config) (string, []string, error) {
	if cfg.Command != "" {
		fields := strings.Fields(cfg.Command)
		return fields[0], fields[1:], nil
	}

	rate := strconv.Itoa(cfg.SampleRate)
	channels := strconv.Itoa(cfg.Channels)

	if path, err := exec.LookPath("arecord"); err == nil {
		args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", channels}
		if cfg.Device != "" {
			args = append(args, "-D", cfg.Device)
		}
		return path, args, nil
	}
	if path, err := exec.LookPath("rec"); err == nil {
		return path, []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-L",
			"-r", rate, "-c", channels, "-"}, nil
	}
	return "", nil, ErrDeviceUnavailable
}

// Start launches the recorder. It returns ErrPermissionDenied when the
// recorder exits during the start probe complaining about access.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	cmd := exec.Command(s.name, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recorder stdout: %w", err)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("start recorder: %w", err)
	}

	chunks := make(chan AudioChunk, 64)
	stopCh := make(chan struct{})
	done := make(chan struct{})
	first := make(chan struct{})

	go s.readLoop(cmd, stdout, chunks, stopCh, done, first)

	select {
	case <-first:
	case <-time.After(startProbe):
	case <-ctx.Done():
		s.kill(cmd, done)
		return ctx.Err()
	case <-done:
		select {
		case <-first:
			// Short recordings may finish inside the probe window.
		default:
			return classifyExit(stderr.String())
		}
	}

	s.cmd = cmd
	s.chunks = chunks
	s.stopCh = stopCh
	s.done = done
	s.stderr = stderr
	s.running = true

	s.logger.Debug("recorder started", "sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels)
	return nil
}

// readLoop is the only sender on chunks and closes it once the recorder exits.
func (s *CommandSource) readLoop(cmd *exec.Cmd, stdout io.Reader, chunks chan<- AudioChunk, stop <-chan struct{}, done chan<- struct{}, first chan<- struct{}) {
	defer close(done)
	defer close(chunks)

	buf := make([]byte, s.cfg.chunkBytes())
	signalled := false

	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			if !signalled {
				close(first)
				signalled = true
			}
			var chunk AudioChunk
			chunk.FromBytes(buf[:n], s.cfg.SampleRate, s.cfg.Channels)

			select {
			case chunks <- chunk:
			default:
				select {
				case chunks <- chunk:
				case <-stop:
					s.overruns.Add(1)
					continue
				}
			}
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		}
		if err != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		s.logger.Debug("recorder exited", "error", err)
	}
}

// Stop interrupts the recorder and waits for it to exit.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cmd, done := s.cmd, s.done
	close(s.stopCh)
	s.mu.Unlock()

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		cmd.Process.Kill()
	}

	select {
	case <-done:
	case <-time.After(stopGrace):
		s.kill(cmd, done)
	}

	s.logger.Debug("recorder stopped", "chunks", s.chunksRead.Load())
	return nil
}

func (s *CommandSource) kill(cmd *exec.Cmd, done <-chan struct{}) {
	cmd.Process.Kill()
	<-done
}

// Read returns the next chunk, or io.EOF after the recorder exits.
func (s *CommandSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	chunks := s.chunks
	s.mu.Unlock()

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
func (s *CommandSource) Config() Config {
	return s.cfg
}

// Name returns the recorder binary name.
func (s *CommandSource) Name() string {
	return s.name
}

// Close stops capture and prevents restarts.
func (s *CommandSource) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// Stats returns source statistics.
func (s *CommandSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.name,
	}
}

// classifyExit maps an early recorder exit to a capture error.
func classifyExit(stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	for _, hint := range permissionHints {
		if strings.Contains(lower, hint) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
	}
	if msg == "" {
		msg = "no output"
	}
	return fmt.Errorf("%w: recorder exited: %s", ErrDeviceUnavailable, msg)
}

func closedChunks() chan AudioChunk {
	ch := make(chan AudioChunk)
	close(ch)
	return ch
}

// lockedBuffer collects stderr written by the exec package's copy goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ SourceWithStats = (*CommandSource)(nil)
