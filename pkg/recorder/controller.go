package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusha001100/talkback/pkg/audioio"
	"github.com/ayusha001100/talkback/pkg/client"
	"github.com/ayusha001100/talkback/pkg/session"
)

// UploadRate is the sample rate clips are converted to before upload.
const UploadRate = 16000

// Uploader sends one clip and returns the reply. *client.Client satisfies it.
type Uploader interface {
	SendTurn(ctx context.Context, turn client.Turn) (*client.Reply, error)
}

// Entry is one line of the displayed conversation.
type Entry struct {
	Role session.Role
	Text string
	Time time.Time
}

// Config holds controller settings.
type Config struct {
	SessionID string
	Voice     string
	Logger    *slog.Logger
}

// Controller owns the recorder state. Start, Stop, Toggle and Reset may be
// called from any goroutine; each cycle runs on its own goroutine and its
// results are dropped once Reset has been called.
type Controller struct {
	cfg      Config
	source   audioio.Source
	player   audioio.Player
	uploader Uploader
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	collected chan collectResult
	cycleDone chan struct{}
	history   []Entry
	lastErr   error
	observers []func(State)
}

type collectResult struct {
	clip audioio.Clip
	err  error
}

// New creates a controller in Idle.
func New(cfg Config, source audioio.Source, player audioio.Player, uploader Uploader) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	close(done)
	return &Controller{
		cfg:       cfg,
		source:    source,
		player:    player,
		uploader:  uploader,
		logger:    logger.With("component", "recorder", "session_id", cfg.SessionID),
		cycleDone: done,
	}
}

// OnStateChange registers fn to be called after every transition.
// Callbacks run on the goroutine that made the transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns the displayed conversation so far.
func (c *Controller) History() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.history))
	copy(out, c.history)
	return out
}

// LastError returns the error that ended the most recent cycle, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Toggle starts recording when idle and stops it when listening.
func (c *Controller) Toggle(ctx context.Context) error {
	switch c.State().Kind {
	case Idle, Failed:
		return c.Start(ctx)
	case Listening:
		return c.Stop()
	default:
		return ErrControlDisabled
	}
}

// Start opens the microphone and begins capturing.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state.Kind {
	case Listening:
		c.mu.Unlock()
		return nil
	case Processing, Speaking:
		c.mu.Unlock()
		return ErrControlDisabled
	}

	if err := c.source.Start(ctx); err != nil {
		if errors.Is(err, audioio.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		gen := c.gen
		c.mu.Unlock()
		c.fail(gen, err)
		return err
	}

	if c.cancel != nil {
		c.cancel()
	}
	cycleCtx, cancel := context.WithCancel(context.Background())
	collected := make(chan collectResult, 1)
	c.ctx, c.cancel = cycleCtx, cancel
	c.collected = collected
	c.cycleDone = make(chan struct{})
	c.lastErr = nil
	c.state = State{Kind: Listening}
	observers := c.observersLocked()
	c.mu.Unlock()

	go func() {
		clip, err := audioio.Collect(cycleCtx, c.source)
		collected <- collectResult{clip: clip, err: err}
	}()

	c.logger.Debug("listening")
	notify(observers, State{Kind: Listening})
	return nil
}

// Stop ends capture and sends the clip. It returns once the upload has
// been handed to the cycle goroutine; use Wait to block until the reply has
// been played.
func (c *Controller) Stop() error {
	c.mu.Lock()
	kind := c.state.Kind
	if kind == Processing || kind == Speaking {
		c.mu.Unlock()
		return ErrControlDisabled
	}

	// Stop the microphone whatever state we are in.
	if err := c.source.Stop(); err != nil {
		c.logger.Warn("stop capture", "error", err)
	}

	if kind != Listening {
		c.mu.Unlock()
		return nil
	}

	gen, ctx := c.gen, c.ctx
	collected, done := c.collected, c.cycleDone
	c.state = State{Kind: Processing}
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, State{Kind: Processing})
	go c.process(ctx, gen, collected, done)
	return nil
}

// Reset abandons the current cycle and returns to Idle. Results from the
// abandoned cycle are ignored.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	wasListening := c.state.Kind == Listening
	if wasListening {
		// No process goroutine owns this cycle yet.
		close(c.cycleDone)
	}
	changed := c.state.Kind != Idle
	c.state = State{Kind: Idle}
	observers := c.observersLocked()
	c.mu.Unlock()

	if wasListening {
		if err := c.source.Stop(); err != nil {
			c.logger.Warn("stop capture", "error", err)
		}
	}
	if changed {
		notify(observers, State{Kind: Idle})
	}
}

// Cancel is Reset.
func (c *Controller) Cancel() {
	c.Reset()
}

// Wait blocks until the current cycle has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.cycleDone
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) process(ctx context.Context, gen uint64, collected <-chan collectResult, done chan struct{}) {
	defer close(done)

	var res collectResult
	select {
	case res = <-collected:
	case <-ctx.Done():
		return
	}
	if res.err != nil {
		c.fail(gen, fmt.Errorf("capture: %w", res.err))
		return
	}
	if res.clip.Empty() {
		c.fail(gen, ErrNoAudio)
		return
	}

	clip := res.clip.Mono(UploadRate)
	c.logger.Debug("uploading", "duration", clip.Duration(), "level", audioio.Level(clip.Samples))

	reply, err := c.uploader.SendTurn(ctx, client.Turn{
		SessionID: c.cfg.SessionID,
		Voice:     c.cfg.Voice,
		Audio:     clip.WAV(),
		MIME:      "audio/wav",
	})
	if err != nil {
		if cerr, ok := client.AsError(err); ok && cerr.HasText() {
			// The reply exists but could not be spoken.
			c.textOnly(gen, cerr)
			return
		}
		c.fail(gen, err)
		return
	}

	if !c.record(gen, reply) {
		return
	}

	if len(reply.Audio) == 0 {
		c.transition(gen, State{Kind: Idle})
		return
	}
	if !c.transition(gen, State{Kind: Speaking}) {
		return
	}
	if err := c.player.Play(ctx, reply.Audio, reply.AudioMIME); err != nil && ctx.Err() == nil {
		c.logger.Warn("playback failed", "error", err)
	}
	c.transition(gen, State{Kind: Idle})
}

// record appends the exchange to the displayed history unless the cycle
// is stale.
func (c *Controller) record(gen uint64, reply *client.Reply) bool {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.history = append(c.history,
		Entry{Role: session.RoleUser, Text: reply.Transcript, Time: now},
		Entry{Role: session.RoleAssistant, Text: reply.AssistantText, Time: now},
	)
	return true
}

// textOnly records an exchange whose reply was produced but not spoken. The
// server keeps both turns, so the local history does too.
func (c *Controller) textOnly(gen uint64, err *client.Error) {
	now := time.Now()
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err.Transcript != "" {
		c.history = append(c.history, Entry{Role: session.RoleUser, Text: err.Transcript, Time: now})
	}
	c.history = append(c.history, Entry{Role: session.RoleAssistant, Text: err.AssistantText, Time: now})
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Warn("reply not spoken", "error", err)
	c.transition(gen, State{Kind: Idle})
}

// fail reports err through Failed and settles in Idle.
func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Warn("cycle failed", "error", err)
	if c.transition(gen, State{Kind: Failed, Reason: err}) {
		c.transition(gen, State{Kind: Idle})
	}
}

// transition moves to next unless the cycle has been reset.
func (c *Controller) transition(gen uint64, next State) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.state = next
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, next)
	return true
}

func (c *Controller) observersLocked() []func(State) {
	out := make([]func(State), len(c.observers))
	copy(out, c.observers)
	return out
}

func notify(observers []func(State), s State) {
	for _, fn := range observers {
		fn(s)
	}
}
