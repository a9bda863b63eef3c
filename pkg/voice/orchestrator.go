package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusha001100/talkback/pkg/inference"
	"github.com/ayusha001100/talkback/pkg/session"
	"github.com/ayusha001100/talkback/pkg/spool"
	"github.com/ayusha001100/talkback/pkg/stt"
	"github.com/ayusha001100/talkback/pkg/tts"
)

// TurnRequest is one uploaded utterance.
type TurnRequest struct {
	SessionID string
	Audio     []byte
	MIME      string
	Voice     string // Empty uses Config.DefaultVoice
}

// TurnResult is a completed turn.
type TurnResult struct {
	SessionID     string
	RunID         string
	Transcript    string
	AssistantText string
	Audio         []byte
	AudioFormat   tts.AudioFormat
	Voice         string
	Latency       Metrics
}

// Orchestrator runs turns against a session store and three providers.
type Orchestrator struct {
	cfg   Config
	store *session.Store

	transcriber stt.Provider
	completer   inference.Provider
	synthesizer tts.Provider

	spool   spool.Spool
	metrics *MetricsCollector
	logger  *slog.Logger
	newID   func() string

	mu        sync.RWMutex
	observers []Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSpool sets where uploads are held during a run.
func WithSpool(s spool.Spool) Option {
	return func(o *Orchestrator) {
		o.spool = s
	}
}

// WithMetrics sets the collector runs report to.
func WithMetrics(m *MetricsCollector) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, obs)
	}
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// New creates an Orchestrator.
func New(cfg Config, store *session.Store, transcriber stt.Provider, completer inference.Provider, synthesizer tts.Provider, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || transcriber == nil || completer == nil || synthesizer == nil {
		return nil, errors.New("voice: store and all providers are required")
	}

	o := &Orchestrator{
		cfg:         cfg,
		store:       store,
		transcriber: transcriber,
		completer:   completer,
		synthesizer: synthesizer,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.spool == nil {
		o.spool = spool.NewMemory()
	}
	if o.metrics == nil {
		o.metrics = NewMetricsCollector()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "voice.orchestrator")

	return o, nil
}

// Subscribe registers an observer after construction.
func (o *Orchestrator) Subscribe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// Config returns the active configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Metrics returns the collector runs report to.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Store returns the session store.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// History returns a copy of a session's turns.
func (o *Orchestrator) History(sessionID string) []session.Turn {
	return o.store.Snapshot(sessionID)
}

// Clear empties a session's history. Unknown sessions succeed silently.
func (o *Orchestrator) Clear(sessionID string) {
	o.store.Clear(sessionID)
	o.logger.Info("history cleared", "session_id", sessionID)
	o.emit(Event{Type: EventHistoryCleared, SessionID: sessionID})
}

// RunTurn transcribes req.Audio, appends the user turn, completes the
// conversation, appends the assistant turn and synthesizes it.
//
// The first failing stage ends the run with a *Error; turns appended before
// it are kept. The run ignores cancellation of ctx; each provider call is
// bounded by its own stage timeout instead.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	runID := o.newID()
	start := time.Now()
	logger := o.logger.With("session_id", req.SessionID, "run_id", runID)

	fail := func(stage Stage, assistantText string, err error) *Error {
		o.metrics.RunFailed(stage)
		logger.Warn("turn failed", "stage", stage, "error", err)
		o.emit(Event{
			Type:      EventRunFailed,
			SessionID: req.SessionID,
			RunID:     runID,
			Stage:     stage,
			Error:     err.Error(),
		})
		return &Error{
			Stage:         stage,
			SessionID:     req.SessionID,
			RunID:         runID,
			AssistantText: assistantText,
			Err:           err,
		}
	}

	if len(req.Audio) > o.cfg.MaxAudioBytes {
		return nil, fail(StageValidation, "", fmt.Errorf("%w: %d > %d bytes", ErrOversizedPayload, len(req.Audio), o.cfg.MaxAudioBytes))
	}
	if req.SessionID == "" {
		return nil, fail(StageRequest, "", ErrMissingSession)
	}
	voice := req.Voice
	if voice == "" {
		voice = o.cfg.DefaultVoice
	}
	if !o.cfg.Voices.Accepts(voice) {
		return nil, fail(StageRequest, "", fmt.Errorf("%w: %q", ErrUnknownVoice, voice))
	}
	if len(req.Audio) == 0 {
		return nil, fail(StageValidation, "", ErrEmptyPayload)
	}

	release, ok := o.store.TryAcquire(req.SessionID)
	if !ok {
		return nil, fail(StageSession, "", ErrSessionBusy)
	}
	defer release()

	upload, err := o.spool.Acquire(req.Audio, req.MIME)
	if err != nil {
		return nil, fail(StageRequest, "", err)
	}
	defer upload.Release()

	ctx = context.WithoutCancel(ctx)
	o.metrics.RunStarted()
	o.emit(Event{Type: EventRunStarted, SessionID: req.SessionID, RunID: runID})
	logger.Debug("turn started", "bytes", upload.Len(), "mime", upload.MIME(), "voice", voice)

	var latency Metrics
	latency.AudioBytesIn = upload.Len()

	// Transcription
	var transcript *stt.Transcript
	stageStart := time.Now()
	err = o.attempt(ctx, logger, StageTranscription, o.cfg.TranscriptionTimeout, o.cfg.MaxAttempts, func(ctx context.Context) error {
		audio, err := upload.Bytes()
		if err != nil {
			return err
		}
		transcript, err = o.transcriber.Transcribe(ctx, audio, upload.MIME())
		return err
	})
	if err != nil {
		return nil, fail(StageTranscription, "", err)
	}
	userText := strings.TrimSpace(transcript.Text)
	if userText == "" {
		return nil, fail(StageTranscription, "", ErrNoSpeech)
	}
	latency.Transcription = time.Since(stageStart)
	o.stageDone(req.SessionID, runID, StageTranscription, latency.Transcription)

	o.appendTurn(req.SessionID, runID, session.UserTurn(userText))

	// Completion
	var reply *inference.ChatResponse
	chatReq := &inference.ChatRequest{
		Messages:    o.prompt(req.SessionID),
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
	stageStart = time.Now()
	err = o.attempt(ctx, logger, StageCompletion, o.cfg.CompletionTimeout, 1, func(ctx context.Context) error {
		var err error
		reply, err = o.completer.Chat(ctx, chatReq)
		return err
	})
	if err != nil {
		return nil, fail(StageCompletion, "", err)
	}
	assistantText := strings.TrimSpace(reply.Message.Content)
	if assistantText == "" {
		return nil, fail(StageCompletion, "", inference.ErrEmptyResponse)
	}
	latency.Completion = time.Since(stageStart)
	o.stageDone(req.SessionID, runID, StageCompletion, latency.Completion)

	o.appendTurn(req.SessionID, runID, session.AssistantTurn(assistantText))

	// Synthesis
	var audio *tts.AudioResult
	stageStart = time.Now()
	err = o.attempt(ctx, logger, StageSynthesis, o.cfg.SynthesisTimeout, o.cfg.MaxAttempts, func(ctx context.Context) error {
		var err error
		audio, err = o.synthesizer.Synthesize(ctx, assistantText, voice)
		return err
	})
	if err != nil {
		verr := fail(StageSynthesis, assistantText, err)
		verr.Transcript = userText
		return nil, verr
	}
	latency.Synthesis = time.Since(stageStart)
	latency.AudioBytesOut = len(audio.Audio)
	o.stageDone(req.SessionID, runID, StageSynthesis, latency.Synthesis)

	latency.Total = time.Since(start)
	o.metrics.RunCompleted(latency)

	logger.Info("turn completed",
		"latency_ms", latency.Total.Milliseconds(),
		"breakdown", latency.FormatLatency(),
		"bytes", latency.AudioBytesOut,
	)
	o.emit(Event{
		Type:      EventRunCompleted,
		SessionID: req.SessionID,
		RunID:     runID,
		LatencyMs: latency.Total.Milliseconds(),
	})

	return &TurnResult{
		SessionID:     req.SessionID,
		RunID:         runID,
		Transcript:    userText,
		AssistantText: assistantText,
		Audio:         audio.Audio,
		AudioFormat:   audio.Format,
		Voice:         voice,
		Latency:       latency,
	}, nil
}

// prompt builds the completion messages from the session snapshot.
func (o *Orchestrator) prompt(sessionID string) []inference.Message {
	history := o.store.Snapshot(sessionID)
	if n := o.cfg.HistoryLimit; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	messages := make([]inference.Message, 0, len(history)+1)
	if o.cfg.SystemPrompt != "" {
		messages = append(messages, inference.NewSystemMessage(o.cfg.SystemPrompt))
	}
	for _, turn := range history {
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, inference.NewUserMessage(turn.Content))
		case session.RoleAssistant:
			messages = append(messages, inference.NewAssistantMessage(turn.Content))
		}
	}
	return messages
}

// attempt calls fn up to attempts times, each under its own timeout.
// Only retryable errors and timeouts are retried, with linear backoff.
func (o *Orchestrator) attempt(ctx context.Context, logger *slog.Logger, stage Stage, timeout time.Duration, attempts int, fn func(context.Context) error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			time.Sleep(o.cfg.Backoff * time.Duration(i-1))
		}

		err = call(ctx, timeout, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if i < attempts {
			logger.Warn("retrying stage", "stage", stage, "attempt", i, "error", err)
		}
	}
	return err
}

// call runs fn under a deadline and marks deadline failures, including
// transport timeouts, with ErrProviderTimeout.
func call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stageCtx)
	if err == nil {
		return nil
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %w", ErrProviderTimeout, timeout, err)
	}
	// An adapter's own HTTP client deadline can fire before the stage one.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrProviderTimeout, err)
	}
	return err
}

func (o *Orchestrator) appendTurn(sessionID, runID string, turn session.Turn) {
	o.store.Append(sessionID, turn)
	o.emit(Event{Type: EventTurnAppended, SessionID: sessionID, RunID: runID, Turn: &turn})
}

func (o *Orchestrator) stageDone(sessionID, runID string, stage Stage, d time.Duration) {
	o.emit(Event{
		Type:      EventStageCompleted,
		SessionID: sessionID,
		RunID:     runID,
		Stage:     stage,
		LatencyMs: d.Milliseconds(),
	})
}

func (o *Orchestrator) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	o.mu.RLock()
	observers := o.observers
	o.mu.RUnlock()

	for _, obs := range observers {
		obs.OnEvent(e)
	}
}
