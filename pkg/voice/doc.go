// Package voice runs one conversational turn: transcribe an uploaded clip,
// complete the conversation, and synthesize the reply.
//
// An Orchestrator owns no conversation state of its own. History lives in an
// injected session.Store, and the three providers are plain request/response
// adapters:
//
//	orch, err := voice.New(voice.DefaultConfig(), store,
//	    transcriber, completer, synthesizer,
//	    voice.WithLogger(logger),
//	)
//
//	result, err := orch.RunTurn(ctx, voice.TurnRequest{
//	    SessionID: "abc",
//	    Audio:     clip,
//	    MIME:      "audio/webm",
//	})
//
// # Failures
//
// Every failure is a *Error naming the stage that failed. Turns committed
// before the failure stay in history: a completion failure keeps the user
// turn, and a synthesis failure keeps both turns and carries the assistant
// text so callers can still show it.
//
// # Concurrency
//
// One run per session at a time. A second run on a busy session fails with
// ErrSessionBusy instead of queueing. Runs on different sessions proceed
// independently. A run is detached from the caller's cancellation so a
// client disconnect never leaves a half-written turn pair.
package voice
