package web

import (
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/ayusha001100/talkback/pkg/hub"
	"github.com/ayusha001100/talkback/pkg/protocol"
	"github.com/ayusha001100/talkback/pkg/voice"
)

// handleHealth is a liveness probe; it never touches providers.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.cfg.Version,
	})
}

// handleTurn runs one pipeline turn for an uploaded clip.
func (s *Server) handleTurn(c *fiber.Ctx) error {
	id := sessionID(c)

	audio, mime, err := readAudio(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(protocol.ErrorResponse{
			Stage:     string(voice.StageRequest),
			Message:   err.Error(),
			SessionID: id,
		})
	}

	result, err := s.orch.RunTurn(c.UserContext(), voice.TurnRequest{
		SessionID: id,
		Audio:     audio,
		MIME:      mime,
		Voice:     voiceID(c),
	})
	if err != nil {
		return s.writeRunError(c, id, err)
	}

	return c.JSON(protocol.TurnResponse{
		SessionID:      result.SessionID,
		RunID:          result.RunID,
		Transcript:     result.Transcript,
		AssistantText:  result.AssistantText,
		AssistantAudio: base64.StdEncoding.EncodeToString(result.Audio),
		AudioFormat:    result.AudioFormat.MIME(),
		Voice:          result.Voice,
		LatencyMs:      result.Latency.Total.Milliseconds(),
	})
}

// handleClear empties a session. It always succeeds.
func (s *Server) handleClear(c *fiber.Ctx) error {
	var req protocol.ClearRequest
	if len(c.Body()) > 0 {
		// A malformed body clears nothing but still succeeds.
		_ = c.BodyParser(&req)
	}
	if req.SessionID == "" {
		req.SessionID = sessionID(c)
	}
	if req.SessionID != "" {
		s.orch.Clear(req.SessionID)
	}
	return c.JSON(fiber.Map{"success": true})
}

// handleHistory returns a snapshot of a session's turns.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	return c.JSON(protocol.HistoryResponse{
		SessionID: id,
		Turns:     s.orch.History(id),
	})
}

// handleVoices lists the voices a turn may request.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	cfg := s.orch.Config()
	return c.JSON(protocol.VoicesResponse{
		Kind:    cfg.Voices.Kind,
		Default: cfg.DefaultVoice,
		Voices:  cfg.Voices.Voices,
		Open:    cfg.Voices.Open,
	})
}

// handleMetrics writes Prometheus text exposition.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")

	w := c.Response().BodyWriter()
	if err := s.orch.Metrics().WritePrometheus(w); err != nil {
		return err
	}

	stats := s.orch.Store().Stats()
	subscribers := 0
	if s.events != nil {
		subscribers = s.events.Total()
	}
	_, err := io.WriteString(w, "\n"+
		"# HELP talkback_sessions Sessions held in memory\n"+
		"# TYPE talkback_sessions gauge\n"+
		"talkback_sessions "+strconv.Itoa(stats.Sessions)+"\n\n"+
		"# HELP talkback_sessions_busy Sessions with a turn in progress\n"+
		"# TYPE talkback_sessions_busy gauge\n"+
		"talkback_sessions_busy "+strconv.Itoa(stats.Busy)+"\n\n"+
		"# HELP talkback_turns Turns held across all sessions\n"+
		"# TYPE talkback_turns gauge\n"+
		"talkback_turns "+strconv.Itoa(stats.Turns)+"\n\n"+
		"# HELP talkback_event_subscribers Connected event feed subscribers\n"+
		"# TYPE talkback_event_subscribers gauge\n"+
		"talkback_event_subscribers "+strconv.Itoa(subscribers)+"\n")
	return err
}

// handleEvents streams a session's run events over a WebSocket.
func (s *Server) handleEvents(c *websocket.Conn) {
	if s.events == nil {
		c.Close()
		return
	}
	client := hub.NewClient(s.events, c.Params("id"), c)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}

// handleError renders errors raised outside handlers, such as an oversized
// body rejected by the server before it is buffered.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	stage := protocol.StageServer
	message := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch code {
		case fiber.StatusRequestEntityTooLarge:
			stage = string(voice.StageValidation)
			message = voice.ErrOversizedPayload.Error()
		case fiber.StatusTooManyRequests:
			stage = protocol.StageRateLimit
		default:
			stage = string(voice.StageRequest)
		}
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	// The body may not have been read, so only the query and header are
	// consulted for the session.
	return c.Status(code).JSON(protocol.ErrorResponse{
		Stage:     stage,
		Message:   message,
		Retryable: code == fiber.StatusTooManyRequests,
		SessionID: firstNonEmpty(c.Query("session_id"), c.Get("X-Session-ID")),
	})
}

func (s *Server) writeRunError(c *fiber.Ctx, id string, err error) error {
	resp := protocol.ErrorResponse{
		Stage:     protocol.StageServer,
		Message:   err.Error(),
		SessionID: id,
	}

	var verr *voice.Error
	if errors.As(err, &verr) {
		resp.Stage = string(verr.Stage)
		resp.Message = verr.Err.Error()
		resp.Retryable = verr.Retryable()
		resp.RunID = verr.RunID
		resp.Transcript = verr.Transcript
		resp.AssistantText = verr.AssistantText
	}

	return c.Status(statusFor(err)).JSON(resp)
}

// statusFor maps a run error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voice.ErrOversizedPayload):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, voice.ErrEmptyPayload),
		errors.Is(err, voice.ErrMissingSession),
		errors.Is(err, voice.ErrUnknownVoice):
		return fiber.StatusBadRequest
	case errors.Is(err, voice.ErrSessionBusy):
		return fiber.StatusConflict
	case errors.Is(err, voice.ErrProviderTimeout):
		return fiber.StatusGatewayTimeout
	}

	switch voice.StageOf(err) {
	case voice.StageTranscription, voice.StageCompletion, voice.StageSynthesis:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// readAudio accepts either a multipart form with an "audio" file part or a
// raw body whose Content-Type describes the clip.
func readAudio(c *fiber.Ctx) ([]byte, string, error) {
	contentType := c.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return c.Body(), contentType, nil
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return audio, fh.Header.Get(fiber.HeaderContentType), nil
}

// sessionID reads the session from the query, form or X-Session-ID header.
func sessionID(c *fiber.Ctx) string {
	return firstNonEmpty(c.Query("session_id"), formValue(c, "session_id"), c.Get("X-Session-ID"))
}

// voiceID reads the voice from the query, form or X-Voice-ID header.
func voiceID(c *fiber.Ctx) string {
	return firstNonEmpty(c.Query("voice_id"), formValue(c, "voice_id"), c.Get("X-Voice-ID"))
}

// formValue only looks at multipart forms; raw audio bodies are never
// parsed as form data.
func formValue(c *fiber.Ctx, key string) string {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return ""
	}
	return c.FormValue(key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
