// Package web exposes the turn pipeline over HTTP and WebSocket.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ayusha001100/talkback/pkg/hub"
	"github.com/ayusha001100/talkback/pkg/protocol"
	"github.com/ayusha001100/talkback/pkg/voice"
)

// multipartOverhead is headroom over the audio limit for form boundaries
// and text fields.
const multipartOverhead = 64 << 10

// Config configures the HTTP server.
type Config struct {
	Addr            string
	MaxUploadBytes  int
	RateLimitMax    int // Zero disables rate limiting
	RateLimitWindow time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	CORSOrigins     string
	Debug           bool
	Version         string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxUploadBytes:  10 << 20,
		RateLimitMax:    20,
		RateLimitWindow: time.Minute,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    120 * time.Second,
		CORSOrigins:     "*",
		Version:         "dev",
	}
}

// Server is the talkback HTTP server.
type Server struct {
	app    *fiber.App
	cfg    Config
	orch   *voice.Orchestrator
	events *hub.Hub
	logger *slog.Logger
}

// NewServer wires routes for orch. Run events are published to events,
// one topic per session.
func NewServer(cfg Config, orch *voice.Orchestrator, events *hub.Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		events: events,
		logger: log.With("component", "web.server"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "talkback",
		DisableStartupMessage: true,
		BodyLimit:             cfg.MaxUploadBytes + multipartOverhead,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          s.handleError,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,X-Session-ID,X-Voice-ID",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	api := app.Group("/api")
	api.Post("/voice/turn", s.rateLimiter(), s.handleTurn)
	api.Post("/voice/clear", s.handleClear)
	api.Get("/sessions/:id/history", s.handleHistory)
	api.Get("/voices", s.handleVoices)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(s.handleEvents))

	if events != nil {
		orch.Subscribe(voice.ObserverFunc(func(e voice.Event) {
			if err := events.PublishJSON(e.SessionID, e); err != nil {
				s.logger.Warn("publish event", "error", err)
			}
		}))
	}

	s.app = app
	return s
}

// rateLimiter bounds uploads per client IP with a sliding window.
func (s *Server) rateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return s.cfg.RateLimitMax <= 0
		},
		Max:               s.cfg.RateLimitMax,
		Expiration:        s.cfg.RateLimitWindow,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(protocol.ErrorResponse{
				Stage:     protocol.StageRateLimit,
				Message:   "too many requests, slow down",
				Retryable: true,
				SessionID: sessionID(c),
			})
		},
	})
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("listening", "addr", s.cfg.Addr, "max_upload_bytes", s.cfg.MaxUploadBytes)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
