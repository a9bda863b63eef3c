package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusha001100/talkback/internal/config"
	"github.com/ayusha001100/talkback/internal/log"
	"github.com/ayusha001100/talkback/pkg/hub"
	"github.com/ayusha001100/talkback/pkg/session"
	"github.com/ayusha001100/talkback/pkg/spool"
	"github.com/ayusha001100/talkback/pkg/voice"
	"github.com/ayusha001100/talkback/pkg/web"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile string
	listenAddr string
	debugHTTP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice API server",
	Long: `Run the HTTP API.

Configuration is read from --config (YAML) and then the environment:
OPENAI_API_KEY, GEMINI_API_KEY, ELEVENLABS_API_KEY, TALKBACK_ADDR or PORT,
TALKBACK_MAX_UPLOAD_BYTES, TALKBACK_DEFAULT_VOICE and LOG_LEVEL.

Example:
  OPENAI_API_KEY=sk-... talkback serve
  talkback serve --config talkback.yaml --debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().BoolVar(&debugHTTP, "debug", false, "log every HTTP request")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	initLogging(cmd, cfg.Log.Level, cfg.Log.Format)
	logger := log.Component("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provs, err := newProviders(ctx, cfg, log.L())
	if err != nil {
		return err
	}
	defer provs.Close()

	var uploads spool.Spool = spool.NewMemory()
	if cfg.Pipeline.SpoolDir != "" {
		dir, err := spool.NewDir(cfg.Pipeline.SpoolDir, log.L())
		if err != nil {
			return fmt.Errorf("spool: %w", err)
		}
		uploads = dir
	}

	storeOpts := []session.Option{session.WithLogger(log.L())}
	if cfg.Pipeline.SessionTTL > 0 {
		storeOpts = append(storeOpts, session.WithTTL(cfg.Pipeline.SessionTTL))
	}
	store := session.NewStore(storeOpts...)
	if cfg.Pipeline.SessionTTL > 0 {
		go store.Run(ctx, cfg.Pipeline.SessionTTL/4)
	}

	orch, err := voice.New(pipelineConfig(cfg, provs.voices), store,
		provs.transcriber, provs.completer, provs.synthesizer,
		voice.WithSpool(uploads),
		voice.WithLogger(log.L()),
	)
	if err != nil {
		return err
	}

	events := hub.New("events", log.L())
	go events.Run(ctx)

	srv := web.NewServer(web.Config{
		Addr:            cfg.Server.Addr,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		RateLimitMax:    cfg.Server.RateLimit.Max,
		RateLimitWindow: cfg.Server.RateLimit.Window,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Debug:           debugHTTP,
		Version:         Version,
	}, orch, events, log.L())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting",
			"addr", cfg.Server.Addr,
			"transcription", cfg.Providers.Transcription.Kind,
			"completion", cfg.Providers.Completion.Kind,
			"synthesis", cfg.Providers.Synthesis.Kind,
			"default_voice", orch.Config().DefaultVoice,
		)
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}

	stats := uploads.Stats()
	logger.Info("stopped", "uploads", stats.Acquired, "uploads_active", stats.Active())
	return nil
}
