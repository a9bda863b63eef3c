package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusha001100/talkback/internal/log"
	"github.com/ayusha001100/talkback/pkg/audioio"
	"github.com/ayusha001100/talkback/pkg/client"
	"github.com/ayusha001100/talkback/pkg/recorder"
	"github.com/ayusha001100/talkback/pkg/session"
)

var (
	serverURL   string
	talkVoice   string
	talkSession string
	talkBackend string
	talkDevice  string
	multipart   bool
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Talk to a talkback server from the terminal",
	Long: `Record from the microphone and play the spoken replies.

Press Enter to start recording and Enter again to send.
Type r to abandon the current turn, c to clear the conversation, q to quit.

Recording uses arecord or sox's rec; playback uses ffplay, afplay, mpv or paplay.`,
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().StringVarP(&serverURL, "server", "s", envOr("TALKBACK_SERVER", "http://localhost:8080"), "server URL")
	talkCmd.Flags().StringVar(&talkVoice, "voice", "", "voice for replies (server default if empty)")
	talkCmd.Flags().StringVar(&talkSession, "session", "", "session id (random if empty)")
	talkCmd.Flags().StringVar(&talkBackend, "backend", string(audioio.BackendAuto), "audio backend (auto, command, mock)")
	talkCmd.Flags().StringVar(&talkDevice, "device", "", "capture device passed to arecord")
	talkCmd.Flags().BoolVar(&multipart, "multipart", false, "upload clips as multipart forms")
}

// talkStyles are the terminal styles for the transcript.
type talkStyles struct {
	Title     lipgloss.Style
	Status    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Help      lipgloss.Style
}

func newTalkStyles() talkStyles {
	primary := lipgloss.Color("#00ff9f")
	dim := lipgloss.Color("#6e7681")
	return talkStyles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(primary),
		Status:    lipgloss.NewStyle().Foreground(dim).Italic(true),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#58a6ff")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(primary),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87")),
		Help:      lipgloss.NewStyle().Foreground(dim),
	}
}

func (s talkStyles) entry(e recorder.Entry) string {
	if e.Role == session.RoleUser {
		return s.User.Render("you") + "  " + e.Text
	}
	return s.Assistant.Render("bot") + "  " + e.Text
}

func (s talkStyles) status(st recorder.State) string {
	switch st.Kind {
	case recorder.Listening:
		return s.Status.Render("● recording… press Enter to send")
	case recorder.Processing:
		return s.Status.Render("… thinking")
	case recorder.Speaking:
		return s.Status.Render("♪ speaking")
	case recorder.Failed:
		return s.Error.Render("✗ " + st.Reason.Error())
	default:
		return s.Help.Render("press Enter to talk")
	}
}

func runTalk(cmd *cobra.Command, args []string) error {
	initLogging(cmd, "warn", "")
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(serverURL, client.WithMultipart(multipart), client.WithLogger(logger))
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("server %s not reachable: %w", serverURL, err)
	}

	audioCfg := audioio.DefaultConfig()
	audioCfg.Backend = audioio.Backend(talkBackend)
	audioCfg.Device = talkDevice

	source, err := audioio.NewSource(audioCfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	player, err := audioio.NewPlayer(audioCfg, logger)
	if err != nil {
		return err
	}

	sessionID := talkSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctrl := recorder.New(recorder.Config{
		SessionID: sessionID,
		Voice:     talkVoice,
		Logger:    logger,
	}, source, player, c)

	styles := newTalkStyles()
	out := cmd.OutOrStdout()
	ui := &transcript{out: out, styles: styles, ctrl: ctrl}
	ctrl.OnStateChange(ui.onState)

	fmt.Fprintln(out, styles.Title.Render("talkback")+" "+styles.Help.Render("session "+sessionID))
	fmt.Fprintln(out, styles.Help.Render("Enter: talk/send · r: reset · c: clear · q: quit"))
	fmt.Fprintln(out, styles.status(ctrl.State()))

	lines := readLines(cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			ctrl.Reset()
			return nil
		case line, ok := <-lines:
			if !ok {
				ctrl.Reset()
				return nil
			}
			switch strings.TrimSpace(strings.ToLower(line)) {
			case "q", "quit", "exit":
				ctrl.Reset()
				return nil
			case "r", "reset":
				ctrl.Reset()
			case "c", "clear":
				ctrl.Reset()
				if err := c.Clear(ctx, sessionID); err != nil {
					fmt.Fprintln(out, styles.Error.Render("clear failed: "+err.Error()))
					continue
				}
				ui.clear()
				fmt.Fprintln(out, styles.Help.Render("conversation cleared"))
			default:
				if err := ctrl.Toggle(ctx); err != nil {
					if errors.Is(err, recorder.ErrControlDisabled) {
						fmt.Fprintln(out, styles.Help.Render("wait for the reply to finish"))
					}
					// Other errors are reported through the Failed state.
				}
			}
		}
	}
}

// transcript prints state changes and new history entries.
type transcript struct {
	out    io.Writer
	styles talkStyles
	ctrl   *recorder.Controller

	mu      sync.Mutex
	printed int
}

func (t *transcript) onState(st recorder.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.Kind == recorder.Speaking || st.Kind == recorder.Idle {
		history := t.ctrl.History()
		for _, e := range history[min(t.printed, len(history)):] {
			fmt.Fprintln(t.out, t.styles.entry(e))
		}
		t.printed = len(history)

		if st.Kind == recorder.Idle {
			var cerr *client.Error
			if err := t.ctrl.LastError(); errors.As(err, &cerr) && cerr.HasText() {
				fmt.Fprintln(t.out, t.styles.Error.Render("(reply could not be spoken: "+cerr.Message+")"))
			}
		}
	}
	fmt.Fprintln(t.out, t.styles.status(st))
}

func (t *transcript) clear() {
	t.mu.Lock()
	t.printed = len(t.ctrl.History())
	t.mu.Unlock()
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
