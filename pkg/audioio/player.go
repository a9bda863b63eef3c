package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/exec"
)

// Player plays one complete audio clip.
type Player interface {
	// Play blocks until playback finishes or ctx is cancelled.
	Play(ctx context.Context, audio []byte, mimeType string) error

	// Name returns the backend name.
	Name() string
}

// playerCommands lists supported players in preference order.
// The clip path is appended to args.
var playerCommands = []struct {
	name string
	args []string
}{
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{"afplay", nil},
	{"mpv", []string{"--no-video", "--really-quiet"}},
	{"paplay", nil},
}

var clipExtensions = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/mp3":  ".mp3",
	"audio/wav":  ".wav",
	"audio/wave": ".wav",
	"audio/ogg":  ".ogg",
	"audio/opus": ".opus",
	"audio/aac":  ".aac",
	"audio/flac": ".flac",
}

// CommandPlayer plays clips through an external player via a temp file.
type CommandPlayer struct {
	path   string
	args   []string
	logger *slog.Logger
}

// NewCommandPlayer returns a player backed by the first installed command.
func NewCommandPlayer(logger *slog.Logger) (*CommandPlayer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, c := range playerCommands {
		if path, err := exec.LookPath(c.name); err == nil {
			return &CommandPlayer{
				path:   path,
				args:   c.args,
				logger: logger.With("component", "audioio.player", "player", c.name),
			}, nil
		}
	}
	return nil, ErrPlayerUnavailable
}

// Play writes the clip to a temp file and runs the player on it.
func (p *CommandPlayer) Play(ctx context.Context, audio []byte, mimeType string) error {
	f, err := os.CreateTemp("", "talkback-*"+clipExtension(mimeType))
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close clip file: %w", err)
	}

	args := append(append([]string{}, p.args...), f.Name())
	cmd := exec.CommandContext(ctx, p.path, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play clip: %w", err)
	}

	p.logger.Debug("played clip", "bytes", len(audio), "mime", mimeType)
	return nil
}

// Name returns the player binary path.
func (p *CommandPlayer) Name() string {
	return p.path
}

func clipExtension(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".bin"
	}
	if ext, ok := clipExtensions[mt]; ok {
		return ext
	}
	return ".bin"
}

var _ Player = (*CommandPlayer)(nil)
