package audioio

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestCommandSourceCapturesStdout(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}

	cfg := DefaultConfig()
	cfg.Backend = BackendCommand
	cfg.Command = "head -c 32000 /dev/zero"

	src, err := NewCommandSource(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clip, err := Collect(ctx, src)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(clip.Samples) != 16000 {
		t.Errorf("expected 16000 samples, got %d", len(clip.Samples))
	}
	if clip.Duration() != time.Second {
		t.Errorf("expected 1s of audio, got %v", clip.Duration())
	}

	if err := src.Stop(); err != nil {
		t.Errorf("Stop after exit failed: %v", err)
	}
}

func TestCommandSourceStopInterrupts(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	cfg := DefaultConfig()
	cfg.Command = "cat /dev/zero"

	src, err := NewCommandSource(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := Collect(ctx, src)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Collect should end cleanly after Stop, got %v", err)
	}
	if src.Stats().Running {
		t.Error("source should not report running after Stop")
	}
}

func TestClassifyExit(t *testing.T) {
	tests := []struct {
		stderr string
		want   error
	}{
		{"arecord: main:830: audio open error: Permission denied", ErrPermissionDenied},
		{"rec FAIL: Operation not permitted", ErrPermissionDenied},
		{"arecord: main:830: audio open error: No such file or directory", ErrDeviceUnavailable},
		{"", ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		if err := classifyExit(tt.stderr); !errors.Is(err, tt.want) {
			t.Errorf("classifyExit(%q) = %v, want %v", tt.stderr, err, tt.want)
		}
	}
}

func TestClipExtension(t *testing.T) {
	tests := map[string]string{
		"audio/mpeg":             ".mp3",
		"audio/wav":              ".wav",
		"audio/ogg; codecs=opus": ".ogg",
		"application/whatever":   ".bin",
		"":                       ".bin",
	}
	for mime, want := range tests {
		if got := clipExtension(mime); got != want {
			t.Errorf("clipExtension(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestNewSourceBackends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	src, err := NewSource(cfg, nil)
	if err != nil || src.Name() != "mock" {
		t.Fatalf("expected mock source, got %v, %v", src, err)
	}

	cfg.Backend = "pulse"
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected error for unsupported backend")
	}

	cfg.Backend = BackendMock
	cfg.SampleRate = 0
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected validation error")
	}
}
