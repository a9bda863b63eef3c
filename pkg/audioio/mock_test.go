package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMockSource_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunk = 10 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}

	if src.StartCount() != 1 || src.StopCount() != 1 {
		t.Errorf("expected 1 start and 1 stop, got %d/%d", src.StartCount(), src.StopCount())
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunk = 10 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if want := cfg.chunkFrames() * cfg.Channels; len(chunk.Samples) != want {
		t.Errorf("Expected %d samples, got %d", want, len(chunk.Samples))
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
	}
}

func TestMockSource_ReadAfterStopReturnsEOF(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunk = 5 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	src.Stop()

	for {
		_, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("expected buffered chunks then EOF, got %v", err)
		}
	}
}

func TestMockSource_Collect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunk = 5 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan Clip, 1)
	go func() {
		clip, err := Collect(ctx, src)
		if err != nil {
			t.Errorf("Collect failed: %v", err)
		}
		done <- clip
	}()

	time.Sleep(40 * time.Millisecond)
	src.Stop()

	clip := <-done
	if clip.Empty() {
		t.Fatal("expected captured audio")
	}
	if clip.SampleRate != cfg.SampleRate || clip.Channels != 1 {
		t.Errorf("unexpected clip format %d/%d", clip.SampleRate, clip.Channels)
	}
	if Level(clip.Samples) == 0 {
		t.Error("sine wave should have a non-zero level")
	}
}

func TestMockSource_StartError(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil, WithStartError(ErrPermissionDenied))

	if err := src.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if src.Running() {
		t.Error("source should not be running after a failed start")
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Stop after failed start should be a no-op, got %v", err)
	}
}

func TestMockSource_ContextCancelEndsStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunk = 5 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	readCtx, readCancel := context.WithTimeout(context.Background(), time.Second)
	defer readCancel()
	for {
		_, err := src.Read(readCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("expected EOF after cancellation, got %v", err)
		}
	}
}

func TestMockSource_Close(t *testing.T) {
	src := NewMockSource(DefaultConfig(), nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := src.Start(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestMockSource_Stats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunk = 5 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := src.Read(ctx); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}

	stats := src.Stats()
	if stats.ChunksRead < 3 {
		t.Errorf("Expected at least 3 chunks read, got %d", stats.ChunksRead)
	}
	if stats.Backend != "mock" || !stats.Running {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMockPlayer(t *testing.T) {
	p := NewMockPlayer()
	if err := p.Play(context.Background(), []byte("ID3"), "audio/mpeg"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	boom := errors.New("device busy")
	p.PlayFunc = func(ctx context.Context, audio []byte, mime string) error { return boom }
	if err := p.Play(context.Background(), nil, "audio/wav"); !errors.Is(err, boom) {
		t.Errorf("expected PlayFunc error, got %v", err)
	}

	plays := p.Plays()
	if p.PlayCount() != 2 || plays[0].Bytes != 3 || plays[0].MIME != "audio/mpeg" {
		t.Errorf("unexpected plays %+v", plays)
	}
}

func TestAudioChunk_Bytes(t *testing.T) {
	chunk := AudioChunk{Samples: []int16{0x0102, 0x0304, -1}, SampleRate: 16000, Channels: 1}

	b := chunk.Bytes()
	if len(b) != 6 {
		t.Fatalf("Expected 6 bytes, got %d", len(b))
	}
	if b[0] != 0x02 || b[1] != 0x01 {
		t.Errorf("First sample not encoded little-endian: %v", b[0:2])
	}
}

func TestAudioChunk_FromBytes(t *testing.T) {
	var chunk AudioChunk
	chunk.FromBytes([]byte{0x02, 0x01, 0x04, 0x03, 0xFF, 0xFF}, 16000, 1)

	if len(chunk.Samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(chunk.Samples))
	}
	if chunk.Samples[0] != 0x0102 || chunk.Samples[2] != -1 {
		t.Errorf("unexpected samples %v", chunk.Samples)
	}
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{Samples: make([]int16, 320), SampleRate: 16000, Channels: 1}
	if d := chunk.Duration(); d != 20*time.Millisecond {
		t.Errorf("Expected 20ms, got %v", d)
	}
}
