package audioio

import (
	"testing"
	"time"
)

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		want     int
	}{
		{"same rate", 5, 16000, 16000, 5},
		{"48k to 16k", 960, 48000, 16000, 320},
		{"44.1k to 16k", 441, 44100, 16000, 160},
		{"16k to 24k", 320, 16000, 24000, 480},
		{"empty", 0, 48000, 16000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, tt.in)
			for i := range samples {
				samples[i] = int16(i)
			}
			if got := len(Resample(samples, tt.from, tt.to)); got != tt.want {
				t.Errorf("expected %d samples, got %d", tt.want, got)
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	got := Resample([]int16{0, 100, 200, 300}, 16000, 32000)
	want := []int16{0, 50, 100, 150, 200, 250, 300, 300}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d (%v)", i, want[i], got[i], got)
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	back := BytesToSamples(SamplesToBytes(samples))
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
	if n := len(BytesToSamples([]byte{1, 2, 3})); n != 1 {
		t.Errorf("trailing odd byte should be dropped, got %d samples", n)
	}
}

func TestStereoToMono(t *testing.T) {
	mono := StereoToMono([]int16{100, 200, -100, -300})
	if len(mono) != 2 || mono[0] != 150 || mono[1] != -200 {
		t.Errorf("unexpected mono %v", mono)
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != 0 {
		t.Error("empty input should have zero level")
	}
	if Level(make([]int16, 100)) != 0 {
		t.Error("silence should have zero level")
	}
	full := []int16{32767, -32767, 32767, -32767}
	if l := Level(full); l < 0.99 {
		t.Errorf("full scale should be ~1.0, got %f", l)
	}
}

func TestClipMono(t *testing.T) {
	clip := Clip{Samples: make([]int16, 48000*2), SampleRate: 48000, Channels: 2}

	mono := clip.Mono(16000)
	if mono.Channels != 1 || mono.SampleRate != 16000 {
		t.Errorf("unexpected format %d/%d", mono.SampleRate, mono.Channels)
	}
	if mono.Duration() != time.Second {
		t.Errorf("expected 1s clip, got %v", mono.Duration())
	}
}
