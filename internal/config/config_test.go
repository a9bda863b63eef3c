package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mockProviders(c *Config) {
	c.Providers.Transcription.Kind = KindMock
	c.Providers.Completion.Kind = KindMock
	c.Providers.Synthesis.Kind = KindMock
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("expected 10MiB upload limit, got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.RateLimit.Max != 20 || cfg.Server.RateLimit.Window != time.Minute {
		t.Errorf("unexpected rate limit: %+v", cfg.Server.RateLimit)
	}
	if cfg.Pipeline.DefaultVoice != "" {
		t.Errorf("expected provider default voice, got %s", cfg.Pipeline.DefaultVoice)
	}
	if cfg.Pipeline.Retry.MaxAttempts != 1 {
		t.Errorf("expected a single attempt by default, got %d", cfg.Pipeline.Retry.MaxAttempts)
	}
	if cfg.Pipeline.SessionTTL != 0 {
		t.Errorf("sessions should not expire by default, got %v", cfg.Pipeline.SessionTTL)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                   "9090",
		"OPENAI_API_KEY":         "sk-test",
		"GOOGLE_API_KEY":         "g-test",
		"TALKBACK_DEFAULT_VOICE": "nova",
		"LOG_LEVEL":              "debug",
	}
	cfg := Default()
	cfg.Providers.Completion.Kind = KindGemini
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Providers.Transcription.APIKey != "sk-test" {
		t.Errorf("transcription key not applied: %q", cfg.Providers.Transcription.APIKey)
	}
	if cfg.Providers.Completion.APIKey != "g-test" {
		t.Errorf("gemini key should fall back to GOOGLE_API_KEY, got %q", cfg.Providers.Completion.APIKey)
	}
	if cfg.Pipeline.DefaultVoice != "nova" {
		t.Errorf("expected nova, got %s", cfg.Pipeline.DefaultVoice)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Log.Level)
	}
}

func TestApplyEnvKeepsExplicitKey(t *testing.T) {
	cfg := Default()
	cfg.Providers.Synthesis.APIKey = "from-file"
	cfg.ApplyEnv(func(k string) string {
		if k == "OPENAI_API_KEY" {
			return "from-env"
		}
		return ""
	})
	if cfg.Providers.Synthesis.APIKey != "from-file" {
		t.Errorf("explicit key overwritten: %q", cfg.Providers.Synthesis.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "mock providers valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero upload size",
			mutate:  func(c *Config) { c.Server.MaxUploadBytes = 0 },
			wantErr: "max_upload_bytes",
		},
		{
			name:    "rate limit without window",
			mutate:  func(c *Config) { c.Server.RateLimit.Window = 0 },
			wantErr: "rate_limit.window",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Pipeline.Retry.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "missing completion timeout",
			mutate:  func(c *Config) { c.Pipeline.Timeouts.Completion = 0 },
			wantErr: "timeouts.completion",
		},
		{
			name:    "unsupported transcription kind",
			mutate:  func(c *Config) { c.Providers.Transcription.Kind = KindGemini },
			wantErr: "providers.transcription.kind",
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.Providers.Synthesis.Kind = KindOpenAI
			},
			wantErr: "api key required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			mockProviders(cfg)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talkback.yaml")
	doc := `
server:
  addr: ":7000"
  max_upload_bytes: 2048
  rate_limit:
    max: 5
    window: 30s
pipeline:
  default_voice: echo
  timeouts:
    completion: 10s
providers:
  transcription:
    kind: mock
  completion:
    kind: mock
  synthesis:
    kind: mock
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.MaxUploadBytes != 2048 {
		t.Errorf("expected 2048, got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.RateLimit.Window != 30*time.Second {
		t.Errorf("expected 30s window, got %v", cfg.Server.RateLimit.Window)
	}
	if cfg.Pipeline.Timeouts.Completion != 10*time.Second {
		t.Errorf("expected 10s completion timeout, got %v", cfg.Pipeline.Timeouts.Completion)
	}
	// Unset keys keep their defaults.
	if cfg.Pipeline.Timeouts.Synthesis != 30*time.Second {
		t.Errorf("expected default synthesis timeout, got %v", cfg.Pipeline.Timeouts.Synthesis)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
