package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 8090
  address: "127.0.0.1"
  enabled: true
audio:
  target_sample_rate: 16000
  frame_buffer: 64
pipeline:
  language: "en"
engine:
  type: "groq"
  api_key: "test-key"
  min_buffer_duration: 1.5
  flush_timeout: 30
  request_timeout: 60
logging:
  level: "debug"
  format: "json"
  output: "stdout"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.Type != "groq" {
		t.Errorf("Expected engine type groq, got %s", cfg.Engine.Type)
	}
	if cfg.Pipeline.Language != "en" {
		t.Errorf("Expected language en, got %s", cfg.Pipeline.Language)
	}
	if cfg.Engine.GetMinBufferDuration() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s min buffer duration, got %v", cfg.Engine.GetMinBufferDuration())
	}
	if cfg.Engine.GetFlushTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30s flush timeout, got %v", cfg.Engine.GetFlushTimeoutDuration())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	// Only the engine credential is given; everything else defaults
	path := writeConfig(t, `
engine:
  api_key: "test-key"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.Type != "openai" {
		t.Errorf("Expected default engine type openai, got %s", cfg.Engine.Type)
	}
	if cfg.Audio.TargetSampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.Audio.TargetSampleRate)
	}
	if cfg.Pipeline.Language != "auto" {
		t.Errorf("Expected default language auto, got %s", cfg.Pipeline.Language)
	}
	if cfg.Engine.FlushTimeout != 30 {
		t.Errorf("Expected default flush timeout 30, got %d", cfg.Engine.FlushTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestValidateEngineConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid openai", func(c *Config) { c.Engine.APIKey = "key" }, false},
		{"missing api key", func(c *Config) { c.Engine.APIKey = "" }, true},
		{"unknown type", func(c *Config) { c.Engine.Type = "acme"; c.Engine.APIKey = "key" }, true},
		{"local without model", func(c *Config) { c.Engine.Type = "local"; c.Engine.Command = "whisper-cli" }, true},
		{"local without command", func(c *Config) { c.Engine.Type = "local"; c.Engine.ModelPath = "/m.bin" }, true},
		{"local complete", func(c *Config) {
			c.Engine.Type = "local"
			c.Engine.ModelPath = "/m.bin"
			c.Engine.Command = "whisper-cli"
		}, false},
		{"zero min duration", func(c *Config) { c.Engine.APIKey = "key"; c.Engine.MinBufferDuration = 0 }, true},
		{"zero flush timeout", func(c *Config) { c.Engine.APIKey = "key"; c.Engine.FlushTimeout = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateTextProcConfig(t *testing.T) {
	cfg := Default()
	cfg.Engine.APIKey = "key"

	// Disabled textproc skips validation entirely
	cfg.TextProc = TextProcConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Unexpected error for disabled textproc: %v", err)
	}

	cfg.TextProc = TextProcConfig{Enabled: true, Mode: "reformulate"}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for enabled textproc without api key")
	}

	cfg.TextProc = TextProcConfig{Enabled: true, APIKey: "key", Mode: "translate"}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for translate mode without target language")
	}

	cfg.TextProc = TextProcConfig{Enabled: true, APIKey: "key", Mode: "translate", TargetLanguage: "en"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Unexpected error for valid translate config: %v", err)
	}
}

func TestValidateAudioConfig(t *testing.T) {
	cfg := Default()
	cfg.Engine.APIKey = "key"

	cfg.Audio.TargetSampleRate = 4000
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for out-of-range sample rate")
	}

	cfg.Audio.TargetSampleRate = 16000
	cfg.Audio.FrameBuffer = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero frame buffer")
	}
}
