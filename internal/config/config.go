package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Audio    AudioConfig    `yaml:"audio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Engine   EngineConfig   `yaml:"engine"`
	TextProc TextProcConfig `yaml:"textproc"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio capture parameters
type AudioConfig struct {
	TargetSampleRate int `yaml:"target_sample_rate"` // Hz
	FrameBuffer      int `yaml:"frame_buffer"`       // frames
}

// PipelineConfig contains pipeline orchestration parameters
type PipelineConfig struct {
	Language string `yaml:"language"` // ISO 639-1 code or "auto"
}

// EngineConfig contains transcription engine configuration
type EngineConfig struct {
	Type              string  `yaml:"type"` // openai, voxtral, groq or local
	APIKey            string  `yaml:"api_key"`
	Endpoint          string  `yaml:"endpoint"` // optional provider endpoint override
	Model             string  `yaml:"model"`    // optional provider model override
	MinBufferDuration float64 `yaml:"min_buffer_duration"` // seconds
	FlushTimeout      int     `yaml:"flush_timeout"`       // seconds
	RequestTimeout    int     `yaml:"request_timeout"`     // seconds
	ModelPath         string  `yaml:"model_path"`          // local engine only
	Command           string  `yaml:"command"`             // local engine only
}

// TextProcConfig contains text post-processing configuration
type TextProcConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"` // optional API base override
	Model          string `yaml:"model"`
	Mode           string `yaml:"mode"`            // reformulate or translate
	TargetLanguage string `yaml:"target_language"` // translate mode only
}

// OutputConfig contains transcription delivery configuration
type OutputConfig struct {
	Clipboard bool `yaml:"clipboard"`
	Paste     bool `yaml:"paste"`
	Notify    bool `yaml:"notify"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is provided
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:    8090,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Audio: AudioConfig{
			TargetSampleRate: 16000,
			FrameBuffer:      64,
		},
		Pipeline: PipelineConfig{
			Language: "auto",
		},
		Engine: EngineConfig{
			Type:              "openai",
			MinBufferDuration: 1.0,
			FlushTimeout:      30,
			RequestTimeout:    60,
		},
		TextProc: TextProcConfig{
			Model: "gpt-4o-mini",
			Mode:  "reformulate",
		},
		Output: OutputConfig{
			Clipboard: true,
			Notify:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.TextProc.Validate(); err != nil {
		return fmt.Errorf("textproc config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.TargetSampleRate < 8000 || a.TargetSampleRate > 48000 {
		return fmt.Errorf("target_sample_rate must be between 8000 and 48000 Hz, got %d", a.TargetSampleRate)
	}

	if a.FrameBuffer < 1 {
		return fmt.Errorf("frame_buffer must be at least 1, got %d", a.FrameBuffer)
	}

	return nil
}

// Validate validates engine configuration
func (e *EngineConfig) Validate() error {
	switch e.Type {
	case "openai", "voxtral", "groq":
		if e.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for engine type '%s'", e.Type)
		}
	case "local":
		if e.ModelPath == "" {
			return fmt.Errorf("model_path cannot be empty for engine type 'local'")
		}
		if e.Command == "" {
			return fmt.Errorf("command cannot be empty for engine type 'local'")
		}
	default:
		return fmt.Errorf("type must be one of [openai, voxtral, groq, local], got '%s'", e.Type)
	}

	if e.MinBufferDuration <= 0 {
		return fmt.Errorf("min_buffer_duration must be positive, got %f", e.MinBufferDuration)
	}

	if e.FlushTimeout < 1 {
		return fmt.Errorf("flush_timeout must be at least 1 second, got %d", e.FlushTimeout)
	}

	if e.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", e.RequestTimeout)
	}

	return nil
}

// Validate validates text post-processing configuration
func (t *TextProcConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty when textproc is enabled")
	}

	validModes := map[string]bool{"reformulate": true, "translate": true}
	if !validModes[t.Mode] {
		return fmt.Errorf("mode must be 'reformulate' or 'translate', got '%s'", t.Mode)
	}

	if t.Mode == "translate" && t.TargetLanguage == "" {
		return fmt.Errorf("target_language cannot be empty in translate mode")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetMinBufferDuration returns the minimum buffer duration as a time.Duration
func (e *EngineConfig) GetMinBufferDuration() time.Duration {
	return time.Duration(e.MinBufferDuration * float64(time.Second))
}

// GetFlushTimeoutDuration returns the flush timeout as a time.Duration
func (e *EngineConfig) GetFlushTimeoutDuration() time.Duration {
	return time.Duration(e.FlushTimeout) * time.Second
}

// GetRequestTimeoutDuration returns the request timeout as a time.Duration
func (e *EngineConfig) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(e.RequestTimeout) * time.Second
}
