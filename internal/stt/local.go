package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/skypro1111/mic-stt-service/internal/audio"
	"github.com/skypro1111/mic-stt-service/internal/metrics"
)

// TranscribeFunc converts a WAV payload into text. Implementations may
// run a local model, shell out to an external binary, or anything else
// satisfying "bytes in, text out, fallible".
type TranscribeFunc func(ctx context.Context, wavData []byte, lang Language) (string, error)

// LocalConfig contains configuration for the local inference engine
type LocalConfig struct {
	// ModelPath is the local model file passed to the inference command
	ModelPath string
	// Command is the inference command line; the WAV path, model path
	// and language are appended as --audio/--model/--language flags
	Command string
	// SampleRate of pushed audio in Hz
	SampleRate int
	// MinBufferDuration is the auto-dispatch threshold: once the buffer
	// holds at least this much audio, PushAudio triggers inference
	MinBufferDuration time.Duration
	// FlushTimeout bounds how long Flush blocks on an in-flight inference
	FlushTimeout time.Duration
	// Transcribe overrides the exec-based transcriber when set;
	// ModelPath and Command are then ignored
	Transcribe TranscribeFunc
}

// DefaultLocalConfig returns the default local engine configuration.
// The auto-dispatch threshold is shorter than the network engines'
// noise floor so interim results appear while a session is running.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		SampleRate:        16000,
		MinBufferDuration: 500 * time.Millisecond,
		FlushTimeout:      30 * time.Second,
	}
}

// LocalEngine runs inference on the local machine. Unlike the network
// engines it dispatches opportunistically: once the accumulation buffer
// crosses the minimum duration, PushAudio hands it to the transcriber
// on a detached goroutine. At most one inference runs at a time; audio
// pushed meanwhile keeps accumulating for the next dispatch.
type LocalEngine struct {
	config     LocalConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	transcribe TranscribeFunc

	mu       sync.Mutex
	language Language
	buffer   []float32

	pending atomic.Bool
	queue   eventQueue

	doneMu sync.Mutex
	done   chan struct{}
}

// NewLocalEngine creates a local inference engine. Without an explicit
// Transcribe function it shells out to config.Command, which must be a
// non-empty command line, with config.ModelPath pointing at an existing
// model file.
func NewLocalEngine(config LocalConfig, logger *slog.Logger, m *metrics.Metrics) (*LocalEngine, error) {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.MinBufferDuration <= 0 {
		config.MinBufferDuration = 500 * time.Millisecond
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = 30 * time.Second
	}

	transcribe := config.Transcribe
	if transcribe == nil {
		if config.ModelPath == "" {
			return nil, fmt.Errorf("%w: model path cannot be empty", ErrModelNotFound)
		}
		if _, err := os.Stat(config.ModelPath); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, config.ModelPath)
		}
		var err error
		transcribe, err = newExecTranscriber(config.Command, config.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
	}

	return &LocalEngine{
		config:     config,
		logger:     logger,
		metrics:    m,
		transcribe: transcribe,
	}, nil
}

// newExecTranscriber builds a TranscribeFunc that writes the audio to a
// temporary WAV file and runs an external command over it. The command
// must print a JSON object with a "text" field on stdout.
func newExecTranscriber(command, modelPath string) (TranscribeFunc, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse inference command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("inference command is empty")
	}

	return func(ctx context.Context, wavData []byte, lang Language) (string, error) {
		file, err := os.CreateTemp("", "micstt_*.wav")
		if err != nil {
			return "", fmt.Errorf("temp file: %w", err)
		}
		defer os.Remove(file.Name())
		defer file.Close()

		if _, err := file.Write(wavData); err != nil {
			return "", fmt.Errorf("write temp wav: %w", err)
		}

		cmdArgs := append([]string{}, args[1:]...)
		cmdArgs = append(cmdArgs, "--audio", file.Name(), "--model", modelPath)
		if !lang.IsAuto() {
			cmdArgs = append(cmdArgs, "--language", lang.Code())
		}

		cmd := exec.CommandContext(ctx, args[0], cmdArgs...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("inference command failed: %w: %s", err, stderr.String())
		}

		var result struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			return "", fmt.Errorf("decode inference output: %w", err)
		}
		return result.Text, nil
	}, nil
}

// Name returns the engine identifier
func (e *LocalEngine) Name() string {
	return "local"
}

// IsReady always reports true; the model reference is validated at construction
func (e *LocalEngine) IsReady() bool {
	return true
}

// SetLanguage sets the language for subsequently dispatched requests
func (e *LocalEngine) SetLanguage(lang Language) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.language = lang
}

// Language returns the active language
func (e *LocalEngine) Language() Language {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

// PushAudio appends samples to the accumulation buffer and dispatches
// opportunistically once the buffer crosses the minimum duration.
func (e *LocalEngine) PushAudio(samples []float32) {
	if len(samples) == 0 {
		return
	}

	e.mu.Lock()
	e.buffer = append(e.buffer, samples...)
	bufLen := len(e.buffer)
	e.mu.Unlock()

	minSamples := int(e.config.MinBufferDuration.Seconds() * float64(e.config.SampleRate))
	if bufLen >= minSamples && !e.pending.Load() {
		e.dispatch(false)
	}
}

// Poll pops one ready event in FIFO order
func (e *LocalEngine) Poll() (Event, bool) {
	return e.queue.pop()
}

// Pending reports whether an inference call is in flight
func (e *LocalEngine) Pending() bool {
	return e.pending.Load()
}

// Flush dispatches any remaining buffered audio and blocks until the
// last inference settles or the flush timeout elapses.
func (e *LocalEngine) Flush() {
	// Let any in-flight opportunistic inference settle first so events
	// keep buffer order.
	e.doneMu.Lock()
	prev := e.done
	e.doneMu.Unlock()
	if prev != nil {
		select {
		case <-prev:
		case <-time.After(e.config.FlushTimeout):
			e.metrics.RecordFlushTimeout()
			e.logger.Warn("Flush timed out waiting for local inference",
				slog.Duration("timeout", e.config.FlushTimeout),
			)
			return
		}
	}

	done := e.dispatch(true)
	if done == nil {
		return
	}

	select {
	case <-done:
	case <-time.After(e.config.FlushTimeout):
		e.metrics.RecordFlushTimeout()
		e.logger.Warn("Flush timed out waiting for local inference",
			slog.Duration("timeout", e.config.FlushTimeout),
		)
	}
}

// Reset clears the buffer and any ready events; language is kept
func (e *LocalEngine) Reset() {
	e.mu.Lock()
	e.buffer = nil
	e.mu.Unlock()
	e.queue.clear()
}

// dispatch moves the accumulation buffer out and runs inference on a
// detached goroutine. When final is false, dispatch is skipped while a
// previous inference is still running. Returns a channel closed when
// the inference settles, or nil when nothing was dispatched.
func (e *LocalEngine) dispatch(final bool) <-chan struct{} {
	if !final && !e.pending.CompareAndSwap(false, true) {
		return nil
	}

	e.mu.Lock()
	buf := e.buffer
	e.buffer = nil
	lang := e.language
	e.mu.Unlock()

	minSamples := int(e.config.MinBufferDuration.Seconds() * float64(e.config.SampleRate))
	if len(buf) < minSamples {
		if !final {
			e.pending.Store(false)
		}
		if len(buf) > 0 {
			e.metrics.RecordDispatchDiscarded()
			e.logger.Debug("Discarding audio buffer below minimum duration",
				slog.Int("samples", len(buf)),
				slog.Int("min_samples", minSamples),
			)
		}
		return nil
	}

	if final {
		e.pending.Store(true)
	}

	audioSeconds := float64(len(buf)) / float64(e.config.SampleRate)
	e.metrics.RecordDispatch(audioSeconds)

	done := make(chan struct{})
	e.doneMu.Lock()
	e.done = done
	e.doneMu.Unlock()

	go func() {
		defer close(done)
		defer e.pending.Store(false)
		e.runInference(buf, lang)
	}()
	return done
}

// runInference encodes and transcribes one buffer. Failures are logged
// and swallowed; no event is produced.
func (e *LocalEngine) runInference(samples []float32, lang Language) {
	wavData, err := audio.EncodeWAVFloat32(samples, e.config.SampleRate)
	if err != nil {
		e.logger.Error("Failed to encode audio for local inference",
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.FlushTimeout)
	defer cancel()

	startTime := time.Now()
	e.metrics.RecordTranscriptionRequest()

	text, err := e.transcribe(ctx, wavData, lang)
	elapsed := time.Since(startTime)

	if err != nil {
		e.metrics.RecordTranscriptionFailure(elapsed.Seconds())
		e.logger.Warn("Local inference failed",
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	e.metrics.RecordTranscriptionSuccess(elapsed.Seconds())

	if text == "" {
		return
	}

	e.queue.push(Event{Kind: EventFinal, Text: text})
	e.logger.Info("Local inference completed",
		slog.Duration("elapsed", elapsed),
		slog.Int("text_length", len(text)),
	)
}
