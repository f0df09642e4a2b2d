package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/mic-stt-service/internal/audio"
	"github.com/skypro1111/mic-stt-service/internal/metrics"
)

// NetworkConfig contains configuration shared by all network-backed engines
type NetworkConfig struct {
	// APIKey is the bearer credential for the provider
	APIKey string
	// SampleRate of pushed audio in Hz
	SampleRate int
	// MinBufferDuration is the noise floor: buffers shorter than this
	// are discarded on dispatch instead of being sent for inference
	MinBufferDuration time.Duration
	// FlushTimeout bounds how long Flush blocks on an in-flight request
	FlushTimeout time.Duration
	// RequestTimeout bounds a single HTTP transcription request
	RequestTimeout time.Duration
}

// DefaultNetworkConfig returns the default network engine configuration
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		SampleRate:        16000,
		MinBufferDuration: 1 * time.Second,
		FlushTimeout:      30 * time.Second,
		RequestTimeout:    60 * time.Second,
	}
}

// transcriptionResponse is the provider reply; all supported providers
// return the transcribed text at the top-level "text" field
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NetworkEngine is a buffered transcription engine backed by an HTTP
// provider. PushAudio only accumulates; inference happens exclusively
// on Flush, which moves the whole buffer out and dispatches it as one
// WAV upload on a detached goroutine. Results come back through the
// event queue; failures are logged and produce no event.
type NetworkEngine struct {
	provider Provider
	config   NetworkConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics

	httpClient *http.Client

	mu       sync.Mutex
	language Language
	buffer   []float32

	pending atomic.Bool
	queue   eventQueue
}

// NewNetworkEngine creates a network engine for the given provider
func NewNetworkEngine(provider Provider, config NetworkConfig, logger *slog.Logger, m *metrics.Metrics) (*NetworkEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key cannot be empty", ErrModelLoad, provider.Name)
	}
	if provider.Endpoint == "" || provider.Model == "" {
		return nil, fmt.Errorf("%w: provider endpoint and model must be set", ErrModelLoad)
	}

	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.MinBufferDuration <= 0 {
		config.MinBufferDuration = 1 * time.Second
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = 30 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}

	return &NetworkEngine{
		provider: provider,
		config:   config,
		logger:   logger,
		metrics:  m,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}, nil
}

// Name returns the provider name
func (e *NetworkEngine) Name() string {
	return e.provider.Name
}

// IsReady always reports true; readiness is established at construction
func (e *NetworkEngine) IsReady() bool {
	return true
}

// SetLanguage sets the language for subsequently dispatched requests.
// In-flight requests keep the language they were dispatched with.
func (e *NetworkEngine) SetLanguage(lang Language) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.language = lang
}

// Language returns the active language
func (e *NetworkEngine) Language() Language {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

// PushAudio appends samples to the accumulation buffer. Network engines
// never dispatch here; audio is only sent on Flush.
func (e *NetworkEngine) PushAudio(samples []float32) {
	if len(samples) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = append(e.buffer, samples...)
}

// Poll pops one ready event in FIFO order
func (e *NetworkEngine) Poll() (Event, bool) {
	return e.queue.pop()
}

// Pending reports whether an inference request is in flight
func (e *NetworkEngine) Pending() bool {
	return e.pending.Load()
}

// Flush dispatches the buffered audio and blocks until the request
// settles or the flush timeout elapses. On timeout the request is
// abandoned, not cancelled: if it eventually completes its result is
// still enqueued and observed by a later Poll.
func (e *NetworkEngine) Flush() {
	done := e.dispatch()
	if done == nil {
		return
	}

	select {
	case <-done:
	case <-time.After(e.config.FlushTimeout):
		e.metrics.RecordFlushTimeout()
		e.logger.Warn("Flush timed out waiting for transcription",
			slog.String("engine", e.provider.Name),
			slog.Duration("timeout", e.config.FlushTimeout),
		)
	}
}

// Reset clears the buffer and any ready events; language is kept
func (e *NetworkEngine) Reset() {
	e.mu.Lock()
	e.buffer = nil
	e.mu.Unlock()
	e.queue.clear()
}

// dispatch moves the accumulation buffer out and submits it for
// inference on a detached goroutine. Returns a channel closed when the
// request settles, or nil when nothing was dispatched.
func (e *NetworkEngine) dispatch() <-chan struct{} {
	e.mu.Lock()
	buf := e.buffer
	e.buffer = nil
	lang := e.language
	e.mu.Unlock()

	minSamples := int(e.config.MinBufferDuration.Seconds() * float64(e.config.SampleRate))
	if len(buf) < minSamples {
		if len(buf) > 0 {
			e.metrics.RecordDispatchDiscarded()
			e.logger.Debug("Discarding audio buffer below minimum duration",
				slog.String("engine", e.provider.Name),
				slog.Int("samples", len(buf)),
				slog.Int("min_samples", minSamples),
			)
		}
		return nil
	}

	audioSeconds := float64(len(buf)) / float64(e.config.SampleRate)
	e.metrics.RecordDispatch(audioSeconds)

	e.pending.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer e.pending.Store(false)
		e.transcribe(buf, lang)
	}()
	return done
}

// transcribe encodes and uploads one buffer. All failures are logged
// and swallowed: a missing transcription is preferable to surfacing
// garbage to listeners.
func (e *NetworkEngine) transcribe(samples []float32, lang Language) {
	requestID := uuid.New().String()

	wavData, err := audio.EncodeWAVFloat32(samples, e.config.SampleRate)
	if err != nil {
		e.logger.Error("Failed to encode audio for transcription",
			slog.String("engine", e.provider.Name),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return
	}

	startTime := time.Now()
	e.metrics.RecordTranscriptionRequest()

	text, err := e.doRequest(wavData, lang, requestID)
	elapsed := time.Since(startTime)

	if err != nil {
		e.metrics.RecordTranscriptionFailure(elapsed.Seconds())
		e.logger.Warn("Transcription request failed",
			slog.String("engine", e.provider.Name),
			slog.String("request_id", requestID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	e.metrics.RecordTranscriptionSuccess(elapsed.Seconds())

	if text == "" {
		e.logger.Debug("Transcription returned empty text",
			slog.String("engine", e.provider.Name),
			slog.String("request_id", requestID),
		)
		return
	}

	e.queue.push(Event{Kind: EventFinal, Text: text})
	e.logger.Info("Transcription completed",
		slog.String("engine", e.provider.Name),
		slog.String("request_id", requestID),
		slog.Duration("elapsed", elapsed),
		slog.Int("text_length", len(text)),
	)
}

// doRequest performs a single multipart upload to the provider
func (e *NetworkEngine) doRequest(wavData []byte, lang Language, requestID string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", requestID+".wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField("model", e.provider.Model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}
	if !lang.IsAuto() {
		if err := writer.WriteField("language", lang.Code()); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequest("POST", e.provider.Endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var transcription transcriptionResponse
	if err := json.Unmarshal(respBody, &transcription); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return transcription.Text, nil
}
