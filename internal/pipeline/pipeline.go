package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skypro1111/mic-stt-service/internal/audio"
	"github.com/skypro1111/mic-stt-service/internal/metrics"
	"github.com/skypro1111/mic-stt-service/internal/stt"
)

// State is the pipeline lifecycle state
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its name
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is the pipeline state plus an error message when in StateError
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Pipeline lifecycle errors
var (
	// ErrAlreadyRunning indicates start was called on an active pipeline
	ErrAlreadyRunning = errors.New("pipeline already running")
)

// defaultFrameBuffer is the handoff channel capacity between the
// capture callback and the processing loop. The callback never blocks
// on a full channel; frames are dropped instead.
const defaultFrameBuffer = 64

// Config contains pipeline configuration
type Config struct {
	// Language applied to the engine on start
	Language stt.Language
	// Capture configures the audio input
	Capture audio.CaptureConfig
	// FrameBuffer is the handoff channel capacity; defaults to 64
	FrameBuffer int
	// StartCapture overrides how the capture session is opened;
	// tests substitute a fake to avoid real audio hardware
	StartCapture CaptureStarter
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Language:    stt.LanguageAuto,
		Capture:     audio.DefaultCaptureConfig(),
		FrameBuffer: defaultFrameBuffer,
	}
}

// CaptureHandle is the part of the capture session the pipeline needs
type CaptureHandle interface {
	Stop()
}

// CaptureStarter opens a capture session delivering frames to onFrame
type CaptureStarter func(cfg audio.CaptureConfig, logger *slog.Logger, onFrame func([]float32)) (CaptureHandle, error)

// Pipeline wires audio capture to a transcription engine. It owns the
// engine and at most one capture session, drives the lifecycle state
// machine and republishes engine events to subscribers.
//
// The processing loop is the only goroutine that pushes audio to the
// engine, so engine mutation is serialized without extra locking.
type Pipeline struct {
	engine      stt.Engine
	logger      *slog.Logger
	metrics     *metrics.Metrics
	broadcaster *Broadcaster

	startCapture CaptureStarter

	mu      sync.RWMutex
	config  Config
	status  Status
	capture CaptureHandle
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a pipeline around the given engine
func New(engine stt.Engine, config Config, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = defaultFrameBuffer
	}
	if config.Capture.TargetSampleRate <= 0 {
		config.Capture = audio.DefaultCaptureConfig()
	}

	startCapture := config.StartCapture
	if startCapture == nil {
		startCapture = func(cfg audio.CaptureConfig, logger *slog.Logger, onFrame func([]float32)) (CaptureHandle, error) {
			return audio.StartCapture(cfg, logger, onFrame)
		}
	}

	return &Pipeline{
		engine:       engine,
		logger:       logger,
		metrics:      m,
		broadcaster:  NewBroadcaster(logger, m),
		startCapture: startCapture,
		config:       config,
		status:       Status{State: StateStopped},
	}
}

// Start begins a capture session. It fails with ErrAlreadyRunning if a
// session is active and surfaces capture errors to the caller without
// retrying; a capture failure leaves the pipeline in StateError until
// the next successful Start.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	switch p.status.State {
	case StateStarting, StateRunning, StateStopping:
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.setStatusLocked(Status{State: StateStarting})
	language := p.config.Language
	captureCfg := p.config.Capture
	frameBuffer := p.config.FrameBuffer
	p.mu.Unlock()

	p.engine.SetLanguage(language)

	frames := make(chan []float32, frameBuffer)
	capture, err := p.startCapture(captureCfg, p.logger, func(frame []float32) {
		p.metrics.RecordFrameCaptured()
		select {
		case frames <- frame:
		default:
			p.metrics.RecordFrameDropped()
		}
	})
	if err != nil {
		p.mu.Lock()
		p.setStatusLocked(Status{State: StateError, Message: err.Error()})
		p.mu.Unlock()
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	p.mu.Lock()
	p.capture = capture
	p.stopCh = stopCh
	p.doneCh = doneCh
	p.setStatusLocked(Status{State: StateRunning})
	p.mu.Unlock()

	go p.processLoop(frames, stopCh, doneCh)

	p.metrics.RecordPipelineStart()
	p.metrics.RecordCaptureStart()
	p.logger.Info("Pipeline started",
		slog.String("engine", p.engine.Name()),
		slog.String("language", language.String()),
	)
	return nil
}

// processLoop is the single consumer of captured frames. Each frame is
// pushed to the engine and any ready events are republished. The loop
// exits on the stop signal.
func (p *Pipeline) processLoop(frames <-chan []float32, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case frame := <-frames:
			p.engine.PushAudio(frame)
			p.drainEvents()
		case <-stopCh:
			return
		}
	}
}

// drainEvents republishes all ready engine events in FIFO order
func (p *Pipeline) drainEvents() {
	for {
		ev, ok := p.engine.Poll()
		if !ok {
			return
		}
		p.broadcaster.Publish(ev)
	}
}

// Stop ends the capture session, flushes the engine (blocking up to
// the engine's flush timeout) and republishes any resulting events.
// A no-op when the pipeline is not running.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.status.State != StateRunning {
		p.mu.Unlock()
		return
	}
	p.setStatusLocked(Status{State: StateStopping})
	capture := p.capture
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.capture = nil
	p.stopCh = nil
	p.doneCh = nil
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
	capture.Stop()

	p.engine.Flush()
	p.drainEvents()

	p.mu.Lock()
	p.setStatusLocked(Status{State: StateStopped})
	p.mu.Unlock()

	p.metrics.RecordPipelineStop()
	p.logger.Info("Pipeline stopped")
}

// SetLanguage changes the transcription language. Takes effect on the
// next dispatched inference request.
func (p *Pipeline) SetLanguage(lang stt.Language) {
	p.mu.Lock()
	p.config.Language = lang
	p.mu.Unlock()

	p.engine.SetLanguage(lang)
	p.logger.Info("Pipeline language changed", slog.String("language", lang.String()))
}

// Status returns the current lifecycle status
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Config returns a copy of the pipeline configuration
func (p *Pipeline) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Engine returns the engine owned by this pipeline
func (p *Pipeline) Engine() stt.Engine {
	return p.engine
}

// Subscribe returns a new independent event subscription that only
// sees events published after this call.
func (p *Pipeline) Subscribe() *Subscription {
	return p.broadcaster.Subscribe()
}

// Close stops the pipeline and shuts down event delivery
func (p *Pipeline) Close() {
	p.Stop()
	p.broadcaster.Close()
}

// setStatusLocked updates the status; callers hold p.mu
func (p *Pipeline) setStatusLocked(status Status) {
	p.status = status
	p.metrics.SetPipelineState(int(status.State))
}
