package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/mic-stt-service/internal/audio"
	"github.com/skypro1111/mic-stt-service/internal/config"
	"github.com/skypro1111/mic-stt-service/internal/metrics"
	"github.com/skypro1111/mic-stt-service/internal/output"
	"github.com/skypro1111/mic-stt-service/internal/pipeline"
	"github.com/skypro1111/mic-stt-service/internal/stt"
	"github.com/skypro1111/mic-stt-service/internal/textproc"
)

// HTTPServer provides the HTTP API for controlling the dictation
// pipeline and observing its events.
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	pipeline  *pipeline.Pipeline
	processor *textproc.Processor // nil when textproc is disabled
	deliverer *output.Deliverer   // nil when no output channel is enabled
	metrics   *metrics.Metrics

	// listDevices is swapped out in tests to avoid real audio hardware
	listDevices func() []string

	startTime time.Time

	mu      sync.Mutex
	session *session
}

// session collects final transcripts for one start/stop cycle
type session struct {
	sub  *pipeline.Subscription
	done chan struct{}

	mu     sync.Mutex
	finals []string
}

// collect appends final events until the subscription closes
func (s *session) collect() {
	defer close(s.done)
	for ev := range s.sub.Events() {
		if ev.Kind != stt.EventFinal {
			continue
		}
		s.mu.Lock()
		s.finals = append(s.finals, ev.Text)
		s.mu.Unlock()
	}
}

// transcript joins the collected finals with a single separating space
func (s *session) transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.finals, " ")
}

// NewHTTPServer creates the HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	p *pipeline.Pipeline, processor *textproc.Processor, deliverer *output.Deliverer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		pipeline:    p,
		processor:   processor,
		deliverer:   deliverer,
		metrics:     m,
		listDevices: audio.ListDevices,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/devices", h.withMetrics("/devices", h.handleDevices))

	// Pipeline control
	mux.HandleFunc("/pipeline/start", h.withMetrics("/pipeline/start", h.handlePipelineStart))
	mux.HandleFunc("/pipeline/stop", h.withMetrics("/pipeline/stop", h.handlePipelineStop))
	mux.HandleFunc("/pipeline/language", h.withMetrics("/pipeline/language", h.handlePipelineLanguage))

	// Live event stream (metrics wrapper skipped: long-lived connection)
	mux.HandleFunc("/events", h.handleEvents)

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handlePipelineStart implements POST /pipeline/start
func (h *HTTPServer) handlePipelineStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Subscribe before starting so no early event is missed
	sub := h.pipeline.Subscribe()
	if err := h.pipeline.Start(); err != nil {
		sub.Cancel()
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s := &session{sub: sub, done: make(chan struct{})}
	go s.collect()
	h.session = s

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   h.pipeline.Status(),
		"engine":   h.pipeline.Engine().Name(),
		"language": h.pipeline.Engine().Language().String(),
	})
}

// handlePipelineStop implements POST /pipeline/stop. The response
// carries the session transcript: all final results joined with a
// single space, post-processed and delivered when configured.
func (h *HTTPServer) handlePipelineStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Stop blocks through the engine flush so the session collector
	// sees every final event before we cancel the subscription.
	h.pipeline.Stop()

	transcript := ""
	if s := h.session; s != nil {
		s.sub.Cancel()
		<-s.done
		transcript = s.transcript()
		h.session = nil
	}

	if transcript != "" && h.processor != nil {
		transcript = h.processor.Process(r.Context(), transcript)
	}
	if transcript != "" && h.deliverer != nil {
		h.deliverer.Deliver(transcript)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     h.pipeline.Status(),
		"transcript": transcript,
	})
}

// handlePipelineLanguage implements POST /pipeline/language
func (h *HTTPServer) handlePipelineLanguage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lang := stt.ParseLanguage(req.Language)
	h.pipeline.SetLanguage(lang)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"language": lang.String(),
	})
}

// handleEvents implements GET /events as a server-sent event stream of
// transcription events published after the client connected.
func (h *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := h.pipeline.Subscribe()
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.pipeline.Status()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "mic-stt-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"pipeline": map[string]interface{}{
				"state":   status.State.String(),
				"message": status.Message,
			},
			"engine": map[string]interface{}{
				"name":  h.pipeline.Engine().Name(),
				"ready": h.pipeline.Engine().IsReady(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.pipeline.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":    status.State.String(),
		"message":  status.Message,
		"engine":   h.pipeline.Engine().Name(),
		"language": h.pipeline.Engine().Language().String(),
	})
}

// handleDevices implements the /devices endpoint
func (h *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices := h.listDevices()
	if devices == nil {
		devices = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (credentials omitted)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
			"enabled": h.config.HTTP.Enabled,
		},
		"audio": map[string]interface{}{
			"target_sample_rate": h.config.Audio.TargetSampleRate,
			"frame_buffer":       h.config.Audio.FrameBuffer,
		},
		"pipeline": map[string]interface{}{
			"language": h.config.Pipeline.Language,
		},
		"engine": map[string]interface{}{
			"type":                h.config.Engine.Type,
			"min_buffer_duration": h.config.Engine.MinBufferDuration,
			"flush_timeout":       h.config.Engine.FlushTimeout,
			"request_timeout":     h.config.Engine.RequestTimeout,
		},
		"textproc": map[string]interface{}{
			"enabled": h.config.TextProc.Enabled,
			"mode":    h.config.TextProc.Mode,
		},
		"output": map[string]interface{}{
			"clipboard": h.config.Output.Clipboard,
			"paste":     h.config.Output.Paste,
			"notify":    h.config.Output.Notify,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Mic STT Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                   "API documentation",
			"GET /health":             "Service health check",
			"GET /status":             "Pipeline status",
			"GET /config":             "Get service configuration",
			"GET /devices":            "List available input devices",
			"GET /events":             "Transcription event stream (SSE)",
			"POST /pipeline/start":    "Start the dictation pipeline",
			"POST /pipeline/stop":     "Stop the pipeline, returns the transcript",
			"POST /pipeline/language": "Change the transcription language",
			"GET /metrics":            "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
