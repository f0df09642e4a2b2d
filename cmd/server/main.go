package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/mic-stt-service/internal/audio"
	"github.com/skypro1111/mic-stt-service/internal/config"
	"github.com/skypro1111/mic-stt-service/internal/metrics"
	"github.com/skypro1111/mic-stt-service/internal/output"
	"github.com/skypro1111/mic-stt-service/internal/pipeline"
	"github.com/skypro1111/mic-stt-service/internal/server"
	"github.com/skypro1111/mic-stt-service/internal/stt"
	"github.com/skypro1111/mic-stt-service/internal/textproc"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "mic-stt-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List available input devices and exit")
	flag.Parse()

	if *listDevices {
		for _, name := range audio.ListDevices() {
			fmt.Println(name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("engine", cfg.Engine.Type),
		slog.String("language", cfg.Pipeline.Language),
		slog.Int("target_sample_rate", cfg.Audio.TargetSampleRate),
		slog.Float64("min_buffer_duration", cfg.Engine.MinBufferDuration),
		slog.Bool("textproc_enabled", cfg.TextProc.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Create the transcription engine
	engine, err := createEngine(cfg.Engine, cfg.Audio.TargetSampleRate, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create transcription engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription engine initialized", slog.String("engine", engine.Name()))

	// Create the pipeline
	pipelineConfig := pipeline.Config{
		Language: stt.ParseLanguage(cfg.Pipeline.Language),
		Capture: audio.CaptureConfig{
			TargetSampleRate: cfg.Audio.TargetSampleRate,
		},
		FrameBuffer: cfg.Audio.FrameBuffer,
	}
	p := pipeline.New(engine, pipelineConfig, logger, appMetrics)
	logger.Info("Pipeline initialized",
		slog.String("language", pipelineConfig.Language.String()),
	)

	// Initialize text post-processing (if enabled)
	var processor *textproc.Processor
	if cfg.TextProc.Enabled {
		processor, err = textproc.New(textproc.Config{
			APIKey:         cfg.TextProc.APIKey,
			BaseURL:        cfg.TextProc.BaseURL,
			Model:          cfg.TextProc.Model,
			Mode:           textproc.Mode(cfg.TextProc.Mode),
			TargetLanguage: cfg.TextProc.TargetLanguage,
		}, logger)
		if err != nil {
			logger.Error("Failed to create text processor", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Text processor initialized", slog.String("mode", cfg.TextProc.Mode))
	}

	// Initialize transcript delivery (if any channel is enabled)
	var deliverer *output.Deliverer
	if cfg.Output.Clipboard || cfg.Output.Paste || cfg.Output.Notify {
		deliverer = output.New(output.Config{
			Clipboard: cfg.Output.Clipboard,
			Paste:     cfg.Output.Paste,
			Notify:    cfg.Output.Notify,
		}, logger)
		logger.Info("Transcript delivery initialized",
			slog.Bool("clipboard", cfg.Output.Clipboard),
			slog.Bool("paste", cfg.Output.Paste),
			slog.Bool("notify", cfg.Output.Notify),
		)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, p, processor, deliverer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)

		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the pipeline (flushes any buffered audio) and event delivery
	p.Close()

	logger.Info("Service stopped")
}

// createEngine builds the transcription engine selected by configuration
func createEngine(cfg config.EngineConfig, sampleRate int, logger *slog.Logger, m *metrics.Metrics) (stt.Engine, error) {
	switch cfg.Type {
	case "openai", "voxtral", "groq":
		var provider stt.Provider
		switch cfg.Type {
		case "openai":
			provider = stt.OpenAIProvider()
		case "voxtral":
			provider = stt.VoxtralProvider()
		case "groq":
			provider = stt.GroqProvider()
		}
		if cfg.Endpoint != "" {
			provider.Endpoint = cfg.Endpoint
		}
		if cfg.Model != "" {
			provider.Model = cfg.Model
		}

		return stt.NewNetworkEngine(provider, stt.NetworkConfig{
			APIKey:            cfg.APIKey,
			SampleRate:        sampleRate,
			MinBufferDuration: cfg.GetMinBufferDuration(),
			FlushTimeout:      cfg.GetFlushTimeoutDuration(),
			RequestTimeout:    cfg.GetRequestTimeoutDuration(),
		}, logger, m)

	case "local":
		return stt.NewLocalEngine(stt.LocalConfig{
			ModelPath:         cfg.ModelPath,
			Command:           cfg.Command,
			SampleRate:        sampleRate,
			MinBufferDuration: cfg.GetMinBufferDuration(),
			FlushTimeout:      cfg.GetFlushTimeoutDuration(),
		}, logger, m)

	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Type)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	case "stdout", "":
		out = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			out = os.Stdout
		} else {
			out = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
