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

	"github.com/joho/godotenv"

	"github.com/Srinivas26k/zoom-poll-service/internal/capture"
	"github.com/Srinivas26k/zoom-poll-service/internal/config"
	"github.com/Srinivas26k/zoom-poll-service/internal/llm"
	"github.com/Srinivas26k/zoom-poll-service/internal/metrics"
	"github.com/Srinivas26k/zoom-poll-service/internal/notes"
	"github.com/Srinivas26k/zoom-poll-service/internal/polls"
	"github.com/Srinivas26k/zoom-poll-service/internal/recorder"
	"github.com/Srinivas26k/zoom-poll-service/internal/server"
	"github.com/Srinivas26k/zoom-poll-service/internal/transcription"
	"github.com/Srinivas26k/zoom-poll-service/internal/zoom"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "zoom-poll-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	autoStart := flag.Bool("start", false, "Start recording immediately")
	flag.Parse()

	// Secrets commonly live in a .env file next to the binary; missing is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("segment_duration", cfg.Audio.SegmentDuration),
		slog.String("output_dir", cfg.Recorder.OutputDir),
		slog.Float64("note_interval", cfg.Recorder.NoteInterval),
		slog.Float64("poll_interval", cfg.Recorder.PollInterval),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("llm_model", cfg.LLM.ActiveModel()),
		slog.Bool("zoom_enabled", cfg.Zoom.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Create audio capture source
	source, err := capture.NewPortAudioSource(capture.Config{
		DeviceIndex: cfg.Audio.DeviceIndex,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
	})
	if err != nil {
		logger.Error("Failed to initialize audio capture", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer source.Terminate()

	// Create transcription client
	transcriptionClient, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		OnRetry:       appMetrics.RecordTranscriptionRetry,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create the LLM provider
	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		logger.Error("Failed to create LLM provider", slog.String("error", err.Error()))
		os.Exit(1)
	}
	provider = llm.Instrumented(provider, appMetrics)
	logger.Info("LLM provider initialized", slog.String("provider", provider.Name()))

	pollGen, err := polls.NewGenerator(provider)
	if err != nil {
		logger.Error("Failed to create poll generator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	noteGen := notes.NewGenerator(provider)

	// Create Zoom client when poll posting is enabled
	var poster recorder.PollPoster
	if cfg.Zoom.Enabled {
		zoomClient, err := zoom.NewClient(zoom.Config{
			BaseURL:   cfg.Zoom.BaseURL,
			Token:     cfg.Zoom.Token,
			MeetingID: cfg.Zoom.MeetingID,
			Timeout:   cfg.Zoom.GetTimeoutDuration(),
		})
		if err != nil {
			logger.Error("Failed to create Zoom client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		poster = zoomClient
		logger.Info("Zoom poll posting enabled",
			slog.String("meeting_id", cfg.Zoom.MeetingID),
			slog.Bool("auto_launch", cfg.Zoom.AutoLaunch),
		)
	} else {
		logger.Info("Zoom poll posting disabled, polls are kept locally")
	}

	// Create the meeting recorder
	rec, err := recorder.New(recorder.Config{
		OutputDir:          cfg.Recorder.OutputDir,
		QueueSize:          cfg.Recorder.QueueSize,
		FramesPerRead:      cfg.Audio.FramesPerRead,
		SampleRate:         cfg.Audio.SampleRate,
		SegmentDuration:    cfg.Audio.GetSegmentDuration(),
		SilenceThreshold:   cfg.Audio.SilenceThreshold,
		KeepAudio:          cfg.Audio.KeepAudio,
		NoteInterval:       cfg.Recorder.GetNoteInterval(),
		PollInterval:       cfg.Recorder.GetPollInterval(),
		MinTranscriptChars: cfg.Recorder.MinTranscriptChars,
		AutoLaunch:         cfg.Zoom.AutoLaunch,
		ShutdownTimeout:    cfg.Recorder.GetShutdownTimeout(),
	}, recorder.Deps{
		Source:      source,
		Transcriber: transcriptionClient,
		PollGen:     pollGen,
		NoteGen:     noteGen,
		Zoom:        poster,
		Metrics:     appMetrics,
	})
	if err != nil {
		logger.Error("Failed to create recorder", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Meeting recorder initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, rec, transcriptionClient, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server started",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Optionally start recording straight away
	if *autoStart {
		if err := rec.Start(); err != nil {
			logger.Error("Failed to start recording", slog.String("error", err.Error()))
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

	// Stop the recording session, draining queued segments and writing the
	// transcript and summary
	if result, err := rec.Stop(); err == nil {
		logger.Info("Recording session finalized",
			slog.String("meeting_id", result.MeetingID),
			slog.String("summary_file", result.SummaryFile),
			slog.Duration("duration", result.Duration),
			slog.Int("segments", result.SegmentsRecorded),
		)
	} else if err != recorder.ErrNotRecording {
		logger.Error("Error stopping recorder", slog.String("error", err.Error()))
	}

	// Log final transcription statistics
	stats := transcriptionClient.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("successful", stats.SuccessRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)

	logger.Info("Service stopped")
}

// buildProvider creates the configured language model backend
func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiProvider(llm.GeminiConfig{
			APIKeys: cfg.Gemini.APIKeys,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.GetTimeoutDuration(),
		})
	default:
		return llm.NewOllamaProvider(llm.OllamaConfig{
			Host:        cfg.Ollama.Host,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.GetTimeoutDuration(),
		})
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
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
