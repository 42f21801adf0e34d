package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Srinivas26k/zoom-poll-service/internal/config"
	"github.com/Srinivas26k/zoom-poll-service/internal/metrics"
	"github.com/Srinivas26k/zoom-poll-service/internal/notes"
	"github.com/Srinivas26k/zoom-poll-service/internal/polls"
	"github.com/Srinivas26k/zoom-poll-service/internal/recorder"
	"github.com/Srinivas26k/zoom-poll-service/internal/transcription"
)

// HTTPServer provides HTTP API endpoints for controlling and monitoring
// recording sessions
type HTTPServer struct {
	server        *http.Server
	logger        *slog.Logger
	config        *config.Config
	recorder      *recorder.Recorder
	transcription *transcription.Client
	metrics       *metrics.Metrics
	hub           *Hub

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, rec *recorder.Recorder, tc *transcription.Client, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:        logger,
		config:        appConfig,
		recorder:      rec,
		transcription: tc,
		metrics:       m,
		hub:           NewHub(logger, m),
		startTime:     time.Now(),
	}

	// Push recorder events to WebSocket subscribers
	rec.OnTranscript = func(seg recorder.TranscriptSegment) {
		h.hub.Broadcast(Event{Type: "transcript", Payload: seg})
	}
	rec.OnNote = func(n notes.Note) {
		h.hub.Broadcast(Event{Type: "note", Payload: n})
	}
	rec.OnPoll = func(p *polls.Poll) {
		h.hub.Broadcast(Event{Type: "poll", Payload: p})
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Recording control endpoints
	mux.HandleFunc("/record/start", h.withMetrics("/record/start", h.handleRecordStart))
	mux.HandleFunc("/record/stop", h.withMetrics("/record/stop", h.handleRecordStop))
	mux.HandleFunc("/record/pause", h.withMetrics("/record/pause", h.handleRecordPause))

	// Session data endpoints
	mux.HandleFunc("/status", h.withMetrics("/status", h.handleStatus))
	mux.HandleFunc("/record/transcript", h.withMetrics("/record/transcript", h.handleTranscript))
	mux.HandleFunc("/record/notes", h.withMetrics("/record/notes", h.handleNotes))
	mux.HandleFunc("/record/polls", h.withMetrics("/record/polls", h.handlePolls))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Live transcript stream
	mux.HandleFunc("/ws/transcript", h.hub.HandleWS)

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
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

	h.hub.Close()
	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	status := h.recorder.Status()
	transcriptionStats := h.transcription.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "zoom-poll-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"recorder": map[string]interface{}{
				"recording":         status.Recording,
				"paused":            status.Paused,
				"segments_recorded": status.SegmentsRecorded,
				"queue_depth":       status.QueueDepth,
			},
			"transcription": map[string]interface{}{
				"status":          "running",
				"total_requests":  transcriptionStats.TotalRequests,
				"success_rate":    transcriptionStats.SuccessRate,
				"active_requests": transcriptionStats.ActiveRequests,
			},
			"websocket": map[string]interface{}{
				"subscribers": h.hub.SubscriberCount(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleRecordStart implements the /record/start endpoint
func (h *HTTPServer) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.recorder.Start(); err != nil {
		if errors.Is(err, recorder.ErrAlreadyRecording) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.recorder.Status())
}

// handleRecordStop implements the /record/stop endpoint
func (h *HTTPServer) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.recorder.Stop()
	if err != nil {
		if errors.Is(err, recorder.ErrNotRecording) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRecordPause implements the /record/pause endpoint. Each POST
// toggles the pause state.
func (h *HTTPServer) handleRecordPause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	paused, err := h.recorder.TogglePause()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.recorder.Status())
}

// handleTranscript implements the /record/transcript endpoint
func (h *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	segments := h.recorder.Transcript()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_segments": len(segments),
		"timestamp":      time.Now().UTC(),
		"segments":       segments,
	})
}

// handleNotes implements the /record/notes endpoint
func (h *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	meetingNotes := h.recorder.Notes()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_notes": len(meetingNotes),
		"timestamp":   time.Now().UTC(),
		"notes":       meetingNotes,
	})
}

// handlePolls implements the /record/polls endpoint
func (h *HTTPServer) handlePolls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	meetingPolls := h.recorder.Polls()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_polls": len(meetingPolls),
		"timestamp":   time.Now().UTC(),
		"polls":       meetingPolls,
	})
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"device_index":      h.config.Audio.DeviceIndex,
			"sample_rate":       h.config.Audio.SampleRate,
			"channels":          h.config.Audio.Channels,
			"segment_duration":  h.config.Audio.SegmentDuration,
			"silence_threshold": h.config.Audio.SilenceThreshold,
			"keep_audio":        h.config.Audio.KeepAudio,
		},
		"recorder": map[string]interface{}{
			"output_dir":           h.config.Recorder.OutputDir,
			"queue_size":           h.config.Recorder.QueueSize,
			"note_interval":        h.config.Recorder.NoteInterval,
			"poll_interval":        h.config.Recorder.PollInterval,
			"min_transcript_chars": h.config.Recorder.MinTranscriptChars,
		},
		"transcription": map[string]interface{}{
			"endpoint":       h.config.Transcription.Endpoint,
			"model":          h.config.Transcription.Model,
			"language":       h.config.Transcription.Language,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"llm": map[string]interface{}{
			"provider":    h.config.LLM.Provider,
			"ollama_host": h.config.LLM.Ollama.Host,
			"model":       h.config.LLM.ActiveModel(),
			"temperature": h.config.LLM.Temperature,
			"max_tokens":  h.config.LLM.MaxTokens,
		},
		"zoom": map[string]interface{}{
			"enabled":     h.config.Zoom.Enabled,
			"base_url":    h.config.Zoom.BaseURL,
			"meeting_id":  h.config.Zoom.MeetingID,
			"auto_launch": h.config.Zoom.AutoLaunch,
			// Note: token is intentionally omitted for security
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":        time.Since(h.startTime).String(),
		"timestamp":     time.Now().UTC(),
		"recorder":      h.recorder.Status(),
		"transcription": h.transcription.GetStats(),
		"websocket": map[string]interface{}{
			"subscribers": h.hub.SubscriberCount(),
		},
	}

	writeJSON(w, http.StatusOK, stats)
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
		"service": "Zoom Poll Automation Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                  "API documentation",
			"GET /health":            "Service health check",
			"GET /status":            "Current recording status",
			"POST /record/start":     "Start a recording session",
			"POST /record/stop":      "Stop the recording session",
			"POST /record/pause":     "Toggle pause on the recording session",
			"GET /record/transcript": "Accumulated transcript segments",
			"GET /record/notes":      "Generated meeting notes",
			"GET /record/polls":      "Generated polls",
			"GET /config":            "Service configuration",
			"GET /stats":             "Service statistics",
			"GET /ws/transcript":     "WebSocket stream of transcript, note and poll events",
			"GET /metrics":           "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}
