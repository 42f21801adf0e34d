package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Recorder      RecorderConfig      `yaml:"recorder"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	LLM           LLMConfig           `yaml:"llm"`
	Zoom          ZoomConfig          `yaml:"zoom"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains audio capture parameters
type AudioConfig struct {
	DeviceIndex      int     `yaml:"device_index"` // -1 selects the default input device
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
	FramesPerRead    int     `yaml:"frames_per_read"`
	SegmentDuration  float64 `yaml:"segment_duration"`  // seconds
	SilenceThreshold float64 `yaml:"silence_threshold"` // RMS, 0 disables the gate
	KeepAudio        bool    `yaml:"keep_audio"`
}

// RecorderConfig contains meeting recorder pipeline configuration
type RecorderConfig struct {
	OutputDir          string  `yaml:"output_dir"`
	QueueSize          int     `yaml:"queue_size"`
	NoteInterval       float64 `yaml:"note_interval"` // seconds
	PollInterval       float64 `yaml:"poll_interval"` // seconds
	MinTranscriptChars int     `yaml:"min_transcript_chars"`
	ShutdownTimeout    int     `yaml:"shutdown_timeout"` // seconds
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LLMConfig contains language model provider configuration
type LLMConfig struct {
	Provider    string       `yaml:"provider"` // "ollama" or "gemini"
	Ollama      OllamaConfig `yaml:"ollama"`
	Gemini      GeminiConfig `yaml:"gemini"`
	Temperature float64      `yaml:"temperature"`
	MaxTokens   int          `yaml:"max_tokens"`
	Timeout     int          `yaml:"timeout"` // seconds
}

// OllamaConfig contains local Ollama server configuration
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// GeminiConfig contains Gemini API configuration
type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Model   string   `yaml:"model"`
}

// ZoomConfig contains Zoom REST API configuration
type ZoomConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	MeetingID  string `yaml:"meeting_id"`
	AutoLaunch bool   `yaml:"auto_launch"`
	Timeout    int    `yaml:"timeout"` // seconds
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, then applies environment
// overrides for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ZOOM_TOKEN"); v != "" {
		c.Zoom.Token = v
	}
	if v := os.Getenv("MEETING_ID"); v != "" {
		c.Zoom.MeetingID = v
	}
	if v := os.Getenv("TRANSCRIBE_API_KEY"); v != "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.Gemini.APIKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("LLAMA_HOST"); v != "" {
		c.LLM.Ollama.Host = strings.TrimRight(v, "/")
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Recorder.Validate(); err != nil {
		return fmt.Errorf("recorder config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}

	if err := c.Zoom.Validate(); err != nil {
		return fmt.Errorf("zoom config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio capture configuration and fills defaults
func (a *AudioConfig) Validate() error {
	if a.SampleRate == 0 {
		a.SampleRate = 16000
	}
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for transcription, got %d", a.SampleRate)
	}

	if a.Channels == 0 {
		a.Channels = 1
	}
	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.FramesPerRead == 0 {
		a.FramesPerRead = 1024
	}
	if a.FramesPerRead < 64 {
		return fmt.Errorf("frames_per_read must be at least 64, got %d", a.FramesPerRead)
	}

	if a.SegmentDuration == 0 {
		a.SegmentDuration = 30.0
	}
	if a.SegmentDuration < 1.0 {
		return fmt.Errorf("segment_duration must be at least 1 second, got %f", a.SegmentDuration)
	}

	if a.SilenceThreshold < 0 {
		return fmt.Errorf("silence_threshold cannot be negative, got %f", a.SilenceThreshold)
	}

	return nil
}

// Validate validates recorder configuration and fills defaults
func (r *RecorderConfig) Validate() error {
	if r.OutputDir == "" {
		r.OutputDir = "meetings"
	}

	if r.QueueSize == 0 {
		r.QueueSize = 16
	}
	if r.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", r.QueueSize)
	}

	if r.NoteInterval == 0 {
		r.NoteInterval = 120.0
	}
	if r.NoteInterval < 1.0 {
		return fmt.Errorf("note_interval must be at least 1 second, got %f", r.NoteInterval)
	}

	if r.PollInterval == 0 {
		r.PollInterval = 300.0
	}
	if r.PollInterval < 1.0 {
		return fmt.Errorf("poll_interval must be at least 1 second, got %f", r.PollInterval)
	}

	if r.MinTranscriptChars == 0 {
		r.MinTranscriptChars = 100
	}
	if r.MinTranscriptChars < 0 {
		return fmt.Errorf("min_transcript_chars cannot be negative, got %d", r.MinTranscriptChars)
	}

	if r.ShutdownTimeout == 0 {
		r.ShutdownTimeout = 10
	}
	if r.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", r.ShutdownTimeout)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout == 0 {
		t.Timeout = 60
	}
	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent == 0 {
		t.MaxConcurrent = 2
	}
	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates LLM configuration and fills defaults
func (l *LLMConfig) Validate() error {
	if l.Provider == "" {
		l.Provider = "ollama"
	}

	switch l.Provider {
	case "ollama":
		if l.Ollama.Host == "" {
			l.Ollama.Host = "http://localhost:11434"
		}
		l.Ollama.Host = strings.TrimRight(l.Ollama.Host, "/")
		if l.Ollama.Model == "" {
			l.Ollama.Model = "llama3.2"
		}
	case "gemini":
		if len(l.Gemini.APIKeys) == 0 {
			return fmt.Errorf("gemini.api_keys cannot be empty when provider is 'gemini'")
		}
		if l.Gemini.Model == "" {
			l.Gemini.Model = "gemini-2.5-flash"
		}
	default:
		return fmt.Errorf("provider must be 'ollama' or 'gemini', got '%s'", l.Provider)
	}

	if l.Temperature == 0 {
		l.Temperature = 0.7
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", l.Temperature)
	}

	if l.MaxTokens == 0 {
		l.MaxTokens = 800
	}
	if l.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1, got %d", l.MaxTokens)
	}

	if l.Timeout == 0 {
		l.Timeout = 120
	}
	if l.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", l.Timeout)
	}

	return nil
}

// Validate validates Zoom configuration
func (z *ZoomConfig) Validate() error {
	if z.BaseURL == "" {
		z.BaseURL = "https://api.zoom.us/v2"
	}
	z.BaseURL = strings.TrimRight(z.BaseURL, "/")

	if z.Timeout == 0 {
		z.Timeout = 30
	}
	if z.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", z.Timeout)
	}

	if z.Enabled {
		if z.Token == "" {
			return fmt.Errorf("token cannot be empty when Zoom posting is enabled")
		}
		if z.MeetingID == "" {
			return fmt.Errorf("meeting_id cannot be empty when Zoom posting is enabled")
		}
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if l.Level == "" {
		l.Level = "info"
	}
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	if l.Format == "" {
		l.Format = "text"
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetSegmentDuration returns the audio segment duration as a time.Duration
func (a *AudioConfig) GetSegmentDuration() time.Duration {
	return time.Duration(a.SegmentDuration * float64(time.Second))
}

// GetNoteInterval returns the note generation interval as a time.Duration
func (r *RecorderConfig) GetNoteInterval() time.Duration {
	return time.Duration(r.NoteInterval * float64(time.Second))
}

// GetPollInterval returns the poll generation interval as a time.Duration
func (r *RecorderConfig) GetPollInterval() time.Duration {
	return time.Duration(r.PollInterval * float64(time.Second))
}

// GetShutdownTimeout returns the shutdown timeout as a time.Duration
func (r *RecorderConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(r.ShutdownTimeout) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the LLM request timeout as a time.Duration
func (l *LLMConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// ActiveModel returns the model name of the selected provider
func (l *LLMConfig) ActiveModel() string {
	if l.Provider == "gemini" {
		return l.Gemini.Model
	}
	return l.Ollama.Model
}

// GetTimeoutDuration returns the Zoom API timeout as a time.Duration
func (z *ZoomConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(z.Timeout) * time.Second
}
