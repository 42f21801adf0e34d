package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Host        string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OllamaProvider talks to a local Ollama server via its generate API.
type OllamaProvider struct {
	config OllamaConfig
	client *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(config OllamaConfig) (*OllamaProvider, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 800
	}

	return &OllamaProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name implements Provider.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Generate implements Provider.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:  p.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: p.config.Temperature,
			NumPredict:  p.config.MaxTokens,
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(p.config.Host, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	slog.Debug("Ollama generation complete",
		"model", p.config.Model,
		"duration", time.Since(start),
		"response_length", len(result.Response))

	return result.Response, nil
}
