package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKeys []string
	Model   string
	Timeout time.Duration
}

// GeminiProvider calls the Gemini API. Multiple API keys can be supplied;
// the provider rotates to the next key when the current one hits a quota
// or rate limit error.
type GeminiProvider struct {
	config GeminiConfig

	mu         sync.Mutex
	currentKey int
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(config GeminiConfig) (*GeminiProvider, error) {
	if len(config.APIKeys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}

	return &GeminiProvider{config: config}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate implements Provider. Rotates API keys on 429 / quota errors.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	attempts := len(p.config.APIKeys)
	var lastErr error

	for range attempts {
		key := p.nextKey()

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			p.rotateKey()
			continue
		}

		result, err := client.Models.GenerateContent(ctx, p.config.Model, genai.Text(prompt), nil)
		if err != nil {
			errMsg := err.Error()
			if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "RESOURCE_EXHAUSTED") {
				slog.Warn("Gemini key rate limited, rotating", "key_index", p.keyIndex())
				p.rotateKey()
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			var text string
			for _, part := range result.Candidates[0].Content.Parts {
				if part.Text != "" {
					text += part.Text
				}
			}
			return text, nil
		}

		return "", fmt.Errorf("empty response from Gemini")
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (p *GeminiProvider) nextKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.APIKeys[p.currentKey]
}

func (p *GeminiProvider) keyIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentKey
}

func (p *GeminiProvider) rotateKey() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentKey = (p.currentKey + 1) % len(p.config.APIKeys)
}
