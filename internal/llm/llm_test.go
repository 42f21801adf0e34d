package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"title": "Poll", "options": ["a", "b"]}`,
			want:  `{"title": "Poll", "options": ["a", "b"]}`,
		},
		{
			name:  "markdown fenced",
			input: "Here is the poll:\n```json\n{\"title\": \"Poll\"}\n```\nDone.",
			want:  `{"title": "Poll"}`,
		},
		{
			name:  "surrounded by prose",
			input: `Sure! {"question": "What next?"} Hope that helps.`,
			want:  `{"question": "What next?"}`,
		},
		{
			name:  "nested objects",
			input: `prefix {"a": {"b": {"c": 1}}, "d": 2} suffix`,
			want:  `{"a": {"b": {"c": 1}}, "d": 2}`,
		},
		{
			name:  "braces inside strings",
			input: `{"text": "use {curly} braces", "n": 1}`,
			want:  `{"text": "use {curly} braces", "n": 1}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"text": "he said \"hi}\" loudly"}`,
			want:  `{"text": "he said \"hi}\" loudly"}`,
		},
		{
			name:    "no JSON",
			input:   "I cannot generate a poll for this transcript.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"title": "Poll"`,
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("extracted text is not valid JSON: %q", got)
			}
		})
	}
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		if req.Stream {
			t.Error("expected stream false")
		}
		if !strings.Contains(req.Prompt, "transcript") {
			t.Errorf("prompt missing transcript: %q", req.Prompt)
		}

		json.NewEncoder(w).Encode(ollamaResponse{
			Response: `{"title": "Test Poll"}`,
			Done:     true,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(OllamaConfig{
		Host:        server.URL,
		Model:       "llama3.2",
		Temperature: 0.7,
		MaxTokens:   800,
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	got, err := provider.Generate(context.Background(), "summarize this transcript")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != `{"title": "Test Poll"}` {
		t.Errorf("unexpected response: %q", got)
	}
}

func TestOllamaGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(OllamaConfig{
		Host:    server.URL,
		Model:   "missing",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if _, err := provider.Generate(context.Background(), "test"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestOllamaGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Error: "out of memory"})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(OllamaConfig{
		Host:    server.URL,
		Model:   "llama3.2",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = provider.Generate(context.Background(), "test")
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestOllamaGenerateCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(OllamaConfig{
		Host:    server.URL,
		Model:   "llama3.2",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := provider.Generate(ctx, "test"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewOllamaProviderValidation(t *testing.T) {
	if _, err := NewOllamaProvider(OllamaConfig{Model: "llama3.2"}); err == nil {
		t.Error("expected error for empty host")
	}
	if _, err := NewOllamaProvider(OllamaConfig{Host: "http://localhost:11434"}); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestNewGeminiProviderValidation(t *testing.T) {
	if _, err := NewGeminiProvider(GeminiConfig{}); err == nil {
		t.Error("expected error for no API keys")
	}

	provider, err := NewGeminiProvider(GeminiConfig{APIKeys: []string{"key1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.config.Model != "gemini-2.5-flash" {
		t.Errorf("expected default model, got %s", provider.config.Model)
	}
	if provider.Name() != "gemini" {
		t.Errorf("unexpected name: %s", provider.Name())
	}
}

func TestGeminiKeyRotation(t *testing.T) {
	provider, err := NewGeminiProvider(GeminiConfig{APIKeys: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if provider.nextKey() != "a" {
		t.Error("expected first key")
	}
	provider.rotateKey()
	if provider.nextKey() != "b" {
		t.Error("expected second key after rotation")
	}
	provider.rotateKey()
	provider.rotateKey()
	if provider.nextKey() != "a" {
		t.Error("expected wrap around to first key")
	}
}
