package llm

import (
	"context"
	"fmt"
)

// Provider generates completions from a prompt.
type Provider interface {
	// Generate returns the raw completion text for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend for logging and metrics.
	Name() string
}

// ExtractJSON returns the first balanced JSON object embedded in text.
// Model output frequently wraps the JSON in markdown fences or prose, so a
// plain json.Unmarshal of the whole response is not enough.
func ExtractJSON(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], nil
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}

	return "", fmt.Errorf("no JSON object found in response")
}
