// Package polls generates Zoom meeting polls from transcript text using a
// language model backend.
package polls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Srinivas26k/zoom-poll-service/internal/llm"
)

// pollPrompt instructs the model to build a poll grounded strictly in the
// transcript and to answer with JSON only.
const pollPrompt = `You are an expert meeting assistant tasked with creating a highly accurate and relevant poll based solely on the provided meeting transcript. Your objective is to generate a poll consisting of an eye-catching title, a specific question tied to the discussion, and exactly four distinct options, all derived directly from the transcript's content. The poll must reflect the key points, opinions, or decisions discussed, ensuring 100%% relevance to the transcript without introducing external information or assumptions.

CRITICAL REQUIREMENTS:
1. EVERY element of the poll MUST be directly derived from the transcript content
2. NO assumptions or external knowledge should be used
3. If the transcript is unclear or too short, indicate this in the title
4. All options MUST be actual points or statements from the transcript
5. The question MUST be about a specific topic discussed in the transcript

Output format:
Provide the poll in the following JSON format ONLY:
{
  "title": "Engaging Title",
  "question": "Specific Question?",
  "options": ["Statement 1", "Statement 2", "Statement 3", "Statement 4"]
}
Do not include any additional explanation or text outside of this JSON structure.

Transcript:
%s`

const numOptions = 4

// Poll is a generated meeting poll with exactly four options.
type Poll struct {
	Title    string   `json:"title"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Generator produces polls from transcript text.
type Generator struct {
	provider llm.Provider
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	fillerRe     = regexp.MustCompile(`(?i)\b(um|uh|like|you know|I mean)\b`)
	wordSplitRe  = regexp.MustCompile(`\W+`)
)

// NewGenerator creates a poll generator backed by the given provider.
func NewGenerator(provider llm.Provider) (*Generator, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &Generator{provider: provider}, nil
}

// IsMeaningful reports whether text has enough content to build a poll from.
// Requires at least 20 characters and four words longer than one character.
func IsMeaningful(text string) bool {
	cleaned := strings.TrimSpace(text)
	if len(cleaned) < 20 {
		return false
	}

	words := 0
	for _, w := range wordSplitRe.Split(cleaned, -1) {
		if len(w) > 1 {
			words++
		}
	}
	return words >= numOptions
}

// CleanTranscript collapses whitespace and strips common speech fillers.
func CleanTranscript(text string) string {
	cleaned := whitespaceRe.ReplaceAllString(text, " ")
	cleaned = fillerRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// Generate builds a poll from the transcript. If the model call or parsing
// fails a generic fallback poll is returned so the meeting still gets one.
// Returns an error only when the transcript has too little content.
func (g *Generator) Generate(ctx context.Context, transcript string) (*Poll, error) {
	if !IsMeaningful(transcript) {
		return nil, fmt.Errorf("transcript does not contain enough meaningful content")
	}

	cleaned := CleanTranscript(transcript)
	prompt := fmt.Sprintf(pollPrompt, cleaned)

	slog.Info("Generating poll from transcript",
		"provider", g.provider.Name(),
		"transcript_chars", len(cleaned))

	raw, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		slog.Error("Poll generation failed, using fallback", "error", err)
		return FallbackPoll(), nil
	}

	poll, err := parsePoll(raw)
	if err != nil {
		slog.Error("Failed to parse poll response, using fallback", "error", err)
		return FallbackPoll(), nil
	}

	slog.Info("Poll generated",
		"title", poll.Title,
		"question", poll.Question,
		"options", len(poll.Options))

	return poll, nil
}

// parsePoll extracts the poll JSON from raw model output and normalizes it.
func parsePoll(raw string) (*Poll, error) {
	jsonStr, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var poll Poll
	if err := json.Unmarshal([]byte(jsonStr), &poll); err != nil {
		return nil, fmt.Errorf("failed to parse poll JSON: %w", err)
	}

	poll.Normalize()
	return &poll, nil
}

// Normalize fills in missing fields and forces exactly four options.
func (p *Poll) Normalize() {
	if strings.TrimSpace(p.Title) == "" {
		p.Title = "Meeting Poll"
	}
	if strings.TrimSpace(p.Question) == "" {
		p.Question = "What was the main topic discussed?"
	}

	if len(p.Options) > numOptions {
		slog.Warn("Too many poll options, truncating", "count", len(p.Options))
		p.Options = p.Options[:numOptions]
	}

	if len(p.Options) == 0 {
		p.Options = []string{
			"Option 1 (from transcript)",
			"Option 2 (from transcript)",
			"Option 3 (from transcript)",
			"Option 4 (from transcript)",
		}
	}
	for len(p.Options) < numOptions {
		p.Options = append(p.Options, fmt.Sprintf("Additional point from discussion %d", len(p.Options)+1))
	}
}

// FallbackPoll returns a generic poll used when generation fails.
func FallbackPoll() *Poll {
	return &Poll{
		Title:    "Meeting Discussion Poll",
		Question: "What topic should we focus on next?",
		Options: []string{
			"Continue current discussion",
			"Move to next agenda item",
			"Take questions from participants",
			"Summarize key points so far",
		},
	}
}
