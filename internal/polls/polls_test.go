package polls

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

const sampleTranscript = `So I think for the next quarter, we should focus on improving our
customer retention rates. The current churn is about 5% monthly, which is too high
compared to industry standards. We could implement a new loyalty program, improve our
customer support response times, or even consider a discount for annual subscriptions.`

func TestIsMeaningful(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \n\t  ", false},
		{"too short", "hello there", false},
		{"enough content", "We discussed the quarterly budget and agreed on targets", true},
		{"long but few real words", "a a a a a a a a a a a a a a a a a a a a a a", false},
		{"exactly at the boundary", "this one sentence has some real words", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMeaningful(tt.text); got != tt.want {
				t.Errorf("IsMeaningful(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "collapses whitespace",
			input: "hello   world\n\nthis  is\ta test",
			want:  "hello world this is a test",
		},
		{
			name:  "strips fillers",
			input: "so um we should uh focus on retention you know",
			want:  "so we should focus on retention",
		},
		{
			name:  "case insensitive fillers",
			input: "Um I think, LIKE, we need more data",
			want:  "I think, , we need more data",
		},
		{
			name:  "trims edges",
			input: "  clean text  ",
			want:  "clean text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTranscript(tt.input); got != tt.want {
				t.Errorf("CleanTranscript(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGeneratePoll(t *testing.T) {
	provider := &fakeProvider{
		response: `Here is your poll:
{"title": "Retention Strategy", "question": "How should we reduce churn?", "options": ["Loyalty program", "Faster support", "Annual discount", "More data first"]}`,
	}

	gen, err := NewGenerator(provider)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	poll, err := gen.Generate(context.Background(), sampleTranscript)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if poll.Title != "Retention Strategy" {
		t.Errorf("unexpected title: %q", poll.Title)
	}
	if poll.Question != "How should we reduce churn?" {
		t.Errorf("unexpected question: %q", poll.Question)
	}
	if len(poll.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(poll.Options))
	}

	if len(provider.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(provider.prompts))
	}
	if !strings.Contains(provider.prompts[0], "customer retention") {
		t.Error("prompt should contain the transcript")
	}
}

func TestGeneratePollTooShort(t *testing.T) {
	gen, err := NewGenerator(&fakeProvider{})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	if _, err := gen.Generate(context.Background(), "hi"); err == nil {
		t.Error("expected error for short transcript")
	}
}

func TestGeneratePollProviderError(t *testing.T) {
	gen, err := NewGenerator(&fakeProvider{err: errors.New("connection refused")})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	poll, err := gen.Generate(context.Background(), sampleTranscript)
	if err != nil {
		t.Fatalf("expected fallback poll, got error: %v", err)
	}
	if poll.Title != "Meeting Discussion Poll" {
		t.Errorf("expected fallback title, got %q", poll.Title)
	}
	if len(poll.Options) != 4 {
		t.Errorf("expected 4 fallback options, got %d", len(poll.Options))
	}
}

func TestGeneratePollUnparseableResponse(t *testing.T) {
	gen, err := NewGenerator(&fakeProvider{response: "I cannot create a poll from this."})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	poll, err := gen.Generate(context.Background(), sampleTranscript)
	if err != nil {
		t.Fatalf("expected fallback poll, got error: %v", err)
	}
	if poll.Title != "Meeting Discussion Poll" {
		t.Errorf("expected fallback title, got %q", poll.Title)
	}
}

func TestPollNormalize(t *testing.T) {
	tests := []struct {
		name        string
		poll        Poll
		wantTitle   string
		wantOptions int
	}{
		{
			name:        "empty poll gets defaults",
			poll:        Poll{},
			wantTitle:   "Meeting Poll",
			wantOptions: 4,
		},
		{
			name:        "too many options truncated",
			poll:        Poll{Title: "T", Question: "Q", Options: []string{"a", "b", "c", "d", "e", "f"}},
			wantTitle:   "T",
			wantOptions: 4,
		},
		{
			name:        "too few options padded",
			poll:        Poll{Title: "T", Question: "Q", Options: []string{"a", "b"}},
			wantTitle:   "T",
			wantOptions: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.poll.Normalize()
			if tt.poll.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", tt.poll.Title, tt.wantTitle)
			}
			if len(tt.poll.Options) != tt.wantOptions {
				t.Errorf("options = %d, want %d", len(tt.poll.Options), tt.wantOptions)
			}
			if tt.poll.Question == "" {
				t.Error("question should never be empty after Normalize")
			}
		})
	}
}
