// Package notes generates structured meeting notes, action items and
// summaries from transcript text using a language model backend. Every
// generation path has a non-LLM fallback so a meeting always gets notes
// even when the backend is down.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Srinivas26k/zoom-poll-service/internal/llm"
)

// maxTranscriptChars caps the transcript sent to the model to stay within
// token limits.
const maxTranscriptChars = 4000

// Note is a single timestamped note from a transcript segment.
type Note struct {
	Timestamp string   `json:"timestamp"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
}

// ActionItem is a task extracted from the meeting.
type ActionItem struct {
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Summary is the full meeting summary written at the end of a recording.
type Summary struct {
	MeetingID   string       `json:"meeting_id"`
	Date        string       `json:"date"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	KeyPoints   []string     `json:"key_points"`
	ActionItems []ActionItem `json:"action_items"`
	Notes       []Note       `json:"notes"`
}

// Save writes the summary as indented JSON.
func (s *Summary) Save(path string) error {
	if s.Title == "" {
		s.Title = "Untitled Meeting"
	}
	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []ActionItem{}
	}
	if s.Notes == nil {
		s.Notes = []Note{}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	slog.Info("Saved meeting summary", "path", path)
	return nil
}

// Generator produces notes and summaries from transcript text.
type Generator struct {
	provider llm.Provider
	now      func() time.Time
}

// NewGenerator creates a notes generator. A nil provider is allowed; then
// only the fallback paths are used.
func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{
		provider: provider,
		now:      time.Now,
	}
}

const notePrompt = `Create a concise and informative note from this meeting transcript segment.
Extract key points, decisions, or action items if present.
Also suggest up to 3 relevant tags for categorization.

Transcript segment:
%s

Return only the note content followed by tags in JSON format:
{
  "note": "The concise note text here",
  "tags": ["tag1", "tag2", "tag3"]
}`

// GenerateNote creates a note from a transcript segment. Falls back to a
// truncated quote of the segment when the model is unavailable or the
// response cannot be parsed.
func (g *Generator) GenerateNote(ctx context.Context, segment string) Note {
	timestamp := g.now().Format("15:04:05")

	if strings.TrimSpace(segment) == "" {
		return Note{
			Timestamp: timestamp,
			Content:   "Empty transcript segment",
			Tags:      []string{"error"},
		}
	}

	if g.provider != nil {
		raw, err := g.provider.Generate(ctx, fmt.Sprintf(notePrompt, segment))
		if err == nil {
			var parsed struct {
				Note string   `json:"note"`
				Tags []string `json:"tags"`
			}
			if jsonStr, jerr := llm.ExtractJSON(raw); jerr == nil {
				if uerr := json.Unmarshal([]byte(jsonStr), &parsed); uerr == nil && parsed.Note != "" {
					return Note{
						Timestamp: timestamp,
						Content:   parsed.Note,
						Tags:      parsed.Tags,
					}
				}
			}
			slog.Warn("Failed to parse note response, using fallback")
		} else {
			slog.Warn("Note generation failed, using fallback", "error", err)
		}
	}

	return Note{
		Timestamp: timestamp,
		Content:   "Meeting discussion: " + truncateWords(segment, 30),
		Tags:      []string{"transcript"},
	}
}

const actionItemsPrompt = `Extract all action items, tasks, and assignments from this meeting transcript.
For each action item, identify:
1. The task description
2. Who it's assigned to (if mentioned)
3. Due date (if mentioned)
4. Priority (if mentioned)

Transcript:
%s

Return the action items in JSON format:
{
  "action_items": [
    {
      "description": "The task to be done",
      "assigned_to": "Person name or null",
      "due_date": "Date or null",
      "priority": "high/medium/low or null"
    }
  ]
}`

// ExtractActionItems pulls action items from a transcript. Transcripts
// shorter than 100 characters produce none. The fallback scans lines for
// task keywords.
func (g *Generator) ExtractActionItems(ctx context.Context, transcript string) []ActionItem {
	if len(transcript) < 100 {
		return nil
	}

	if g.provider != nil {
		raw, err := g.provider.Generate(ctx, fmt.Sprintf(actionItemsPrompt, capTranscript(transcript)))
		if err == nil {
			var parsed struct {
				ActionItems []ActionItem `json:"action_items"`
			}
			if jsonStr, jerr := llm.ExtractJSON(raw); jerr == nil {
				if uerr := json.Unmarshal([]byte(jsonStr), &parsed); uerr == nil {
					for i := range parsed.ActionItems {
						if parsed.ActionItems[i].Description == "" {
							parsed.ActionItems[i].Description = "Unknown task"
						}
					}
					return parsed.ActionItems
				}
			}
			slog.Warn("Failed to parse action items response, using fallback")
		} else {
			slog.Warn("Action item extraction failed, using fallback", "error", err)
		}
	}

	return keywordActionItems(transcript)
}

// keywordActionItems is the non-LLM fallback: any line mentioning a task
// keyword becomes an action item.
func keywordActionItems(transcript string) []ActionItem {
	keywords := []string{"action", "task", "todo", "to-do", "to do", "will do", "assigned"}

	var items []ActionItem
	for _, line := range strings.Split(transcript, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				items = append(items, ActionItem{Description: strings.TrimSpace(line)})
				break
			}
		}
	}
	return items
}

const summaryPrompt = `Create a concise summary of this meeting transcript. Include:
1. A descriptive title for the meeting
2. A 2-3 sentence summary of the discussion
3. 3-5 key points or takeaways

Transcript:
%s

Return the summary in JSON format:
{
  "title": "Meeting title",
  "summary": "Brief summary of the discussion",
  "key_points": ["Key point 1", "Key point 2", "Key point 3"]
}`

// GenerateSummary builds the full meeting summary: title, overview, key
// points, action items and the accumulated notes.
func (g *Generator) GenerateSummary(ctx context.Context, meetingID, transcript string, meetingNotes []Note) *Summary {
	date := g.now().Format("2006-01-02")

	if strings.TrimSpace(transcript) == "" {
		return &Summary{
			MeetingID: meetingID,
			Date:      date,
			Title:     "Empty Meeting",
			Summary:   "No transcript available for this meeting.",
			Notes:     meetingNotes,
		}
	}

	actionItems := g.ExtractActionItems(ctx, transcript)

	if g.provider != nil {
		raw, err := g.provider.Generate(ctx, fmt.Sprintf(summaryPrompt, capTranscript(transcript)))
		if err == nil {
			var parsed struct {
				Title     string   `json:"title"`
				Summary   string   `json:"summary"`
				KeyPoints []string `json:"key_points"`
			}
			if jsonStr, jerr := llm.ExtractJSON(raw); jerr == nil {
				if uerr := json.Unmarshal([]byte(jsonStr), &parsed); uerr == nil {
					if parsed.Title == "" {
						parsed.Title = "Meeting Summary"
					}
					return &Summary{
						MeetingID:   meetingID,
						Date:        date,
						Title:       parsed.Title,
						Summary:     parsed.Summary,
						KeyPoints:   parsed.KeyPoints,
						ActionItems: actionItems,
						Notes:       meetingNotes,
					}
				}
			}
			slog.Warn("Failed to parse summary response, using fallback")
		} else {
			slog.Warn("Summary generation failed, using fallback", "error", err)
		}
	}

	wordCount := len(strings.Fields(transcript))
	return &Summary{
		MeetingID:   meetingID,
		Date:        date,
		Title:       "Meeting " + meetingID,
		Summary:     fmt.Sprintf("This meeting had approximately %d words of discussion.", wordCount),
		KeyPoints:   []string{"Automated summary not available"},
		ActionItems: actionItems,
		Notes:       meetingNotes,
	}
}

func capTranscript(transcript string) string {
	if len(transcript) > maxTranscriptChars {
		return transcript[:maxTranscriptChars]
	}
	return transcript
}

func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ") + "..."
}
