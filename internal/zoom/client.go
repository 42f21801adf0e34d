package zoom

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

	"github.com/Srinivas26k/zoom-poll-service/internal/polls"
)

// Config contains Zoom API client settings.
type Config struct {
	BaseURL   string
	Token     string
	MeetingID string
	Timeout   time.Duration
}

// Client posts polls to the Zoom REST API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// PollQuestion is a single question in the Zoom poll payload.
type PollQuestion struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	AnswerRequired bool     `json:"answer_required"`
	Answers        []string `json:"answers"`
}

// PollPayload is the body sent to the polls endpoint.
type PollPayload struct {
	Title     string         `json:"title"`
	Questions []PollQuestion `json:"questions"`
}

// PollInfo describes a poll as returned by Zoom.
type PollInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// NewClient creates a Zoom API client.
func NewClient(config Config) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	if config.MeetingID == "" {
		return nil, fmt.Errorf("meeting ID cannot be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.zoom.us/v2"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// CreatePoll posts a poll to the meeting and returns the created poll ID.
// Zoom requires the host to launch meeting polls manually unless launch is
// triggered separately via LaunchPoll.
func (c *Client) CreatePoll(ctx context.Context, poll *polls.Poll) (string, error) {
	payload := buildPayload(poll)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal poll: %w", err)
	}

	url := fmt.Sprintf("%s/meetings/%s/polls", strings.TrimRight(c.config.BaseURL, "/"), c.config.MeetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	slog.Info("Posting poll to Zoom", "meeting_id", c.config.MeetingID, "title", poll.Title)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("zoom API returned status %d: %s", resp.StatusCode, string(body))
	}

	var created PollInfo
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	slog.Info("Poll created", "poll_id", created.ID, "title", created.Title)
	return created.ID, nil
}

// LaunchPoll starts a previously created poll in the meeting.
func (c *Client) LaunchPoll(ctx context.Context, pollID string) error {
	if pollID == "" {
		return fmt.Errorf("poll ID cannot be empty")
	}

	url := fmt.Sprintf("%s/meetings/%s/polls/%s/launch",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.MeetingID, pollID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("zoom API returned status %d: %s", resp.StatusCode, string(body))
	}

	slog.Info("Poll launched", "poll_id", pollID)
	return nil
}

// ListPolls returns the polls currently defined on the meeting.
func (c *Client) ListPolls(ctx context.Context) ([]PollInfo, error) {
	url := fmt.Sprintf("%s/meetings/%s/polls", strings.TrimRight(c.config.BaseURL, "/"), c.config.MeetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zoom API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Polls []PollInfo `json:"polls"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Polls, nil
}

// buildPayload converts a generated poll into the Zoom API shape. Zoom
// meeting polls need exactly four single-choice answers here, so the answer
// list is padded or truncated as needed.
func buildPayload(poll *polls.Poll) PollPayload {
	answers := make([]string, len(poll.Options))
	copy(answers, poll.Options)

	if len(answers) > 4 {
		answers = answers[:4]
	}
	for len(answers) < 4 {
		answers = append(answers, fmt.Sprintf("Option %d", len(answers)+1))
	}

	return PollPayload{
		Title: poll.Title,
		Questions: []PollQuestion{
			{
				Name:           poll.Question,
				Type:           "single",
				AnswerRequired: true,
				Answers:        answers,
			},
		},
	}
}
