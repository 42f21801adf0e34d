package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Srinivas26k/zoom-poll-service/internal/audio"
	"github.com/Srinivas26k/zoom-poll-service/internal/capture"
	"github.com/Srinivas26k/zoom-poll-service/internal/config"
	"github.com/Srinivas26k/zoom-poll-service/internal/metrics"
	"github.com/Srinivas26k/zoom-poll-service/internal/notes"
	"github.com/Srinivas26k/zoom-poll-service/internal/polls"
	"github.com/Srinivas26k/zoom-poll-service/internal/recorder"
	"github.com/Srinivas26k/zoom-poll-service/internal/transcription"
)

// Prometheus collectors register globally, so the test suite shares one set.
var testMetrics = metrics.NewMetrics()

type idleSource struct {
	closed chan struct{}
	once   sync.Once
}

func newIdleSource() *idleSource { return &idleSource{closed: make(chan struct{})} }

func (s *idleSource) Start() error { return nil }

func (s *idleSource) Read(buf []int16) error {
	<-s.closed
	return fmt.Errorf("source closed")
}

func (s *idleSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeLLM struct{}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return `{"title": "T", "question": "Q?", "options": ["a", "b", "c", "d"]}`, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Transcription: config.TranscriptionConfig{Endpoint: "http://localhost:9000/transcribe"},
		Zoom:          config.ZoomConfig{MeetingID: "123456"},
		HTTP:          config.HTTPConfig{Enabled: true, Address: "127.0.0.1", Port: 8080},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	cfg.Recorder.OutputDir = t.TempDir()
	cfg.Transcription.APIKey = "secret-key"
	cfg.Zoom.Token = "secret-token"
	return cfg
}

type testEnv struct {
	http     *HTTPServer
	server   *httptest.Server
	recorder *recorder.Recorder
	source   *idleSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tc, err := transcription.NewClient(transcription.Config{
		Endpoint: cfg.Transcription.Endpoint,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create transcription client: %v", err)
	}

	pollGen, err := polls.NewGenerator(&fakeLLM{})
	if err != nil {
		t.Fatalf("failed to create poll generator: %v", err)
	}

	source := newIdleSource()
	var captureSource capture.Source = source
	rec, err := recorder.New(recorder.Config{
		OutputDir:       cfg.Recorder.OutputDir,
		SegmentDuration: time.Second,
		NoteInterval:    time.Hour,
		PollInterval:    time.Hour,
	}, recorder.Deps{
		Source:      captureSource,
		Transcriber: &fakeTranscriber{},
		PollGen:     pollGen,
		NoteGen:     notes.NewGenerator(&fakeLLM{}),
	})
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	h := NewHTTPServer(cfg.HTTP, logger, cfg, rec, tc, testMetrics)
	ts := httptest.NewServer(h.server.Handler)
	t.Cleanup(func() {
		if rec.Status().Recording {
			rec.Stop()
		}
		h.hub.Close()
		ts.Close()
	})

	return &testEnv{http: h, server: ts, recorder: rec, source: source}
}

type fakeTranscriber struct{}

func (f *fakeTranscriber) Transcribe(ctx context.Context, seg *audio.Segment) (*transcription.Result, error) {
	return &transcription.Result{Text: "transcribed text"}, nil
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var health map[string]any
	resp := getJSON(t, env.server.URL+"/health", &health)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if health["status"] != "healthy" {
		t.Errorf("unexpected health status: %v", health["status"])
	}
	if _, ok := health["components"]; !ok {
		t.Error("health response missing components")
	}
}

func TestRecordLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Not recording yet: stop and pause conflict.
	if resp := postJSON(t, env.server.URL+"/record/stop", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("stop before start: expected 409, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, env.server.URL+"/record/pause", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("pause before start: expected 409, got %d", resp.StatusCode)
	}

	var status recorder.Status
	if resp := postJSON(t, env.server.URL+"/record/start", &status); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", resp.StatusCode)
	}
	if !status.Recording {
		t.Error("start response should report recording")
	}

	if resp := postJSON(t, env.server.URL+"/record/start", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("double start: expected 409, got %d", resp.StatusCode)
	}

	var pauseResp map[string]bool
	postJSON(t, env.server.URL+"/record/pause", &pauseResp)
	if !pauseResp["paused"] {
		t.Error("first pause toggle should pause")
	}
	postJSON(t, env.server.URL+"/record/pause", &pauseResp)
	if pauseResp["paused"] {
		t.Error("second pause toggle should resume")
	}

	var result recorder.Result
	if resp := postJSON(t, env.server.URL+"/record/stop", &result); resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", resp.StatusCode)
	}
	if result.MeetingID == "" {
		t.Error("stop response missing meeting ID")
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var status recorder.Status
	getJSON(t, env.server.URL+"/status", &status)
	if status.Recording {
		t.Error("should not be recording initially")
	}
}

func TestDataEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var transcript map[string]any
	getJSON(t, env.server.URL+"/record/transcript", &transcript)
	if transcript["total_segments"].(float64) != 0 {
		t.Errorf("expected empty transcript, got %v", transcript["total_segments"])
	}

	var notesResp map[string]any
	getJSON(t, env.server.URL+"/record/notes", &notesResp)
	if notesResp["total_notes"].(float64) != 0 {
		t.Errorf("expected no notes, got %v", notesResp["total_notes"])
	}

	var pollsResp map[string]any
	getJSON(t, env.server.URL+"/record/polls", &pollsResp)
	if pollsResp["total_polls"].(float64) != 0 {
		t.Errorf("expected no polls, got %v", pollsResp["total_polls"])
	}
}

func TestConfigEndpointOmitsSecrets(t *testing.T) {
	env := newTestEnv(t)

	var raw map[string]any
	resp := getJSON(t, env.server.URL+"/config", &raw)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("failed to re-marshal config: %v", err)
	}
	body := string(data)
	if strings.Contains(body, "secret-key") || strings.Contains(body, "secret-token") {
		t.Error("config response leaks secrets")
	}
	if !strings.Contains(body, "transcription") {
		t.Error("config response missing transcription section")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/record/start")
	if err != nil {
		t.Fatalf("GET /record/start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestRootEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var doc map[string]any
	getJSON(t, env.server.URL+"/", &doc)
	if _, ok := doc["endpoints"]; !ok {
		t.Error("root response missing endpoint documentation")
	}

	resp, _ := http.Get(env.server.URL + "/unknown")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/transcript"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	// Wait until the hub has registered the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for env.http.hub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if env.http.hub.SubscriberCount() != 1 {
		t.Fatal("subscriber never registered")
	}

	env.http.hub.Broadcast(Event{
		Type:    "transcript",
		Payload: recorder.TranscriptSegment{Timestamp: "10:00:00", Text: "hello"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if event.Type != "transcript" {
		t.Errorf("unexpected event type: %q", event.Type)
	}
}

func TestWebSocketConcurrentBroadcast(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/transcript"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.http.hub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if env.http.hub.SubscriberCount() != 1 {
		t.Fatal("subscriber never registered")
	}

	// Transcription workers and the analysis loop publish events
	// concurrently; every frame must still arrive intact.
	const (
		senders         = 8
		eventsPerSender = 5
	)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for j := 0; j < eventsPerSender; j++ {
				env.http.hub.Broadcast(Event{
					Type:    "transcript",
					Payload: recorder.TranscriptSegment{Timestamp: "10:00:00", Text: fmt.Sprintf("sender %d event %d", sender, j)},
				})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < senders*eventsPerSender; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read frame %d: %v", i, err)
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("corrupt frame %d: %v", i, err)
		}
		if event.Type != "transcript" {
			t.Errorf("frame %d has unexpected type %q", i, event.Type)
		}
	}

	if env.http.hub.SubscriberCount() != 1 {
		t.Error("subscriber was dropped during concurrent broadcast")
	}
}
