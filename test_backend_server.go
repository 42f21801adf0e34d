package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Mock backends for local development: a Whisper-style transcription
// endpoint, an Ollama-style generate endpoint, and the Zoom meeting poll
// endpoints. Run it, then point the service config at localhost:9000
// (transcription), localhost:11435 (llm) and localhost:9000/zoom (zoom).

type TranscriptionResponse struct {
	SegmentID   string    `json:"segment_id"`
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	Duration    float64   `json:"duration"`
	ProcessedAt time.Time `json:"processed_at"`
}

var sampleTranscripts = []string{
	"So for the next sprint we agreed to prioritize the onboarding flow rework.",
	"The churn numbers came in at five percent which is higher than we expected.",
	"Sam will own the deployment checklist and have it ready before Friday.",
	"We still need a decision on whether to ship the beta with the new billing page.",
}

var transcriptIndex int

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	segmentID := r.FormValue("segment_id")
	segmentIndex := r.FormValue("segment_index")
	duration := r.FormValue("duration")
	sampleRate := r.FormValue("sample_rate")
	language := r.FormValue("language")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("    Segment ID: %s", segmentID)
	log.Printf("    Segment Index: %s", segmentIndex)
	log.Printf("    Duration: %s seconds", duration)
	log.Printf("    Sample Rate: %s", sampleRate)
	log.Printf("    Filename: %s (%d bytes)", header.Filename, len(audioData))
	log.Printf("    Language: %s", language)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	text := sampleTranscripts[transcriptIndex%len(sampleTranscripts)]
	transcriptIndex++

	response := TranscriptionResponse{
		SegmentID:   segmentID,
		Text:        text,
		Language:    "en",
		Duration:    parseFloat64(duration),
		ProcessedAt: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func generateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing request", http.StatusBadRequest)
		return
	}

	log.Printf("🤖 LLM REQUEST RECEIVED: model=%s prompt=%d chars", req.Model, len(req.Prompt))

	// Answer with a poll or a note shape depending on what was asked
	var response string
	switch {
	case strings.Contains(req.Prompt, "poll"):
		response = `{"title": "Sprint Priorities", "question": "What should the team focus on first?", "options": ["Onboarding flow rework", "Churn reduction", "Deployment checklist", "Billing page beta"]}`
	case strings.Contains(req.Prompt, "action items"):
		response = `{"action_items": [{"description": "Prepare the deployment checklist", "assigned_to": "Sam", "due_date": "Friday", "priority": "high"}]}`
	case strings.Contains(req.Prompt, "summary"):
		response = `{"title": "Sprint Planning", "summary": "The team planned the next sprint and assigned owners.", "key_points": ["Onboarding rework prioritized", "Churn at five percent", "Deployment checklist owned by Sam"]}`
	default:
		response = `{"note": "Team agreed on sprint priorities and owners.", "tags": ["planning", "decision"]}`
	}

	time.Sleep(300 * time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model":    req.Model,
		"response": response,
		"done":     true,
	})

	log.Printf("✅ LLM RESPONSE SENT (%d chars)", len(response))
	log.Println("---")
}

func zoomPollsHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/polls"):
		body, _ := io.ReadAll(r.Body)
		log.Printf("📊 ZOOM POLL CREATED: %s", string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"id":     fmt.Sprintf("mock-poll-%d", time.Now().Unix()),
			"status": "notstart",
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/launch"):
		log.Printf("🚀 ZOOM POLL LAUNCHED: %s", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"polls": []any{}})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func parseFloat64(s string) float64 {
	var val float64
	fmt.Sscanf(s, "%f", &val)
	return val
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)
	http.HandleFunc("/api/generate", generateHandler)
	http.HandleFunc("/zoom/", zoomPollsHandler)

	port := ":9000"
	log.Printf("🚀 Test Backend Server starting on port %s", port)
	log.Printf("📡 Transcription: http://localhost%s/transcribe", port)
	log.Printf("📡 LLM: http://localhost%s/api/generate", port)
	log.Printf("📡 Zoom: http://localhost%s/zoom/meetings/{id}/polls", port)
	log.Println("💡 Update your config to point transcription, ollama and zoom at these endpoints")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
