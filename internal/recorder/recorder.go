package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Srinivas26k/zoom-poll-service/internal/audio"
	"github.com/Srinivas26k/zoom-poll-service/internal/capture"
	"github.com/Srinivas26k/zoom-poll-service/internal/metrics"
	"github.com/Srinivas26k/zoom-poll-service/internal/notes"
	"github.com/Srinivas26k/zoom-poll-service/internal/polls"
	"github.com/Srinivas26k/zoom-poll-service/internal/transcription"
)

var (
	// ErrAlreadyRecording is returned by Start when a session is active.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned by session operations when no session is active.
	ErrNotRecording = errors.New("no recording in progress")
)

// Transcriber converts an audio segment to text.
type Transcriber interface {
	Transcribe(ctx context.Context, segment *audio.Segment) (*transcription.Result, error)
}

// PollPoster posts generated polls to a meeting.
type PollPoster interface {
	CreatePoll(ctx context.Context, poll *polls.Poll) (string, error)
	LaunchPoll(ctx context.Context, pollID string) error
}

// minNoteChars is the transcript length below which note generation is skipped.
const minNoteChars = 50

// Config contains recorder settings.
type Config struct {
	OutputDir          string
	Workers            int
	QueueSize          int
	FramesPerRead      int
	SampleRate         int
	SegmentDuration    time.Duration
	SilenceThreshold   float64
	KeepAudio          bool
	NoteInterval       time.Duration
	PollInterval       time.Duration
	MinTranscriptChars int
	AutoLaunch         bool
	ShutdownTimeout    time.Duration
}

// Deps are the collaborators a recorder needs. Zoom may be nil when poll
// posting is disabled; generated polls are then only kept locally.
type Deps struct {
	Source      capture.Source
	Transcriber Transcriber
	PollGen     *polls.Generator
	NoteGen     *notes.Generator
	Zoom        PollPoster
	Metrics     *metrics.Metrics
}

// TranscriptSegment is one timestamped piece of the meeting transcript.
type TranscriptSegment struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// Status is a snapshot of the recorder state for the HTTP API.
type Status struct {
	Recording        bool      `json:"recording"`
	Paused           bool      `json:"paused"`
	MeetingID        string    `json:"meeting_id,omitempty"`
	StartTime        time.Time `json:"start_time,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds"`
	SegmentsRecorded int       `json:"segments_recorded"`
	SegmentsSkipped  int       `json:"segments_skipped"`
	QueueDepth       int       `json:"queue_depth"`
	TranscriptChars  int       `json:"transcript_chars"`
	NotesGenerated   int       `json:"notes_generated"`
	PollsGenerated   int       `json:"polls_generated"`
}

// Result describes a completed recording session.
type Result struct {
	MeetingID       string        `json:"meeting_id"`
	MeetingDir      string        `json:"meeting_dir"`
	TranscriptFile  string        `json:"transcript_file"`
	SummaryFile     string        `json:"summary_file"`
	Duration        time.Duration `json:"duration"`
	SegmentsRecorded int          `json:"segments_recorded"`
}

// Recorder drives a recording session: it pulls audio from the capture
// source, cuts it into segments, transcribes them through a bounded worker
// pool and periodically generates notes and polls from the accumulated
// transcript.
type Recorder struct {
	config Config
	deps   Deps

	// Callbacks fire outside the recorder lock after each event. Set them
	// before Start.
	OnTranscript func(TranscriptSegment)
	OnNote       func(notes.Note)
	OnPoll       func(*polls.Poll)

	mu         sync.RWMutex
	recording  bool
	paused     bool
	meetingID  string
	meetingDir string
	startTime  time.Time

	fullTranscript     strings.Builder
	transcriptSegments []TranscriptSegment
	meetingNotes       []notes.Note
	meetingPolls       []*polls.Poll
	lastNoteOffset     int
	segmentsRecorded   int
	segmentsSkipped    int

	segmenter *audio.Segmenter
	queue     chan *audio.Segment

	// generation fences out workers from a previous session that outlived
	// the shutdown timeout; they must not touch the new session's state.
	generation int

	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	captureWG     sync.WaitGroup
	workerWG      *sync.WaitGroup
}

// New creates a recorder. Source, transcriber and both generators are
// required.
func New(config Config, deps Deps) (*Recorder, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("capture source is required")
	}
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if deps.PollGen == nil {
		return nil, fmt.Errorf("poll generator is required")
	}
	if deps.NoteGen == nil {
		return nil, fmt.Errorf("notes generator is required")
	}

	if config.OutputDir == "" {
		config.OutputDir = "meetings"
	}
	if config.Workers <= 0 {
		config.Workers = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	if config.FramesPerRead <= 0 {
		config.FramesPerRead = 1024
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.SegmentDuration <= 0 {
		config.SegmentDuration = 30 * time.Second
	}
	if config.NoteInterval <= 0 {
		config.NoteInterval = 2 * time.Minute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Minute
	}
	if config.MinTranscriptChars <= 0 {
		config.MinTranscriptChars = 100
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	return &Recorder{config: config, deps: deps}, nil
}

// Start begins a new recording session.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}

	now := time.Now()
	meetingID := "meeting_" + now.Format("20060102_150405")
	meetingDir := filepath.Join(r.config.OutputDir, meetingID)
	if err := os.MkdirAll(meetingDir, 0755); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to create meeting directory: %w", err)
	}
	if r.config.KeepAudio {
		if err := os.MkdirAll(filepath.Join(meetingDir, "segments"), 0755); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("failed to create segments directory: %w", err)
		}
	}

	segmenter, err := audio.NewSegmenter(audio.SegmenterConfig{
		SegmentDuration: r.config.SegmentDuration,
		SampleRate:      r.config.SampleRate,
	})
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to create segmenter: %w", err)
	}

	if err := r.deps.Source.Start(); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	r.recording = true
	r.paused = false
	r.meetingID = meetingID
	r.meetingDir = meetingDir
	r.startTime = now
	r.fullTranscript.Reset()
	r.transcriptSegments = nil
	r.meetingNotes = nil
	r.meetingPolls = nil
	r.lastNoteOffset = 0
	r.segmentsRecorded = 0
	r.segmentsSkipped = 0
	r.segmenter = segmenter
	r.generation++
	gen := r.generation
	queue := make(chan *audio.Segment, r.config.QueueSize)
	r.queue = queue
	workerWG := &sync.WaitGroup{}
	r.workerWG = workerWG
	r.sessionCtx, r.sessionCancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	r.captureWG.Add(2)
	go r.captureLoop(queue)
	go r.analysisLoop()

	for i := 0; i < r.config.Workers; i++ {
		workerWG.Add(1)
		go r.worker(i, gen, workerWG, queue)
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordSessionStarted()
	}

	slog.Info("Recording started",
		"meeting_id", meetingID,
		"meeting_dir", meetingDir,
		"workers", r.config.Workers,
		"segment_duration", r.config.SegmentDuration)

	return nil
}

// Stop ends the session, drains queued segments, writes the transcript and
// the meeting summary, and returns a description of the session. Stopping
// when no session is active returns ErrNotRecording; callers treat that as
// already stopped.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	meetingID := r.meetingID
	meetingDir := r.meetingDir
	startTime := r.startTime
	workerWG := r.workerWG
	r.mu.Unlock()

	slog.Info("Stopping recording", "meeting_id", meetingID)

	// Stop the producers first; the capture loop flushes the partial tail
	// segment into the queue and closes it, then workers drain what is left.
	r.sessionCancel()
	if err := r.deps.Source.Close(); err != nil {
		slog.Warn("Error closing audio source", "error", err)
	}
	r.captureWG.Wait()

	drained := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(r.config.ShutdownTimeout):
		slog.Warn("Timed out waiting for transcription workers to drain",
			"timeout", r.config.ShutdownTimeout)
	}

	r.mu.RLock()
	transcript := r.fullTranscript.String()
	meetingNotes := append([]notes.Note(nil), r.meetingNotes...)
	segments := r.segmentsRecorded
	r.mu.RUnlock()

	transcriptFile := filepath.Join(meetingDir, "transcript.txt")
	if err := r.saveTranscript(); err != nil {
		slog.Error("Failed to save final transcript", "error", err)
	}

	summaryCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	summary := r.deps.NoteGen.GenerateSummary(summaryCtx, meetingID, transcript, meetingNotes)
	summaryFile := filepath.Join(meetingDir, "summary.json")
	if err := summary.Save(summaryFile); err != nil {
		slog.Error("Failed to save meeting summary", "error", err)
	}

	duration := time.Since(startTime)
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordSessionCompleted(duration.Seconds())
	}

	slog.Info("Recording finished",
		"meeting_id", meetingID,
		"duration", duration,
		"segments", segments,
		"transcript_chars", len(transcript))

	return &Result{
		MeetingID:        meetingID,
		MeetingDir:       meetingDir,
		TranscriptFile:   transcriptFile,
		SummaryFile:      summaryFile,
		Duration:         duration,
		SegmentsRecorded: segments,
	}, nil
}

// Pause suspends audio intake. Queued segments keep processing.
func (r *Recorder) Pause() error {
	return r.setPaused(true)
}

// Resume continues audio intake after a pause.
func (r *Recorder) Resume() error {
	return r.setPaused(false)
}

// TogglePause flips the pause state and returns the new state.
func (r *Recorder) TogglePause() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false, ErrNotRecording
	}
	r.paused = !r.paused
	slog.Info("Recording pause toggled", "paused", r.paused)
	return r.paused, nil
}

func (r *Recorder) setPaused(paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.paused = paused
	slog.Info("Recording pause state changed", "paused", paused)
	return nil
}

// Status returns a snapshot of the current session.
func (r *Recorder) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{
		Recording:        r.recording,
		Paused:           r.paused,
		SegmentsRecorded: r.segmentsRecorded,
		SegmentsSkipped:  r.segmentsSkipped,
		TranscriptChars:  r.fullTranscript.Len(),
		NotesGenerated:   len(r.meetingNotes),
		PollsGenerated:   len(r.meetingPolls),
	}
	if r.recording {
		status.MeetingID = r.meetingID
		status.StartTime = r.startTime
		status.DurationSeconds = time.Since(r.startTime).Seconds()
		status.QueueDepth = len(r.queue)
	}
	return status
}

// Transcript returns the accumulated transcript segments.
func (r *Recorder) Transcript() []TranscriptSegment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]TranscriptSegment(nil), r.transcriptSegments...)
}

// Notes returns the notes generated so far.
func (r *Recorder) Notes() []notes.Note {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]notes.Note(nil), r.meetingNotes...)
}

// Polls returns the polls generated so far.
func (r *Recorder) Polls() []*polls.Poll {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*polls.Poll(nil), r.meetingPolls...)
}

// captureLoop reads frames from the source and feeds the segmenter. It owns
// the queue: segments are only ever sent and the channel only ever closed here.
func (r *Recorder) captureLoop(queue chan *audio.Segment) {
	defer r.captureWG.Done()
	defer close(queue)

	buf := make([]int16, r.config.FramesPerRead)

	for {
		select {
		case <-r.sessionCtx.Done():
			r.flushTail(queue)
			return
		default:
		}

		if err := r.deps.Source.Read(buf); err != nil {
			if r.sessionCtx.Err() == nil {
				slog.Error("Audio capture read failed", "error", err)
			}
			r.flushTail(queue)
			return
		}

		if r.isPaused() {
			continue
		}

		for _, seg := range r.segmenter.Write(buf) {
			r.enqueue(queue, seg)
		}
	}
}

// flushTail pushes the partial final segment so the last seconds of audio
// are transcribed too.
func (r *Recorder) flushTail(queue chan *audio.Segment) {
	if tail := r.segmenter.Flush(); tail != nil {
		slog.Info("Flushing final partial segment",
			"segment_id", tail.ID,
			"duration", tail.Duration)
		r.enqueue(queue, tail)
	}
}

// enqueue applies the silence gate and hands the segment to the workers.
// The send blocks when the queue is full so segments are never dropped.
func (r *Recorder) enqueue(queue chan *audio.Segment, seg *audio.Segment) {
	if r.config.SilenceThreshold > 0 && audio.IsSilent(seg.Samples, r.config.SilenceThreshold) {
		r.mu.Lock()
		r.segmentsSkipped++
		r.mu.Unlock()
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordSegmentSkipped()
		}
		slog.Debug("Skipping silent segment",
			"segment_id", seg.ID,
			"rms", seg.RMS())
		return
	}

	queue <- seg

	r.mu.Lock()
	r.segmentsRecorded++
	r.mu.Unlock()
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordSegment(seg.Duration.Seconds(), seg.RMS())
		r.deps.Metrics.SetQueueDepth(len(queue))
	}
}

// worker transcribes segments until the queue is closed and drained.
func (r *Recorder) worker(id, gen int, wg *sync.WaitGroup, queue chan *audio.Segment) {
	defer wg.Done()

	slog.Debug("Transcription worker started", "worker", id)

	for seg := range queue {
		if r.deps.Metrics != nil {
			r.deps.Metrics.SetQueueDepth(len(queue))
		}
		r.processSegment(id, gen, seg)
	}

	slog.Debug("Transcription worker stopped", "worker", id)
}

func (r *Recorder) processSegment(worker, gen int, seg *audio.Segment) {
	r.mu.RLock()
	current := r.generation
	r.mu.RUnlock()
	if gen != current {
		slog.Debug("Discarding segment from an ended session", "segment_id", seg.ID)
		return
	}

	if r.config.KeepAudio {
		if err := r.saveSegmentAudio(seg); err != nil {
			slog.Warn("Failed to save segment audio",
				"segment_id", seg.ID,
				"error", err)
		}
	}

	// Uses a background context so queued segments still get transcribed
	// while the session shuts down.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordTranscriptionRequest()
	}
	start := time.Now()

	result, err := r.deps.Transcriber.Transcribe(ctx, seg)
	if err != nil {
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
		}
		slog.Error("Segment transcription failed",
			"worker", worker,
			"segment_id", seg.ID,
			"segment_index", seg.Index,
			"error", err)
		return
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		slog.Debug("Segment produced empty transcript", "segment_id", seg.ID)
		return
	}

	entry := TranscriptSegment{
		Timestamp: time.Now().Format("15:04:05"),
		Text:      text,
	}

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		slog.Debug("Discarding transcript from an ended session",
			"segment_id", seg.ID)
		return
	}
	if r.fullTranscript.Len() > 0 {
		r.fullTranscript.WriteString("\n\n")
	}
	r.fullTranscript.WriteString(text)
	r.transcriptSegments = append(r.transcriptSegments, entry)
	r.mu.Unlock()

	if err := r.saveTranscript(); err != nil {
		slog.Warn("Failed to save transcript", "error", err)
	}

	slog.Info("Segment transcribed",
		"worker", worker,
		"segment_id", seg.ID,
		"segment_index", seg.Index,
		"chars", len(text))

	if r.OnTranscript != nil {
		r.OnTranscript(entry)
	}
}

func (r *Recorder) saveSegmentAudio(seg *audio.Segment) error {
	data, err := seg.WAV()
	if err != nil {
		return err
	}
	path := filepath.Join(r.meetingDir, "segments", fmt.Sprintf("segment_%04d.wav", seg.Index))
	return os.WriteFile(path, data, 0644)
}

// saveTranscript writes the full transcript with per-segment timestamps.
func (r *Recorder) saveTranscript() error {
	r.mu.RLock()
	meetingDir := r.meetingDir
	meetingID := r.meetingID
	segments := append([]TranscriptSegment(nil), r.transcriptSegments...)
	r.mu.RUnlock()

	if meetingDir == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meeting Transcript: %s\n", meetingID)
	fmt.Fprintf(&b, "Date: %s\n\n", time.Now().Format("2006-01-02"))
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%s] %s\n\n", seg.Timestamp, seg.Text)
	}

	return os.WriteFile(filepath.Join(meetingDir, "transcript.txt"), []byte(b.String()), 0644)
}

// analysisLoop periodically generates notes and polls from the transcript.
func (r *Recorder) analysisLoop() {
	defer r.captureWG.Done()

	noteTicker := time.NewTicker(r.config.NoteInterval)
	defer noteTicker.Stop()
	pollTicker := time.NewTicker(r.config.PollInterval)
	defer pollTicker.Stop()

	slog.Info("Analysis loop started",
		"note_interval", r.config.NoteInterval,
		"poll_interval", r.config.PollInterval)

	for {
		select {
		case <-r.sessionCtx.Done():
			return
		case <-noteTicker.C:
			r.generateNote()
		case <-pollTicker.C:
			r.generatePoll()
		}
	}
}

// generateNote creates a note from the transcript accumulated since the
// previous note.
func (r *Recorder) generateNote() {
	if r.isPaused() {
		return
	}

	r.mu.RLock()
	transcript := r.fullTranscript.String()
	offset := r.lastNoteOffset
	r.mu.RUnlock()

	recent := transcript[offset:]
	if len(strings.TrimSpace(recent)) < minNoteChars {
		slog.Debug("Not enough new transcript content for a note",
			"new_chars", len(recent))
		return
	}

	ctx, cancel := context.WithTimeout(r.sessionCtx, 2*time.Minute)
	defer cancel()

	note := r.deps.NoteGen.GenerateNote(ctx, recent)

	r.mu.Lock()
	r.meetingNotes = append(r.meetingNotes, note)
	r.lastNoteOffset = len(transcript)
	r.mu.Unlock()

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordNoteGenerated()
	}

	slog.Info("Meeting note generated", "timestamp", note.Timestamp)

	if r.OnNote != nil {
		r.OnNote(note)
	}
}

// generatePoll creates a poll from the full transcript and posts it to the
// meeting when a Zoom client is configured.
func (r *Recorder) generatePoll() {
	if r.isPaused() {
		return
	}

	r.mu.RLock()
	transcript := r.fullTranscript.String()
	r.mu.RUnlock()

	if len(transcript) < r.config.MinTranscriptChars {
		slog.Debug("Not enough transcript content for a poll",
			"chars", len(transcript),
			"required", r.config.MinTranscriptChars)
		return
	}

	ctx, cancel := context.WithTimeout(r.sessionCtx, 3*time.Minute)
	defer cancel()

	poll, err := r.deps.PollGen.Generate(ctx, transcript)
	if err != nil {
		slog.Warn("Poll generation skipped", "error", err)
		return
	}

	r.mu.Lock()
	r.meetingPolls = append(r.meetingPolls, poll)
	r.mu.Unlock()

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordPollGenerated()
	}

	slog.Info("Poll generated", "title", poll.Title)

	if r.OnPoll != nil {
		r.OnPoll(poll)
	}

	if r.deps.Zoom != nil {
		r.postPoll(ctx, poll)
	}
}

func (r *Recorder) postPoll(ctx context.Context, poll *polls.Poll) {
	pollID, err := r.deps.Zoom.CreatePoll(ctx, poll)
	if err != nil {
		slog.Error("Failed to post poll to Zoom", "error", err)
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordPollPosted(false)
		}
		return
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordPollPosted(true)
	}

	if r.config.AutoLaunch {
		if err := r.deps.Zoom.LaunchPoll(ctx, pollID); err != nil {
			slog.Error("Failed to launch poll", "poll_id", pollID, "error", err)
			return
		}
		slog.Info("Poll launched in meeting", "poll_id", pollID)
	} else {
		slog.Info("Poll created, launch it from the Zoom client", "poll_id", pollID)
	}
}

func (r *Recorder) isPaused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}
