package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Segment represents a fixed-duration chunk of recorded audio queued for
// transcription.
type Segment struct {
	ID         string        `json:"id"`
	Index      int           `json:"index"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate"`
	Samples    []int16       `json:"-"`
}

// RMS returns the root-mean-square level of the segment normalized to [0, 1].
func (s *Segment) RMS() float64 {
	return RMSLevel(s.Samples)
}

// WAV encodes the segment samples as a mono PCM-16 WAV file.
func (s *Segment) WAV() ([]byte, error) {
	return EncodeWAV(s.Samples, s.SampleRate)
}

// SegmenterConfig contains configuration for the segmentation process
type SegmenterConfig struct {
	SegmentDuration time.Duration
	SampleRate      int
}

// Segmenter accumulates PCM frames into fixed-duration segments. It is safe
// for use from a single producer goroutine with concurrent stat readers.
type Segmenter struct {
	config SegmenterConfig

	samplesPerSegment int
	pending           []int16
	segmentStart      time.Time
	nextIndex         int

	// Statistics
	segmentsCreated uint64
	totalDuration   time.Duration

	mu sync.RWMutex
}

// SegmenterStats represents segmenter statistics
type SegmenterStats struct {
	SegmentsCreated uint64        `json:"segments_created"`
	TotalDuration   time.Duration `json:"total_duration"`
	PendingSamples  int           `json:"pending_samples"`
}

// NewSegmenter creates a new audio segmenter
func NewSegmenter(config SegmenterConfig) (*Segmenter, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.SegmentDuration <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %v", config.SegmentDuration)
	}

	samplesPerSegment := int(config.SegmentDuration.Seconds() * float64(config.SampleRate))
	if samplesPerSegment <= 0 {
		return nil, fmt.Errorf("segment duration %v too short for sample rate %d",
			config.SegmentDuration, config.SampleRate)
	}

	return &Segmenter{
		config:            config,
		samplesPerSegment: samplesPerSegment,
		pending:           make([]int16, 0, samplesPerSegment),
	}, nil
}

// Write appends PCM frames and returns any full segments that became ready.
// A single call can complete more than one segment when the input is larger
// than the remaining segment capacity.
func (s *Segmenter) Write(frames []int16) []*Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(frames) == 0 {
		return nil
	}

	if len(s.pending) == 0 {
		s.segmentStart = time.Now()
	}

	var ready []*Segment
	for len(frames) > 0 {
		space := s.samplesPerSegment - len(s.pending)
		n := len(frames)
		if n > space {
			n = space
		}
		s.pending = append(s.pending, frames[:n]...)
		frames = frames[n:]

		if len(s.pending) == s.samplesPerSegment {
			ready = append(ready, s.cutLocked())
			if len(frames) > 0 {
				s.segmentStart = time.Now()
			}
		}
	}

	return ready
}

// Flush emits the partial tail segment, if any. Called when recording stops
// so the final seconds of audio are not lost.
func (s *Segmenter) Flush() *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	return s.cutLocked()
}

// cutLocked packages the pending samples as a segment. Caller holds s.mu.
func (s *Segmenter) cutLocked() *Segment {
	samples := make([]int16, len(s.pending))
	copy(samples, s.pending)
	s.pending = s.pending[:0]

	duration := time.Duration(float64(len(samples)) / float64(s.config.SampleRate) * float64(time.Second))
	now := time.Now()

	seg := &Segment{
		ID:         uuid.NewString(),
		Index:      s.nextIndex,
		StartTime:  s.segmentStart,
		EndTime:    now,
		Duration:   duration,
		SampleRate: s.config.SampleRate,
		Samples:    samples,
	}

	s.nextIndex++
	s.segmentsCreated++
	s.totalDuration += duration

	return seg
}

// GetStats returns current segmenter statistics
func (s *Segmenter) GetStats() SegmenterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SegmenterStats{
		SegmentsCreated: s.segmentsCreated,
		TotalDuration:   s.totalDuration,
		PendingSamples:  len(s.pending),
	}
}
