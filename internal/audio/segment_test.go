package audio

import (
	"testing"
	"time"
)

func testSegmenter(t *testing.T, segmentDuration time.Duration) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(SegmenterConfig{
		SegmentDuration: segmentDuration,
		SampleRate:      16000,
	})
	if err != nil {
		t.Fatalf("NewSegmenter failed: %v", err)
	}
	return s
}

func TestNewSegmenterInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config SegmenterConfig
	}{
		{"zero sample rate", SegmenterConfig{SegmentDuration: time.Second}},
		{"zero duration", SegmenterConfig{SampleRate: 16000}},
		{"negative duration", SegmenterConfig{SegmentDuration: -time.Second, SampleRate: 16000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSegmenter(tt.config); err == nil {
				t.Error("Expected error for invalid config")
			}
		})
	}
}

func TestSegmenterAccumulates(t *testing.T) {
	s := testSegmenter(t, time.Second) // 16000 samples per segment

	// Half a segment: nothing ready yet
	ready := s.Write(make([]int16, 8000))
	if len(ready) != 0 {
		t.Fatalf("Expected no segments after half fill, got %d", len(ready))
	}

	// Complete the segment exactly
	ready = s.Write(make([]int16, 8000))
	if len(ready) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(ready))
	}

	seg := ready[0]
	if len(seg.Samples) != 16000 {
		t.Errorf("Expected 16000 samples, got %d", len(seg.Samples))
	}
	if seg.Index != 0 {
		t.Errorf("Expected segment index 0, got %d", seg.Index)
	}
	if seg.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", seg.SampleRate)
	}
	if seg.Duration != time.Second {
		t.Errorf("Expected duration 1s, got %v", seg.Duration)
	}
	if seg.ID == "" {
		t.Error("Expected non-empty segment ID")
	}
}

func TestSegmenterMultipleSegmentsPerWrite(t *testing.T) {
	s := testSegmenter(t, time.Second)

	// 2.5 segments worth of samples in one write
	ready := s.Write(make([]int16, 40000))
	if len(ready) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(ready))
	}

	if ready[0].Index != 0 || ready[1].Index != 1 {
		t.Errorf("Expected indexes 0 and 1, got %d and %d", ready[0].Index, ready[1].Index)
	}

	// The remaining half segment comes out on flush
	tail := s.Flush()
	if tail == nil {
		t.Fatal("Expected tail segment from Flush")
	}
	if len(tail.Samples) != 8000 {
		t.Errorf("Expected 8000 tail samples, got %d", len(tail.Samples))
	}
	if tail.Index != 2 {
		t.Errorf("Expected tail index 2, got %d", tail.Index)
	}
}

func TestSegmenterFlushEmpty(t *testing.T) {
	s := testSegmenter(t, time.Second)

	if seg := s.Flush(); seg != nil {
		t.Errorf("Expected nil from Flush with no pending samples, got %v", seg)
	}
}

func TestSegmenterNoSampleLoss(t *testing.T) {
	s := testSegmenter(t, time.Second)

	// Write odd-sized frames and verify every sample comes back out
	total := 0
	var out []*Segment
	for _, n := range []int{1000, 999, 17000, 3, 15000, 12345} {
		frames := make([]int16, n)
		for i := range frames {
			frames[i] = int16(total + i)
		}
		total += n
		out = append(out, s.Write(frames)...)
	}
	if tail := s.Flush(); tail != nil {
		out = append(out, tail)
	}

	got := 0
	for _, seg := range out {
		got += len(seg.Samples)
	}
	if got != total {
		t.Errorf("Expected %d samples across segments, got %d", total, got)
	}

	stats := s.GetStats()
	if stats.SegmentsCreated != uint64(len(out)) {
		t.Errorf("Expected %d segments in stats, got %d", len(out), stats.SegmentsCreated)
	}
	if stats.PendingSamples != 0 {
		t.Errorf("Expected no pending samples after flush, got %d", stats.PendingSamples)
	}
}

func TestSegmentWAV(t *testing.T) {
	s := testSegmenter(t, time.Second)

	ready := s.Write(make([]int16, 16000))
	if len(ready) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(ready))
	}

	wavData, err := ready[0].WAV()
	if err != nil {
		t.Fatalf("Segment WAV encoding failed: %v", err)
	}

	_, rate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("Decoding segment WAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
}
