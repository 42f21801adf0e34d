package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Source produces mono PCM-16 audio frames.
type Source interface {
	// Start opens the underlying device and begins capturing.
	Start() error
	// Read fills buf with captured samples. It blocks until buf is full or
	// an error occurs.
	Read(buf []int16) error
	// Close stops capturing and releases the device.
	Close() error
}

// Config contains audio capture configuration
type Config struct {
	DeviceIndex int // -1 selects the default input device
	SampleRate  int
	Channels    int
}

// PortAudioSource captures audio from a system input device via PortAudio.
type PortAudioSource struct {
	config Config

	stream *portaudio.Stream
	buf    []int16
	rem    []int16

	mu      sync.Mutex
	started bool
}

// NewPortAudioSource initializes PortAudio and prepares a capture source.
// Close stops a capture; Terminate must be called once at process shutdown
// to release the PortAudio context.
func NewPortAudioSource(config Config) (*PortAudioSource, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.Channels != 1 {
		return nil, fmt.Errorf("only mono capture is supported, got %d channels", config.Channels)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioSource{config: config}, nil
}

// Start opens the input stream on the configured device.
func (s *PortAudioSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("capture already started")
	}

	params, err := s.streamParameters()
	if err != nil {
		return err
	}

	s.buf = make([]int16, params.FramesPerBuffer)
	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	s.stream = stream
	s.started = true
	s.rem = nil
	return nil
}

// streamParameters resolves the input device and builds stream parameters.
func (s *PortAudioSource) streamParameters() (portaudio.StreamParameters, error) {
	var device *portaudio.DeviceInfo
	var err error

	if s.config.DeviceIndex < 0 {
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("no default input device: %w", err)
		}
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to query devices: %w", err)
		}
		if s.config.DeviceIndex >= len(devices) {
			return portaudio.StreamParameters{}, fmt.Errorf("device index %d out of range (%d devices)",
				s.config.DeviceIndex, len(devices))
		}
		device = devices[s.config.DeviceIndex]
		if device.MaxInputChannels < 1 {
			return portaudio.StreamParameters{}, fmt.Errorf("device %q has no input channels", device.Name)
		}
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.config.SampleRate)
	params.FramesPerBuffer = 1024

	return params, nil
}

// Read blocks until buf is filled with captured samples. Samples from the
// device buffer that do not fit are carried into the next call, so no audio
// is lost when len(buf) is not a multiple of the device buffer size.
func (s *PortAudioSource) Read(buf []int16) error {
	s.mu.Lock()
	stream := s.stream
	internal := s.buf
	s.mu.Unlock()

	if stream == nil {
		return fmt.Errorf("capture not started")
	}

	rem, err := fillFrames(buf, s.rem, func() ([]int16, error) {
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("stream read failed: %w", err)
		}
		return internal, nil
	})
	s.rem = rem
	return err
}

// fillFrames fills buf from carried-over samples first, then from whole
// chunks produced by next, and returns the unconsumed remainder of the last
// chunk.
func fillFrames(buf, carry []int16, next func() ([]int16, error)) ([]int16, error) {
	filled := copy(buf, carry)
	carry = carry[filled:]

	for filled < len(buf) {
		chunk, err := next()
		if err != nil {
			return carry, err
		}
		n := copy(buf[filled:], chunk)
		filled += n
		if n < len(chunk) {
			carry = append([]int16(nil), chunk[n:]...)
		}
	}

	return carry, nil
}

// Close stops and closes the input stream. The source can be started again
// afterwards.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			firstErr = err
		}
		if err := s.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.stream = nil
	}

	s.started = false
	s.rem = nil
	return firstErr
}

// Terminate releases the PortAudio context acquired by NewPortAudioSource.
// Call it once, after the last capture has been closed.
func (s *PortAudioSource) Terminate() error {
	return portaudio.Terminate()
}
