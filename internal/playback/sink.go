package playback

import (
	"os"
	"sync"

	"github.com/voicebridge/voice-client/internal/audio"
	"github.com/voicebridge/voice-client/internal/verr"
)

// DiscardSink drops all audio. Used when no output destination is
// configured.
type DiscardSink struct{}

func (DiscardSink) Write(samples []int16) error { return nil }
func (DiscardSink) Close() error                { return nil }

// WAVSink accumulates played audio and writes a single WAV file on Close.
type WAVSink struct {
	path       string
	sampleRate int

	mu      sync.Mutex
	samples []int16
	closed  bool
}

// NewWAVSink creates a sink that writes the session's agent audio to path.
func NewWAVSink(path string, sampleRate int) *WAVSink {
	return &WAVSink{path: path, sampleRate: sampleRate}
}

func (s *WAVSink) Write(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return verr.New(verr.KindDeviceUnavailable, "sink already closed")
	}
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *WAVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if len(s.samples) == 0 {
		return nil
	}
	data, err := audio.EncodeWAV(s.samples, s.sampleRate)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
