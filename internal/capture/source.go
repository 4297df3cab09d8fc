// Package capture produces fixed-size audio frames from a sample source.
// Sources are pluggable; files and synthesized tones stand in wherever a
// hardware device is unavailable.
package capture

import (
	"math"
	"os"

	"github.com/voicebridge/voice-client/internal/audio"
	"github.com/voicebridge/voice-client/internal/verr"
)

// Constraints describes the capture format a source must deliver. Processing
// flags are hints; a source that cannot honor them still opens.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints matches the conversation channel's wire format.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       16000,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Source yields normalized float32 samples in [-1, 1]. ReadSamples fills p
// and returns the count read; it returns (0, ErrSourceExhausted) when a
// finite source runs out. A device-backed source blocks in ReadSamples until
// samples arrive, which paces the pipeline at the capture rate.
type Source interface {
	Open(c Constraints) error
	ReadSamples(p []float32) (int, error)
	Close() error
}

// ErrSourceExhausted reports that a finite source has no more samples.
var ErrSourceExhausted = verr.New(verr.KindDeviceUnavailable, "source exhausted")

// WAVSource streams samples from a 16-bit mono WAV file.
type WAVSource struct {
	path    string
	samples []float32
	pos     int
}

// NewWAVSource creates a source backed by the WAV file at path.
func NewWAVSource(path string) *WAVSource {
	return &WAVSource{path: path}
}

// Open loads and validates the file against the requested constraints.
func (s *WAVSource) Open(c Constraints) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsPermission(err) {
			return verr.Wrap(verr.KindPermissionDenied, "cannot read capture file", err)
		}
		return verr.Wrap(verr.KindDeviceUnavailable, "cannot open capture file", err)
	}

	pcm, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return verr.Wrap(verr.KindDeviceUnavailable, "capture file is not valid audio", err)
	}
	if rate != c.SampleRate {
		return verr.Newf(verr.KindDeviceUnavailable, "capture file sample rate %d does not match required %d", rate, c.SampleRate)
	}

	s.samples = audio.PCM16ToFloat(pcm)
	s.pos = 0
	return nil
}

func (s *WAVSource) ReadSamples(p []float32) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, ErrSourceExhausted
	}
	n := copy(p, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *WAVSource) Close() error {
	s.samples = nil
	return nil
}

// ToneSource synthesizes a continuous sine tone. Useful for loopback and
// level-meter checks without audio hardware.
type ToneSource struct {
	Frequency float64
	Amplitude float64

	sampleRate int
	phase      float64
	open       bool
}

func (s *ToneSource) Open(c Constraints) error {
	if s.Frequency <= 0 {
		s.Frequency = 440
	}
	if s.Amplitude <= 0 || s.Amplitude > 1 {
		s.Amplitude = 0.5
	}
	s.sampleRate = c.SampleRate
	s.open = true
	return nil
}

func (s *ToneSource) ReadSamples(p []float32) (int, error) {
	if !s.open {
		return 0, verr.New(verr.KindDeviceUnavailable, "tone source not open")
	}
	step := 2 * math.Pi * s.Frequency / float64(s.sampleRate)
	for i := range p {
		p[i] = float32(s.Amplitude * math.Sin(s.phase))
		s.phase += step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return len(p), nil
}

func (s *ToneSource) Close() error {
	s.open = false
	return nil
}
