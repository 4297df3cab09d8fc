package capture

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voicebridge/voice-client/internal/audio"
)

// sliceSource replays a fixed sample slice in small reads.
type sliceSource struct {
	samples []float32
	pos     int
	closed  bool
}

func (s *sliceSource) Open(c Constraints) error { return nil }

func (s *sliceSource) ReadSamples(p []float32) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, ErrSourceExhausted
	}
	limit := s.pos + 512
	if limit > len(s.samples) {
		limit = len(s.samples)
	}
	n := copy(p, s.samples[s.pos:limit])
	s.pos += n
	return n, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func collectFrames(t *testing.T, src Source, config PipelineConfig) [][]float32 {
	t.Helper()

	var mu sync.Mutex
	var frames [][]float32

	p := NewPipeline(src, config)
	h, err := p.Start(DefaultConstraints(), Callbacks{
		OnFrame: func(frame []float32) {
			mu.Lock()
			frames = append(frames, frame)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, h)

	mu.Lock()
	defer mu.Unlock()
	return frames
}

// waitDone waits for a finite source to drain, then stops the pipeline.
func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}
	h.Stop()
}

func TestPipeline_FramesExactSize(t *testing.T) {
	// 2.5 frames of input: two whole frames out, the tail discarded.
	src := &sliceSource{samples: make([]float32, 1024*2+512)}
	frames := collectFrames(t, src, PipelineConfig{FrameSize: 1024, BufferSize: 4096})

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if len(f) != 1024 {
			t.Errorf("frame %d has %d samples, want 1024", i, len(f))
		}
	}
}

func TestPipeline_EveryFrameDeliveredRegardlessOfEnergy(t *testing.T) {
	// Silence must be framed and delivered just like speech.
	src := &sliceSource{samples: make([]float32, 1024*3)}
	frames := collectFrames(t, src, PipelineConfig{FrameSize: 1024, BufferSize: 4096})

	if len(frames) != 3 {
		t.Fatalf("expected 3 silent frames, got %d", len(frames))
	}
}

func TestPipeline_LevelCallback(t *testing.T) {
	samples := make([]float32, 2048)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	src := &sliceSource{samples: samples}

	var mu sync.Mutex
	var levels []float64

	p := NewPipeline(src, PipelineConfig{FrameSize: 1024, BufferSize: 4096})
	h, err := p.Start(DefaultConstraints(), Callbacks{
		OnFrame: func([]float32) {},
		OnLevel: func(level float64) {
			mu.Lock()
			levels = append(levels, level)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, h)

	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 {
		t.Fatal("expected level callbacks")
	}
	for i, l := range levels {
		if l <= 0 || l > 1 {
			t.Errorf("level %d out of range: %f", i, l)
		}
	}
}

func TestPipeline_SpeechEdges(t *testing.T) {
	loud := make([]float32, 1024*2)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 0.5
		} else {
			loud[i] = -0.5
		}
	}
	quiet := make([]float32, 1024*3)
	src := &sliceSource{samples: append(loud, quiet...)}

	var mu sync.Mutex
	var edges []bool

	p := NewPipeline(src, PipelineConfig{
		FrameSize:  1024,
		BufferSize: 4096,
		VAD:        &audio.VADConfig{EnergyThreshold: 0.1, SilenceFrames: 2},
	})
	h, err := p.Start(DefaultConstraints(), Callbacks{
		OnFrame: func([]float32) {},
		OnSpeech: func(speaking bool) {
			mu.Lock()
			edges = append(edges, speaking)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, h)

	mu.Lock()
	defer mu.Unlock()
	if len(edges) != 2 || !edges[0] || edges[1] {
		t.Errorf("expected speech start then end, got %v", edges)
	}
}

func TestPipeline_StopClosesSource(t *testing.T) {
	src := &sliceSource{samples: make([]float32, 1024)}
	p := NewPipeline(src, PipelineConfig{FrameSize: 1024, BufferSize: 4096})
	h, err := p.Start(DefaultConstraints(), Callbacks{OnFrame: func([]float32) {}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.Stop()
	h.Stop() // idempotent

	if !src.closed {
		t.Error("source not closed after Stop")
	}
}

func TestPipeline_ReleaseThenStartReopens(t *testing.T) {
	src := &sliceSource{samples: make([]float32, 1024)}
	p := NewPipeline(src, PipelineConfig{FrameSize: 1024, BufferSize: 4096})

	if err := p.Open(DefaultConstraints()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p.Release()
	if !src.closed {
		t.Fatal("Release must close an opened source")
	}

	h, err := p.Start(DefaultConstraints(), Callbacks{OnFrame: func([]float32) {}})
	if err != nil {
		t.Fatalf("Start after Release failed: %v", err)
	}
	waitDone(t, h)
	if !src.closed {
		t.Error("source not closed after the restarted pipeline finished")
	}
}

// countingSource tallies Open/Close pairs from concurrent callers.
type countingSource struct {
	mu     sync.Mutex
	opens  int
	closes int
}

func (s *countingSource) Open(c Constraints) error {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return nil
}

func (s *countingSource) ReadSamples(p []float32) (int, error) { return 0, ErrSourceExhausted }

func (s *countingSource) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

func (s *countingSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

func TestPipeline_ConcurrentOpenRelease(t *testing.T) {
	src := &countingSource{}
	p := NewPipeline(src, PipelineConfig{FrameSize: 1024, BufferSize: 4096})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Open(DefaultConstraints())
		}()
		go func() {
			defer wg.Done()
			p.Release()
		}()
	}
	wg.Wait()
	p.Release()

	opens, closes := src.counts()
	if opens != closes {
		t.Errorf("every open must pair with one close, got %d opens and %d closes", opens, closes)
	}
}

func TestPipeline_RequiresFrameCallback(t *testing.T) {
	p := NewPipeline(&sliceSource{}, PipelineConfig{FrameSize: 1024})
	if _, err := p.Start(DefaultConstraints(), Callbacks{}); err == nil {
		t.Error("expected error when frame callback is missing")
	}
}

func TestWAVSource(t *testing.T) {
	samples := make([]int16, 2048)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	data, err := audio.EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src := NewWAVSource(path)
	if err := src.Open(DefaultConstraints()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	buf := make([]float32, 4096)
	n, err := src.ReadSamples(buf)
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if n != 2048 {
		t.Errorf("expected 2048 samples, got %d", n)
	}

	if _, err := src.ReadSamples(buf); err == nil {
		t.Error("expected exhaustion error after all samples are read")
	}
}

func TestWAVSource_RateMismatch(t *testing.T) {
	data, err := audio.EncodeWAV(make([]int16, 16), 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wrong-rate.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	src := NewWAVSource(path)
	if err := src.Open(DefaultConstraints()); err == nil {
		t.Error("expected error for sample rate mismatch")
	}
}

func TestWAVSource_Missing(t *testing.T) {
	src := NewWAVSource(filepath.Join(t.TempDir(), "absent.wav"))
	if err := src.Open(DefaultConstraints()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestToneSource(t *testing.T) {
	src := &ToneSource{Frequency: 440, Amplitude: 0.5}
	if err := src.Open(DefaultConstraints()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	buf := make([]float32, 1600)
	n, err := src.ReadSamples(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("ReadSamples returned (%d, %v)", n, err)
	}

	var peak float32
	for _, s := range buf {
		if s > peak {
			peak = s
		}
		if s > 0.51 || s < -0.51 {
			t.Fatalf("sample %f exceeds amplitude", s)
		}
	}
	if peak < 0.4 {
		t.Errorf("tone peak %f too low for amplitude 0.5", peak)
	}
}
