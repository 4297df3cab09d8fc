package capture

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voicebridge/voice-client/internal/audio"
	"github.com/voicebridge/voice-client/internal/observability"
	"github.com/voicebridge/voice-client/internal/verr"
)

// PipelineConfig controls framing and the local speech indicator.
type PipelineConfig struct {
	FrameSize  int
	BufferSize int
	VAD        *audio.VADConfig
}

// Callbacks receive pipeline output. OnFrame is required; the others are
// optional UI hooks. All callbacks run on the pipeline goroutine, so they
// must not block.
type Callbacks struct {
	OnFrame  func(frame []float32)
	OnLevel  func(level float64)
	OnSpeech func(speaking bool)
}

// Pipeline pulls samples from a source, accumulates them into fixed-size
// frames, and reports per-frame levels. Levels and speech edges feed the UI
// only; every captured sample is framed and delivered regardless of energy.
type Pipeline struct {
	source Source
	config PipelineConfig
	logger zerolog.Logger

	mu     sync.Mutex
	opened bool
}

// NewPipeline creates a capture pipeline over the given source.
func NewPipeline(source Source, config PipelineConfig) *Pipeline {
	if config.FrameSize <= 0 {
		config.FrameSize = 4096
	}
	if config.BufferSize <= config.FrameSize {
		config.BufferSize = config.FrameSize * 4
	}
	return &Pipeline{
		source: source,
		config: config,
		logger: observability.ComponentLogger("capture"),
	}
}

// Handle controls a running pipeline. Stop is synchronous: when it returns,
// no further callbacks fire and the source is closed.
type Handle struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Stop halts capture and closes the source. Safe to call more than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

// Done is closed when the pipeline goroutine exits, either because Stop was
// called or because a finite source ran out of samples.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Open acquires the source without starting the frame loop. It lets callers
// validate capture access before committing to the rest of a connection
// sequence. Start calls it implicitly when needed.
func (p *Pipeline) Open(constraints Constraints) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened {
		return nil
	}
	if err := p.source.Open(constraints); err != nil {
		return err
	}
	p.opened = true
	return nil
}

// Release closes the source if it is open. Open and Release may race from
// different goroutines during a teardown; whichever runs second wins.
func (p *Pipeline) Release() {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		return
	}
	p.opened = false
	p.mu.Unlock()
	if err := p.source.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to close capture source")
	}
}

// Start opens the source if needed and begins framing on a background
// goroutine.
func (p *Pipeline) Start(constraints Constraints, cb Callbacks) (*Handle, error) {
	if cb.OnFrame == nil {
		return nil, verr.New(verr.KindUnknown, "capture pipeline requires a frame callback")
	}
	if err := p.Open(constraints); err != nil {
		return nil, err
	}

	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go p.run(h, cb)

	p.logger.Info().
		Int("frame_size", p.config.FrameSize).
		Int("sample_rate", constraints.SampleRate).
		Msg("Capture pipeline started")

	return h, nil
}

func (p *Pipeline) run(h *Handle, cb Callbacks) {
	defer close(h.done)
	defer p.Release()

	ring := audio.NewRingBuffer(p.config.BufferSize + 1)
	meter := audio.NewMeter()
	vad := audio.NewVADDetector(p.config.VAD)

	readBuf := make([]float32, p.config.FrameSize/4)
	frame := make([]float32, p.config.FrameSize)

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := p.source.ReadSamples(readBuf)
		if n > 0 {
			if written := ring.Write(readBuf[:n]); written < n {
				p.logger.Warn().
					Int("dropped", n-written).
					Msg("Capture buffer overflow, dropping samples")
			}
		}
		if err != nil {
			p.logger.Debug().Err(err).Msg("Capture source finished")
			p.drain(ring, frame, cb, vad, meter)
			return
		}

		for ring.Available() >= p.config.FrameSize {
			ring.Read(frame)
			p.emit(frame, cb, vad, meter)
		}
	}
}

// drain flushes any remaining whole frames after the source ends. A partial
// tail shorter than one frame is discarded.
func (p *Pipeline) drain(ring *audio.RingBuffer, frame []float32, cb Callbacks, vad *audio.VADDetector, meter *audio.Meter) {
	for ring.Available() >= p.config.FrameSize {
		ring.Read(frame)
		p.emit(frame, cb, vad, meter)
	}
}

func (p *Pipeline) emit(frame []float32, cb Callbacks, vad *audio.VADDetector, meter *audio.Meter) {
	// Callbacks may retain the slice; hand out a copy.
	out := make([]float32, len(frame))
	copy(out, frame)
	cb.OnFrame(out)

	if cb.OnLevel != nil {
		cb.OnLevel(meter.Level(frame))
	}
	if cb.OnSpeech != nil {
		_, started, ended := vad.ProcessFrame(frame)
		if started {
			cb.OnSpeech(true)
		}
		if ended {
			cb.OnSpeech(false)
		}
	}
}
