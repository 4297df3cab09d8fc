// Package playback queues decoded agent audio and drains it to a sink in
// arrival order. An interruption flushes everything that has not yet been
// handed to the sink.
package playback

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/voicebridge/voice-client/internal/audio"
	"github.com/voicebridge/voice-client/internal/observability"
	"github.com/voicebridge/voice-client/internal/verr"
)

// Decoder turns one wire chunk into playable samples.
type Decoder interface {
	Decode(chunk []byte) ([]int16, error)
}

// PCM16Decoder interprets chunks as raw little-endian PCM16, the channel's
// native format.
type PCM16Decoder struct{}

func (PCM16Decoder) Decode(chunk []byte) ([]int16, error) {
	samples, err := audio.BytesToSamples(chunk)
	if err != nil {
		return nil, verr.Wrap(verr.KindDecodeFailed, "chunk is not valid PCM16", err)
	}
	return samples, nil
}

// Sink consumes decoded audio. Write blocks for the duration of playback of
// the chunk, which is what serializes output ordering.
type Sink interface {
	Write(samples []int16) error
	Close() error
}

// Pipeline owns the playback queue and its drain goroutine. Chunks play
// strictly in Enqueue order; a chunk that fails to decode is skipped and
// playback continues with the next one.
type Pipeline struct {
	decoder Decoder
	sink    Sink
	logger  zerolog.Logger

	mu      sync.Mutex
	queue   [][]byte
	epoch   uint64
	playing bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	onDrained func()
}

// Config carries optional pipeline hooks.
type Config struct {
	Decoder Decoder
	Sink    Sink
	// OnDrained fires each time the queue empties after playback activity.
	OnDrained func()
}

// NewPipeline creates a playback pipeline and starts its drain goroutine.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Decoder == nil {
		cfg.Decoder = PCM16Decoder{}
	}
	if cfg.Sink == nil {
		cfg.Sink = DiscardSink{}
	}
	p := &Pipeline{
		decoder:   cfg.Decoder,
		sink:      cfg.Sink,
		logger:    observability.ComponentLogger("playback"),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		onDrained: cfg.OnDrained,
	}
	go p.drain()
	return p
}

// Enqueue appends one wire chunk to the playback queue.
func (p *Pipeline) Enqueue(chunk []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, chunk)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Flush discards every chunk that has not yet reached the sink, including one
// whose decode is still in flight. The chunk currently being written, if any,
// finishes; nothing else survives.
func (p *Pipeline) Flush() int {
	p.mu.Lock()
	discarded := len(p.queue)
	p.queue = nil
	p.epoch++
	p.mu.Unlock()

	observability.RecordChunksDropped("flushed", discarded)
	if discarded > 0 {
		p.logger.Debug().Int("discarded", discarded).Msg("Playback queue flushed")
	}
	return discarded
}

// Playing reports whether audio is queued or currently being written.
func (p *Pipeline) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing || len(p.queue) > 0
}

// QueueDepth returns the number of chunks awaiting playback.
func (p *Pipeline) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close flushes the queue, stops the drain goroutine, and closes the sink.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	<-p.done

	return p.sink.Close()
}

func (p *Pipeline) drain() {
	defer close(p.done)

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		if len(p.queue) == 0 {
			wasPlaying := p.playing
			p.playing = false
			p.mu.Unlock()
			if wasPlaying && p.onDrained != nil {
				p.onDrained()
			}
			<-p.wake
			continue
		}
		chunk := p.queue[0]
		p.queue = p.queue[1:]
		p.playing = true
		epoch := p.epoch
		p.mu.Unlock()

		samples, err := p.decoder.Decode(chunk)
		if err != nil {
			// Skip the bad chunk; the stream continues.
			observability.RecordChunksDropped("decode_failed", 1)
			p.logger.Warn().Err(err).Int("bytes", len(chunk)).Msg("Dropping undecodable audio chunk")
			continue
		}

		// A flush that arrived while this chunk was decoding discards it; only
		// a chunk already handed to the sink is allowed to finish.
		p.mu.Lock()
		stale := p.epoch != epoch
		p.mu.Unlock()
		if stale {
			observability.RecordChunksDropped("flushed", 1)
			continue
		}

		if err := p.sink.Write(samples); err != nil {
			p.logger.Error().Err(err).Msg("Playback sink write failed")
			continue
		}
		observability.RecordChunkPlayed()
	}
}
