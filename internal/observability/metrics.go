package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_client_active_sessions",
		Help: "Number of active conversation sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_sessions_total",
		Help: "Total number of conversation sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_client_session_duration_seconds",
		Help:    "Duration of conversation sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Token broker metrics
	tokenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_token_requests_total",
		Help: "Total number of channel endpoint requests to the token broker",
	}, []string{"status"})

	tokenLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_client_token_latency_seconds",
		Help:    "Token broker request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Playback metrics
	chunksEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_chunks_enqueued_total",
		Help: "Total number of agent audio chunks enqueued for playback",
	})

	chunksPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_chunks_played_total",
		Help: "Total number of agent audio chunks handed to the playback sink",
	})

	chunksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_chunks_dropped_total",
		Help: "Total number of agent audio chunks that never reached the sink",
	}, []string{"reason"}) // reason: "flushed" or "decode_failed"

	playbackFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_playback_flushes_total",
		Help: "Total number of playback queue flushes caused by interruptions",
	})

	// Keepalive metrics
	pingsAnswered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_pings_answered_total",
		Help: "Total number of keepalive pings answered",
	})

	// Transcript metrics
	transcriptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_transcript_entries_total",
		Help: "Total number of transcript entries received",
	}, []string{"role"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_client_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_client_frames_sent_total",
		Help: "Total number of captured audio frames sent",
	})
)

// Metrics tracks metrics for a single conversation session
type Metrics struct {
	sessionID      string
	startTime      time.Time
	tokenStartTime time.Time
	mu             sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	duration := time.Since(m.startTime).Seconds()
	sessionDuration.Observe(duration)
}

// RecordTokenStart records the start of a token broker request
func (m *Metrics) RecordTokenStart() {
	m.mu.Lock()
	m.tokenStartTime = time.Now()
	m.mu.Unlock()
}

// RecordTokenEnd records the end of a token broker request
func (m *Metrics) RecordTokenEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.tokenStartTime.IsZero() {
		latency := time.Since(m.tokenStartTime).Seconds()
		tokenLatency.Observe(latency)
	}

	status := "success"
	if !success {
		status = "error"
	}
	tokenRequests.WithLabelValues(status).Inc()
}

// RecordFrameSent records one captured frame sent to the agent
func (m *Metrics) RecordFrameSent(bytes int64) {
	framesSent.Inc()
	audioBytesProcessed.WithLabelValues("out").Add(float64(bytes))
}

// RecordPlaybackChunk records one agent audio chunk enqueued for playback
func (m *Metrics) RecordPlaybackChunk(bytes int64) {
	chunksEnqueued.Inc()
	audioBytesProcessed.WithLabelValues("in").Add(float64(bytes))
}

// RecordChunkPlayed counts one chunk handed to the playback sink. Playback
// outcomes are counted by the drain goroutine, which has no session tracker.
func RecordChunkPlayed() {
	chunksPlayed.Inc()
}

// RecordChunksDropped counts chunks discarded before reaching the sink.
func RecordChunksDropped(reason string, n int) {
	if n > 0 {
		chunksDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordPlaybackFlush records a playback queue flush
func (m *Metrics) RecordPlaybackFlush() {
	playbackFlushes.Inc()
}

// RecordPingAnswered records an answered keepalive ping
func (m *Metrics) RecordPingAnswered() {
	pingsAnswered.Inc()
}

// RecordTranscript records a transcript entry by role ("user" or "agent")
func (m *Metrics) RecordTranscript(role string) {
	transcriptEntries.WithLabelValues(role).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
