// Package session owns a single conversation: the duplex channel to the
// remote agent, the connection state machine, and the wiring between
// capture, playback and transcripts.
package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicebridge/voice-client/internal/audio"
	"github.com/voicebridge/voice-client/internal/capture"
	"github.com/voicebridge/voice-client/internal/observability"
	"github.com/voicebridge/voice-client/internal/playback"
	"github.com/voicebridge/voice-client/internal/transcript"
	"github.com/voicebridge/voice-client/internal/verr"
	"github.com/voicebridge/voice-client/internal/wire"
)

// EndpointFetcher exchanges an agent ID for a signed channel URL.
type EndpointFetcher interface {
	FetchChannelEndpoint(ctx context.Context, agentID string, dynamicVariables map[string]string) (string, error)
}

// Callbacks are the client's outward interface. Status changes fire
// synchronously before any other side effect of the transition. Callbacks
// run on client goroutines; they must not block and must not call back into
// the client.
type Callbacks struct {
	OnStatusChange func(status Status)
	OnTranscript   func(entry transcript.Entry)
	OnError        func(err error)
	OnAudioLevel   func(level float64)
	OnSpeech       func(speaking bool)
}

// Config assembles a client's collaborators.
type Config struct {
	AgentID string
	Broker  EndpointFetcher
	Source  capture.Source

	// Playback output; nil means discard.
	Sink    playback.Sink
	Decoder playback.Decoder

	SampleRate int
	FrameSize  int
	BufferSize int
	VAD        *audio.VADConfig

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	Callbacks Callbacks
}

// Client runs one conversation at a time. All exported methods are safe for
// concurrent use.
type Client struct {
	config Config

	mu             sync.RWMutex
	status         Status
	conn           *websocket.Conn
	captureHandle  *capture.Handle
	conversationID string
	closing        bool

	writeMu sync.Mutex

	capturePipeline  *capture.Pipeline
	playbackPipeline *playback.Pipeline
	transcripts      *transcript.Store

	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewClient creates a client. It does not touch the network or the capture
// source until Connect.
func NewClient(cfg Config) *Client {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 4096
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	correlationID := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(correlationID).
		With().
		Str("component", "session").
		Str("agent_id", cfg.AgentID).
		Logger()

	c := &Client{
		config:      cfg,
		status:      StatusDisconnected,
		transcripts: transcript.NewStore(),
		metrics:     observability.NewSessionMetrics(correlationID),
		logger:      logger,
	}
	c.capturePipeline = capture.NewPipeline(cfg.Source, capture.PipelineConfig{
		FrameSize:  cfg.FrameSize,
		BufferSize: cfg.BufferSize,
		VAD:        cfg.VAD,
	})
	c.playbackPipeline = playback.NewPipeline(playback.Config{
		Decoder: cfg.Decoder,
		Sink:    cfg.Sink,
	})
	return c
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ConversationID returns the identifier assigned by the remote agent, empty
// until the initiation acknowledgment arrives.
func (c *Client) ConversationID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversationID
}

// Transcript returns a snapshot of the conversation history.
func (c *Client) Transcript() []transcript.Entry {
	return c.transcripts.All()
}

// PlaybackQueueDepth reports how many agent audio chunks await playback.
func (c *Client) PlaybackQueueDepth() int {
	return c.playbackPipeline.QueueDepth()
}

// setStatusLocked transitions the state machine and notifies. Caller holds
// c.mu.
func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.logger.Info().Str("status", s.String()).Msg("Session status changed")
	if c.config.Callbacks.OnStatusChange != nil {
		c.config.Callbacks.OnStatusChange(s)
	}
}

// Connect opens the capture source, acquires a signed endpoint, dials the
// channel, and starts streaming. Calling it while already connecting or
// connected is a logged no-op.
func (c *Client) Connect(ctx context.Context, dynamicVariables map[string]string) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusConnected {
		c.logger.Warn().Str("status", c.status.String()).Msg("Connect called while session active, ignoring")
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	constraints := capture.Constraints{
		SampleRate:       c.config.SampleRate,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}

	// Capture access is the precondition for everything else; fail before
	// spending a single-use signed URL.
	if err := c.capturePipeline.Open(constraints); err != nil {
		return c.failConnect(err)
	}

	c.metrics.RecordTokenStart()
	endpoint, err := c.config.Broker.FetchChannelEndpoint(ctx, c.config.AgentID, dynamicVariables)
	c.metrics.RecordTokenEnd(err == nil)
	if err != nil {
		// The source acquired in the first step is released by the teardown.
		return c.failConnect(err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return c.failConnect(classifyDialError(err))
	}

	if len(dynamicVariables) > 0 {
		payload, err := wire.InitiationEnvelope(dynamicVariables)
		if err == nil {
			err = c.writeToConn(conn, payload)
		}
		if err != nil {
			conn.Close()
			return c.failConnect(verr.Wrap(verr.KindChannelOpenFailed, "failed to send initiation", err))
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.setStatusLocked(StatusConnected)
	c.mu.Unlock()

	c.metrics.RecordSessionStart()

	go c.readLoop(conn)

	handle, err := c.capturePipeline.Start(constraints, capture.Callbacks{
		OnFrame:  c.sendFrame,
		OnLevel:  c.config.Callbacks.OnAudioLevel,
		OnSpeech: c.config.Callbacks.OnSpeech,
	})
	if err != nil {
		return c.failConnect(err)
	}

	c.mu.Lock()
	if c.closing {
		// The remote closed the channel before capture came up and the read
		// loop already ran the teardown. Stop the freshly started capture so
		// no source outlives the session.
		c.mu.Unlock()
		handle.Stop()
		c.logger.Info().Msg("Channel closed during connect, capture stopped")
		return nil
	}
	c.captureHandle = handle
	c.mu.Unlock()

	c.logger.Info().Msg("Conversation session established")
	return nil
}

// failConnect reports the cause through the error state, then runs the full
// teardown. The error state is never terminal; every failed attempt lands in
// disconnected.
func (c *Client) failConnect(err error) error {
	c.metrics.RecordError(verr.KindOf(err).String(), "session")
	c.mu.Lock()
	c.setStatusLocked(StatusError)
	c.mu.Unlock()
	if c.config.Callbacks.OnError != nil {
		c.config.Callbacks.OnError(err)
	}
	c.logger.Error().Err(err).Msg("Failed to establish conversation session")
	c.Disconnect()
	return err
}

func classifyDialError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return verr.Wrap(verr.KindTimeout, "channel handshake timed out", err)
	}
	return verr.Wrap(verr.KindChannelOpenFailed, "failed to open conversation channel", err)
}

// Disconnect tears the session down in a fixed order: channel, capture,
// playback queue, state. Safe to call repeatedly and from any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	handle := c.captureHandle
	wasConnected := c.status == StatusConnected
	c.conn = nil
	c.captureHandle = nil
	c.closing = true
	c.mu.Unlock()

	if conn != nil {
		// Best-effort close frame; the hard close follows regardless.
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}

	if handle != nil {
		handle.Stop()
	} else {
		c.capturePipeline.Release()
	}

	c.playbackPipeline.Flush()

	c.mu.Lock()
	c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()

	if wasConnected {
		c.metrics.RecordSessionEnd()
		c.logger.Info().Msg("Conversation session closed")
	}
}

// Close releases the client entirely, including the playback sink. The
// client cannot be reused afterwards.
func (c *Client) Close() error {
	c.Disconnect()
	return c.playbackPipeline.Close()
}

// SendText sends typed text into the conversation. Outside the connected
// state it logs and drops the text rather than failing the caller.
func (c *Client) SendText(text string) {
	c.mu.RLock()
	conn := c.conn
	connected := c.status == StatusConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		c.logger.Warn().Msg("SendText while not connected, dropping text")
		return
	}

	payload, err := wire.UserInputEnvelope(text)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode text input")
		return
	}
	if err := c.writeToConn(conn, payload); err != nil {
		c.logger.Error().Err(err).Msg("Failed to send text input")
		return
	}

	// Typed input never echoes back as a user transcript; record it locally.
	entry := transcript.Entry{Role: transcript.RoleUser, Text: text, IsFinal: true, Timestamp: time.Now()}
	c.transcripts.Append(entry)
	c.metrics.RecordTranscript("user")
	if c.config.Callbacks.OnTranscript != nil {
		c.config.Callbacks.OnTranscript(entry)
	}
}

// sendFrame runs on the capture goroutine for every framed chunk.
func (c *Client) sendFrame(frame []float32) {
	c.mu.RLock()
	conn := c.conn
	connected := c.status == StatusConnected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return
	}

	payload, err := wire.EncodeAudioFrame(frame)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode audio frame")
		c.metrics.RecordError(verr.KindUnknown.String(), "capture")
		return
	}
	if err := c.writeToConn(conn, payload); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to send audio frame")
		return
	}
	c.metrics.RecordFrameSent(int64(len(frame) * 2))
}

// writeToConn serializes channel writes; audio frames and control replies
// share one connection.
func (c *Client) writeToConn(conn *websocket.Conn, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop routes every inbound message until the channel closes.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.RLock()
			closing := c.closing
			c.mu.RUnlock()
			if !closing {
				// Remote closed the channel; land in disconnected, not error.
				c.logger.Info().Err(err).Msg("Channel closed by remote")
				c.Disconnect()
			}
			return
		}
		c.route(conn, wire.Parse(data))
	}
}

// route dispatches one parsed message. Pings are answered before anything
// else is touched, in the same loop turn they arrive in.
func (c *Client) route(conn *websocket.Conn, msg wire.Message) {
	switch m := msg.(type) {
	case wire.Ping:
		payload, err := wire.PongEnvelope(m.EventID)
		if err == nil {
			err = c.writeToConn(conn, payload)
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to answer ping")
			return
		}
		c.metrics.RecordPingAnswered()

	case wire.Audio:
		c.metrics.RecordPlaybackChunk(int64(len(m.Data)))
		c.playbackPipeline.Enqueue(m.Data)

	case wire.Interruption:
		discarded := c.playbackPipeline.Flush()
		c.metrics.RecordPlaybackFlush()
		c.logger.Debug().Int("discarded", discarded).Msg("Interruption, flushed playback")

	case wire.AgentTranscript:
		entry := transcript.Entry{Role: transcript.RoleAgent, Text: m.Text, IsFinal: true, Timestamp: time.Now()}
		c.transcripts.Append(entry)
		c.metrics.RecordTranscript("agent")
		if c.config.Callbacks.OnTranscript != nil {
			c.config.Callbacks.OnTranscript(entry)
		}

	case wire.UserTranscript:
		entry := transcript.Entry{Role: transcript.RoleUser, Text: m.Text, IsFinal: m.IsFinal, Timestamp: time.Now()}
		c.transcripts.Append(entry)
		if m.IsFinal {
			c.metrics.RecordTranscript("user")
		}
		if c.config.Callbacks.OnTranscript != nil {
			c.config.Callbacks.OnTranscript(entry)
		}

	case wire.Init:
		c.mu.Lock()
		c.conversationID = m.ConversationID
		c.mu.Unlock()
		c.logger.Info().Str("conversation_id", m.ConversationID).Msg("Conversation initiated")

	case wire.ServerError:
		// Reported, never fatal; the channel stays open.
		err := verr.New(verr.KindServerError, m.Message)
		c.metrics.RecordError(verr.KindServerError.String(), "remote")
		c.logger.Warn().Str("message", m.Message).Msg("Remote reported an error")
		if c.config.Callbacks.OnError != nil {
			c.config.Callbacks.OnError(err)
		}

	case wire.SessionEnd:
		c.logger.Info().Msg("Remote ended the conversation")
		c.Disconnect()

	case wire.Unknown:
		c.logger.Debug().Str("type", m.Type).Msg("Ignoring unrecognized message")
	}
}
