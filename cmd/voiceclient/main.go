package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicebridge/voice-client/internal/audio"
	"github.com/voicebridge/voice-client/internal/capture"
	"github.com/voicebridge/voice-client/internal/config"
	"github.com/voicebridge/voice-client/internal/observability"
	"github.com/voicebridge/voice-client/internal/playback"
	"github.com/voicebridge/voice-client/internal/session"
	"github.com/voicebridge/voice-client/internal/token"
	"github.com/voicebridge/voice-client/internal/transcript"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("agent_id", cfg.AgentID).
		Str("token_endpoint", cfg.TokenEndpoint).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Client starting")

	broker := token.NewClient(cfg.TokenEndpoint)

	// Operational HTTP surface: health, readiness, metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(broker.Ping))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.MetricsPort).Msg("Operational endpoints listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Operational server failed to start")
		}
	}()

	// Audio source: a WAV file when configured, a test tone otherwise
	var source capture.Source
	if cfg.InputWAVPath != "" {
		source = capture.NewWAVSource(cfg.InputWAVPath)
		logger.Info().Str("path", cfg.InputWAVPath).Msg("Capturing from WAV file")
	} else {
		source = &capture.ToneSource{Frequency: 440, Amplitude: 0.2}
		logger.Warn().Msg("No input configured, capturing a test tone")
	}

	// Audio sink: a WAV file when configured, otherwise discard
	var sink playback.Sink
	if cfg.OutputWAVPath != "" {
		sink = playback.NewWAVSink(cfg.OutputWAVPath, cfg.SampleRate)
		logger.Info().Str("path", cfg.OutputWAVPath).Msg("Writing agent audio to WAV file")
	}

	ended := make(chan struct{}, 1)

	client := session.NewClient(session.Config{
		AgentID:        cfg.AgentID,
		Broker:         broker,
		Source:         source,
		Sink:           sink,
		SampleRate:     cfg.SampleRate,
		FrameSize:      cfg.FrameSize,
		BufferSize:     cfg.AudioBufferSize,
		VAD:            &audio.VADConfig{EnergyThreshold: cfg.VADEnergyThreshold, SilenceFrames: cfg.VADSilenceFrames},
		ConnectTimeout: time.Duration(cfg.ConnectTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.WriteTimeout) * time.Second,
		Callbacks: session.Callbacks{
			OnStatusChange: func(s session.Status) {
				logger.Info().Str("status", s.String()).Msg("Status changed")
				if s == session.StatusDisconnected {
					select {
					case ended <- struct{}{}:
					default:
					}
				}
			},
			OnTranscript: func(e transcript.Entry) {
				if e.IsFinal {
					logger.Info().Str("role", string(e.Role)).Str("text", e.Text).Msg("Transcript")
				}
			},
			OnError: func(err error) {
				logger.Error().Err(err).Msg("Session error")
			},
		},
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectTimeout)*time.Second)
	err = client.Connect(ctx, nil)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start conversation")
		os.Exit(1)
	}

	// Run until interrupted or the conversation ends
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("Shutting down...")
		client.Disconnect()
	case <-ended:
		logger.Info().Msg("Conversation ended")
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Operational server forced to shutdown")
	}

	logger.Info().Msg("Voice Client exited gracefully")
}
