package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice client
type Config struct {
	// Conversation endpoint configuration
	AgentID       string `envconfig:"AGENT_ID" required:"true"`
	TokenEndpoint string `envconfig:"TOKEN_ENDPOINT" required:"true"` // Broker URL that signs channel endpoints

	// Channel configuration
	ConnectTimeout int `envconfig:"CONNECT_TIMEOUT" default:"10"` // Handshake timeout in seconds
	WriteTimeout   int `envconfig:"WRITE_TIMEOUT" default:"5"`    // Per-message write deadline in seconds

	// Audio processing configuration
	SampleRate         int     `envconfig:"SAMPLE_RATE" default:"16000"`           // Capture and playback rate in Hz
	FrameSize          int     `envconfig:"FRAME_SIZE" default:"4096"`             // Samples per outbound frame
	AudioBufferSize    int     `envconfig:"AUDIO_BUFFER_SIZE" default:"16384"`     // Capture ring buffer size in samples
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"0.015"`  // RMS energy threshold for the speech indicator
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"2"`        // Frames of silence to mark speech end

	// Local audio I/O (file-backed source and sink)
	InputWAVPath  string `envconfig:"INPUT_WAV_PATH" default:""`  // 16 kHz mono WAV to stream as the user's voice
	OutputWAVPath string `envconfig:"OUTPUT_WAV_PATH" default:""` // Destination for received agent audio

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	MetricsPort    string `envconfig:"METRICS_PORT" default:"9090"`    // Port for /metrics, /health and /ready
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("AGENT_ID is required")
	}
	if cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("TOKEN_ENDPOINT is required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("FRAME_SIZE must be positive, got %d", cfg.FrameSize)
	}
	if cfg.AudioBufferSize < cfg.FrameSize {
		return nil, fmt.Errorf("AUDIO_BUFFER_SIZE must be at least FRAME_SIZE (%d), got %d", cfg.FrameSize, cfg.AudioBufferSize)
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
