package audio

// VADConfig holds configuration for voice activity detection.
type VADConfig struct {
	EnergyThreshold float64 // RMS threshold for speech detection (normalized float scale)
	SilenceFrames   int     // consecutive silent frames to mark end of speech
}

// DefaultVADConfig returns a default VAD configuration tuned for 4096-sample
// frames at 16kHz (256ms per frame).
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 0.015,
		SilenceFrames:   2,
	}
}

// VADDetector performs energy-based voice activity detection over capture
// frames. Its output feeds the UI speech indicator only; it has no effect
// on what is transmitted.
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a VAD detector.
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame classifies a frame and returns (isSpeaking, speechStarted,
// speechEnded).
func (v *VADDetector) ProcessFrame(frame []float32) (bool, bool, bool) {
	rms := CalculateRMSFloat(frame)
	frameHasSpeech := rms > v.config.EnergyThreshold

	var speechStarted, speechEnded bool
	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}
	return v.isSpeaking, speechStarted, speechEnded
}

// Reset clears detector state.
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
}

// IsSpeaking reports whether speech is currently detected.
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}
