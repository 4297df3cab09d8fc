package audio

import (
	"fmt"
	"math"
)

// FloatToPCM16 converts normalized float samples to 16-bit signed PCM.
// Samples are clamped to [-1, 1]. Negative values scale by 32768 and
// non-negative by 32767: the signed 16-bit range is asymmetric, and scaling
// both sides by the same constant would either overflow at +1.0 or introduce
// a one-bit DC bias.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		f := float64(s)
		if f < -1.0 {
			f = -1.0
		} else if f > 1.0 {
			f = 1.0
		}
		if f < 0 {
			out[i] = int16(f * 32768)
		} else {
			out[i] = int16(f * 32767)
		}
	}
	return out
}

// PCM16ToFloat converts 16-bit signed PCM back to normalized floats,
// mirroring the scaling used by FloatToPCM16.
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		if s < 0 {
			out[i] = float32(float64(s) / 32768)
		} else {
			out[i] = float32(float64(s) / 32767)
		}
	}
	return out
}

// SamplesToBytes serializes PCM16 samples as little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// BytesToSamples parses little-endian PCM16 bytes into samples.
// The byte length must be even.
func BytesToSamples(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples, nil
}

// CalculateRMS calculates the root mean square of PCM16 samples.
// Used for silence detection and the speech indicator, never for
// protocol decisions.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// CalculateRMSFloat is CalculateRMS over normalized float samples.
func CalculateRMSFloat(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
