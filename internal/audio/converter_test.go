package audio

import (
	"math"
	"testing"
)

func TestFloatToPCM16_AsymmetricScaling(t *testing.T) {
	// The positive and negative halves of the int16 range differ by one;
	// the converter must use a separate scale factor per side.
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"positive full scale", 1.0, 32767},
		{"negative full scale", -1.0, -32768},
		{"zero", 0.0, 0},
		{"positive half", 0.5, 16383},
		{"negative half", -0.5, -16384},
		{"clamp above", 1.5, 32767},
		{"clamp below", -2.0, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FloatToPCM16([]float32{tt.input})
			if out[0] != tt.expected {
				t.Errorf("FloatToPCM16(%v) = %d, want %d", tt.input, out[0], tt.expected)
			}
		})
	}
}

func TestFloatToPCM16_NoDCBias(t *testing.T) {
	// Symmetric input must produce output summing to zero; a shared scale
	// constant for both signs would skew this by one count per sample pair.
	samples := []float32{0.25, -0.25, 0.75, -0.75}
	out := FloatToPCM16(samples)

	sum := 0
	for i := 0; i < len(out); i += 2 {
		sum += int(out[i]) + int(out[i+1])
	}
	// Truncation allows at most one count of skew per pair.
	if sum < -len(out)/2 || sum > len(out)/2 {
		t.Errorf("symmetric input produced biased output, sum = %d", sum)
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 1000, -1000, 32767, -32768}
	recovered := FloatToPCM16(PCM16ToFloat(samples))
	for i, s := range samples {
		if recovered[i] != s {
			t.Errorf("round trip at index %d: got %d, want %d", i, recovered[i], s)
		}
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 32767, -32768}
	bytes := SamplesToBytes(samples)

	expected := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	if len(bytes) != len(expected) {
		t.Fatalf("expected %d bytes, got %d", len(expected), len(bytes))
	}
	for i, exp := range expected {
		if bytes[i] != exp {
			t.Errorf("expected byte %#x at index %d, got %#x", exp, i, bytes[i])
		}
	}
}

func TestBytesToSamples(t *testing.T) {
	data := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	samples, err := BytesToSamples(data)
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}

	expected := []int16{0, 32767, -32768}
	for i, exp := range expected {
		if samples[i] != exp {
			t.Errorf("expected sample %d at index %d, got %d", exp, i, samples[i])
		}
	}
}

func TestBytesToSamples_OddLength(t *testing.T) {
	if _, err := BytesToSamples([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("expected error for odd-length input")
	}
}

func TestBytesSamplesRoundTrip(t *testing.T) {
	samples := []int16{-32768, -1, 0, 1, 256, 32767}
	recovered, err := BytesToSamples(SamplesToBytes(samples))
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}
	for i, s := range samples {
		if recovered[i] != s {
			t.Errorf("round trip at index %d: got %d, want %d", i, recovered[i], s)
		}
	}
}

func TestCalculateRMS(t *testing.T) {
	samples := []int16{1000, -1000, 2000, -2000}
	rms := CalculateRMS(samples)

	expected := math.Sqrt((1000000 + 1000000 + 4000000 + 4000000) / 4.0)
	if math.Abs(rms-expected) > 0.1 {
		t.Errorf("expected RMS %.2f, got %.2f", expected, rms)
	}
}

func TestCalculateRMS_Empty(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0.0 {
		t.Errorf("expected RMS 0.0 for empty input, got %.2f", rms)
	}
}

func TestCalculateRMSFloat(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	if rms := CalculateRMSFloat(samples); math.Abs(rms-0.5) > 1e-6 {
		t.Errorf("expected RMS 0.5, got %f", rms)
	}
}
