package audio

import "math"

// meterFFTSize is the number of samples analyzed per level reading.
// 256 gives 128 usable magnitude bins, enough resolution for a UI meter.
const meterFFTSize = 256

// Meter derives a normalized 0-1 level from the magnitude spectrum of an
// audio frame. The spectrum average tracks perceived loudness better than a
// plain peak and is what the level callback reports to the UI. The output
// drives metering only, never protocol decisions.
type Meter struct {
	re []float64
	im []float64
}

// NewMeter creates a level meter.
func NewMeter() *Meter {
	return &Meter{
		re: make([]float64, meterFFTSize),
		im: make([]float64, meterFFTSize),
	}
}

// Level computes the normalized level of a frame. Frames shorter than the
// analysis window are zero-padded; longer frames use the leading window.
func (m *Meter) Level(frame []float32) float64 {
	n := meterFFTSize
	for i := 0; i < n; i++ {
		if i < len(frame) {
			m.re[i] = float64(frame[i])
		} else {
			m.re[i] = 0
		}
		m.im[i] = 0
	}

	fft(m.re, m.im)

	// Average magnitude over the positive-frequency bins, skipping DC.
	sum := 0.0
	bins := n / 2
	for i := 1; i <= bins; i++ {
		sum += math.Hypot(m.re[i], m.im[i])
	}
	// A full-scale sine concentrates magnitude n/2 into a single bin, so
	// sum/(2n) maps it to 0.25 and leaves headroom for broadband signals.
	level := sum / (2 * float64(n))
	if level > 1 {
		level = 1
	}
	return level
}

// fft performs an in-place iterative radix-2 FFT. len(re) must be a power
// of two and equal to len(im).
func fft(re, im []float64) {
	n := len(re)

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				evenRe, evenIm := re[start+k], im[start+k]
				oddRe := re[start+k+half]*curRe - im[start+k+half]*curIm
				oddIm := re[start+k+half]*curIm + im[start+k+half]*curRe
				re[start+k] = evenRe + oddRe
				im[start+k] = evenIm + oddIm
				re[start+k+half] = evenRe - oddRe
				im[start+k+half] = evenIm - oddIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}
