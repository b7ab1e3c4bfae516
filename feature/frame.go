package feature

import "math"

// NumFrames returns how many frames n samples produce. Inputs shorter than
// one frame, including empty ones, still yield a single zero-padded frame.
func NumFrames(n, frameLen, frameStep int) int {
	if n < frameLen {
		return 1
	}
	return 1 + (n-frameLen)/frameStep
}

// Frame copies frame i of samples into dst, zero-filling past the end of the
// input. len(dst) is the frame length.
func Frame(dst []float64, samples []float32, i, frameStep int) {
	start := i * frameStep
	for j := range dst {
		if k := start + j; k < len(samples) {
			dst[j] = float64(samples[k])
		} else {
			dst[j] = 0
		}
	}
}

// HannWindow returns the periodic Hann window of length n.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
