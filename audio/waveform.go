// Package audio decodes uploaded audio containers into mono float32 waveforms.
package audio

import (
	"errors"
	"time"
)

var (
	// ErrDecode wraps every failure to turn input bytes into a waveform.
	ErrDecode = errors.New("audio: decode failed")
	// ErrUnsupportedFormat is returned for containers no decoder can handle.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
)

// Waveform is a mono sequence of samples in [-1, 1] at SampleRate Hz.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// downmix averages interleaved frames of numChannels samples into mono.
func downmix(interleaved []float64, numChannels int) []float32 {
	if numChannels <= 1 {
		out := make([]float32, len(interleaved))
		for i, s := range interleaved {
			out[i] = float32(s)
		}
		return out
	}
	numFrames := len(interleaved) / numChannels
	out := make([]float32, numFrames)
	inv := 1.0 / float64(numChannels)
	for i := range numFrames {
		sum := 0.0
		for c := 0; c < numChannels; c++ {
			sum += interleaved[i*numChannels+c]
		}
		out[i] = float32(sum * inv)
	}
	return out
}
