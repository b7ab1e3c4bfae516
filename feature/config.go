// Package feature turns mono waveforms into normalized magnitude spectrograms.
package feature

import "fmt"

// Config holds the short-time Fourier transform parameters.
type Config struct {
	FrameLength int     // samples per analysis frame
	FrameStep   int     // hop between frame starts, in samples
	FFTLength   int     // transform size; frames are zero-padded up to it
	Epsilon     float64 // added to the per-bin standard deviation
}

// DefaultConfig returns the standard spectrogram configuration.
func DefaultConfig() Config {
	return Config{
		FrameLength: 256,
		FrameStep:   160,
		FFTLength:   384,
		Epsilon:     1e-10,
	}
}

// NumBins returns the number of frequency bins per frame.
func (c Config) NumBins() int {
	return c.FFTLength/2 + 1
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case c.FrameLength <= 0:
		return fmt.Errorf("frame length must be positive, got %d", c.FrameLength)
	case c.FrameStep <= 0:
		return fmt.Errorf("frame step must be positive, got %d", c.FrameStep)
	case c.FFTLength < c.FrameLength:
		return fmt.Errorf("fft length %d shorter than frame length %d", c.FFTLength, c.FrameLength)
	case c.Epsilon < 0:
		return fmt.Errorf("epsilon must not be negative, got %g", c.Epsilon)
	}
	return nil
}
