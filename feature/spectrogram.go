package feature

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Extractor computes normalized spectrograms. It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	pool   sync.Pool // *workspace
}

// workspace holds per-goroutine FFT state; fourier.FFT is not reentrant.
type workspace struct {
	fft    *fourier.FFT
	frame  []float64
	coeffs []complex128
}

// NewExtractor validates cfg and builds an Extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config: %w", err)
	}
	e := &Extractor{
		cfg:    cfg,
		window: HannWindow(cfg.FrameLength),
	}
	e.pool.New = func() any {
		return &workspace{
			fft:    fourier.NewFFT(cfg.FFTLength),
			frame:  make([]float64, cfg.FFTLength),
			coeffs: make([]complex128, cfg.NumBins()),
		}
	}
	return e, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract returns the normalized magnitude^0.5 spectrogram of samples.
func (e *Extractor) Extract(samples []float32) Matrix {
	m := e.Spectrogram(samples)
	Normalize(m, e.cfg.Epsilon)
	return m
}

// Spectrogram returns the unnormalized magnitude^0.5 spectrogram of samples.
func (e *Extractor) Spectrogram(samples []float32) Matrix {
	cfg := e.cfg
	numFrames := NumFrames(len(samples), cfg.FrameLength, cfg.FrameStep)
	out := NewMatrix(numFrames, cfg.NumBins())

	ws := e.pool.Get().(*workspace)
	defer e.pool.Put(ws)

	frame := ws.frame[:cfg.FrameLength]
	for t := range numFrames {
		Frame(frame, samples, t, cfg.FrameStep)
		for i, w := range e.window {
			frame[i] *= w
		}
		// the tail past FrameLength stays zero from allocation

		ws.coeffs = ws.fft.Coefficients(ws.coeffs, ws.frame)
		row := out[t]
		for k, c := range ws.coeffs {
			row[k] = float32(math.Sqrt(cmplx.Abs(c)))
		}
	}
	return out
}
