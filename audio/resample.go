package audio

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
)

// alignment lines a conversion's output up with its input.
type alignment struct {
	pad   int // zero samples prepended at the source rate
	start int // output index where the first real sample lands
}

// alignments caches the measured alignment per [from, to] rate pair.
var alignments sync.Map

// Resample converts w to the given sample rate. The output has exactly
// ceil(len * rate / w.SampleRate) samples and starts at the same instant as
// the input. The returned waveform never aliases w.Samples unless the rates
// already match.
func Resample(w Waveform, rate int) (Waveform, error) {
	if rate <= 0 {
		return Waveform{}, fmt.Errorf("invalid target sample rate %d", rate)
	}
	if w.SampleRate == rate {
		return w, nil
	}
	if w.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("invalid source sample rate %d", w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return Waveform{SampleRate: rate}, nil
	}

	a, err := alignFor(w.SampleRate, rate)
	if err != nil {
		return Waveform{}, err
	}

	// Silence on both sides keeps the filter's lead-in and tail off the signal.
	in := make([]float64, a.pad+len(w.Samples)+a.pad)
	for i, s := range w.Samples {
		in[a.pad+i] = float64(s)
	}
	out, err := process(w.SampleRate, rate, in)
	if err != nil {
		return Waveform{}, err
	}

	want := int((int64(len(w.Samples))*int64(rate) + int64(w.SampleRate) - 1) / int64(w.SampleRate))
	samples := make([]float32, want)
	if a.start < len(out) {
		for i, s := range out[a.start:min(len(out), a.start+want)] {
			samples[i] = float32(s)
		}
	}
	return Waveform{Samples: samples, SampleRate: rate}, nil
}

// process runs in through a fresh resampler and drains it.
func process(from, to int, in []float64) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d Hz: %w", from, to, err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler: %w", err)
	}
	return append(out, tail...), nil
}

// alignFor measures where an impulse placed after the lead-in pad comes
// out. The reported filter latency does not match the observed shift, so
// the offset is measured rather than computed.
func alignFor(from, to int) (alignment, error) {
	key := [2]int{from, to}
	if a, ok := alignments.Load(key); ok {
		return a.(alignment), nil
	}

	pad := leadPad(from, to)
	impulse := make([]float64, 2*pad+1)
	impulse[pad] = 1
	out, err := process(from, to, impulse)
	if err != nil {
		return alignment{}, err
	}
	if len(out) == 0 {
		return alignment{}, fmt.Errorf("resample %d -> %d Hz: no output", from, to)
	}

	peak, best := 0, -1.0
	for i, v := range out {
		if av := math.Abs(v); av > best {
			peak, best = i, av
		}
	}
	a := alignment{pad: pad, start: peak}
	alignments.Store(key, a)
	return a, nil
}

// leadPad returns a lead-in of at least 100 ms that converts to a whole
// number of output samples.
func leadPad(from, to int) int {
	step := from / gcd(from, to)
	least := max(from/10, 1)
	return (least + step - 1) / step * step
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
