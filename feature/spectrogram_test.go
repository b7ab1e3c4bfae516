package feature

import (
	"math"
	"math/rand"
	"sync"
	"testing"
)

func generateSine(n int, freq float64) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return samples
}

func TestNumFrames(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 1},
		{100, 1},
		{255, 1},
		{256, 1},
		{415, 1},
		{416, 2},
		{16000, 99},
		{24000, 149},
	}
	for _, tt := range tests {
		if got := NumFrames(tt.n, 256, 160); got != tt.want {
			t.Errorf("NumFrames(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFrame(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(i)
	}
	dst := make([]float64, 25)
	Frame(dst, samples, 1, 10)
	if dst[0] != 10.0 {
		t.Errorf("dst[0] = %f, want 10.0", dst[0])
	}

	// frame running past the end is zero-filled
	Frame(dst, samples, 9, 10)
	if dst[9] != 99 || dst[10] != 0 {
		t.Errorf("dst[9], dst[10] = %f, %f, want 99, 0", dst[9], dst[10])
	}
}

func TestHannWindow(t *testing.T) {
	w := HannWindow(256)
	if w[0] != 0 {
		t.Errorf("w[0] = %f, want 0", w[0])
	}
	// periodic window peaks at n/2
	if math.Abs(w[128]-1.0) > 1e-12 {
		t.Errorf("w[128] = %f, want 1.0", w[128])
	}
	if math.Abs(w[1]-w[255]) > 1e-12 {
		t.Errorf("window not symmetric: w[1]=%f w[255]=%f", w[1], w[255])
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	bad := []Config{
		{FrameLength: 0, FrameStep: 160, FFTLength: 384},
		{FrameLength: 256, FrameStep: 0, FFTLength: 384},
		{FrameLength: 256, FrameStep: 160, FFTLength: 128},
		{FrameLength: 256, FrameStep: 160, FFTLength: 384, Epsilon: -1},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, cfg)
		}
	}
	if _, err := NewExtractor(bad[0]); err == nil {
		t.Error("NewExtractor accepted an invalid config")
	}
}

func newTestExtractor(t testing.TB) *Extractor {
	t.Helper()
	e, err := NewExtractor(DefaultConfig())
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func TestExtract_Shape(t *testing.T) {
	e := newTestExtractor(t)
	m := e.Extract(generateSine(16000, 440))
	if m.Frames() != 99 {
		t.Errorf("Frames() = %d, want 99", m.Frames())
	}
	if m.Bins() != 193 {
		t.Errorf("Bins() = %d, want 193", m.Bins())
	}
}

func TestExtract_ShortInput(t *testing.T) {
	e := newTestExtractor(t)
	for _, n := range []int{0, 1, 100} {
		m := e.Extract(generateSine(n, 440))
		if m.Frames() != 1 || m.Bins() != 193 {
			t.Errorf("n=%d: shape = (%d, %d), want (1, 193)", n, m.Frames(), m.Bins())
		}
		for _, v := range m[0] {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("n=%d: non-finite value %f", n, v)
			}
		}
	}
}

func TestExtract_Silence(t *testing.T) {
	e := newTestExtractor(t)
	m := e.Extract(make([]float32, 8000))
	for ti, row := range m {
		for k, v := range row {
			if v != 0 {
				t.Fatalf("m[%d][%d] = %f, want 0", ti, k, v)
			}
		}
	}
}

func TestSpectrogram_PeakBin(t *testing.T) {
	e := newTestExtractor(t)
	// 1000 Hz at 16 kHz with a 384-point FFT lands on bin 24
	m := e.Spectrogram(generateSine(4000, 1000))
	row := m[5]
	best := 0
	for k := range row {
		if row[k] > row[best] {
			best = k
		}
	}
	if best != 24 {
		t.Errorf("peak bin = %d, want 24", best)
	}
	for _, v := range row {
		if v < 0 {
			t.Fatalf("negative magnitude %f", v)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor(t)
	samples := generateSine(12345, 300)
	a := e.Extract(samples)
	b := e.Extract(samples)
	for ti := range a {
		for k := range a[ti] {
			if a[ti][k] != b[ti][k] {
				t.Fatalf("m[%d][%d] differs: %f vs %f", ti, k, a[ti][k], b[ti][k])
			}
		}
	}
}

func TestExtract_Concurrent(t *testing.T) {
	e := newTestExtractor(t)
	samples := generateSine(16000, 440)
	want := e.Extract(samples)

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := e.Extract(samples)
			for ti := range want {
				for k := range want[ti] {
					if got[ti][k] != want[ti][k] {
						errs <- "concurrent extract mismatch"
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestNormalize(t *testing.T) {
	m := Matrix{
		{1, 10},
		{2, 10},
		{3, 10},
	}
	Normalize(m, 1e-10)

	// column 0: mean 2, population std sqrt(2/3)
	std := math.Sqrt(2.0 / 3.0)
	want := []float64{-1 / std, 0, 1 / std}
	for ti := range want {
		if math.Abs(float64(m[ti][0])-want[ti]) > 1e-5 {
			t.Errorf("m[%d][0] = %f, want %f", ti, m[ti][0], want[ti])
		}
	}
	// constant column collapses to zero
	for ti := range m {
		if math.Abs(float64(m[ti][1])) > 1e-3 {
			t.Errorf("m[%d][1] = %f, want ~0", ti, m[ti][1])
		}
	}
}

func TestNormalize_AlreadyNormalized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := generateSine(24000, 440)
	for i := range samples {
		samples[i] += float32(0.05 * rng.NormFloat64())
	}
	m := newTestExtractor(t).Extract(samples)

	again := NewMatrix(m.Frames(), m.Bins())
	for ti := range m {
		copy(again[ti], m[ti])
	}
	Normalize(again, 1e-10)

	// float32 rounding of the mean/std pass is the only change allowed
	for ti := range m {
		for j := range m[ti] {
			if d := math.Abs(float64(again[ti][j] - m[ti][j])); d > 1e-4 {
				t.Fatalf("renormalized m[%d][%d] moved by %g", ti, j, d)
			}
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	Normalize(nil, 1e-10)
	Normalize(Matrix{}, 1e-10)
}

func BenchmarkExtract_1sec(b *testing.B) {
	e := newTestExtractor(b)
	samples := generateSine(16000, 440)
	b.ResetTimer()
	for b.Loop() {
		e.Extract(samples)
	}
}

func BenchmarkExtract_5sec(b *testing.B) {
	e := newTestExtractor(b)
	samples := generateSine(80000, 440)
	b.ResetTimer()
	for b.Loop() {
		e.Extract(samples)
	}
}
