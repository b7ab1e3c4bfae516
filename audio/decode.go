package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
)

// Format identifies an audio container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatOGG
	FormatFLAC
	FormatM4A
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatOGG:
		return "ogg"
	case FormatFLAC:
		return "flac"
	case FormatM4A:
		return "m4a"
	default:
		return "unknown"
	}
}

// Sniff detects the container from its leading magic bytes.
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return FormatOGG
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		return FormatM4A
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// Config holds loader parameters.
type Config struct {
	TargetSampleRate int    // rate used in normalize mode
	FFmpegPath       string // binary used for M4A and unknown containers; empty disables
}

// DefaultConfig returns the standard loader configuration.
func DefaultConfig() Config {
	return Config{
		TargetSampleRate: 16000,
		FFmpegPath:       "ffmpeg",
	}
}

// Loader turns raw container bytes into mono waveforms. It keeps no state
// between calls and is safe for concurrent use.
type Loader struct {
	cfg Config
}

// NewLoader creates a Loader.
func NewLoader(cfg Config) *Loader {
	if cfg.TargetSampleRate <= 0 {
		cfg.TargetSampleRate = DefaultConfig().TargetSampleRate
	}
	return &Loader{cfg: cfg}
}

// Config returns the loader configuration.
func (l *Loader) Config() Config { return l.cfg }

// Decode decodes data at its native sample rate. When normalize is set the
// waveform is additionally resampled to the target rate.
// Every failure wraps ErrDecode.
func (l *Loader) Decode(ctx context.Context, data []byte, normalize bool) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, fmt.Errorf("%w: empty input", ErrDecode)
	}

	w, err := l.decode(ctx, data)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if normalize {
		w, err = Resample(w, l.cfg.TargetSampleRate)
		if err != nil {
			return Waveform{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}
	return w, nil
}

// DecodeFile reads path and decodes it like Decode.
func (l *Loader) DecodeFile(ctx context.Context, path string, normalize bool) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return l.Decode(ctx, data, normalize)
}

func (l *Loader) decode(ctx context.Context, data []byte) (Waveform, error) {
	switch format := Sniff(data); format {
	case FormatWAV:
		samples, h, err := ReadWAV(bytes.NewReader(data))
		if err != nil {
			return Waveform{}, fmt.Errorf("read wav: %w", err)
		}
		return Waveform{Samples: samples, SampleRate: int(h.SampleRate)}, nil

	case FormatMP3:
		s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return Waveform{}, fmt.Errorf("open mp3: %w", err)
		}
		return readStream(s, f)

	case FormatOGG:
		s, f, err := vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return Waveform{}, fmt.Errorf("open vorbis: %w", err)
		}
		return readStream(s, f)

	case FormatFLAC:
		s, f, err := flac.Decode(bytes.NewReader(data))
		if err != nil {
			return Waveform{}, fmt.Errorf("open flac: %w", err)
		}
		return readStream(s, f)

	default:
		w, err := decodeFFmpeg(ctx, l.cfg.FFmpegPath, data)
		if errors.Is(err, errNoFFmpeg) {
			return Waveform{}, fmt.Errorf("%w: %s container", ErrUnsupportedFormat, format)
		}
		return w, err
	}
}

// readStream drains a beep stream into a mono waveform.
func readStream(s beep.StreamSeekCloser, f beep.Format) (Waveform, error) {
	defer s.Close()

	var interleaved []float64
	if n := s.Len(); n > 0 {
		interleaved = make([]float64, 0, 2*n)
	}
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			interleaved = append(interleaved, frame[0], frame[1])
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return Waveform{}, fmt.Errorf("stream samples: %w", err)
	}

	// beep always yields two channels; mono sources carry the same value in both.
	return Waveform{Samples: downmix(interleaved, 2), SampleRate: int(f.SampleRate)}, nil
}
