package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var errNoFFmpeg = errors.New("ffmpeg not available")

// decodeFFmpeg converts data to 16-bit mono WAV with an ffmpeg subprocess and
// parses the result. The input goes through a temp file because MP4 containers
// may keep their index at the end, which ffmpeg cannot reach on a pipe.
func decodeFFmpeg(ctx context.Context, bin string, data []byte) (Waveform, error) {
	if bin == "" {
		return Waveform{}, errNoFFmpeg
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return Waveform{}, errNoFFmpeg
	}

	in, err := os.CreateTemp("", "speechtext-*.in")
	if err != nil {
		return Waveform{}, fmt.Errorf("create temp input: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return Waveform{}, fmt.Errorf("write temp input: %w", err)
	}
	if err := in.Close(); err != nil {
		return Waveform{}, fmt.Errorf("close temp input: %w", err)
	}

	// ffmpeg -i input -vn -ac 1 -acodec pcm_s16le -f wav pipe:1
	cmd := exec.CommandContext(ctx, path,
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", in.Name(),
		"-vn", "-ac", "1",
		"-acodec", "pcm_s16le",
		"-f", "wav", "pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Waveform{}, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return Waveform{}, fmt.Errorf("ffmpeg: %w", err)
	}

	samples, h, err := ReadWAV(bytes.NewReader(stdout.Bytes()))
	if err != nil {
		return Waveform{}, fmt.Errorf("read ffmpeg output: %w", err)
	}
	return Waveform{Samples: samples, SampleRate: int(h.SampleRate)}, nil
}
