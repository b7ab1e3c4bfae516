package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// WAV format codes.
const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// unknownDataSize marks a streamed data chunk whose length was not known when
// the header was written (ffmpeg writing to a pipe does this).
const unknownDataSize = 0xFFFFFFFF

// WAVHeader holds the parsed RIFF/WAV header fields.
type WAVHeader struct {
	AudioFormat   uint16
	SampleRate    uint32
	BitsPerSample uint16
	NumChannels   uint16
	NumFrames     int
}

// ReadWAV reads a WAV stream and returns mono samples in [-1.0, 1.0].
// Multi-channel input is averaged.
// PCM 8/16/24/32-bit and IEEE float 32/64-bit are supported at any sample rate.
func ReadWAV(r io.ReadSeeker) ([]float32, WAVHeader, error) {
	var header WAVHeader

	// Read RIFF header
	var riffID [4]byte
	if err := binary.Read(r, binary.LittleEndian, &riffID); err != nil {
		return nil, header, fmt.Errorf("read RIFF ID: %w", err)
	}
	if string(riffID[:]) != "RIFF" {
		return nil, header, errors.New("not a RIFF file")
	}

	var fileSize uint32
	if err := binary.Read(r, binary.LittleEndian, &fileSize); err != nil {
		return nil, header, fmt.Errorf("read file size: %w", err)
	}

	var waveID [4]byte
	if err := binary.Read(r, binary.LittleEndian, &waveID); err != nil {
		return nil, header, fmt.Errorf("read WAVE ID: %w", err)
	}
	if string(waveID[:]) != "WAVE" {
		return nil, header, errors.New("not a WAVE file")
	}

	// Read chunks
	var fmtFound, dataFound bool
	var samples []float32

	for {
		var chunkID [4]byte
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, header, fmt.Errorf("read chunk ID: %w", err)
		}

		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, header, fmt.Errorf("read chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if err := readFmtChunk(r, chunkSize, &header); err != nil {
				return nil, header, err
			}
			fmtFound = true

		case "data":
			if !fmtFound {
				return nil, header, errors.New("data chunk before fmt chunk")
			}
			var err error
			samples, err = readDataChunk(r, chunkSize, &header)
			if err != nil {
				return nil, header, err
			}
			dataFound = true

		default:
			// Skip unknown chunks; align to even boundary
			skip := int64(chunkSize)
			if chunkSize%2 != 0 {
				skip++
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, header, fmt.Errorf("skip chunk %q: %w", chunkID, err)
			}
		}

		if fmtFound && dataFound {
			break
		}
	}

	if !fmtFound {
		return nil, header, errors.New("missing fmt chunk")
	}
	if !dataFound {
		return nil, header, errors.New("missing data chunk")
	}

	return samples, header, nil
}

// ReadWAVFile is a convenience wrapper that opens a file path.
func ReadWAVFile(path string) ([]float32, WAVHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVHeader{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func readFmtChunk(r io.ReadSeeker, size uint32, h *WAVHeader) error {
	if size < 16 {
		return fmt.Errorf("fmt chunk too small (%d bytes)", size)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.AudioFormat); err != nil {
		return fmt.Errorf("read audio format: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.NumChannels); err != nil {
		return fmt.Errorf("read num channels: %w", err)
	}
	if h.NumChannels == 0 {
		return errors.New("zero channel count")
	}
	if err := binary.Read(r, binary.LittleEndian, &h.SampleRate); err != nil {
		return fmt.Errorf("read sample rate: %w", err)
	}
	if h.SampleRate == 0 {
		return errors.New("zero sample rate")
	}

	// Skip byteRate (4 bytes) and blockAlign (2 bytes)
	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip byte rate / block align: %w", err)
	}

	if err := binary.Read(r, binary.LittleEndian, &h.BitsPerSample); err != nil {
		return fmt.Errorf("read bits per sample: %w", err)
	}

	consumed := uint32(16) // audioFormat(2) + numChannels(2) + sampleRate(4) + byteRate(4) + blockAlign(2) + bitsPerSample(2)

	// WAVE_FORMAT_EXTENSIBLE: cbSize(2) validBits(2) channelMask(4) then the
	// sub-format GUID whose first two bytes are the real format code.
	if h.AudioFormat == wavFormatExtensible && size >= 40 {
		if _, err := r.Seek(8, io.SeekCurrent); err != nil {
			return fmt.Errorf("skip extensible header: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &h.AudioFormat); err != nil {
			return fmt.Errorf("read sub-format: %w", err)
		}
		consumed += 10
	}

	switch {
	case h.AudioFormat == wavFormatPCM:
		switch h.BitsPerSample {
		case 8, 16, 24, 32:
		default:
			return fmt.Errorf("unsupported PCM bits per sample %d", h.BitsPerSample)
		}
	case h.AudioFormat == wavFormatFloat:
		if h.BitsPerSample != 32 && h.BitsPerSample != 64 {
			return fmt.Errorf("unsupported float bits per sample %d", h.BitsPerSample)
		}
	default:
		return fmt.Errorf("unsupported audio format %d (PCM=1 and float=3 supported)", h.AudioFormat)
	}

	// Skip any extra fmt bytes, including the pad byte of odd-sized chunks
	rest := int64(size) - int64(consumed)
	if size%2 != 0 {
		rest++
	}
	if rest > 0 {
		if _, err := r.Seek(rest, io.SeekCurrent); err != nil {
			return fmt.Errorf("skip extra fmt bytes: %w", err)
		}
	}

	return nil
}

func readDataChunk(r io.Reader, size uint32, h *WAVHeader) ([]float32, error) {
	// The declared size is untrusted: read at most that much and never
	// allocate ahead of the bytes actually present. Truncated files are
	// common, so a short chunk keeps what was written.
	src := r
	if size != unknownDataSize && size != 0 {
		src = io.LimitReader(r, int64(size))
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read sample data: %w", err)
	}

	bytesPerSample := int(h.BitsPerSample) / 8
	numChannels := int(h.NumChannels)
	numFrames := len(raw) / (bytesPerSample * numChannels)
	h.NumFrames = numFrames

	interleaved := make([]float64, numFrames*numChannels)
	for i := range interleaved {
		interleaved[i] = decodeSample(raw[i*bytesPerSample:(i+1)*bytesPerSample], h.AudioFormat)
	}

	return downmix(interleaved, numChannels), nil
}

// decodeSample converts one little-endian sample to a float in [-1, 1].
func decodeSample(b []byte, format uint16) float64 {
	if format == wavFormatFloat {
		if len(b) == 8 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	switch len(b) {
	case 1:
		return (float64(b[0]) - 128) / 128.0
	case 2:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0
	}
}
