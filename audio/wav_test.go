package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"runtime"
	"testing"
)

// buildWAV constructs a minimal valid 16-bit PCM WAV file in memory.
// samples are interleaved when numChannels > 1.
func buildWAV(sampleRate uint32, numChannels uint16, samples []int16) []byte {
	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, samples)
	return buildWAVRaw(1, sampleRate, 16, numChannels, data.Bytes())
}

// buildWAVRaw wraps already encoded sample bytes in a RIFF/WAVE container.
func buildWAVRaw(format uint16, sampleRate uint32, bitsPerSample, numChannels uint16, data []byte) []byte {
	var buf bytes.Buffer
	dataSize := uint32(len(data))
	byteRate := sampleRate * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // chunk size
	binary.Write(&buf, binary.LittleEndian, format)
	binary.Write(&buf, binary.LittleEndian, numChannels)
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, bitsPerSample)

	// data chunk
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(data)

	return buf.Bytes()
}

func TestReadWAV_Valid(t *testing.T) {
	// Generate a 440Hz sine wave, 100 samples at 16kHz
	n := 100
	raw := make([]int16, n)
	for i := range raw {
		raw[i] = int16(16000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	data := buildWAV(16000, 1, raw)
	samples, header, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}

	if header.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", header.SampleRate)
	}
	if header.NumChannels != 1 {
		t.Errorf("NumChannels = %d, want 1", header.NumChannels)
	}
	if header.BitsPerSample != 16 {
		t.Errorf("BitsPerSample = %d, want 16", header.BitsPerSample)
	}
	if header.NumFrames != n {
		t.Errorf("NumFrames = %d, want %d", header.NumFrames, n)
	}
	if len(samples) != n {
		t.Fatalf("len(samples) = %d, want %d", len(samples), n)
	}

	// Verify conversion: int16 -> float
	for i := 0; i < n; i++ {
		want := float64(raw[i]) / 32768.0
		if math.Abs(float64(samples[i])-want) > 1e-6 {
			t.Errorf("samples[%d] = %f, want %f", i, samples[i], want)
		}
	}
}

func TestReadWAV_StereoDownmix(t *testing.T) {
	// L/R pairs average into one mono sample each
	raw := []int16{1000, 3000, -2000, 2000, 16384, 16384}
	data := buildWAV(44100, 2, raw)

	samples, header, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}
	if header.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", header.SampleRate)
	}
	want := []float64{2000.0 / 32768, 0, 0.5}
	if len(samples) != len(want) {
		t.Fatalf("len(samples) = %d, want %d", len(samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(samples[i])-want[i]) > 1e-6 {
			t.Errorf("samples[%d] = %f, want %f", i, samples[i], want[i])
		}
	}
}

func TestReadWAV_24Bit(t *testing.T) {
	// -1.0, 0.5 in 24-bit little endian
	data := []byte{0x00, 0x00, 0x80, 0x00, 0x00, 0x40}
	samples, _, err := ReadWAV(bytes.NewReader(buildWAVRaw(1, 16000, 24, 1, data)))
	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}
	want := []float32{-1.0, 0.5}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("samples[%d] = %f, want %f", i, samples[i], want[i])
		}
	}
}

func TestReadWAV_Float32(t *testing.T) {
	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, []float32{0.25, -0.75})
	samples, header, err := ReadWAV(bytes.NewReader(buildWAVRaw(3, 22050, 32, 1, data.Bytes())))
	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}
	if header.AudioFormat != wavFormatFloat {
		t.Errorf("AudioFormat = %d, want %d", header.AudioFormat, wavFormatFloat)
	}
	if samples[0] != 0.25 || samples[1] != -0.75 {
		t.Errorf("samples = %v, want [0.25 -0.75]", samples)
	}
}

func TestReadWAV_UnknownDataSize(t *testing.T) {
	raw := []int16{100, 200, 300}
	data := buildWAV(16000, 1, raw)
	// patch data chunk size to the streaming placeholder
	binary.LittleEndian.PutUint32(data[40:44], unknownDataSize)

	samples, _, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}
	if len(samples) != len(raw) {
		t.Errorf("len(samples) = %d, want %d", len(samples), len(raw))
	}
}

func TestReadWAV_OversizedDataChunk(t *testing.T) {
	raw := []int16{100, 200}
	data := buildWAV(16000, 1, raw)
	// claim almost 4 GiB of samples behind a 48-byte file
	binary.LittleEndian.PutUint32(data[40:44], 0xFFFFFFF0)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	samples, _, err := ReadWAV(bytes.NewReader(data))
	runtime.ReadMemStats(&after)

	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}
	if len(samples) != len(raw) {
		t.Errorf("len(samples) = %d, want %d", len(samples), len(raw))
	}
	if grew := after.TotalAlloc - before.TotalAlloc; grew > 1<<20 {
		t.Errorf("ReadWAV allocated %d bytes for a %d-byte file", grew, len(data))
	}
}

func TestReadWAV_TruncatedDataChunk(t *testing.T) {
	raw := []int16{100, 200, 300, 400}
	data := buildWAV(16000, 1, raw)
	data = data[:len(data)-3] // cut one and a half samples

	samples, _, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV error: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("len(samples) = %d, want 2", len(samples))
	}
}

func TestReadWAV_NotRIFF(t *testing.T) {
	data := []byte("NOT_RIFF_DATA_HERE_EXTRA")
	_, _, err := ReadWAV(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for non-RIFF data")
	}
}

func TestReadWAV_UnsupportedFormat(t *testing.T) {
	// format 2 = MS ADPCM
	data := buildWAVRaw(2, 16000, 4, 1, []byte{0, 0, 0, 0})
	_, _, err := ReadWAV(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for ADPCM format")
	}
}
